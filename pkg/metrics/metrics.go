package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NodesTotal counts nodes by node type and lifecycle state, as
	// observed by the most recent tick's non_terminated_nodes call.
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetscaler_nodes_total",
			Help: "Total number of nodes by node type and state",
		},
		[]string{"node_type", "state"},
	)

	PendingLaunchesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetscaler_pending_launches_total",
			Help: "Nodes requested via CreateNode this tick that are not yet visible as running",
		},
	)

	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetscaler_raft_is_leader",
			Help: "Whether this replica currently owns the scaler tick (1 = leader, 0 = follower)",
		},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetscaler_tick_duration_seconds",
			Help:    "Time taken for one scaler tick, start to finish",
			Buckets: prometheus.DefBuckets,
		},
	)

	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetscaler_ticks_total",
			Help: "Total number of completed scaler ticks",
		},
	)

	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetscaler_provider_calls_total",
			Help: "Total provider calls by operation and outcome kind (ok, transient, fatal)",
		},
		[]string{"operation", "kind"},
	)

	NodeCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetscaler_node_create_duration_seconds",
			Help:    "Time taken for a CreateNode provider call to return",
			Buckets: prometheus.DefBuckets,
		},
	)

	NodeUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetscaler_node_update_duration_seconds",
			Help:    "Time taken for one updater Run, from first call to terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	NodesLaunchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetscaler_nodes_launched_total",
			Help: "Total nodes launched by node type",
		},
		[]string{"node_type"},
	)

	NodesTerminatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetscaler_nodes_terminated_total",
			Help: "Total nodes terminated by node type and reason (idle, obsolete, over_max)",
		},
		[]string{"node_type", "reason"},
	)

	UpdateFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetscaler_update_failures_total",
			Help: "Total updater runs that ended in update-failed, by node type",
		},
		[]string{"node_type"},
	)

	UpdateLoopFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetscaler_update_loop_failures_total",
			Help: "Total scaler ticks that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(PendingLaunchesTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(ProviderCallsTotal)
	prometheus.MustRegister(NodeCreateDuration)
	prometheus.MustRegister(NodeUpdateDuration)
	prometheus.MustRegister(NodesLaunchedTotal)
	prometheus.MustRegister(NodesTerminatedTotal)
	prometheus.MustRegister(UpdateFailuresTotal)
	prometheus.MustRegister(UpdateLoopFailuresTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
