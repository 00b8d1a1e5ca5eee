package scaler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/fleetscaler/pkg/heartbeat"
	"github.com/cuemby/fleetscaler/pkg/log"
	"github.com/cuemby/fleetscaler/pkg/metrics"
	"github.com/cuemby/fleetscaler/pkg/provider"
	"github.com/cuemby/fleetscaler/pkg/reconciler"
	"github.com/cuemby/fleetscaler/pkg/scheduler"
	"github.com/cuemby/fleetscaler/pkg/store"
	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/cuemby/fleetscaler/pkg/updater"
)

// NodeNumberer hands out the sequential node numbers baked into
// TagNodeNumber/TagNodeName. Satisfied by store.Store; the scaler's
// tests use a BoltStore in a temporary directory.
type NodeNumberer interface {
	NextNodeNumber() (int, error)
}

// Config is the fixed, per-cluster input to the scaler, derived from a
// config.Prepared document.
type Config struct {
	Cluster               *types.ClusterConfig
	LaunchHash            map[string]string // node type name -> launch hash
	RuntimeHash           string
	CacheStopped          bool
	MaxConcurrentLaunches int
	MaxFailures           int
	SSHWaitDeadline       time.Duration
	SSHPollInterval       time.Duration
}

// FatalError is surfaced to the scaler's owner: repeated provider
// failures past MaxFailures, or a config/invariant condition the scaler
// could not self-heal.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string { return "scaler: " + e.Reason }

// TickStats summarizes one Tick's work, for logging and tests.
type TickStats struct {
	Snapshot    int
	Terminated  int
	Launched    int
	UpdatersRun int
	Failed      bool
}

// Scaler owns the single control loop that reconciles a cluster's node
// set. One Scaler instance exists per cluster; HA deployments run
// several replicas and gate Tick on pkg/leader's IsLeader.
type Scaler struct {
	Provider   provider.Provider
	Metrics    *heartbeat.Tracker
	Numbers    NodeNumberer
	Strategy   scheduler.Strategy
	Reconciler *reconciler.Reconciler
	Updater    *updater.Updater

	cfg Config

	mu                  sync.Mutex
	consecutiveFailures int
	inFlight            map[string]struct{}
	launchSem           chan struct{}
}

// New constructs a Scaler. st backs NodeNumberer; pass a store.Store in
// production.
func New(p provider.Provider, st store.Store, cfg Config) *Scaler {
	s := &Scaler{
		Provider:   p,
		Metrics:    heartbeat.New(),
		Numbers:    st,
		Strategy:   scheduler.GrowSmallestSatisfying{},
		Reconciler: reconciler.New(time.Duration(cfg.Cluster.IdleTimeoutMinutes) * time.Minute),
		cfg:        cfg,
		inFlight:   make(map[string]struct{}),
		launchSem:  make(chan struct{}, max(cfg.MaxConcurrentLaunches, 1)),
	}
	return s
}

// Tick runs one full reconciliation pass. It never panics on provider
// failure: every provider call result is checked, and a Transient or
// Fatal outcome from the one non_terminated_nodes call aborts the tick
// early, counted toward MaxFailures.
func (s *Scaler) Tick(ctx context.Context) (TickStats, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.TickDuration)
		metrics.TicksTotal.Inc()
	}()

	stats, err := s.tick(ctx)
	s.mu.Lock()
	if err != nil {
		s.consecutiveFailures++
		metrics.UpdateLoopFailuresTotal.Inc()
		failures := s.consecutiveFailures
		s.mu.Unlock()
		if failures >= s.cfg.MaxFailures && s.cfg.MaxFailures > 0 {
			return stats, &FatalError{Reason: fmt.Sprintf("%d consecutive tick failures: %v", failures, err)}
		}
		return stats, nil // recovered: counted, not propagated
	}
	s.consecutiveFailures = 0
	s.mu.Unlock()
	return stats, nil
}

func (s *Scaler) tick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	filters := provider.TagFilters{types.TagClusterName: s.cfg.Cluster.ClusterName}
	idsOutcome := s.Provider.NonTerminatedNodes(ctx, filters)
	metrics.RecordProviderCall("non_terminated_nodes", outcomeKind(idsOutcome.Kind()))
	ids, ok := idsOutcome.Value()
	if !ok {
		return stats, idsOutcome.Err()
	}

	snapshot, activeIPs, err := s.buildSnapshot(ctx, ids)
	if err != nil {
		return stats, err
	}
	stats.Snapshot = len(snapshot)
	s.Metrics.Prune(activeIPs)

	idle := s.Reconciler.IdleCandidates(snapshot, s.Metrics)
	obsolete := s.Reconciler.ObsoleteCandidates(snapshot, s.cfg.LaunchHash)

	counts := countsByType(snapshot)
	demand := s.currentDemand()
	desired := s.Strategy.DesiredCounts(demand, s.cfg.Cluster.WorkerNodeTypes(), counts, s.cfg.Cluster.MinWorkers, s.cfg.Cluster.MaxWorkers)

	excess := excessOverDesired(snapshot, counts, desired)

	terminate := unionIDs(idle, obsolete, excess)
	if err := s.terminate(ctx, snapshot, terminate); err != nil {
		return stats, err
	}
	stats.Terminated = len(terminate)

	// Nodes terminated this tick no longer count toward the live total
	// launch() sees, even though the snapshot it was counted from
	// predates the terminate calls.
	remaining := subtractTerminated(snapshot, counts, terminate)

	launched, err := s.launch(ctx, remaining, desired)
	if err != nil {
		return stats, err
	}
	stats.Launched = launched

	stats.UpdatersRun = s.spawnUpdaters(ctx, snapshot)

	s.publishMetrics(counts)

	return stats, nil
}

func outcomeKind(k provider.Kind) string {
	switch k {
	case provider.KindOk:
		return "ok"
	case provider.KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// buildSnapshot fetches tags and internal IPs for every id from the
// single non_terminated_nodes result. These are separate provider
// calls, but the testable invariant only bounds non_terminated_nodes
// itself to one call per tick.
func (s *Scaler) buildSnapshot(ctx context.Context, ids []string) ([]reconciler.Snapshot, map[string]struct{}, error) {
	snapshot := make([]reconciler.Snapshot, 0, len(ids))
	activeIPs := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		tagsOutcome := s.Provider.NodeTags(ctx, id)
		if tagsOutcome.Kind() == provider.KindFatal && provider.IsNodeGone(tagsOutcome.Err()) {
			continue // NodeGone: swallowed, dropped from local state
		}
		tags, ok := tagsOutcome.Value()
		if !ok {
			return nil, nil, tagsOutcome.Err()
		}

		ipOutcome := s.Provider.InternalIP(ctx, id)
		ip, _ := ipOutcome.Value()

		snapshot = append(snapshot, reconciler.Snapshot{
			ID:   id,
			IP:   ip,
			Tags: tags,
			Kind: types.NodeKind(tags[types.TagNodeKind]),
		})
		if ip != "" {
			activeIPs[ip] = struct{}{}
			// Once a node is up to date, its liveness must come from its
			// own heartbeats (Tracker.Update), not from the provider
			// merely still listing it: otherwise a worker whose agent
			// has stopped heartbeating would be re-stamped alive here
			// every tick and could never become an idle-termination
			// candidate. Nodes still bootstrapping have no heartbeat
			// stream yet, so the provider's liveness is the only signal
			// available and is trusted here.
			if types.NodeStatus(tags[types.TagNodeStatus]) != types.NodeStatusUpToDate {
				s.Metrics.MarkActive(ip)
			}
		}
	}
	return snapshot, activeIPs, nil
}

// currentDemand sums reported load across every tracked node, giving
// the scheduler's default strategy its target-workers-for-type signal.
func (s *Scaler) currentDemand() scheduler.Demand {
	total := make(types.ResourceVector)
	for _, rec := range s.Metrics.Snapshot() {
		total = total.Add(rec.Load)
	}
	return scheduler.Demand(total)
}

func countsByType(snapshot []reconciler.Snapshot) map[string]int {
	out := make(map[string]int)
	for _, n := range snapshot {
		if n.Kind != types.NodeKindWorker {
			continue
		}
		out[n.Tags[types.TagUserNodeType]]++
	}
	return out
}

// excessOverDesired returns ids of running workers beyond each type's
// desired count, picked deterministically (oldest node-number first)
// rather than map-iteration order.
func excessOverDesired(snapshot []reconciler.Snapshot, counts, desired map[string]int) []string {
	byType := make(map[string][]reconciler.Snapshot)
	for _, n := range snapshot {
		if n.Kind != types.NodeKindWorker {
			continue
		}
		t := n.Tags[types.TagUserNodeType]
		byType[t] = append(byType[t], n)
	}

	var out []string
	for t, nodes := range byType {
		over := counts[t] - desired[t]
		if over <= 0 {
			continue
		}
		sort.Slice(nodes, func(i, j int) bool {
			a, _ := strconv.Atoi(nodes[i].Tags[types.TagNodeNumber])
			b, _ := strconv.Atoi(nodes[j].Tags[types.TagNodeNumber])
			return a < b
		})
		for i := 0; i < over && i < len(nodes); i++ {
			out = append(out, nodes[i].ID)
		}
	}
	return out
}

func unionIDs(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// terminate splits ids into spot and on-demand sets, then batches each
// through the provider call the cluster's cache-stopped policy selects.
// Spot instances are always hard-terminated regardless of policy.
func (s *Scaler) terminate(ctx context.Context, snapshot []reconciler.Snapshot, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	byID := make(map[string]reconciler.Snapshot, len(snapshot))
	for _, n := range snapshot {
		byID[n.ID] = n
	}

	var spot, onDemand []string
	for _, id := range ids {
		n, ok := byID[id]
		if ok && (&types.Node{Tags: n.Tags}).IsSpot() {
			spot = append(spot, id)
		} else {
			onDemand = append(onDemand, id)
		}
	}

	for _, batch := range provider.Batches(spot) {
		outcome := s.Provider.TerminateNodes(ctx, batch)
		metrics.RecordProviderCall("terminate_nodes", outcomeKind(outcome.Kind()))
		if outcome.Kind() == provider.KindFatal {
			return outcome.Err()
		}
	}

	onDemandOp := s.Provider.TerminateNodes
	opName := "terminate_nodes"
	if s.cfg.CacheStopped {
		onDemandOp = s.Provider.StopNodes
		opName = "stop_nodes"
	}
	for _, batch := range provider.Batches(onDemand) {
		outcome := onDemandOp(ctx, batch)
		metrics.RecordProviderCall(opName, outcomeKind(outcome.Kind()))
		if outcome.Kind() == provider.KindFatal {
			return outcome.Err()
		}
	}
	return nil
}

// subtractTerminated returns a copy of counts with each terminated id's
// node type count decremented by one.
func subtractTerminated(snapshot []reconciler.Snapshot, counts map[string]int, terminated []string) map[string]int {
	byID := make(map[string]reconciler.Snapshot, len(snapshot))
	for _, n := range snapshot {
		byID[n.ID] = n
	}
	out := make(map[string]int, len(counts))
	for t, n := range counts {
		out[t] = n
	}
	for _, id := range terminated {
		n, ok := byID[id]
		if !ok || n.Kind != types.NodeKindWorker {
			continue
		}
		t := n.Tags[types.TagUserNodeType]
		if out[t] > 0 {
			out[t]--
		}
	}
	return out
}

// launch creates nodes to bring every under-provisioned type up to its
// desired count.
func (s *Scaler) launch(ctx context.Context, counts, desired map[string]int) (int, error) {
	launched := 0
	for name, nt := range s.cfg.Cluster.WorkerNodeTypes() {
		need := desired[name] - counts[name]
		if need <= 0 {
			continue
		}
		for i := 0; i < need; i++ {
			if err := s.launchOne(ctx, name, nt, types.NodeKindWorker); err != nil {
				return launched, err
			}
			launched++
		}
	}
	return launched, nil
}

func (s *Scaler) launchOne(ctx context.Context, typeName string, nt *types.NodeType, kind types.NodeKind) error {
	num, err := s.Numbers.NextNodeNumber()
	if err != nil {
		return fmt.Errorf("scaler: next node number: %w", err)
	}
	timer := metrics.NewTimer()
	tags := map[string]string{
		types.TagClusterName:   s.cfg.Cluster.ClusterName,
		types.TagNodeKind:      string(kind),
		types.TagUserNodeType:  typeName,
		types.TagNodeStatus:    string(types.NodeStatusUninitialized),
		types.TagLaunchConfig:  s.cfg.LaunchHash[typeName],
		types.TagNodeName:      fmt.Sprintf("%s-%d", s.cfg.Cluster.ClusterName, num),
		types.TagNodeNumber:    strconv.Itoa(num),
	}
	outcome := s.Provider.CreateNode(ctx, provider.NodeConfig(nt.LaunchConfig), tags, 1)
	timer.ObserveDuration(metrics.NodeCreateDuration)
	metrics.RecordProviderCall("create_node", outcomeKind(outcome.Kind()))
	if outcome.Kind() == provider.KindFatal {
		return outcome.Err()
	}
	metrics.NodesLaunchedTotal.WithLabelValues(typeName).Inc()
	return nil
}

// spawnUpdaters launches a Node Updater for every node not already
// terminal and not already owned by an in-flight run, up to
// MaxConcurrentLaunches concurrently in-flight across the whole
// process (not just this tick).
func (s *Scaler) spawnUpdaters(ctx context.Context, snapshot []reconciler.Snapshot) int {
	if s.Updater == nil {
		return 0
	}
	spawned := 0
	for _, n := range snapshot {
		status := types.NodeStatus(n.Tags[types.TagNodeStatus])
		if status == types.NodeStatusUpToDate || status == types.NodeStatusUpdateFailed {
			continue
		}
		s.mu.Lock()
		if _, busy := s.inFlight[n.ID]; busy {
			s.mu.Unlock()
			continue
		}
		select {
		case s.launchSem <- struct{}{}:
		default:
			s.mu.Unlock()
			continue // concurrency cap reached; retry next tick
		}
		s.inFlight[n.ID] = struct{}{}
		s.mu.Unlock()

		spawned++
		node, kind := n, n.Kind
		go s.runUpdater(ctx, node, kind)
	}
	return spawned
}

func (s *Scaler) runUpdater(ctx context.Context, n reconciler.Snapshot, kind types.NodeKind) {
	defer func() {
		<-s.launchSem
		s.mu.Lock()
		delete(s.inFlight, n.ID)
		s.mu.Unlock()
	}()

	timer := metrics.NewTimer()
	result := s.Updater.Run(ctx, n.ID, kind, s.updaterConfig())
	timer.ObserveDuration(metrics.NodeUpdateDuration)

	if result.FinalStatus == types.NodeStatusUpdateFailed {
		metrics.UpdateFailuresTotal.WithLabelValues(n.Tags[types.TagUserNodeType]).Inc()
		log.WithComponent("scaler").Warn().Str("node_id", n.ID).Err(result.Err).Msg("node update failed")
	}
}

func (s *Scaler) updaterConfig() updater.Config {
	return updater.Config{
		Commands:        s.cfg.Cluster.Commands,
		FileMounts:      s.cfg.Cluster.FileMounts,
		RuntimeHash:     s.cfg.RuntimeHash,
		SSHWaitDeadline: s.cfg.SSHWaitDeadline,
		SSHPollInterval: s.cfg.SSHPollInterval,
	}
}

func (s *Scaler) publishMetrics(counts map[string]int) {
	byState := make(metrics.NodeCounts, len(counts))
	for t, n := range counts {
		byState[t] = map[string]int{"running": n}
	}
	metrics.PublishNodeCounts(byState)
}
