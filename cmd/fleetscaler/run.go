package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/raft"
	"github.com/spf13/cobra"

	"github.com/cuemby/fleetscaler/pkg/config"
	"github.com/cuemby/fleetscaler/pkg/leader"
	"github.com/cuemby/fleetscaler/pkg/log"
	"github.com/cuemby/fleetscaler/pkg/metrics"
	"github.com/cuemby/fleetscaler/pkg/provider"
	"github.com/cuemby/fleetscaler/pkg/runner"
	"github.com/cuemby/fleetscaler/pkg/scaler"
	"github.com/cuemby/fleetscaler/pkg/store"
	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/cuemby/fleetscaler/pkg/updater"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scaler daemon against a cluster configuration",
	Long: `Run starts the scaler's periodic tick loop: it loads a cluster
config, ensures the head node exists, then reconciles the live node set
against the configured shape every update_interval_s until interrupted.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "cluster config YAML file (required)")
	runCmd.Flags().String("data-dir", "/var/lib/fleetscaler", "local state directory (node counter, heartbeat snapshot)")
	runCmd.Flags().Int("update-interval-s", 5, "seconds between ticks")
	runCmd.Flags().Int("max-failures", 5, "consecutive tick failures before surfacing fatal")
	runCmd.Flags().Int("max-concurrent-launches", 10, "cap on in-flight node updaters")
	runCmd.Flags().Bool("cache-stopped", false, "stop on-demand instances instead of terminating")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "address for /metrics, /health, /ready, /live and /heartbeat")
	runCmd.Flags().Duration("ssh-wait-deadline", 10*time.Minute, "max time to wait for a node to answer SSH")
	runCmd.Flags().Duration("ssh-poll-interval", 5*time.Second, "initial interval between SSH reachability probes; doubles after each failed probe")

	runCmd.Flags().Bool("ha", false, "gate ticks on raft leadership across replicas")
	runCmd.Flags().String("node-id", "", "this replica's raft node id (required with --ha)")
	runCmd.Flags().String("raft-bind-addr", "127.0.0.1:7946", "raft transport bind address")
	runCmd.Flags().StringSlice("raft-peer", nil, "bootstrap voter id@addr (repeatable; only the first replica passes the full set)")

	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	updateIntervalS, _ := cmd.Flags().GetInt("update-interval-s")
	maxFailures, _ := cmd.Flags().GetInt("max-failures")
	maxConcurrentLaunches, _ := cmd.Flags().GetInt("max-concurrent-launches")
	cacheStopped, _ := cmd.Flags().GetBool("cache-stopped")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	sshWaitDeadline, _ := cmd.Flags().GetDuration("ssh-wait-deadline")
	sshPollInterval, _ := cmd.Flags().GetDuration("ssh-poll-interval")

	logger := log.WithComponent("cmd")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	prepared, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load cluster config: %w", err)
	}
	for _, w := range prepared.Warnings {
		logger.Warn().Str("field", w.Field).Str("message", w.Message).Msg("config warning")
	}

	providerName, _ := prepared.Cluster.Provider["type"].(string)
	if providerName == "" {
		return fmt.Errorf("cluster config provider.type is required")
	}
	p, err := provider.New(providerName, prepared.Cluster.Provider)
	if err != nil {
		return fmt.Errorf("construct provider %q: %w", providerName, err)
	}

	st, err := store.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer st.Close()

	sc := scaler.New(p, st, scaler.Config{
		Cluster:               prepared.Cluster,
		LaunchHash:            prepared.LaunchHash,
		RuntimeHash:           prepared.RuntimeHash,
		CacheStopped:          cacheStopped,
		MaxConcurrentLaunches: maxConcurrentLaunches,
		MaxFailures:           maxFailures,
		SSHWaitDeadline:       sshWaitDeadline,
		SSHPollInterval:       sshPollInterval,
	})

	sc.Updater = updater.New(p,
		&updater.RsyncSyncer{
			Runner:         &runner.LocalRunner{},
			SSHUser:        prepared.Cluster.Auth.SSHUser,
			PrivateKeyPath: prepared.Cluster.Auth.SSHPrivateKeyPath,
		},
		func(ip string) runner.Runner {
			return runner.NewSSHRunner(ip, 22, prepared.Cluster.Auth.SSHUser, prepared.Cluster.Auth.SSHPrivateKeyPath)
		},
	)

	var elector *leader.Elector
	ha, _ := cmd.Flags().GetBool("ha")
	if ha {
		elector, err = startElector(cmd)
		if err != nil {
			return err
		}
		defer elector.Shutdown()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.RegisterComponent("raft", !ha, "no leader election configured")
	metrics.RegisterComponent("provider", true, "ready")
	metrics.RegisterComponent("store", true, "ready")

	go serveHTTP(metricsAddr, sc.Metrics)

	if !ha || elector.IsLeader() {
		if err := sc.EnsureHeadNode(ctx, nil, nil, nil); err != nil {
			logger.Error().Err(err).Msg("head node bootstrap failed")
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(updateIntervalS) * time.Second)
	defer ticker.Stop()

	logger.Info().Str("cluster", prepared.Cluster.ClusterName).Int("interval_s", updateIntervalS).Msg("scaler started")

	for {
		select {
		case <-sigCh:
			logger.Info().Msg("shutting down")
			return nil
		case <-ticker.C:
			if ha {
				metrics.PublishLeadership(elector.IsLeader())
				if !elector.IsLeader() {
					continue
				}
			}
			stats, err := sc.Tick(ctx)
			if err != nil {
				return fmt.Errorf("scaler: %w", err)
			}
			logger.Debug().
				Int("snapshot", stats.Snapshot).
				Int("terminated", stats.Terminated).
				Int("launched", stats.Launched).
				Int("updaters_run", stats.UpdatersRun).
				Msg("tick complete")
		}
	}
}

func startElector(cmd *cobra.Command) (*leader.Elector, error) {
	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("raft-bind-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	rawPeers, _ := cmd.Flags().GetStringSlice("raft-peer")
	if nodeID == "" {
		return nil, fmt.Errorf("--node-id is required with --ha")
	}

	peers, err := parsePeers(rawPeers)
	if err != nil {
		return nil, err
	}

	return leader.New(leader.Config{
		NodeID:   nodeID,
		BindAddr: bindAddr,
		DataDir:  dataDir + "/raft",
		Peers:    peers,
	})
}

// parsePeers turns "id@addr" entries from --raft-peer into the
// bootstrap voter set; an empty slice means "join an existing cluster,
// don't bootstrap".
func parsePeers(raw []string) ([]raft.Server, error) {
	peers := make([]raft.Server, 0, len(raw))
	for _, entry := range raw {
		parts := strings.SplitN(entry, "@", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --raft-peer %q, want id@addr", entry)
		}
		peers = append(peers, raft.Server{
			ID:      raft.ServerID(parts[0]),
			Address: raft.ServerAddress(parts[1]),
		})
	}
	return peers, nil
}

// heartbeatPayload mirrors what an in-node agent posts on every beat.
type heartbeatPayload struct {
	IP        string               `json:"ip"`
	AgentID   string               `json:"agent_id"`
	Static    types.ResourceVector `json:"static_resources"`
	Available types.ResourceVector `json:"available_resources"`
	Load      types.ResourceVector `json:"load"`
}

func serveHTTP(addr string, tracker interface {
	Update(ip, agentID string, static, available, load types.ResourceVector)
}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	mux.HandleFunc("/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var hb heartbeatPayload
		if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		tracker.Update(hb.IP, hb.AgentID, hb.Static, hb.Available, hb.Load)
		w.WriteHeader(http.StatusNoContent)
	})

	log.WithComponent("cmd").Info().Str("addr", addr).Msg("metrics/health/heartbeat endpoint listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithComponent("cmd").Error().Err(err).Msg("http server exited")
	}
}
