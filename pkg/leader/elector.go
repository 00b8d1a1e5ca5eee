package leader

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cuemby/fleetscaler/pkg/log"
)

// Config configures a single replica's participation in leader election.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
	// Peers is the full voter set at bootstrap time, including this
	// replica; only the first replica to start should pass a non-empty
	// Peers and call Bootstrap — the rest join via AddVoter against the
	// elected leader.
	Peers []raft.Server
}

// Elector wraps a raft.Raft instance down to the one question the
// scaler cares about: IsLeader.
type Elector struct {
	raft   *raft.Raft
	logger zerolog.Logger
}

// New starts a raft node for cfg. When cfg.Peers is non-empty it also
// bootstraps the cluster with that voter set; a cluster that was already
// bootstrapped (raft.ErrCantBootstrap) is not treated as an error.
func New(cfg Config) (*Elector, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("leader: create data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("leader: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("leader: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("leader: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("leader: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("leader: create stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("leader: create raft node: %w", err)
	}

	if len(cfg.Peers) > 0 {
		future := r.BootstrapCluster(raft.Configuration{Servers: cfg.Peers})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, fmt.Errorf("leader: bootstrap cluster: %w", err)
		}
	}

	return &Elector{raft: r, logger: log.WithComponent("leader")}, nil
}

// IsLeader reports whether this replica currently owns the scaler tick.
func (e *Elector) IsLeader() bool {
	return e.raft.State() == raft.Leader
}

// AddVoter adds a replica joining an already-bootstrapped cluster.
func (e *Elector) AddVoter(nodeID raft.ServerID, addr raft.ServerAddress) error {
	if !e.IsLeader() {
		return fmt.Errorf("leader: AddVoter must be called against the current leader")
	}
	return e.raft.AddVoter(nodeID, addr, 0, 0).Error()
}

// Shutdown releases the raft node.
func (e *Elector) Shutdown() error {
	return e.raft.Shutdown().Error()
}
