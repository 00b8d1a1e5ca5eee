// Package reconciler turns a scaler tick's node snapshot and heartbeat
// state into two candidate sets the scaler acts on: nodes that have gone
// idle, and nodes whose launch configuration no longer matches what they
// were launched with. It holds no loop of its own; the scaler's tick is
// the only control loop in the system, so reconciliation here is a pure
// function of its inputs, not a background goroutine.
package reconciler

import (
	"time"

	"github.com/cuemby/fleetscaler/pkg/heartbeat"
	"github.com/cuemby/fleetscaler/pkg/types"
)

// Snapshot is one node's state as the scaler saw it during the tick's
// single non_terminated_nodes call.
type Snapshot struct {
	ID   string
	IP   string
	Tags map[string]string
	Kind types.NodeKind
}

// Reconciler evaluates idle and obsolescence candidates against a fixed
// idle timeout and the current per-type launch hashes.
type Reconciler struct {
	IdleTimeout time.Duration
}

// New constructs a Reconciler with the given idle timeout.
func New(idleTimeout time.Duration) *Reconciler {
	return &Reconciler{IdleTimeout: idleTimeout}
}

// IdleCandidates returns the ids of worker nodes whose last heartbeat is
// older than the idle timeout. The head node is never a candidate: it
// has no min/max worker bound to shrink against.
func (r *Reconciler) IdleCandidates(nodes []Snapshot, metrics *heartbeat.Tracker) []string {
	var out []string
	for _, n := range nodes {
		if n.Kind != types.NodeKindWorker {
			continue
		}
		if !metrics.IsActive(n.IP, r.IdleTimeout) {
			out = append(out, n.ID)
		}
	}
	return out
}

// ObsoleteCandidates returns the ids of nodes whose launch-config-hash
// tag no longer matches currentLaunchHash for their node type. These
// nodes must be relaunched, not merely re-setup: IdleCandidates overlaps
// with ObsoleteCandidates in some cases but the scaler unions both sets
// before terminating, so a caller need not dedup.
func (r *Reconciler) ObsoleteCandidates(nodes []Snapshot, currentLaunchHash map[string]string) []string {
	var out []string
	for _, n := range nodes {
		nodeType := n.Tags[types.TagUserNodeType]
		want, ok := currentLaunchHash[nodeType]
		if !ok {
			continue
		}
		if n.Tags[types.TagLaunchConfig] != want {
			out = append(out, n.ID)
		}
	}
	return out
}
