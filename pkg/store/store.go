// Package store persists the scaler's own restart-recoverable state: the
// sequential node-number counter (so node numbers stay monotonic across
// a scaler restart) and the last heartbeat snapshot (so a freshly
// restarted scaler doesn't treat every worker as immediately idle before
// its first heartbeat arrives). Node and cluster-config state itself
// lives with the cloud provider, not here.
package store

import "github.com/cuemby/fleetscaler/pkg/types"

// Store is the persistence seam for scaler-local state.
type Store interface {
	// NextNodeNumber returns the next sequential node number and
	// durably advances the counter before returning, so a crash right
	// after this call never replays the same number.
	NextNodeNumber() (int, error)

	// SaveHeartbeatSnapshot persists the tracker's current state, keyed
	// by IP, so a restart can seed the in-memory tracker instead of
	// starting blind.
	SaveHeartbeatSnapshot(records map[string]types.HeartbeatRecord) error
	// LoadHeartbeatSnapshot returns the last persisted snapshot, or an
	// empty map if none was ever saved.
	LoadHeartbeatSnapshot() (map[string]types.HeartbeatRecord, error)

	Close() error
}
