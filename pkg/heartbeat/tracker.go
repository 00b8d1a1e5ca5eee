package heartbeat

import (
	"sync"
	"time"

	"github.com/cuemby/fleetscaler/pkg/types"
)

// Tracker maintains per-IP liveness and load state behind a single
// mutex. Every operation is linearizable with respect to that mutex, so
// a scaler tick that calls Snapshot sees a single consistent point in
// time rather than a torn read across IPs.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*types.HeartbeatRecord
	now     func() time.Time
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{
		records: make(map[string]*types.HeartbeatRecord),
		now:     time.Now,
	}
}

// Update stamps now() on ip and records the agent's reported resources
// and load. If agentID differs from the previously observed one for
// this IP, the load/resource history is dropped first: the agent
// restarted and its prior numbers no longer describe anything live.
func (t *Tracker) Update(ip, agentID string, static, available, load types.ResourceVector) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ip]
	if !ok || rec.AgentID != agentID {
		rec = &types.HeartbeatRecord{IP: ip, AgentID: agentID}
		t.records[ip] = rec
	}
	rec.LastHeartbeat = t.now()
	rec.StaticResources = static
	rec.AvailableResources = available
	rec.Load = load
}

// MarkActive stamps now() on ip without touching resource data. Used for
// nodes known alive by an out-of-band signal (e.g. the provider reports
// it running) when no heartbeat payload is available yet.
func (t *Tracker) MarkActive(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ip]
	if !ok {
		rec = &types.HeartbeatRecord{IP: ip}
		t.records[ip] = rec
	}
	rec.LastHeartbeat = t.now()
}

// Prune drops every tracked IP not present in activeIPs. Called once per
// tick after the scaler has taken its non_terminated_nodes snapshot, so
// heartbeat state for terminated nodes doesn't accumulate forever.
func (t *Tracker) Prune(activeIPs map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ip := range t.records {
		if _, ok := activeIPs[ip]; !ok {
			delete(t.records, ip)
		}
	}
}

// IsActive reports whether ip's last heartbeat is within idleTimeout of
// now. An IP that has never been seen is not active.
func (t *Tracker) IsActive(ip string, idleTimeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ip]
	if !ok {
		return false
	}
	return t.now().Sub(rec.LastHeartbeat) <= idleTimeout
}

// Record returns a copy of the tracked record for ip, if any.
func (t *Tracker) Record(ip string) (types.HeartbeatRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[ip]
	if !ok {
		return types.HeartbeatRecord{}, false
	}
	return *rec, true
}

// SetClock overrides the tracker's time source, for tests that need to
// assert exact idle-threshold boundary behavior.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Snapshot returns a copy of every tracked record, keyed by IP. Used by
// the scaler's demand-strategy phase to sum reported load across the
// whole fleet without holding the tracker's mutex
// for the duration of that computation.
func (t *Tracker) Snapshot() map[string]types.HeartbeatRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]types.HeartbeatRecord, len(t.records))
	for ip, rec := range t.records {
		out[ip] = *rec
	}
	return out
}
