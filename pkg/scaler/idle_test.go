package scaler

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetscaler/pkg/provider"
	"github.com/cuemby/fleetscaler/pkg/store"
	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTickTerminatesWorkerThatStoppedHeartbeating is the scaler-level
// companion to the reconciler's own idle-candidate unit tests: it proves
// a worker whose agent stops heartbeating actually gets terminated by a
// real Tick, rather than being kept alive forever because the scaler
// itself re-stamps its liveness from the provider every tick.
func TestTickTerminatesWorkerThatStoppedHeartbeating(t *testing.T) {
	cluster := &types.ClusterConfig{
		ClusterName:        "idle-test",
		MinWorkers:         0,
		MaxWorkers:         10,
		IdleTimeoutMinutes: 5,
		HeadNodeType:       "head",
		AvailableNodeTypes: map[string]*types.NodeType{
			"head":  {Name: "head", Resources: types.ResourceVector{"cpu": 2}, MinWorkers: 0, MaxWorkers: 1},
			"small": {Name: "small", Resources: types.ResourceVector{"cpu": 4}, MinWorkers: 0, MaxWorkers: 5},
		},
	}

	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := provider.NewMockProvider(false)
	s := New(p, st, Config{
		Cluster:               cluster,
		LaunchHash:            map[string]string{"small": "hash-small", "head": "hash-head"},
		RuntimeHash:           "runtime-hash",
		MaxConcurrentLaunches: 4,
		MaxFailures:           3,
	})

	createOutcome := p.CreateNode(context.Background(), nil, map[string]string{
		types.TagClusterName:  "idle-test",
		types.TagNodeKind:     string(types.NodeKindWorker),
		types.TagUserNodeType: "small",
		types.TagNodeStatus:   string(types.NodeStatusUpToDate),
		types.TagLaunchConfig: "hash-small",
	}, 1)
	ids, ok := createOutcome.Value()
	require.True(t, ok)
	require.Len(t, ids, 1)
	p.FinishStartingNodes()

	ip, ok := p.InternalIP(context.Background(), ids[0]).Value()
	require.True(t, ok)

	now := time.Now()
	s.Metrics.SetClock(func() time.Time { return now })
	s.Metrics.Update(ip, "agent-1", nil, nil, nil)

	_, err = s.Tick(context.Background())
	require.NoError(t, err)
	terminatedOutcome := p.IsTerminated(context.Background(), ids[0])
	isTerminated, _ := terminatedOutcome.Value()
	assert.False(t, isTerminated, "node just heartbeated; must not be idle yet")

	// The agent stops heartbeating; the provider still happily reports
	// the node as non-terminated every tick, but that must no longer be
	// enough to keep it marked alive once it is up to date.
	now = now.Add(6 * time.Minute)

	_, err = s.Tick(context.Background())
	require.NoError(t, err)
	terminatedOutcome = p.IsTerminated(context.Background(), ids[0])
	isTerminated, _ = terminatedOutcome.Value()
	assert.True(t, isTerminated, "node stopped heartbeating past idle_timeout_minutes and must be terminated")
}
