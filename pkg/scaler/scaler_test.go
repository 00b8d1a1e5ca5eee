package scaler

import (
	"context"
	"testing"

	"github.com/cuemby/fleetscaler/pkg/provider"
	"github.com/cuemby/fleetscaler/pkg/reconciler"
	"github.com/cuemby/fleetscaler/pkg/store"
	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCluster() *types.ClusterConfig {
	return &types.ClusterConfig{
		ClusterName: "test-cluster",
		MaxWorkers:  10,
		HeadNodeType: "head",
		AvailableNodeTypes: map[string]*types.NodeType{
			"head": {Name: "head", Resources: types.ResourceVector{"cpu": 2}, MinWorkers: 0, MaxWorkers: 1},
			"small": {Name: "small", Resources: types.ResourceVector{"cpu": 4}, MinWorkers: 2, MaxWorkers: 4},
		},
	}
}

func newTestScaler(t *testing.T, p provider.Provider, cacheStopped bool) *Scaler {
	t.Helper()
	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := New(p, st, Config{
		Cluster:               testCluster(),
		LaunchHash:            map[string]string{"small": "hash-small", "head": "hash-head"},
		RuntimeHash:           "runtime-hash",
		CacheStopped:          cacheStopped,
		MaxConcurrentLaunches: 4,
		MaxFailures:           3,
	})
	return s
}

func TestTickIssuesExactlyOneNonTerminatedNodesCall(t *testing.T) {
	p := provider.NewMockProvider(false)
	s := newTestScaler(t, p, false)

	_, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.NonTerminatedNodesCalls)
}

func TestTickLaunchesToMinWorkers(t *testing.T) {
	p := provider.NewMockProvider(false)
	s := newTestScaler(t, p, false)

	stats, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Launched, "must launch up to min_workers=2 for the small type")
	assert.Equal(t, 2, p.NodeCount(types.NodeStatePending))
}

func TestTickRecoversFromTransientProviderFailure(t *testing.T) {
	p := provider.NewMockProvider(false)
	p.Throw = true
	s := newTestScaler(t, p, false)

	_, err := s.Tick(context.Background())
	assert.NoError(t, err, "a single transient failure must not be fatal")
}

func TestTickSurfacesFatalAfterMaxFailures(t *testing.T) {
	p := &alwaysFatalProvider{MockProvider: provider.NewMockProvider(false)}
	s := newTestScaler(t, p, false)
	s.cfg.MaxFailures = 2

	_, err1 := s.Tick(context.Background())
	require.NoError(t, err1)
	_, err2 := s.Tick(context.Background())
	require.Error(t, err2)
	assert.IsType(t, &FatalError{}, err2)
}

func TestExcessOverDesiredPicksLowestNodeNumberFirst(t *testing.T) {
	snapshot := []reconciler.Snapshot{
		{ID: "n2", Kind: types.NodeKindWorker, Tags: map[string]string{types.TagUserNodeType: "small", types.TagNodeNumber: "2"}},
		{ID: "n1", Kind: types.NodeKindWorker, Tags: map[string]string{types.TagUserNodeType: "small", types.TagNodeNumber: "1"}},
		{ID: "n3", Kind: types.NodeKindWorker, Tags: map[string]string{types.TagUserNodeType: "small", types.TagNodeNumber: "3"}},
	}
	counts := map[string]int{"small": 3}
	desired := map[string]int{"small": 1}

	got := excessOverDesired(snapshot, counts, desired)
	assert.Equal(t, []string{"n1", "n2"}, got)
}

func TestSubtractTerminatedDecrementsOnlyTerminatedType(t *testing.T) {
	snapshot := []reconciler.Snapshot{
		{ID: "n1", Kind: types.NodeKindWorker, Tags: map[string]string{types.TagUserNodeType: "small"}},
	}
	counts := map[string]int{"small": 2, "big": 1}
	got := subtractTerminated(snapshot, counts, []string{"n1"})
	assert.Equal(t, 1, got["small"])
	assert.Equal(t, 1, got["big"])
}

func TestTerminateSplitsSpotFromOnDemand(t *testing.T) {
	p := provider.NewMockProvider(false)
	s := newTestScaler(t, p, true) // cache_stopped enabled

	spotOutcome := p.CreateNode(context.Background(), nil, map[string]string{"cloudtik-spot-instance": "true"}, 1)
	spotIDs, _ := spotOutcome.Value()
	onDemandOutcome := p.CreateNode(context.Background(), nil, map[string]string{}, 1)
	onDemandIDs, _ := onDemandOutcome.Value()

	snapshot := []reconciler.Snapshot{
		{ID: spotIDs[0], Tags: map[string]string{"cloudtik-spot-instance": "true"}},
		{ID: onDemandIDs[0], Tags: map[string]string{}},
	}

	err := s.terminate(context.Background(), snapshot, []string{spotIDs[0], onDemandIDs[0]})
	require.NoError(t, err)

	// Spot is always hard-terminated even with cache_stopped enabled;
	// on-demand goes through StopNodes because cache_stopped is set.
	assert.Equal(t, 1, p.NodeCount(types.NodeStateTerminated))
	assert.Equal(t, 1, p.NodeCount(types.NodeStateStopped))
}

// alwaysFatalProvider wraps MockProvider and forces every
// NonTerminatedNodes call to return a Fatal outcome, for exercising the
// MaxFailures escalation path.
type alwaysFatalProvider struct {
	*provider.MockProvider
}

func (p *alwaysFatalProvider) NonTerminatedNodes(ctx context.Context, filters provider.TagFilters) provider.Outcome[[]string] {
	return provider.Fatal[[]string](assert.AnError)
}
