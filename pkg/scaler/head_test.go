package scaler

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetscaler/pkg/provider"
	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureHeadNodeLaunchesWhenNoneExists(t *testing.T) {
	p := provider.NewMockProvider(false)
	s := newTestScaler(t, p, false)

	previous := HeadPollInterval
	HeadPollInterval = time.Millisecond
	t.Cleanup(func() { HeadPollInterval = previous })

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.FinishStartingNodes()
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.EnsureHeadNode(ctx, nil, nil, nil))
	assert.Equal(t, 1, p.NodeCount(types.NodeStateRunning), "head node must be launched and observed running")
}

func TestEnsureHeadNodeIsNoopWhenHeadAlreadyExists(t *testing.T) {
	p := provider.NewMockProvider(false)
	s := newTestScaler(t, p, false)

	createOutcome := p.CreateNode(context.Background(), nil, map[string]string{
		types.TagClusterName: "test-cluster",
		types.TagNodeKind:    string(types.NodeKindHead),
	}, 1)
	ids, _ := createOutcome.Value()
	p.FinishStartingNodes()

	require.NoError(t, s.EnsureHeadNode(context.Background(), nil, nil, nil))
	// No second head launched: still exactly the one created above.
	assert.Equal(t, 1, len(ids))
	assert.Equal(t, 1, p.NodeCount(types.NodeStateRunning))
}

func TestGetRunningHeadPrefersUpToDateOverFailed(t *testing.T) {
	p := provider.NewMockProvider(false)
	s := newTestScaler(t, p, false)

	failedOutcome := p.CreateNode(context.Background(), nil, map[string]string{
		types.TagClusterName: "test-cluster",
		types.TagNodeKind:    string(types.NodeKindHead),
		types.TagNodeStatus:  string(types.NodeStatusUpdateFailed),
	}, 1)
	failedIDs, _ := failedOutcome.Value()

	upToDateOutcome := p.CreateNode(context.Background(), nil, map[string]string{
		types.TagClusterName: "test-cluster",
		types.TagNodeKind:    string(types.NodeKindHead),
		types.TagNodeStatus:  string(types.NodeStatusUpToDate),
	}, 1)
	upToDateIDs, _ := upToDateOutcome.Value()
	p.FinishStartingNodes()

	id, ok := s.GetRunningHead(context.Background(), false)
	require.True(t, ok)
	assert.Equal(t, upToDateIDs[0], id)

	// Remove the up-to-date head; with allow_uninitialized=true the
	// failed one becomes the fallback.
	require.NoError(t, p.TerminateNodes(context.Background(), upToDateIDs).Err())
	id, ok = s.GetRunningHead(context.Background(), true)
	require.True(t, ok)
	assert.Equal(t, failedIDs[0], id)

	// Without allow_uninitialized, no up-to-date head means no result.
	_, ok = s.GetRunningHead(context.Background(), false)
	assert.False(t, ok)
}
