package heartbeat

import (
	"testing"
	"time"

	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateIdempotenceKeepsLatestTimestamp(t *testing.T) {
	tr := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	tr.SetClock(func() time.Time { return clock })

	tr.Update("1.1.1.1", "agent-1", types.ResourceVector{"cpu": 4}, types.ResourceVector{"cpu": 2}, nil)
	clock = base.Add(5 * time.Second)
	tr.Update("1.1.1.1", "agent-1", types.ResourceVector{"cpu": 4}, types.ResourceVector{"cpu": 1}, nil)

	rec, ok := tr.Record("1.1.1.1")
	require.True(t, ok)
	assert.Equal(t, clock, rec.LastHeartbeat)
	assert.EqualValues(t, 1, rec.AvailableResources["cpu"])
}

func TestUpdateDropsHistoryOnAgentRestart(t *testing.T) {
	tr := New()
	tr.Update("1.1.1.1", "agent-1", types.ResourceVector{"cpu": 4}, types.ResourceVector{"cpu": 1}, types.ResourceVector{"cpu": 3})
	tr.Update("1.1.1.1", "agent-2", types.ResourceVector{"cpu": 4}, types.ResourceVector{"cpu": 4}, nil)

	rec, ok := tr.Record("1.1.1.1")
	require.True(t, ok)
	assert.Equal(t, "agent-2", rec.AgentID)
	assert.Nil(t, rec.Load, "load history must be dropped on agent restart")
}

func TestMarkActiveAndPrune(t *testing.T) {
	tr := New()
	tr.Update("1.1.1.1", "agent-1", nil, nil, nil)
	tr.MarkActive("2.2.2.2")

	_, ok := tr.Record("3.3.3.3")
	assert.False(t, ok)

	tr.Prune(map[string]struct{}{"1.1.1.1": {}})
	_, ok = tr.Record("2.2.2.2")
	assert.False(t, ok, "2.2.2.2 should be pruned, it was not in the active set")
	_, ok = tr.Record("1.1.1.1")
	assert.True(t, ok)
}

func TestIsActiveBoundary(t *testing.T) {
	tr := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	tr.SetClock(func() time.Time { return clock })
	tr.Update("1.1.1.1", "agent-1", nil, nil, nil)

	idleTimeout := 60 * time.Second

	clock = base.Add(idleTimeout)
	assert.True(t, tr.IsActive("1.1.1.1", idleTimeout), "exactly at threshold must still be active")

	clock = base.Add(idleTimeout + time.Second)
	assert.False(t, tr.IsActive("1.1.1.1", idleTimeout), "one second past threshold must be idle")
}

func TestIsActiveUnknownIP(t *testing.T) {
	tr := New()
	assert.False(t, tr.IsActive("9.9.9.9", time.Minute))
}
