package store

import (
	"testing"
	"time"

	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNextNodeNumberIsMonotonic(t *testing.T) {
	s := openTestStore(t)
	n1, err := s.NextNodeNumber()
	require.NoError(t, err)
	n2, err := s.NextNodeNumber()
	require.NoError(t, err)
	assert.Less(t, n1, n2)
}

func TestHeartbeatSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	records := map[string]types.HeartbeatRecord{
		"1.1.1.1": {IP: "1.1.1.1", AgentID: "a", LastHeartbeat: time.Now().Truncate(time.Second)},
	}
	require.NoError(t, s.SaveHeartbeatSnapshot(records))

	loaded, err := s.LoadHeartbeatSnapshot()
	require.NoError(t, err)
	require.Contains(t, loaded, "1.1.1.1")
	assert.Equal(t, "a", loaded["1.1.1.1"].AgentID)
}

func TestHeartbeatSnapshotOverwritesPrevious(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveHeartbeatSnapshot(map[string]types.HeartbeatRecord{
		"1.1.1.1": {IP: "1.1.1.1"},
	}))
	require.NoError(t, s.SaveHeartbeatSnapshot(map[string]types.HeartbeatRecord{
		"2.2.2.2": {IP: "2.2.2.2"},
	}))

	loaded, err := s.LoadHeartbeatSnapshot()
	require.NoError(t, err)
	assert.NotContains(t, loaded, "1.1.1.1")
	assert.Contains(t, loaded, "2.2.2.2")
}
