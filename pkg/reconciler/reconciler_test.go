package reconciler

import (
	"testing"
	"time"

	"github.com/cuemby/fleetscaler/pkg/heartbeat"
	"github.com/cuemby/fleetscaler/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestIdleCandidatesSkipsHead(t *testing.T) {
	tr := heartbeat.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	tr.SetClock(func() time.Time { return clock })

	tr.Update("1.1.1.1", "a", nil, nil, nil) // head, will go idle
	tr.Update("2.2.2.2", "a", nil, nil, nil) // worker, will go idle

	clock = base.Add(time.Hour)

	r := New(10 * time.Minute)
	nodes := []Snapshot{
		{ID: "head-1", IP: "1.1.1.1", Kind: types.NodeKindHead},
		{ID: "worker-1", IP: "2.2.2.2", Kind: types.NodeKindWorker},
	}

	got := r.IdleCandidates(nodes, tr)
	assert.Equal(t, []string{"worker-1"}, got)
}

func TestIdleCandidatesBoundary(t *testing.T) {
	tr := heartbeat.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	tr.SetClock(func() time.Time { return clock })
	tr.Update("2.2.2.2", "a", nil, nil, nil)

	r := New(time.Minute)
	nodes := []Snapshot{{ID: "worker-1", IP: "2.2.2.2", Kind: types.NodeKindWorker}}

	clock = base.Add(time.Minute)
	assert.Empty(t, r.IdleCandidates(nodes, tr), "exactly at threshold is still active")

	clock = base.Add(time.Minute + time.Second)
	assert.Equal(t, []string{"worker-1"}, r.IdleCandidates(nodes, tr))
}

func TestObsoleteCandidates(t *testing.T) {
	r := New(time.Minute)
	nodes := []Snapshot{
		{ID: "n1", Tags: map[string]string{types.TagUserNodeType: "worker", types.TagLaunchConfig: "old"}},
		{ID: "n2", Tags: map[string]string{types.TagUserNodeType: "worker", types.TagLaunchConfig: "new"}},
		{ID: "n3", Tags: map[string]string{types.TagUserNodeType: "unknown-type", types.TagLaunchConfig: "whatever"}},
	}
	current := map[string]string{"worker": "new"}

	got := r.ObsoleteCandidates(nodes, current)
	assert.Equal(t, []string{"n1"}, got)
}
