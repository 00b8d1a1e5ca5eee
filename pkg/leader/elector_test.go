package leader

import (
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
)

func TestSingleNodeElectsItselfLeader(t *testing.T) {
	dir := t.TempDir()
	addr := "127.0.0.1:17946"

	e, err := New(Config{
		NodeID:   "node-1",
		BindAddr: addr,
		DataDir:  dir,
		Peers: []raft.Server{
			{ID: raft.ServerID("node-1"), Address: raft.ServerAddress(addr)},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })

	require.Eventually(t, e.IsLeader, 5*time.Second, 50*time.Millisecond)
}

func TestAddVoterFailsWhenNotLeader(t *testing.T) {
	dir := t.TempDir()
	addr := "127.0.0.1:17947"

	e, err := New(Config{
		NodeID:   "node-1",
		BindAddr: addr,
		DataDir:  dir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })

	err = e.AddVoter(raft.ServerID("node-2"), raft.ServerAddress("127.0.0.1:17948"))
	require.Error(t, err)
}
