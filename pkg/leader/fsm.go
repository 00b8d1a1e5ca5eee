package leader

import (
	"io"

	"github.com/hashicorp/raft"
)

// fsm is intentionally empty: scaler ticks don't need to replicate any
// command through the Raft log, only the leadership signal raft.Raft
// already exposes via State()/Leader(). Apply/Snapshot/Restore exist
// only to satisfy raft.FSM.
type fsm struct{}

func (fsm) Apply(*raft.Log) interface{} { return nil }

func (fsm) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }

func (fsm) Restore(rc io.ReadCloser) error { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (noopSnapshot) Release()                             {}
