package metrics

// NodeCounts summarizes one tick's node snapshot for publishing to
// NodesTotal: counted by node type, then by state.
type NodeCounts map[string]map[string]int

// PublishNodeCounts resets and republishes NodesTotal from a fresh
// snapshot. The scaler calls this once per tick after its single
// non_terminated_nodes call, rather than incrementing/decrementing the
// gauge piecemeal as nodes come and go.
func PublishNodeCounts(counts NodeCounts) {
	NodesTotal.Reset()
	for nodeType, states := range counts {
		for state, n := range states {
			NodesTotal.WithLabelValues(nodeType, state).Set(float64(n))
		}
	}
}

// PublishLeadership sets RaftLeader from the current election state.
func PublishLeadership(isLeader bool) {
	if isLeader {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}
}

// RecordProviderCall increments ProviderCallsTotal for one provider
// operation's outcome kind ("ok", "transient", or "fatal").
func RecordProviderCall(operation, kind string) {
	ProviderCallsTotal.WithLabelValues(operation, kind).Inc()
}
