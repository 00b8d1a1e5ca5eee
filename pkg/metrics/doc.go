/*
Package metrics defines and registers the scaler's Prometheus metrics:
node counts by type and state, tick duration and count, provider call
outcomes, launch/terminate/update counters, and raft leadership.

Metrics are package-level variables registered at init; callers update
them directly (gauges) or via the Collector helpers (PublishNodeCounts,
PublishLeadership) rather than reaching into the Prometheus client
themselves.
*/
package metrics
