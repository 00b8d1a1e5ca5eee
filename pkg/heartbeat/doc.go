// Package heartbeat implements the cluster metrics tracker: the source
// of truth for per-node liveness and resource load that the scaler
// consumes every tick to decide which workers are idle or dead.
package heartbeat
