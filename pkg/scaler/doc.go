/*
Package scaler implements the cluster scaler's control loop: the single
periodic Tick that reconciles a cluster's actual node set against its
configured desired state.

A Tick issues exactly one non_terminated_nodes call against the
provider, then runs snapshot, liveness-recovery, obsolescence-detection,
desired-count, terminate, launch and update phases in that order before
publishing metrics. Head node bootstrap is a separate one-shot path run
once before the loop starts, not part of every tick.
*/
package scaler
