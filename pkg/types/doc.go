/*
Package types defines the core data structures of the cluster scaler: nodes,
node types, cluster configuration, and the tag vocabulary the scaler uses to
communicate intent to a cloud provider.

# Architecture

	┌────────────────────── DATA MODEL ────────────────────────┐
	│                                                            │
	│  ClusterConfig ── available node types, commands,         │
	│                    file mounts, min/max bounds             │
	│        │                                                    │
	│        ▼                                                    │
	│   NodeType ── launch config (opaque) + resources + bounds  │
	│        │                                                    │
	│        ▼                                                    │
	│     Node ── id, ips, state, tags{cluster,kind,type,status} │
	│        │                                                    │
	│        ▼                                                    │
	│ HeartbeatRecord ── per-IP liveness and load, owned by the  │
	│                     metrics tracker, not the node itself     │
	└────────────────────────────────────────────────────────────┘

Every fact the scaler communicates to a node travels through the Tags map;
there is no side channel. See the tag key constants below for the wire
vocabulary shared with cloud provider adapters.

# Hashing

NodeType carries an opaque LaunchConfig. The scaler never inspects it; it
only ever hashes it (together with the cluster's auth config) to decide
whether a running node is still current. See pkg/confighash for the
canonical hashing rules.
*/
package types
