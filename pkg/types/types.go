package types

import "time"

// Node tag keys: the wire contract with cloud provider adapters. The scaler
// writes these and reads them back every tick; it never assumes a tag is
// fresher than the provider's last response.
const (
	TagClusterName   = "cloudtik-cluster-name"
	TagNodeKind      = "cloudtik-node-kind"
	TagUserNodeType  = "cloudtik-user-node-type"
	TagNodeStatus    = "cloudtik-node-status"
	TagLaunchConfig  = "cloudtik-launch-config"
	TagRuntimeConfig = "cloudtik-runtime-config"
	TagNodeName      = "cloudtik-node-name"
	TagNodeNumber    = "cloudtik-node-number"
)

// HeadNodeNumber is the well-known sequence number reserved for the head node.
const HeadNodeNumber = "0"

// NodeKind distinguishes the head node from workers. Tagged via TagNodeKind.
type NodeKind string

const (
	NodeKindHead   NodeKind = "head"
	NodeKindWorker NodeKind = "worker"
)

// NodeStatus is the updater's view of bootstrap progress, tagged via TagNodeStatus.
type NodeStatus string

const (
	NodeStatusUninitialized NodeStatus = "uninitialized"
	NodeStatusWaitingForSSH NodeStatus = "waiting-for-ssh"
	NodeStatusSyncingFiles  NodeStatus = "syncing-files"
	NodeStatusSettingUp     NodeStatus = "setting-up"
	NodeStatusUpToDate      NodeStatus = "up-to-date"
	NodeStatusUpdateFailed  NodeStatus = "update-failed"
)

// NodeState is the provider's view of a VM's lifecycle, independent of the
// updater's bootstrap progress tracked by NodeStatus.
type NodeState string

const (
	NodeStatePending    NodeState = "pending"
	NodeStateRunning    NodeState = "running"
	NodeStateStopped    NodeState = "stopped"
	NodeStateTerminated NodeState = "terminated"
)

// Node is a single compute node as seen by the provider: an opaque id, its
// network addresses, lifecycle state, and the tags that carry scaler intent.
type Node struct {
	ID         string
	InternalIP string
	ExternalIP string // empty if the node has no external address
	State      NodeState
	Tags       map[string]string
}

// Tag returns the tag value and whether it was present.
func (n *Node) Tag(key string) (string, bool) {
	if n.Tags == nil {
		return "", false
	}
	v, ok := n.Tags[key]
	return v, ok
}

// Kind reads the TagNodeKind tag.
func (n *Node) Kind() NodeKind {
	v, _ := n.Tag(TagNodeKind)
	return NodeKind(v)
}

// NodeTypeName reads the TagUserNodeType tag.
func (n *Node) NodeTypeName() string {
	v, _ := n.Tag(TagUserNodeType)
	return v
}

// Status reads the TagNodeStatus tag.
func (n *Node) Status() NodeStatus {
	v, _ := n.Tag(TagNodeStatus)
	return NodeStatus(v)
}

// IsTerminal reports whether the node's updater state machine has reached a
// terminal state (up-to-date or update-failed).
func (n *Node) IsTerminal() bool {
	s := n.Status()
	return s == NodeStatusUpToDate || s == NodeStatusUpdateFailed
}

// IsSpot reports whether the node was launched on spot/preemptible capacity.
// Spot nodes are always hard-terminated, never stopped, regardless of the
// cluster's cache-stopped policy.
func (n *Node) IsSpot() bool {
	v, _ := n.Tag(tagSpotInstance)
	return v == "true"
}

// tagSpotInstance is provider-private: not part of the cross-provider tag
// contract, but the scaler needs some signal to distinguish spot from
// on-demand capacity when deciding stop vs. terminate. Node Provider
// implementations that launch spot capacity must set it.
const tagSpotInstance = "cloudtik-spot-instance"

// ResourceVector maps a resource name (CPU, GPU, memory, ...) to an integer
// capacity or demand quantity.
type ResourceVector map[string]int64

// Add returns the element-wise sum of two resource vectors.
func (r ResourceVector) Add(other ResourceVector) ResourceVector {
	out := make(ResourceVector, len(r)+len(other))
	for k, v := range r {
		out[k] += v
	}
	for k, v := range other {
		out[k] += v
	}
	return out
}

// NodeType is a named launch template: an opaque per-provider launch
// configuration, the resources it provides, and its min/max worker bounds.
type NodeType struct {
	Name        string
	LaunchConfig map[string]interface{} // opaque to the core; hashed, never inspected
	Resources   ResourceVector
	MinWorkers  int
	MaxWorkers  int
}

// FileMount is a single rsync source -> destination pair.
type FileMount struct {
	Destination string
	Source      string
}

// CommandSet is the four ordered command lists a cluster config carries,
// with head/worker variants for setup and start.
type CommandSet struct {
	Initialization []string
	Setup          []string
	HeadSetup      []string
	WorkerSetup    []string
	HeadStart      []string
	WorkerStart    []string
}

// SetupCommandsFor returns initialization + setup commands for the given kind.
func (c CommandSet) SetupCommandsFor(kind NodeKind) []string {
	out := make([]string, 0, len(c.Initialization)+len(c.Setup))
	out = append(out, c.Initialization...)
	out = append(out, c.Setup...)
	if kind == NodeKindHead {
		out = append(out, c.HeadSetup...)
	} else {
		out = append(out, c.WorkerSetup...)
	}
	return out
}

// StartCommandsFor returns the start commands for the given kind.
func (c CommandSet) StartCommandsFor(kind NodeKind) []string {
	if kind == NodeKindHead {
		return c.HeadStart
	}
	return c.WorkerStart
}

// AuthConfig carries the SSH identity used to reach nodes. It is opaque to
// everything except the process runner and the launch-hash computation.
type AuthConfig struct {
	SSHUser           string
	SSHPrivateKeyPath string
}

// ClusterConfig is the declarative shape of a cluster: its name, global
// bounds, node types, commands and file mounts. Provider, docker and runtime
// configuration are intentionally opaque maps; the core never interprets
// them, only hashes or forwards them.
type ClusterConfig struct {
	ClusterName        string
	MinWorkers          int
	MaxWorkers          int
	IdleTimeoutMinutes  int
	Provider            map[string]interface{}
	Auth                AuthConfig
	Docker              map[string]interface{}
	AvailableNodeTypes  map[string]*NodeType
	HeadNodeType        string
	FileMounts          []FileMount
	Commands            CommandSet
	Runtime             map[string]interface{}
}

// HeadNodeTypeSpec returns the NodeType configured as the head, if any.
func (c *ClusterConfig) HeadNodeTypeSpec() (*NodeType, bool) {
	nt, ok := c.AvailableNodeTypes[c.HeadNodeType]
	return nt, ok
}

// WorkerNodeTypes returns every configured node type except the head's.
func (c *ClusterConfig) WorkerNodeTypes() map[string]*NodeType {
	out := make(map[string]*NodeType, len(c.AvailableNodeTypes))
	for name, nt := range c.AvailableNodeTypes {
		if name == c.HeadNodeType {
			continue
		}
		out[name] = nt
	}
	return out
}

// HeartbeatRecord is the per-IP liveness and load state tracked by the
// cluster metrics component. AgentID changes whenever the in-node agent
// restarts, which invalidates the cached resource/load history for that IP.
type HeartbeatRecord struct {
	IP                string
	AgentID           string
	LastHeartbeat     time.Time
	StaticResources   ResourceVector
	AvailableResources ResourceVector
	Load              ResourceVector
}
