// Package provider defines the Node Provider abstraction: the seam
// through which the cluster scaler creates, queries, tags and destroys
// compute nodes without ever calling a cloud SDK directly.
package provider

import (
	"context"
	"errors"
)

// ErrNodeGone is returned (wrapped in a Fatal Outcome) when an operation
// targets a node the provider already considers terminated. Callers
// swallow it and drop the node from local state rather than treating it
// as a scaler-fatal condition.
var ErrNodeGone = errors.New("provider: node is gone")

// IsNodeGone reports whether err wraps ErrNodeGone.
func IsNodeGone(err error) bool {
	return errors.Is(err, ErrNodeGone)
}

// MaxTerminateBatch is the maximum number of node ids the scaler will
// hand to a single TerminateNodes/StopNodes call, regardless of what the
// underlying provider itself could accept.
const MaxTerminateBatch = 1000

// TagFilters is a conjunctive set of tag equality constraints used by
// NonTerminatedNodes: a node matches only if every key/value pair here is
// present in the node's own tags.
type TagFilters map[string]string

// NodeConfig is the opaque per-node-type launch configuration forwarded
// to CreateNode. The scaler never inspects it beyond hashing it.
type NodeConfig map[string]interface{}

// Provider is the capability set every cloud adapter implements. All
// operations may fail; see Outcome. Implementations MUST be safe for
// concurrent use: the scaler tick and in-flight node updaters may call
// the same Provider instance concurrently.
type Provider interface {
	// NonTerminatedNodes returns ids of nodes whose tags are a superset
	// of filters and whose state is neither stopped nor terminated.
	NonTerminatedNodes(ctx context.Context, filters TagFilters) Outcome[[]string]

	IsRunning(ctx context.Context, id string) Outcome[bool]
	IsTerminated(ctx context.Context, id string) Outcome[bool]

	// NodeTags returns the node's current tags. Returns a Fatal Outcome
	// wrapping ErrNodeGone if the provider considers the node terminated.
	NodeTags(ctx context.Context, id string) Outcome[map[string]string]

	InternalIP(ctx context.Context, id string) Outcome[string]
	// ExternalIP returns "" when the node has no external address.
	ExternalIP(ctx context.Context, id string) Outcome[string]

	// CreateNode launches count nodes of the given config, tagged with
	// tags. May be asynchronous: callers must not assume the nodes are
	// visible in NonTerminatedNodes immediately, only within a bounded
	// time. If CacheStopped is configured, previously-stopped nodes
	// matching the config are resurrected first.
	CreateNode(ctx context.Context, cfg NodeConfig, tags map[string]string, count int) Outcome[[]string]

	// SetNodeTags merges tags into the node's existing tag set
	// atomically.
	SetNodeTags(ctx context.Context, id string, tags map[string]string) Outcome[struct{}]

	// TerminateNodes hard-terminates the given ids. Callers MUST batch
	// to MaxTerminateBatch before calling; implementations are free to
	// reject larger batches.
	TerminateNodes(ctx context.Context, ids []string) Outcome[struct{}]

	// StopNodes stops (rather than terminates) on-demand nodes under a
	// cache-stopped policy, so they can be resurrected by a later
	// CreateNode. Spot-class nodes must never be passed here; the
	// scaler enforces that before calling.
	StopNodes(ctx context.Context, ids []string) Outcome[struct{}]
}

// Factory constructs a Provider from an opaque, provider-specific config
// map (the `provider` key of the cluster config document).
type Factory func(cfg map[string]interface{}) (Provider, error)

// batchesOf splits ids into chunks of at most MaxTerminateBatch,
// preserving order. Batches is its exported form, used by the scaler's
// termination code.
func batchesOf(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var out [][]string
	for len(ids) > MaxTerminateBatch {
		out = append(out, ids[:MaxTerminateBatch])
		ids = ids[MaxTerminateBatch:]
	}
	out = append(out, ids)
	return out
}

// Batches splits ids into chunks of at most MaxTerminateBatch,
// preserving order. Exported for callers outside the package (the
// scaler) that need the same batching rule.
func Batches(ids []string) [][]string {
	return batchesOf(ids)
}
