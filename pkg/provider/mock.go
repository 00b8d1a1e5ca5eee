package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/fleetscaler/pkg/types"
)

// mockNode is a MockProvider-owned node record.
type mockNode struct {
	id    string
	state types.NodeState
	tags  map[string]string
	ip    int
}

func (n *mockNode) matches(filters TagFilters) bool {
	for k, v := range filters {
		if n.tags[k] != v {
			return false
		}
	}
	return true
}

// MockProvider is an in-memory Provider for tests. It never touches the
// network; nodes transition pending -> running only when FinishStartingNodes
// is called explicitly, mirroring how real cloud nodes take visible time to
// boot. All state is behind a single mutex, and NonTerminatedNodesCalls
// counts invocations so tests can assert the single-call-per-tick
// invariant directly.
type MockProvider struct {
	mu                     sync.Mutex
	nodes                  map[string]*mockNode
	nextID                 int
	CacheStopped           bool
	UniqueIPs              bool
	Throw                  bool // next NonTerminatedNodes call returns Transient
	FailCreates            bool // CreateNode silently creates nothing
	NonTerminatedNodesCalls int
}

// NewMockProvider constructs an empty MockProvider.
func NewMockProvider(cacheStopped bool) *MockProvider {
	return &MockProvider{
		nodes:        make(map[string]*mockNode),
		CacheStopped: cacheStopped,
	}
}

func (p *MockProvider) NonTerminatedNodes(_ context.Context, filters TagFilters) Outcome[[]string] {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.NonTerminatedNodesCalls++
	if p.Throw {
		p.Throw = false
		return Transient[[]string](fmt.Errorf("mock provider: injected transient failure"))
	}
	var ids []string
	for _, n := range p.nodes {
		if n.matches(filters) && n.state != types.NodeStateStopped && n.state != types.NodeStateTerminated {
			ids = append(ids, n.id)
		}
	}
	return Ok(ids)
}

func (p *MockProvider) IsRunning(_ context.Context, id string) Outcome[bool] {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return Fatal[bool](ErrNodeGone)
	}
	return Ok(n.state == types.NodeStateRunning)
}

func (p *MockProvider) IsTerminated(_ context.Context, id string) Outcome[bool] {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return Ok(true)
	}
	return Ok(n.state == types.NodeStateStopped || n.state == types.NodeStateTerminated)
}

func (p *MockProvider) NodeTags(_ context.Context, id string) Outcome[map[string]string] {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok || n.state == types.NodeStateTerminated {
		return Fatal[map[string]string](ErrNodeGone)
	}
	out := make(map[string]string, len(n.tags))
	for k, v := range n.tags {
		out[k] = v
	}
	return Ok(out)
}

func (p *MockProvider) InternalIP(_ context.Context, id string) Outcome[string] {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return Fatal[string](ErrNodeGone)
	}
	return Ok(fmt.Sprintf("172.0.0.%d", n.ip))
}

func (p *MockProvider) ExternalIP(_ context.Context, id string) Outcome[string] {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return Fatal[string](ErrNodeGone)
	}
	if p.UniqueIPs {
		return Ok(fmt.Sprintf("1.2.3.%d", n.ip))
	}
	return Ok("1.2.3.4")
}

func (p *MockProvider) CreateNode(_ context.Context, cfg NodeConfig, tags map[string]string, count int) Outcome[[]string] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailCreates {
		return Ok[[]string](nil)
	}
	var created []string
	if p.CacheStopped {
		for _, n := range p.nodes {
			if count == 0 {
				break
			}
			if n.state != types.NodeStateStopped {
				continue
			}
			if n.tags[types.TagUserNodeType] != tags[types.TagUserNodeType] {
				continue // only a stopped node of the requested type is resurrected
			}
			n.state = types.NodeStatePending
			for k, v := range tags {
				n.tags[k] = v
			}
			created = append(created, n.id)
			count--
		}
	}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("mock-%d", p.nextID)
		p.nextID++
		nodeTags := make(map[string]string, len(tags))
		for k, v := range tags {
			nodeTags[k] = v
		}
		p.nodes[id] = &mockNode{id: id, state: types.NodeStatePending, tags: nodeTags, ip: p.nextID}
		created = append(created, id)
	}
	_ = cfg // opaque; the mock never inspects it
	return Ok(created)
}

func (p *MockProvider) SetNodeTags(_ context.Context, id string, tags map[string]string) Outcome[struct{}] {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return Fatal[struct{}](ErrNodeGone)
	}
	for k, v := range tags {
		n.tags[k] = v
	}
	return Ok(struct{}{})
}

func (p *MockProvider) TerminateNodes(ctx context.Context, ids []string) Outcome[struct{}] {
	if len(ids) > MaxTerminateBatch {
		return Fatal[struct{}](fmt.Errorf("mock provider: batch of %d exceeds max %d", len(ids), MaxTerminateBatch))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if n, ok := p.nodes[id]; ok {
			n.state = types.NodeStateTerminated
		}
	}
	return Ok(struct{}{})
}

func (p *MockProvider) StopNodes(_ context.Context, ids []string) Outcome[struct{}] {
	if len(ids) > MaxTerminateBatch {
		return Fatal[struct{}](fmt.Errorf("mock provider: batch of %d exceeds max %d", len(ids), MaxTerminateBatch))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if n, ok := p.nodes[id]; ok {
			n.state = types.NodeStateStopped
		}
	}
	return Ok(struct{}{})
}

// FinishStartingNodes transitions every pending node to running, simulating
// the cloud provider's own boot completion signal arriving.
func (p *MockProvider) FinishStartingNodes() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.nodes {
		if n.state == types.NodeStatePending {
			n.state = types.NodeStateRunning
		}
	}
}

// NodeCount returns the number of nodes in state, for test assertions.
func (p *MockProvider) NodeCount(state types.NodeState) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, node := range p.nodes {
		if node.state == state {
			n++
		}
	}
	return n
}
