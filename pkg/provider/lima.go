//go:build darwin

package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lima-vm/lima/pkg/instance"
	"github.com/lima-vm/lima/pkg/limayaml"
	"github.com/lima-vm/lima/pkg/store"
	"github.com/rs/zerolog"

	"github.com/cuemby/fleetscaler/pkg/log"
)

// limaNode tracks the tags fleetscaler associates with a Lima instance;
// Lima itself has no notion of arbitrary string tags, so this provider
// keeps them in memory, keyed by node id, together with the name of the
// Lima instance backing that node.
type limaNode struct {
	instanceName string
	tags         map[string]string
}

// LocalLimaProvider launches one Lima VM per node on the local macOS
// host. It is meant for development clusters and demos: every "node" is
// a real, independently bootable VM, but there is no cloud API, no
// billing, and no cross-host networking, so internal IPs are loopback
// addresses reachable only from this machine.
type LocalLimaProvider struct {
	mu      sync.Mutex
	nodes   map[string]*limaNode
	dataDir string
	logger  zerolog.Logger
}

// NewLocalLimaProvider constructs the provider. cfg["data_dir"] (default
// /tmp/fleetscaler-lima) is recorded as dataDir, but nothing reads it:
// Lima creates each instance's directory in its own instance store.
func NewLocalLimaProvider(cfg map[string]interface{}) (Provider, error) {
	dataDir, _ := cfg["data_dir"].(string)
	if dataDir == "" {
		dataDir = "/tmp/fleetscaler-lima"
	}
	return &LocalLimaProvider{
		nodes:   make(map[string]*limaNode),
		dataDir: dataDir,
		logger:  log.WithComponent("lima-provider"),
	}, nil
}

func init() {
	Register("lima", NewLocalLimaProvider)
}

func (p *LocalLimaProvider) instanceNameFor(id string) string {
	return fmt.Sprintf("fleetscaler-%s", id)
}

func (p *LocalLimaProvider) NonTerminatedNodes(_ context.Context, filters TagFilters) Outcome[[]string] {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []string
	for id, n := range p.nodes {
		match := true
		for k, v := range filters {
			if n.tags[k] != v {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		inst, err := store.Inspect(n.instanceName)
		if err != nil {
			continue
		}
		if inst.Status != store.StatusStopped {
			ids = append(ids, id)
		}
	}
	return Ok(ids)
}

func (p *LocalLimaProvider) IsRunning(_ context.Context, id string) Outcome[bool] {
	n, ok := p.lookup(id)
	if !ok {
		return Fatal[bool](ErrNodeGone)
	}
	inst, err := store.Inspect(n.instanceName)
	if err != nil {
		return Transient[bool](err)
	}
	return Ok(inst.Status == store.StatusRunning)
}

func (p *LocalLimaProvider) IsTerminated(_ context.Context, id string) Outcome[bool] {
	n, ok := p.lookup(id)
	if !ok {
		return Ok(true)
	}
	_, err := store.Inspect(n.instanceName)
	return Ok(err != nil)
}

func (p *LocalLimaProvider) NodeTags(_ context.Context, id string) Outcome[map[string]string] {
	n, ok := p.lookup(id)
	if !ok {
		return Fatal[map[string]string](ErrNodeGone)
	}
	out := make(map[string]string, len(n.tags))
	for k, v := range n.tags {
		out[k] = v
	}
	return Ok(out)
}

func (p *LocalLimaProvider) InternalIP(_ context.Context, id string) Outcome[string] {
	if _, ok := p.lookup(id); !ok {
		return Fatal[string](ErrNodeGone)
	}
	return Ok("127.0.0.1")
}

func (p *LocalLimaProvider) ExternalIP(_ context.Context, id string) Outcome[string] {
	if _, ok := p.lookup(id); !ok {
		return Fatal[string](ErrNodeGone)
	}
	return Ok("")
}

func (p *LocalLimaProvider) CreateNode(ctx context.Context, cfg NodeConfig, tags map[string]string, count int) Outcome[[]string] {
	var created []string
	for i := 0; i < count; i++ {
		id := uuid.NewString()

		name := p.instanceNameFor(id)
		yamlCfg := limaConfigFrom(cfg)
		data, err := limayaml.Marshal(&yamlCfg, false)
		if err != nil {
			return Fatal[[]string](fmt.Errorf("lima: marshal config: %w", err))
		}
		if _, err := instance.Create(ctx, name, data, false); err != nil {
			return Transient[[]string](fmt.Errorf("lima: create instance %s: %w", name, err))
		}
		inst, err := store.Inspect(name)
		if err != nil {
			return Transient[[]string](fmt.Errorf("lima: inspect created instance: %w", err))
		}
		if err := instance.Start(ctx, inst, "", false); err != nil {
			return Transient[[]string](fmt.Errorf("lima: start instance %s: %w", name, err))
		}

		nodeTags := make(map[string]string, len(tags))
		for k, v := range tags {
			nodeTags[k] = v
		}

		p.mu.Lock()
		p.nodes[id] = &limaNode{instanceName: name, tags: nodeTags}
		p.mu.Unlock()
		created = append(created, id)
		p.logger.Info().Str("node_id", id).Str("instance", name).Msg("lima instance started")
	}
	return Ok(created)
}

func (p *LocalLimaProvider) SetNodeTags(_ context.Context, id string, tags map[string]string) Outcome[struct{}] {
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

func (p *LocalLimaProvider) TerminateNodes(ctx context.Context, ids []string) Outcome[struct{}] {
	if len(ids) > MaxTerminateBatch {
		return Fatal[struct{}](fmt.Errorf("lima: batch of %d exceeds max %d", len(ids), MaxTerminateBatch))
	}
	for _, id := range ids {
		n, ok := p.lookup(id)
		if !ok {
			continue
		}
		inst, err := store.Inspect(n.instanceName)
		if err == nil {
			instance.StopForcibly(inst)
		}
		p.mu.Lock()
		delete(p.nodes, id)
		p.mu.Unlock()
	}
	return Ok(struct{}{})
}

func (p *LocalLimaProvider) StopNodes(ctx context.Context, ids []string) Outcome[struct{}] {
	if len(ids) > MaxTerminateBatch {
		return Fatal[struct{}](fmt.Errorf("lima: batch of %d exceeds max %d", len(ids), MaxTerminateBatch))
	}
	for _, id := range ids {
		n, ok := p.lookup(id)
		if !ok {
			continue
		}
		inst, err := store.Inspect(n.instanceName)
		if err != nil {
			continue
		}
		if err := instance.StopGracefully(ctx, inst, false); err != nil {
			instance.StopForcibly(inst)
		}
	}
	return Ok(struct{}{})
}

func (p *LocalLimaProvider) lookup(id string) (*limaNode, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	return n, ok
}

// limaConfigFrom builds a minimal Lima VM spec from the opaque node-type
// launch config: cpus, memory and disk are the only fields this provider
// understands, matching the sizes a worker node actually needs rather
// than a fixed container-host shape.
func limaConfigFrom(cfg NodeConfig) limayaml.LimaYAML {
	cpus := 2
	if v, ok := cfg["cpus"].(int); ok && v > 0 {
		cpus = v
	}
	memory := "2GiB"
	if v, ok := cfg["memory"].(string); ok && v != "" {
		memory = v
	}
	disk := "20GiB"
	if v, ok := cfg["disk"].(string); ok && v != "" {
		disk = v
	}
	arch := limayaml.X8664

	return limayaml.LimaYAML{
		Arch:   &arch,
		CPUs:   &cpus,
		Memory: &memory,
		Disk:   &disk,
		Images: []limayaml.Image{
			{
				File: limayaml.File{
					Location: "https://dl-cdn.alpinelinux.org/alpine/v3.19/releases/cloud/alpine-virt-3.19.0-x86_64.iso",
					Arch:     limayaml.X8664,
				},
			},
		},
		Message: "fleetscaler worker node",
	}
}
