package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetscaler/pkg/confighash"
	"github.com/cuemby/fleetscaler/pkg/health"
	"github.com/cuemby/fleetscaler/pkg/provider"
	"github.com/cuemby/fleetscaler/pkg/runner"
	"github.com/cuemby/fleetscaler/pkg/types"
)

// FileSyncer pushes one file mount's contents to a reachable node. The
// updater never shells rsync out itself; this seam lets tests substitute
// an in-memory syncer.
type FileSyncer interface {
	Sync(ctx context.Context, ip string, mount types.FileMount) error
}

// Config is the fixed, per-cluster input to every updater run: the
// commands and file mounts that define "up to date", plus tuning
// parameters that rarely vary per node.
type Config struct {
	Commands           types.CommandSet
	FileMounts         []types.FileMount
	RuntimeHash        string
	SSHWaitDeadline    time.Duration
	SSHPollInterval    time.Duration
}

// Updater drives a single node through its bootstrap pipeline.
type Updater struct {
	Provider  provider.Provider
	Syncer    FileSyncer
	NewRunner func(ip string) runner.Runner

	// SSHProbe reports whether ip is currently reachable over SSH.
	// Defaults to a real TCP dial against port 22; tests override it to
	// avoid touching the network.
	SSHProbe func(ctx context.Context, ip string) bool

	now func() time.Time
}

// New constructs an Updater. newRunner builds a fresh Runner bound to a
// node's IP; production callers pass something that wraps SSHRunner,
// tests pass something that returns a shared MockRunner.
func New(p provider.Provider, syncer FileSyncer, newRunner func(ip string) runner.Runner) *Updater {
	return &Updater{
		Provider:  p,
		Syncer:    syncer,
		NewRunner: newRunner,
		SSHProbe:  defaultSSHProbe,
		now:       time.Now,
	}
}

func defaultSSHProbe(ctx context.Context, ip string) bool {
	checker := health.NewTCPChecker(fmt.Sprintf("%s:22", ip))
	return checker.Check(ctx).Healthy
}

// Result describes the outcome of one Run.
type Result struct {
	FinalStatus types.NodeStatus
	Err         error
}

// Run drives nodeID through the pipeline once, starting from whatever
// its current node-status tag says. It writes the node-status tag after
// each stage succeeds, never before, so a process crash mid-stage leaves
// the node at its last genuinely-completed status rather than a
// misleadingly advanced one.
func (u *Updater) Run(ctx context.Context, nodeID string, kind types.NodeKind, cfg Config) Result {
	tagsOutcome := u.Provider.NodeTags(ctx, nodeID)
	tags, ok := tagsOutcome.Value()
	if !ok {
		return Result{FinalStatus: types.NodeStatusUpdateFailed, Err: tagsOutcome.Err()}
	}

	if tags[types.TagRuntimeConfig] == cfg.RuntimeHash && tags[types.TagNodeStatus] == string(types.NodeStatusUpToDate) {
		// Idempotence law: already up to date against the current
		// runtime hash, so this run must issue zero remote commands.
		return Result{FinalStatus: types.NodeStatusUpToDate}
	}

	ip, err := u.waitForSSH(ctx, nodeID, cfg)
	if err != nil {
		u.setStatus(ctx, nodeID, types.NodeStatusUpdateFailed)
		return Result{FinalStatus: types.NodeStatusUpdateFailed, Err: err}
	}
	u.setStatus(ctx, nodeID, types.NodeStatusWaitingForSSH)

	if err := u.syncFiles(ctx, ip, tags, cfg); err != nil {
		u.setStatus(ctx, nodeID, types.NodeStatusUpdateFailed)
		return Result{FinalStatus: types.NodeStatusUpdateFailed, Err: err}
	}
	u.Provider.SetNodeTags(ctx, nodeID, map[string]string{
		types.TagNodeStatus: string(types.NodeStatusSyncingFiles),
		mountsHashTagShadow: confighash.Of(cfg.FileMounts),
	})

	r := u.NewRunner(ip)
	for _, cmd := range cfg.Commands.SetupCommandsFor(kind) {
		if err := r.CheckCall(ctx, []string{"sh", "-c", cmd}); err != nil {
			u.setStatus(ctx, nodeID, types.NodeStatusUpdateFailed)
			return Result{FinalStatus: types.NodeStatusUpdateFailed, Err: err}
		}
	}
	u.setStatus(ctx, nodeID, types.NodeStatusSettingUp)

	for _, cmd := range cfg.Commands.StartCommandsFor(kind) {
		if err := r.CheckCall(ctx, []string{"sh", "-c", cmd}); err != nil {
			u.setStatus(ctx, nodeID, types.NodeStatusUpdateFailed)
			return Result{FinalStatus: types.NodeStatusUpdateFailed, Err: err}
		}
	}

	u.Provider.SetNodeTags(ctx, nodeID, map[string]string{
		types.TagNodeStatus:    string(types.NodeStatusUpToDate),
		types.TagRuntimeConfig: cfg.RuntimeHash,
	})
	return Result{FinalStatus: types.NodeStatusUpToDate}
}

func (u *Updater) setStatus(ctx context.Context, nodeID string, status types.NodeStatus) {
	u.Provider.SetNodeTags(ctx, nodeID, map[string]string{types.TagNodeStatus: string(status)})
}

// waitForSSH polls the provider for the node's internal IP, then a
// trivial TCP probe against its SSH port, retrying with exponential
// backoff (starting at SSHPollInterval and doubling after each failed
// probe, never sleeping past the deadline) until SSHWaitDeadline elapses.
func (u *Updater) waitForSSH(ctx context.Context, nodeID string, cfg Config) (string, error) {
	deadline := u.clock().Add(cfg.SSHWaitDeadline)
	interval := cfg.SSHPollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		ipOutcome := u.Provider.InternalIP(ctx, nodeID)
		if ip, ok := ipOutcome.Value(); ok && ip != "" && u.SSHProbe(ctx, ip) {
			return ip, nil
		}
		if u.clock().After(deadline) {
			return "", fmt.Errorf("updater: node %s not reachable over ssh within %s", nodeID, cfg.SSHWaitDeadline)
		}
		wait := interval
		if remaining := deadline.Sub(u.clock()); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		interval *= 2
	}
}

func (u *Updater) clock() time.Time {
	if u.now != nil {
		return u.now()
	}
	return time.Now()
}

// syncFiles rsyncs every configured mount, skipping the whole stage if
// the hash of the mount list (sources and destinations, not the files'
// contents) already matches the node's current tag.
func (u *Updater) syncFiles(ctx context.Context, ip string, tags map[string]string, cfg Config) error {
	mountsHash := confighash.Of(cfg.FileMounts)
	if tags[mountsHashTagShadow] == mountsHash {
		return nil
	}
	for _, mount := range cfg.FileMounts {
		if err := u.Syncer.Sync(ctx, ip, mount); err != nil {
			return fmt.Errorf("updater: sync %s -> %s: %w", mount.Source, mount.Destination, err)
		}
	}
	return nil
}

// mountsHashTagShadow is an internal-only tag key distinct from the
// wire-vocabulary runtime-config tag: the file-mount list is one
// component folded into the overall runtime hash, but syncFiles needs
// its own finer-grained skip check so a setup-command-only config
// change doesn't force a needless re-rsync.
const mountsHashTagShadow = "cloudtik-file-mounts-hash"
