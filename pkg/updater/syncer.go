package updater

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/fleetscaler/pkg/runner"
	"github.com/cuemby/fleetscaler/pkg/types"
)

// RsyncSyncer shells out to rsync via an injected Runner, targeting the
// node over SSH using the given identity.
type RsyncSyncer struct {
	Runner         runner.Runner
	SSHUser        string
	PrivateKeyPath string
}

func (s *RsyncSyncer) Sync(ctx context.Context, ip string, mount types.FileMount) error {
	dest := fmt.Sprintf("%s@%s:%s", s.SSHUser, ip, mount.Destination)
	argv := []string{
		"rsync", "-az",
		"-e", fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=no", s.PrivateKeyPath),
		mount.Source, dest,
	}
	return s.Runner.CheckCall(ctx, argv)
}

// MockSyncer records every mount it was asked to sync, for tests.
type MockSyncer struct {
	mu     sync.Mutex
	synced []types.FileMount
	FailOn string
}

func (s *MockSyncer) Sync(_ context.Context, _ string, mount types.FileMount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn != "" && s.FailOn == mount.Source {
		return fmt.Errorf("mock syncer: injected failure for %s", mount.Source)
	}
	s.synced = append(s.synced, mount)
	return nil
}

func (s *MockSyncer) Synced() []types.FileMount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.FileMount{}, s.synced...)
}
