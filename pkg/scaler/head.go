package scaler

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetscaler/pkg/log"
	"github.com/cuemby/fleetscaler/pkg/provider"
	"github.com/cuemby/fleetscaler/pkg/types"
)

// HeadPollInterval is how often EnsureHeadNode polls IsRunning for a
// newly created head node after CreateNode returns.
var HeadPollInterval = 2 * time.Second

// BootstrapWriter persists the bootstrap config and key material onto
// the head node once it is reachable, at a well-known path. Kept as an
// interface so tests can substitute an in-memory double rather than
// shelling out to rsync.
type BootstrapWriter interface {
	WriteBootstrap(ctx context.Context, nodeID string, configYAML, privateKeyPEM []byte) error
}

// EnsureHeadNode runs once before the tick loop starts: if no head node
// exists, it launches one, waits for it to appear, runs a head updater
// against it, then writes the cluster's bootstrap config and key so any
// later head-executed management command can find them.
func (s *Scaler) EnsureHeadNode(ctx context.Context, writer BootstrapWriter, configYAML, privateKeyPEM []byte) error {
	filters := provider.TagFilters{
		types.TagClusterName: s.cfg.Cluster.ClusterName,
		types.TagNodeKind:    string(types.NodeKindHead),
	}
	idsOutcome := s.Provider.NonTerminatedNodes(ctx, filters)
	ids, ok := idsOutcome.Value()
	if !ok {
		return fmt.Errorf("scaler: query existing head node: %w", idsOutcome.Err())
	}
	if len(ids) > 1 {
		log.WithComponent("scaler").Error().Int("count", len(ids)).Msg("invariant violation: multiple head nodes present")
	}
	if len(ids) > 0 {
		return nil // head already exists; nothing to bootstrap
	}

	headType, ok := s.cfg.Cluster.HeadNodeTypeSpec()
	if !ok {
		return fmt.Errorf("scaler: head_node_type %q not found in available_node_types", s.cfg.Cluster.HeadNodeType)
	}

	// The head node always uses the reserved sentinel number (0), never
	// one drawn from the worker sequence counter.
	tags := map[string]string{
		types.TagClusterName:  s.cfg.Cluster.ClusterName,
		types.TagNodeKind:     string(types.NodeKindHead),
		types.TagUserNodeType: s.cfg.Cluster.HeadNodeType,
		types.TagNodeStatus:   string(types.NodeStatusUninitialized),
		types.TagLaunchConfig: s.cfg.LaunchHash[s.cfg.Cluster.HeadNodeType],
		types.TagNodeName:     fmt.Sprintf("%s-head", s.cfg.Cluster.ClusterName),
		types.TagNodeNumber:   types.HeadNodeNumber,
	}

	createOutcome := s.Provider.CreateNode(ctx, provider.NodeConfig(headType.LaunchConfig), tags, 1)
	createdIDs, ok := createOutcome.Value()
	if !ok || len(createdIDs) == 0 {
		return fmt.Errorf("scaler: create head node: %w", createOutcome.Err())
	}
	headID := createdIDs[0]

	if err := s.waitForHeadVisible(ctx, headID); err != nil {
		return err
	}

	if s.Updater != nil {
		result := s.Updater.Run(ctx, headID, types.NodeKindHead, s.updaterConfig())
		if result.FinalStatus != types.NodeStatusUpToDate {
			return fmt.Errorf("scaler: head node update failed: %w", result.Err)
		}
	}

	if writer != nil {
		if err := writer.WriteBootstrap(ctx, headID, configYAML, privateKeyPEM); err != nil {
			return fmt.Errorf("scaler: write bootstrap state to head: %w", err)
		}
	}
	return nil
}

func (s *Scaler) waitForHeadVisible(ctx context.Context, headID string) error {
	for {
		runningOutcome := s.Provider.IsRunning(ctx, headID)
		if running, ok := runningOutcome.Value(); ok && running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(HeadPollInterval):
		}
	}
}

// GetRunningHead returns the id of the cluster's running head node, per
// scenario: among head-tagged nodes, prefer one tagged up-to-date; if
// allowUninitialized is true and none are up-to-date, fall back to any
// head node regardless of status.
func (s *Scaler) GetRunningHead(ctx context.Context, allowUninitialized bool) (string, bool) {
	filters := provider.TagFilters{
		types.TagClusterName: s.cfg.Cluster.ClusterName,
		types.TagNodeKind:    string(types.NodeKindHead),
	}
	idsOutcome := s.Provider.NonTerminatedNodes(ctx, filters)
	ids, ok := idsOutcome.Value()
	if !ok {
		return "", false
	}

	var fallback string
	for _, id := range ids {
		tagsOutcome := s.Provider.NodeTags(ctx, id)
		tags, ok := tagsOutcome.Value()
		if !ok {
			continue
		}
		if tags[types.TagNodeStatus] == string(types.NodeStatusUpToDate) {
			return id, true
		}
		if fallback == "" {
			fallback = id
		}
	}
	if allowUninitialized && fallback != "" {
		return fallback, true
	}
	return "", false
}

