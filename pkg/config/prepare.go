package config

import (
	"fmt"
	"os"

	"github.com/cuemby/fleetscaler/pkg/confighash"
	"github.com/cuemby/fleetscaler/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	defaultMinWorkers         = 0
	defaultMaxWorkers         = 2
	defaultIdleTimeoutMinutes = 5
)

// Prepared is the validated, defaulted, hash-stamped result of loading a
// cluster configuration document.
type Prepared struct {
	Cluster     *types.ClusterConfig
	LaunchHash  map[string]string // node type name -> launch hash
	RuntimeHash string
	Warnings    []*Error
}

// Load reads path, fills defaults, and computes hashes. Non-fatal
// findings (unknown top-level keys, defaulted fields) are returned in
// Warnings; a FatalError is returned directly and means the caller must
// not start the scaler loop.
func Load(path string) (*Prepared, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FatalError{Field: path, Message: err.Error()}
	}
	return Parse(data)
}

// Parse prepares a cluster config from raw YAML bytes.
func Parse(data []byte) (*Prepared, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &FatalError{Field: "<root>", Message: fmt.Sprintf("invalid yaml: %v", err)}
	}

	var warnings []*Error
	warnings = append(warnings, checkUnknownKeys(data)...)

	if len(doc.AvailableNodeTypes) == 0 {
		return nil, &FatalError{Field: "available_node_types", Message: "at least one node type is required"}
	}
	if doc.HeadNodeType == "" {
		return nil, &FatalError{Field: "head_node_type", Message: "required"}
	}
	if _, ok := doc.AvailableNodeTypes[doc.HeadNodeType]; !ok {
		return nil, &FatalError{Field: "head_node_type", Message: fmt.Sprintf("%q is not in available_node_types", doc.HeadNodeType)}
	}

	minWorkers := defaultMinWorkers
	if doc.MinWorkers != nil {
		minWorkers = *doc.MinWorkers
	} else {
		warnings = append(warnings, &Error{Field: "min_workers", Message: fmt.Sprintf("defaulted to %d", defaultMinWorkers)})
	}
	maxWorkers := defaultMaxWorkers
	if doc.MaxWorkers != nil {
		maxWorkers = *doc.MaxWorkers
	} else {
		warnings = append(warnings, &Error{Field: "max_workers", Message: fmt.Sprintf("defaulted to %d", defaultMaxWorkers)})
	}
	idleTimeout := defaultIdleTimeoutMinutes
	if doc.IdleTimeoutMinutes != nil {
		idleTimeout = *doc.IdleTimeoutMinutes
	}

	nodeTypes := make(map[string]*types.NodeType, len(doc.AvailableNodeTypes))
	for name, ntDoc := range doc.AvailableNodeTypes {
		resources := make(types.ResourceVector, len(ntDoc.Resources))
		for k, v := range ntDoc.Resources {
			resources[k] = v
		}
		nt := &types.NodeType{
			Name:         name,
			LaunchConfig: ntDoc.NodeConfig,
			Resources:    resources,
			MinWorkers:   ntDoc.MinWorkers,
			MaxWorkers:   ntDoc.MaxWorkers,
		}
		if name == doc.HeadNodeType {
			nt.MinWorkers, nt.MaxWorkers = 0, 1
		} else if nt.MaxWorkers == 0 {
			nt.MaxWorkers = maxWorkers
		}
		nodeTypes[name] = nt
	}

	fileMounts := make([]types.FileMount, 0, len(doc.FileMounts))
	for dest, src := range doc.FileMounts {
		fileMounts = append(fileMounts, types.FileMount{Destination: dest, Source: src})
	}

	commands := types.CommandSet{
		Initialization: doc.InitializationCommands,
		Setup:          doc.SetupCommands,
		HeadSetup:      doc.HeadSetupCommands,
		WorkerSetup:    doc.WorkerSetupCommands,
		HeadStart:      doc.HeadStartCommands,
		WorkerStart:    doc.WorkerStartCommands,
	}

	auth := types.AuthConfig{
		SSHUser:           doc.Auth.SSHUser,
		SSHPrivateKeyPath: doc.Auth.SSHPrivateKeyPath,
	}

	cluster := &types.ClusterConfig{
		ClusterName:        doc.ClusterName,
		MinWorkers:         minWorkers,
		MaxWorkers:          maxWorkers,
		IdleTimeoutMinutes:  idleTimeout,
		Provider:            doc.Provider,
		Auth:                auth,
		Docker:              doc.Docker,
		AvailableNodeTypes:  nodeTypes,
		HeadNodeType:        doc.HeadNodeType,
		FileMounts:          fileMounts,
		Commands:            commands,
		Runtime:             doc.Runtime,
	}

	return &Prepared{
		Cluster:     cluster,
		LaunchHash:  computeLaunchHashes(nodeTypes, auth),
		RuntimeHash: computeRuntimeHash(fileMounts, commands, doc.Runtime),
		Warnings:    warnings,
	}, nil
}

// computeLaunchHashes hashes each node type's launch config together
// with the cluster auth config: a node is obsolete exactly when its
// launch-config-hash tag no longer matches the entry for its type here.
func computeLaunchHashes(nodeTypes map[string]*types.NodeType, auth types.AuthConfig) map[string]string {
	out := make(map[string]string, len(nodeTypes))
	for name, nt := range nodeTypes {
		out[name] = confighash.Of(nt.LaunchConfig, auth)
	}
	return out
}

// computeRuntimeHash hashes the file-mount source/destination pairs
// together with every command list and the runtime map: a node needs
// re-setup, not relaunch, when only this changes. The contents of the
// mounted files are not hashed, so editing a mounted file without
// changing its paths leaves the hash unchanged.
func computeRuntimeHash(mounts []types.FileMount, commands types.CommandSet, runtime map[string]interface{}) string {
	return confighash.Of(mounts, commands, runtime)
}

// checkUnknownKeys re-parses data into a generic map purely to surface
// top-level keys the schema doesn't recognize as warnings; an unknown
// key must never be fatal — a newer config file on an older scaler binary
// should still apply, just with a warning.
func checkUnknownKeys(data []byte) []*Error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil
	}
	var out []*Error
	for k := range raw {
		if !knownTopLevelKeys[k] {
			out = append(out, &Error{Field: k, Message: "unrecognized top-level key, ignored"})
		}
	}
	return out
}
