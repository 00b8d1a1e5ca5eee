package config

// Document is the raw shape of a cluster configuration file, as parsed
// from YAML before defaults are filled in or anything is validated.
// Field names mirror the wire vocabulary in the cluster config schema;
// provider, auth, docker and runtime are intentionally untyped maps that
// this package only ever hashes or forwards, never interprets.
type Document struct {
	ClusterName        string                     `yaml:"cluster_name"`
	MinWorkers         *int                       `yaml:"min_workers"`
	MaxWorkers         *int                       `yaml:"max_workers"`
	IdleTimeoutMinutes *int                       `yaml:"idle_timeout_minutes"`
	Provider           map[string]interface{}     `yaml:"provider"`
	Auth               AuthDocument               `yaml:"auth"`
	Docker             map[string]interface{}     `yaml:"docker"`
	AvailableNodeTypes map[string]NodeTypeDocument `yaml:"available_node_types"`
	HeadNodeType       string                     `yaml:"head_node_type"`
	FileMounts         map[string]string          `yaml:"file_mounts"` // destination -> source
	Runtime            map[string]interface{}     `yaml:"runtime"`

	InitializationCommands []string `yaml:"initialization_commands"`
	SetupCommands          []string `yaml:"setup_commands"`
	HeadSetupCommands      []string `yaml:"head_setup_commands"`
	WorkerSetupCommands    []string `yaml:"worker_setup_commands"`
	HeadStartCommands      []string `yaml:"head_start_commands"`
	WorkerStartCommands    []string `yaml:"worker_start_commands"`
}

// AuthDocument is the `auth` block: an SSH identity, opaque beyond that.
type AuthDocument struct {
	SSHUser           string `yaml:"ssh_user"`
	SSHPrivateKeyPath string `yaml:"ssh_private_key_file"`
}

// NodeTypeDocument is one entry of `available_node_types`.
type NodeTypeDocument struct {
	NodeConfig map[string]interface{} `yaml:"node_config"`
	Resources  map[string]int64       `yaml:"resources"`
	MinWorkers int                    `yaml:"min_workers"`
	MaxWorkers int                    `yaml:"max_workers"`
}

// knownTopLevelKeys is used only to detect (and warn about, not reject)
// unrecognized top-level keys; an unknown key like invalid_property_12345
// must not prevent the scaler from launching workers to min_workers.
var knownTopLevelKeys = map[string]bool{
	"cluster_name": true, "min_workers": true, "max_workers": true,
	"idle_timeout_minutes": true, "provider": true, "auth": true,
	"docker": true, "available_node_types": true, "head_node_type": true,
	"file_mounts": true, "runtime": true,
	"initialization_commands": true, "setup_commands": true,
	"head_setup_commands": true, "worker_setup_commands": true,
	"head_start_commands": true, "worker_start_commands": true,
}
