package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
cluster_name: test-cluster
min_workers: 2
max_workers: 2
auth:
  ssh_user: ubuntu
  ssh_private_key_file: /tmp/key.pem
available_node_types:
  head.default:
    node_config:
      instance_type: m5.large
    resources:
      CPU: 4
  worker.default:
    node_config:
      instance_type: m5.large
    resources:
      CPU: 4
    min_workers: 2
    max_workers: 2
head_node_type: head.default
setup_commands:
  - echo setup
`

func TestParseMinimalConfig(t *testing.T) {
	p, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "test-cluster", p.Cluster.ClusterName)
	assert.Equal(t, 2, p.Cluster.MinWorkers)
	assert.Len(t, p.Cluster.AvailableNodeTypes, 2)
	assert.NotEmpty(t, p.LaunchHash["worker.default"])
	assert.NotEmpty(t, p.RuntimeHash)
}

func TestParseMissingNodeTypesIsFatal(t *testing.T) {
	_, err := Parse([]byte(`cluster_name: x`))
	require.Error(t, err)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
}

func TestParseUnknownKeyIsWarningNotFatal(t *testing.T) {
	doc := minimalYAML + "\ninvalid_property_12345: true\n"
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.NotEmpty(t, p.Warnings)
	found := false
	for _, w := range p.Warnings {
		if w.Field == "invalid_property_12345" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, 2, p.Cluster.MinWorkers, "unknown key must not block the rest of the config from loading")
}

func TestLaunchHashChangesWhenAuthChanges(t *testing.T) {
	p1, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	p2, err := Parse([]byte(`
cluster_name: test-cluster
min_workers: 2
max_workers: 2
auth:
  ssh_user: someone-else
  ssh_private_key_file: /tmp/key.pem
available_node_types:
  head.default:
    node_config:
      instance_type: m5.large
    resources:
      CPU: 4
  worker.default:
    node_config:
      instance_type: m5.large
    resources:
      CPU: 4
    min_workers: 2
    max_workers: 2
head_node_type: head.default
setup_commands:
  - echo setup
`))
	require.NoError(t, err)
	assert.NotEqual(t, p1.LaunchHash["worker.default"], p2.LaunchHash["worker.default"])
}
