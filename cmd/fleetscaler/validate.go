package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/fleetscaler/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a cluster configuration file",
	Long: `Load and validate a cluster configuration YAML file the same way
the scaler daemon would at startup, printing any non-fatal warnings
(unrecognized keys, defaulted fields) without starting anything.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringP("file", "f", "", "cluster config YAML file (required)")
	_ = validateCmd.MarkFlagRequired("file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	prepared, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("✓ %s is valid\n", path)
	fmt.Printf("  cluster:      %s\n", prepared.Cluster.ClusterName)
	fmt.Printf("  head type:    %s\n", prepared.Cluster.HeadNodeType)
	fmt.Printf("  node types:   %d\n", len(prepared.Cluster.AvailableNodeTypes))
	fmt.Printf("  runtime hash: %s\n", prepared.RuntimeHash)

	for _, w := range prepared.Warnings {
		fmt.Printf("  warning: %s: %s\n", w.Field, w.Message)
	}
	return nil
}
