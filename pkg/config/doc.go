// Package config loads a cluster configuration document (YAML), fills
// in defaults, and computes the launch-config and runtime-config hashes
// the scaler tags onto nodes to decide whether they need a relaunch or
// merely a re-setup.
package config
