// Package runner defines the Process Runner abstraction: the seam
// through which the node updater executes shell commands on a node and
// captures their output, without the core caring whether that node is
// reached over SSH, a local shell, or a test double.
package runner

import (
	"context"
	"fmt"
)

// CommandFailed is returned when a command exits non-zero. The updater
// treats it as a terminal failure for the current stage: node-status
// moves to update-failed, nothing retries within this run.
type CommandFailed struct {
	Argv     []string
	ExitCode int
	Output   string
}

func (e *CommandFailed) Error() string {
	return fmt.Sprintf("command failed (exit %d): %v", e.ExitCode, e.Argv)
}

// Runner executes commands against a single target and carries no
// cluster semantics beyond that; it is the injection seam used by tests
// to assert on exactly which commands a node updater issued.
type Runner interface {
	// CheckCall runs argv, returning *CommandFailed if the exit code is
	// non-zero.
	CheckCall(ctx context.Context, argv []string) error
	// CheckOutput runs argv and returns captured stdout, or
	// *CommandFailed if the exit code is non-zero.
	CheckOutput(ctx context.Context, argv []string) ([]byte, error)
}
