package runner

import (
	"bytes"
	"context"
	"os/exec"
)

// LocalRunner executes commands in the current process's own shell
// environment. cmd/fleetscaler uses it as the runner behind RsyncSyncer,
// which runs rsync from the scaler's own host.
type LocalRunner struct{}

func (LocalRunner) CheckCall(ctx context.Context, argv []string) error {
	_, err := run(ctx, argv)
	return err
}

func (LocalRunner) CheckOutput(ctx context.Context, argv []string) ([]byte, error) {
	return run(ctx, argv)
}

func run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, &CommandFailed{Argv: argv, ExitCode: -1, Output: "empty command"}
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	exitCode := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return stdout.Bytes(), &CommandFailed{Argv: argv, ExitCode: exitCode, Output: stderr.String()}
}
