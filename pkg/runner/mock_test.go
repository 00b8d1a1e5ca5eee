package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRunnerRecordsCalls(t *testing.T) {
	m := NewMockRunner()
	require.NoError(t, m.CheckCall(context.Background(), []string{"echo", "hi"}))
	assert.True(t, m.HasCall("echo hi"))
}

func TestMockRunnerFailCmds(t *testing.T) {
	m := NewMockRunner()
	m.FailCmds = []string{"setup.sh"}
	err := m.CheckCall(context.Background(), []string{"bash", "setup.sh"})
	require.Error(t, err)
	var cf *CommandFailed
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, 1, cf.ExitCode)
}

func TestMockRunnerHookFires(t *testing.T) {
	m := NewMockRunner()
	fired := false
	m.Hooks = []Hook{{
		Match: func(cmd string) bool { return cmd == "reboot" },
		Run:   func() { fired = true },
	}}
	require.NoError(t, m.CheckCall(context.Background(), []string{"reboot"}))
	assert.True(t, fired)
}

func TestMockRunnerRespondToCallFIFO(t *testing.T) {
	m := NewMockRunner()
	m.RespondToCall("uname", "linux-1")
	m.RespondToCall("uname", "linux-2")

	out1, err := m.CheckOutput(context.Background(), []string{"uname", "-a"})
	require.NoError(t, err)
	assert.Equal(t, "linux-1", string(out1))

	out2, _ := m.CheckOutput(context.Background(), []string{"uname", "-a"})
	assert.Equal(t, "linux-2", string(out2))

	out3, _ := m.CheckOutput(context.Background(), []string{"uname", "-a"})
	assert.Equal(t, "command-output", string(out3), "queue exhausted, falls back to default output")
}
