package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerSuccess(t *testing.T) {
	run := NewExecRunner()

	code, stdout, stderr, err := run.Run(context.Background(), 1, "/bin/echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello\n", stdout)
	assert.Empty(t, stderr)
}

func TestExecRunnerNonzeroExit(t *testing.T) {
	run := NewExecRunner()

	code, _, _, err := run.Run(context.Background(), 2, "/bin/bash", "-c", "exit 7")
	require.NoError(t, err, "a nonzero exit is not a transport failure")
	assert.Equal(t, 7, code)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	run := NewExecRunner()

	code, _, _, err := run.Run(context.Background(), 1, "/nonexistent/tool")
	require.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestExecRunnerCancelledContext(t *testing.T) {
	run := NewExecRunner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The budget must not be spent retrying a dead context.
	code, _, _, err := run.Run(ctx, 5, "/bin/echo", "hello")
	require.Error(t, err)
	assert.Equal(t, -1, code)
}
