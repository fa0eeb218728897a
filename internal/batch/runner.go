package batch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// submitRetries is the retry budget for submit and kill commands.
const submitRetries = 5

// defaultCommandTimeout bounds any single external scheduler command.
const defaultCommandTimeout = 2 * time.Minute

// Runner executes external scheduler commands. tries is the total attempt
// budget: a nonzero exit or a start failure is retried until the budget is
// spent. The returned error is non-nil only when the command could not be
// executed at all (transport failure); a nonzero exit is reported through
// code/stdout/stderr.
type Runner interface {
	Run(ctx context.Context, tries int, name string, args ...string) (code int, stdout, stderr string, err error)
}

type execRunner struct {
	timeout time.Duration
}

// NewExecRunner returns the default os/exec-backed Runner.
func NewExecRunner() Runner {
	return &execRunner{timeout: defaultCommandTimeout}
}

func (r *execRunner) Run(ctx context.Context, tries int, name string, args ...string) (int, string, string, error) {
	if tries < 1 {
		tries = 1
	}

	var (
		code           int
		stdout, stderr string
		err            error
	)
	for attempt := 0; attempt < tries; attempt++ {
		code, stdout, stderr, err = r.runOnce(ctx, name, args...)
		if err == nil && code == 0 {
			return code, stdout, stderr, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return code, stdout, stderr, err
}

func (r *execRunner) runOnce(ctx context.Context, name string, args ...string) (int, string, string, error) {
	runCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	stdout := outBuf.String()
	stderr := errBuf.String()

	if err == nil {
		return 0, stdout, stderr, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), stdout, stderr, nil
	}
	// Could not start at all (missing binary, context cancelled, ...).
	return -1, stdout, stderr, err
}
