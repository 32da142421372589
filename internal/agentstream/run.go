package agentstream

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// waitDelay bounds how long Cancel's SIGTERM is given to take effect before
// the runner gives up on a graceful exit.
const waitDelay = 5 * time.Second

// Result is the outcome of one child invocation (spec.md §4.4).
type Result struct {
	Success         bool
	ExitCode        int
	Stdout          string
	FinalResultText string
	SessionID       string
	InputTokens     int
	OutputTokens    int
	Stderr          string
	Crashed         bool // non-zero exit with zero stdout lines produced
}

// Run spawns the child described by inv, concurrently drains its stdout and
// stderr, forwards live events to emit, and waits for exit. It has no error
// return: spawn and run failures, including a cancelled context, are reported
// through Result per spec.md §4.4's failure semantics.
func Run(ctx context.Context, inv Invocation, emit Emitter) Result {
	cliPath := inv.CliPath
	if cliPath == "" {
		cliPath = "claude"
	}

	cmd := exec.CommandContext(ctx, cliPath, BuildArgs(inv)...)
	cmd.Dir = inv.WorkingDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Success: false, ExitCode: -1, Stderr: err.Error()}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{Success: false, ExitCode: -1, Stderr: err.Error()}
	}

	if err := cmd.Start(); err != nil {
		return Result{Success: false, ExitCode: -1, Stderr: fmt.Sprintf("starting %s: %v", cliPath, err)}
	}

	group, _ := errgroup.WithContext(ctx)

	var outSummary stdoutSummary
	group.Go(func() error {
		var readErr error
		outSummary, readErr = consumeStdout(stdout, emit)
		return readErr
	})

	var errText string
	group.Go(func() error {
		text, readErr := consumeStderr(stderr)
		errText = text
		return readErr
	})

	readErr := group.Wait()
	exitCode, waitErr := exitCodeOf(cmd.Wait())

	result := Result{
		ExitCode:        exitCode,
		Stdout:          outSummary.Raw,
		FinalResultText: outSummary.FinalResultText,
		SessionID:       outSummary.SessionID,
		InputTokens:     outSummary.InputTokens,
		OutputTokens:    outSummary.OutputTokens,
		Stderr:          errText,
	}

	if waitErr != nil {
		result.Success = false
		result.ExitCode = -1
		result.Stderr = waitErr.Error()
		return result
	}
	if readErr != nil && ctx.Err() == nil {
		result.Stderr = readErr.Error()
	}

	result.Success = exitCode == 0
	result.Crashed = exitCode != 0 && len(result.Stdout) == 0
	return result
}

// exitCodeOf extracts an exit code from a Wait error: (code, nil) for a
// normal or non-zero exit, (0, err) for any other Wait failure (e.g. an I/O
// copy error or the WaitDelay expiring), (0, nil) for a clean exit. A binary
// that cannot be found fails earlier, at Start.
func exitCodeOf(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
