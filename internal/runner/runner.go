// Package runner executes grabber and tool commands with a uniform
// wall-clock timeout and process-group termination.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Runner executes shell commands with a bounded timeout. Every invocation
// is written to Log as a single line before the process is started, so the
// log reproduces the run even when a command wedges or kills the harness.
type Runner struct {
	Timeout   time.Duration
	MaxOutput int       // bytes, capture mode only
	Log       io.Writer // command log sink; may be nil
}

// Run executes command via "sh -c" in its own process group and blocks
// until it exits or the timeout fires. On timeout the entire process group
// is killed, so grandchildren spawned by the grabber do not outlive it.
// Stdout and stderr are discarded unless the command redirects them.
func (r *Runner) Run(ctx context.Context, command string) *Result {
	return r.exec(ctx, command, nil)
}

// RunCapture is Run with stdout captured, bounded by MaxOutput. The
// captured text is valid only when the result is a zero-exit completion.
func (r *Runner) RunCapture(ctx context.Context, command string) (string, *Result) {
	var stdout bytes.Buffer
	res := r.exec(ctx, command, func(cmd *exec.Cmd) {
		cmd.Stdout = &limitWriter{buf: &stdout, limit: r.MaxOutput}
	})
	if !res.Success() {
		return "", res
	}
	return stdout.String(), res
}

// RunAttached is Run with the parent's stdio attached, for interactive
// flows such as the grabber's --configure dialogue.
func (r *Runner) RunAttached(ctx context.Context, command string) *Result {
	return r.exec(ctx, command, func(cmd *exec.Cmd) {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	})
}

func (r *Runner) exec(ctx context.Context, command string, setup func(*exec.Cmd)) *Result {
	if r.Log != nil {
		fmt.Fprintln(r.Log, command)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// On cancellation, kill the whole group rather than just sh. The child
	// is its own group leader, so -pid addresses every descendant.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
	if setup != nil {
		setup(cmd)
	}

	err := cmd.Run()
	if err == nil {
		return &Result{Outcome: Completed, ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &Result{Outcome: LaunchFailed}
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		if ctx.Err() == context.DeadlineExceeded && ws.Signal() == syscall.SIGKILL {
			return &Result{Outcome: TimedOut}
		}
		return &Result{Outcome: Signaled, Signal: ws.Signal()}
	}

	return &Result{Outcome: Completed, ExitCode: exitErr.ExitCode()}
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
