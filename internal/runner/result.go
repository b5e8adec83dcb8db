package runner

import (
	"fmt"
	"syscall"
)

// Outcome classifies how a command invocation ended.
type Outcome int

const (
	// Completed means the process ran to completion and reported an exit code.
	Completed Outcome = iota
	// TimedOut means the runner killed the process group after the timeout.
	TimedOut
	// Signaled means the process was terminated by a signal the runner did
	// not send. The caller must treat this as an interruption of the whole
	// validation run, not as a check failure.
	Signaled
	// LaunchFailed means the process could not be started at all.
	LaunchFailed
)

// Result holds the outcome of a single command invocation.
type Result struct {
	Outcome  Outcome
	ExitCode int            // set when Outcome is Completed
	Signal   syscall.Signal // set when Outcome is Signaled
}

// Success reports whether the command completed with a zero exit code.
func (r *Result) Success() bool {
	return r.Outcome == Completed && r.ExitCode == 0
}

func (r *Result) String() string {
	switch r.Outcome {
	case Completed:
		return fmt.Sprintf("exit %d", r.ExitCode)
	case TimedOut:
		return "timed out"
	case Signaled:
		return fmt.Sprintf("killed by signal %d", r.Signal)
	case LaunchFailed:
		return "launch failed"
	}
	return "unknown"
}
