// Package tools wraps the external listings tools the pipeline calls out
// to: the XML file validator, the concatenator, and the sorter. The tools
// themselves are external collaborators; this package only normalizes
// their exit status and output for the pipeline.
package tools

import (
	"context"
	"os"
	"strings"

	"github.com/epgkit/certify/internal/runner"
)

// CommandRunner executes shell commands with a bounded timeout.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, command string) *runner.Result
}

// FileValidator checks an XML listings file for structural errors.
type FileValidator interface {
	// Validate returns the error codes the validator reported for path.
	// The codes are passed through verbatim; ok is false when validation
	// failed. res carries the raw invocation outcome for escalation.
	Validate(ctx context.Context, path, logPath string) (codes []string, res *runner.Result)
}

// Concatenator merges listings files into one.
type Concatenator interface {
	Cat(ctx context.Context, out string, inputs ...string) *runner.Result
}

// Sorter sorts a listings file and reports duplicates on stderr.
type Sorter interface {
	// Sort writes the sorted copy of in to out and the tool's stderr to
	// errLog. Duplicate warnings appear on stderr even with exit code 0.
	Sort(ctx context.Context, in, out, errLog string) (stderr string, res *runner.Result)
}

// Set is the exec-backed implementation of all three adapters, invoking
// the configured commands through the shared runner so that every tool
// invocation lands in the command log.
type Set struct {
	Runner       CommandRunner
	ValidateFile string // e.g. "tv-validate-file"
	CatCommand   string // e.g. "tv-cat"
	SortCommand  string // e.g. "tv-sort"
}

func (s *Set) Validate(ctx context.Context, path, logPath string) ([]string, *runner.Result) {
	res := s.Runner.Run(ctx, s.ValidateFile+" "+path+" > "+logPath+" 2>&1")
	if res.Success() {
		return nil, res
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil, res
	}
	return strings.Fields(string(data)), res
}

func (s *Set) Cat(ctx context.Context, out string, inputs ...string) *runner.Result {
	return s.Runner.Run(ctx, s.CatCommand+" "+strings.Join(inputs, " ")+" > "+out)
}

func (s *Set) Sort(ctx context.Context, in, out, errLog string) (string, *runner.Result) {
	res := s.Runner.Run(ctx, s.SortCommand+" --duplicate-detect "+in+" > "+out+" 2> "+errLog)
	data, err := os.ReadFile(errLog)
	if err != nil {
		return "", res
	}
	return strings.TrimSpace(string(data)), res
}
