package grabber

import (
	"context"

	"github.com/epgkit/certify/internal/runner"
)

// CommandRunner executes shell commands with a bounded timeout.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, command string) *runner.Result
	RunCapture(ctx context.Context, command string) (string, *runner.Result)
}

// Prober issues the grabber's self-description commands.
type Prober struct {
	Runner  CommandRunner
	Command string // grabber command line, without flags
}

// Version runs --version and reports whether it succeeded. Output is not
// consumed; the contract only requires the flag to be honored.
func (p *Prober) Version(ctx context.Context) *runner.Result {
	return p.Runner.Run(ctx, p.Command+" --version")
}

// Description runs --description and reports whether it succeeded.
func (p *Prober) Description(ctx context.Context) *runner.Result {
	return p.Runner.Run(ctx, p.Command+" --description")
}

// Capabilities runs --capabilities and parses the advertised set. When
// the command fails the set is empty; the caller should keep probing with
// it rather than abort.
func (p *Prober) Capabilities(ctx context.Context) (Capabilities, *runner.Result) {
	out, res := p.Runner.RunCapture(ctx, p.Command+" --capabilities")
	if !res.Success() {
		return make(Capabilities), res
	}
	return ParseCapabilities(out), res
}
