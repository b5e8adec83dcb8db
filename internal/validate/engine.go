// Package validate implements the grabber validation pipeline: capability
// probing, the ordered behavioral checks with fatal and non-fatal
// branches, and the additivity comparison across invocation patterns.
package validate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/epgkit/certify/internal/config"
	"github.com/epgkit/certify/internal/grabber"
	"github.com/epgkit/certify/internal/report"
	"github.com/epgkit/certify/internal/runner"
	"github.com/epgkit/certify/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine holds shared dependencies for validation runs.
type Engine struct {
	Config *config.Config
	Logger zerolog.Logger
}

// run is the accumulating state of one validation pass. It is threaded
// through every stage and finalized exactly once.
type run struct {
	eng    *Engine
	g      grabber.Config
	prefix string

	rn        *runner.Runner
	probe     *grabber.Prober
	validator tools.FileValidator
	cat       tools.Concatenator
	sorter    tools.Sorter

	findings  []report.Finding
	grabFlags string // capability-conditioned flags, computed once

	out0    string // primary combined-range output
	out1    string // split grab, offset 1 days 1
	out2    string // split grab, offset 2 days 1
	splitOK bool   // both split grabs produced output
}

// stage is one step of the pipeline. It returns abort=true to skip the
// remaining stages (a fatal branch), or a non-nil error to abandon the
// run entirely (signal escalation).
type stage struct {
	name string
	fn   func(ctx context.Context) (abort bool, err error)
}

// Validate runs the full pipeline against the grabber described by g,
// writing all artifacts under the caller-supplied path prefix. The
// returned report carries the deduplicated error-code sequence; an empty
// sequence is a pass. A child terminated by a foreign signal aborts the
// run with ErrInterrupted instead of a report.
func (e *Engine) Validate(ctx context.Context, g grabber.Config, prefix string) (*report.Report, error) {
	started := time.Now()
	runID := uuid.New().String()

	logPath := prefix + ".log"
	logFile, err := e.openLog(logPath)
	if err != nil {
		return nil, err
	}
	// Closed on every exit path, including fatal aborts and escalation.
	defer logFile.Close()

	v := e.newRun(g, prefix, logFile)

	stages := []stage{
		{"paramcheck", v.stageParamCheck},
		{"version", v.stageVersion},
		{"description", v.stageDescription},
		{"capabilities", v.stageCapabilities},
		{"configfile", v.stageConfigFile},
		{"grab", v.stagePrimaryGrab},
		{"validatefile", v.stageValidateFile},
		{"cat", v.stageCat},
		{"sort", v.stageSort},
		{"outputmode", v.stageOutputMode},
		{"splitgrabs", v.stageSplitGrabs},
		{"additivity", v.stageAdditivity},
	}

	for _, s := range stages {
		e.Logger.Debug().Str("grabber", g.Name).Str("stage", s.name).Msg("stage start")
		abort, err := s.fn(ctx)
		if err != nil {
			return nil, err
		}
		if abort {
			e.Logger.Debug().Str("grabber", g.Name).Str("stage", s.name).Msg("fatal stage, skipping to finalization")
			break
		}
	}

	rep := &report.Report{
		ID:       runID,
		Kind:     report.Validate,
		Grabber:  g.Name,
		Findings: dedupe(v.findings),
		LogPath:  logPath,
		Duration: time.Since(started),
	}

	e.Logger.Info().
		Str("grabber", g.Name).
		Bool("pass", rep.Pass()).
		Str("log", logPath).
		Msg("validation finished")

	return rep, nil
}

// Probe runs only the self-description checks (negative control, version,
// description, capabilities) without grabbing any data.
func (e *Engine) Probe(ctx context.Context, g grabber.Config, prefix string) (*report.Report, error) {
	started := time.Now()
	runID := uuid.New().String()

	logPath := prefix + ".log"
	logFile, err := e.openLog(logPath)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	v := e.newRun(g, prefix, logFile)

	stages := []stage{
		{"paramcheck", v.stageParamCheck},
		{"version", v.stageVersion},
		{"description", v.stageDescription},
		{"capabilities", v.stageCapabilities},
	}
	for _, s := range stages {
		e.Logger.Debug().Str("grabber", g.Name).Str("stage", s.name).Msg("stage start")
		if _, err := s.fn(ctx); err != nil {
			return nil, err
		}
	}

	rep := &report.Report{
		ID:       runID,
		Kind:     report.Probe,
		Grabber:  g.Name,
		Findings: dedupe(v.findings),
		LogPath:  logPath,
		Duration: time.Since(started),
	}

	e.Logger.Info().
		Str("grabber", g.Name).
		Bool("pass", rep.Pass()).
		Str("log", logPath).
		Msg("probe finished")

	return rep, nil
}

// Configure runs the grabber's own --configure dialogue against the
// configured file, with the caller's stdio attached.
func (e *Engine) Configure(ctx context.Context, g grabber.Config) error {
	rn := e.newRunner(nil)
	command := g.Command + " --configure --config-file " + g.ConfigFile
	res := rn.RunAttached(ctx, command)
	if res.Outcome == runner.Signaled {
		return ErrInterrupted{Command: command, Signal: res.Signal}
	}
	if !res.Success() {
		return fmt.Errorf("configuring %s: %s", g.Name, res)
	}
	return nil
}

func (e *Engine) newRun(g grabber.Config, prefix string, log io.Writer) *run {
	rn := e.newRunner(log)
	ts := &tools.Set{
		Runner:       rn,
		ValidateFile: e.Config.ValidateFileCommand(),
		CatCommand:   e.Config.CatCommand(),
		SortCommand:  e.Config.SortCommand(),
	}
	return &run{
		eng:       e,
		g:         g,
		prefix:    prefix,
		rn:        rn,
		probe:     &grabber.Prober{Runner: rn, Command: g.Command},
		validator: ts,
		cat:       ts,
		sorter:    ts,
	}
}

func (e *Engine) newRunner(log io.Writer) *runner.Runner {
	return &runner.Runner{
		Timeout:   e.Config.Timeout(),
		MaxOutput: e.Config.MaxOutputBytes(),
		Log:       log,
	}
}

func (e *Engine) openLog(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating artifact directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening command log: %w", err)
	}
	return f, nil
}

// record appends a finding to the run's error sequence.
func (v *run) record(code Code, diagnostic string) {
	v.findings = append(v.findings, report.Finding{Code: string(code), Diagnostic: diagnostic})
}

// escalate converts a foreign-signal termination into ErrInterrupted.
// Timeouts and launch failures are recoverable and classified by the
// stages themselves.
func (v *run) escalate(command string, res *runner.Result) error {
	if res.Outcome == runner.Signaled {
		return ErrInterrupted{Command: command, Signal: res.Signal}
	}
	return nil
}
