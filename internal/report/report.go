// Package report holds the structured outcome of validation and probe
// runs. Reports are kept in a small in-process cache backed by a
// per-process temp directory; nothing survives the server lifetime,
// each validation pass is self-contained.
package report

import (
	"fmt"
	"time"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Validate is a full validation run against a grabber.
	Validate Kind = "validate"
	// Probe is a capability-probe-only sweep (no grabbing).
	Probe Kind = "probe"
)

// Store persists and retrieves reports.
type Store interface {
	Save(r *Report) error
	Load(runID string) (*Report, error)
}

// Finding is one recorded validation error: a code from the closed
// taxonomy (or a code passed through from the file validator) plus an
// optional free-text diagnostic.
type Finding struct {
	Code       string `json:"code"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Report holds the outcome of one run.
type Report struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Grabber  string        `json:"grabber"`
	Findings []Finding     `json:"findings,omitempty"`
	LogPath  string        `json:"log_path,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// Pass reports whether the run recorded no findings.
func (r *Report) Pass() bool {
	return len(r.Findings) == 0
}

// Codes returns the finding codes in recorded order.
func (r *Report) Codes() []string {
	codes := make([]string, len(r.Findings))
	for i, f := range r.Findings {
		codes[i] = f.Code
	}
	return codes
}

// ByCode returns the findings recorded under the given code.
func (r *Report) ByCode(code string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Code == code {
			out = append(out, f)
		}
	}
	return out
}

// Expect returns an error if the report's Kind does not match want.
func (r *Report) Expect(want Kind) error {
	if r.Kind != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Kind, want)
	}
	return nil
}
