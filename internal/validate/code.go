package validate

import (
	"fmt"
	"syscall"

	"github.com/epgkit/certify/internal/report"
)

// Code is a validation error code. The taxonomy below is closed for codes
// this package produces itself; codes reported by the external file
// validator are passed through verbatim alongside them.
type Code string

const (
	// NoParamCheck: the grabber accepted a bogus flag without complaint.
	NoParamCheck Code = "noparamcheck"
	// NoVersion: --version failed.
	NoVersion Code = "noversion"
	// NoDescription: --description failed.
	NoDescription Code = "nodescription"
	// NoCapabilities: --capabilities failed.
	NoCapabilities Code = "nocapabilities"
	// NoBaseline: the required baseline capability was not advertised.
	NoBaseline Code = "nobaseline"
	// NoManualConfig: the required manualconfig capability was not advertised.
	NoManualConfig Code = "nomanualconfig"
	// NoConfigurationFile: the configured file path does not exist. Fatal.
	NoConfigurationFile Code = "noconfigurationfile"
	// GrabError: a grab invocation failed. Fatal on the primary grab only.
	GrabError Code = "graberror"
	// NotQuiet: --quiet still produced standard-error output.
	NotQuiet Code = "notquiet"
	// CatError: the concatenation tool failed. Fatal when it aborts the
	// structural sanity check.
	CatError Code = "caterror"
	// SortError: the sort tool failed or reported duplicates.
	SortError Code = "sorterror"
	// NotAdditive: combined-range output differs from concatenated
	// split-range output after normalization.
	NotAdditive Code = "notadditive"
	// OutputDiffers: --output wrote different data than stdout redirection
	// for the same range.
	OutputDiffers Code = "outputdiffers"
	// InvalidFile: the file validator rejected the output without
	// reporting any codes of its own.
	InvalidFile Code = "invalidfile"
)

// ErrInterrupted reports a child process terminated by a signal the runner
// did not send. It is not representable as an error code: the harness can
// no longer assume a controlled child failure, so the whole validation run
// is abandoned and the caller decides whether to terminate.
type ErrInterrupted struct {
	Command string
	Signal  syscall.Signal
}

func (e ErrInterrupted) Error() string {
	return fmt.Sprintf("%q killed by signal %d; validation abandoned", e.Command, e.Signal)
}

// dedupe collapses consecutive findings with identical codes, keeping the
// first of each run. Non-adjacent repeats are preserved.
func dedupe(findings []report.Finding) []report.Finding {
	if len(findings) == 0 {
		return nil
	}
	out := findings[:1]
	for _, f := range findings[1:] {
		if f.Code != out[len(out)-1].Code {
			out = append(out, f)
		}
	}
	return out
}
