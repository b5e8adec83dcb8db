package validate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/epgkit/certify/internal/grabber"
)

// stageParamCheck invokes the grabber with a deliberately invalid flag.
// A grabber that accepts it does no argument validation at all.
func (v *run) stageParamCheck(ctx context.Context) (bool, error) {
	command := v.g.Command + " --bogus-option 2> /dev/null"
	res := v.rn.Run(ctx, command)
	if err := v.escalate(command, res); err != nil {
		return false, err
	}
	if res.Success() {
		v.record(NoParamCheck, "accepted --bogus-option")
	}
	return false, nil
}

func (v *run) stageVersion(ctx context.Context) (bool, error) {
	res := v.probe.Version(ctx)
	if err := v.escalate(v.g.Command+" --version", res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(NoVersion, res.String())
	}
	return false, nil
}

func (v *run) stageDescription(ctx context.Context) (bool, error) {
	res := v.probe.Description(ctx)
	if err := v.escalate(v.g.Command+" --description", res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(NoDescription, res.String())
	}
	return false, nil
}

// stageCapabilities parses the advertised capability set, checks the two
// required capabilities, and computes the grab flags reused by every
// subsequent grab invocation. All failures here are non-fatal.
func (v *run) stageCapabilities(ctx context.Context) (bool, error) {
	caps, res := v.probe.Capabilities(ctx)
	if err := v.escalate(v.g.Command+" --capabilities", res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(NoCapabilities, res.String())
	}
	if !caps.Has(grabber.CapBaseline) {
		v.record(NoBaseline, "")
	}
	if !caps.Has(grabber.CapManualConfig) {
		v.record(NoManualConfig, "")
	}

	cacheDir := v.prefix + "_cache"
	if v.g.UseCache && caps.Has(grabber.CapCache) {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return false, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	v.grabFlags = grabber.GrabFlags(v.g, caps, cacheDir)
	return false, nil
}

// stageConfigFile is the first fatal branch: without a configuration file
// no grab invocation is meaningful.
func (v *run) stageConfigFile(ctx context.Context) (bool, error) {
	if _, err := os.Stat(v.g.ConfigFile); err != nil {
		v.record(NoConfigurationFile, v.g.ConfigFile)
		return true, nil
	}
	return false, nil
}

// stagePrimaryGrab runs the combined two-day grab that every later stage
// depends on. Second fatal branch.
func (v *run) stagePrimaryGrab(ctx context.Context) (bool, error) {
	v.out0 = v.prefix + "_0.xml"
	errLog := v.prefix + "_0.stderr"

	command := fmt.Sprintf("%s > %s 2> %s", v.grabCommand(1, 2, true), v.out0, errLog)
	res := v.rn.Run(ctx, command)
	if err := v.escalate(command, res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(GrabError, res.String())
		return true, nil
	}
	v.checkQuiet(errLog)
	return false, nil
}

// stageValidateFile hands the primary output to the external file
// validator and passes its error codes through verbatim. Third fatal
// branch: later checks assume structurally valid output.
func (v *run) stageValidateFile(ctx context.Context) (bool, error) {
	codes, res := v.validator.Validate(ctx, v.out0, v.prefix+"_validate.log")
	if err := v.escalate("validate "+v.out0, res); err != nil {
		return false, err
	}
	if res.Success() {
		return false, nil
	}
	if len(codes) == 0 {
		v.record(InvalidFile, res.String())
	}
	for _, code := range codes {
		v.record(Code(code), "")
	}
	return true, nil
}

// stageCat runs the concatenation tool over the single validated file as
// a stricter structural check. Fourth fatal branch.
func (v *run) stageCat(ctx context.Context) (bool, error) {
	res := v.cat.Cat(ctx, v.prefix+"_cat.xml", v.out0)
	if err := v.escalate("cat "+v.out0, res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(CatError, res.String())
		return true, nil
	}
	return false, nil
}

// stageSort runs the sorter in duplicate-detecting mode. Any error output
// counts even with a zero exit code. Non-fatal.
func (v *run) stageSort(ctx context.Context) (bool, error) {
	stderr, res := v.sorter.Sort(ctx, v.out0, v.prefix+"_dupcheck.xml", v.prefix+"_dupcheck.stderr")
	if err := v.escalate("sort "+v.out0, res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(SortError, res.String())
	} else if stderr != "" {
		v.record(SortError, firstLine(stderr))
	}
	return false, nil
}

// stageOutputMode re-runs the combined range with --output instead of
// stdout redirection and byte-compares the two outputs. Non-fatal.
func (v *run) stageOutputMode(ctx context.Context) (bool, error) {
	outFile := v.prefix + "_output.xml"
	command := v.grabCommand(1, 2, true) + " --output " + outFile
	res := v.rn.Run(ctx, command)
	if err := v.escalate(command, res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(GrabError, res.String())
		return false, nil
	}

	equal, err := filesEqual(v.out0, outFile)
	if err != nil {
		v.eng.Logger.Warn().Err(err).Msg("output-mode comparison skipped")
		return false, nil
	}
	if !equal {
		v.record(OutputDiffers, outFile+" differs from "+v.out0)
	}
	return false, nil
}

// stageSplitGrabs runs the two constituent sub-ranges of the primary
// grab: offset 2 via stdout redirection, offset 1 via --quiet --output.
// Failures are non-fatal but disable the additivity comparison.
func (v *run) stageSplitGrabs(ctx context.Context) (bool, error) {
	v.splitOK = true

	v.out2 = v.prefix + "_2.xml"
	command := fmt.Sprintf("%s > %s", v.grabCommand(2, 1, false), v.out2)
	res := v.rn.Run(ctx, command)
	if err := v.escalate(command, res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(GrabError, res.String())
		v.splitOK = false
	}

	v.out1 = v.prefix + "_1.xml"
	errLog := v.prefix + "_1.stderr"
	command = fmt.Sprintf("%s --output %s 2> %s", v.grabCommand(1, 1, true), v.out1, errLog)
	res = v.rn.Run(ctx, command)
	if err := v.escalate(command, res); err != nil {
		return false, err
	}
	if !res.Success() {
		v.record(GrabError, res.String())
		v.splitOK = false
	} else {
		v.checkQuiet(errLog)
	}

	return false, nil
}

// grabCommand builds a grab invocation for the given date range,
// including the capability-conditioned flags computed during probing.
func (v *run) grabCommand(offset, days int, quiet bool) string {
	command := fmt.Sprintf("%s --config-file %s --offset %d --days %d",
		v.g.Command, v.g.ConfigFile, offset, days)
	if quiet {
		command += " --quiet"
	}
	return command + v.grabFlags
}

// checkQuiet records notquiet when a --quiet invocation left diagnostic
// output in its stderr log, and removes the log when it stayed empty.
func (v *run) checkQuiet(errLog string) {
	fi, err := os.Stat(errLog)
	if err != nil {
		return
	}
	if fi.Size() > 0 {
		v.record(NotQuiet, errLog)
		return
	}
	os.Remove(errLog)
}

// filesEqual reports whether two files have identical contents.
func filesEqual(a, b string) (bool, error) {
	da, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	db, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
