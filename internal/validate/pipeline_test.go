package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/epgkit/certify/internal/config"
	"github.com/epgkit/certify/internal/grabber"
	"github.com/epgkit/certify/internal/report"
	"github.com/rs/zerolog"
)

// grabberScript is a minimal conforming grabber. The single %s is the
// capabilities line; EXTRA is a hook point for misbehaving variants.
const grabberScript = `#!/bin/sh
out=""
offset=0
days=1
while [ $# -gt 0 ]; do
  case "$1" in
    --version) echo "fake 1.0"; exit 0;;
    --description) echo "Fake listings grabber"; exit 0;;
    --capabilities) echo "%s"; exit 0;;
    --config-file) shift;;
    --offset) offset=$2; shift;;
    --days) days=$2; shift;;
    --output) out=$2; shift;;
    --quiet) ;;
    --cache) shift;;
    --share) shift;;
    *) echo "unknown option: $1" >&2; exit 1;;
  esac
  shift
done
EXTRA
emit() {
  i=0
  while [ "$i" -lt "$days" ]; do
    echo "programme day $((offset + i))"
    i=$((i + 1))
  done
}
if [ -n "$out" ]; then emit > "$out"; else emit; fi
`

const sortScript = `#!/bin/sh
if [ "$1" = "--duplicate-detect" ]; then shift; fi
sort "$@"
`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func conformingGrabber(caps string) string {
	return strings.Replace(fmt.Sprintf(grabberScript, caps), "EXTRA\n", "", 1)
}

func grabberWith(caps, extra string) string {
	return strings.Replace(fmt.Sprintf(grabberScript, caps), "EXTRA", extra, 1)
}

// fixture holds a ready-to-validate fake grabber in a temp dir.
type fixture struct {
	dir    string
	eng    *Engine
	g      grabber.Config
	prefix string
}

func newFixture(t *testing.T, script string) *fixture {
	t.Helper()
	dir := t.TempDir()

	grabberPath := writeScript(t, dir, "tv_grab_fake", script)
	sortPath := writeScript(t, dir, "fakesort", sortScript)

	configFile := filepath.Join(dir, "fake.conf")
	if err := os.WriteFile(configFile, []byte("channel 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		RawTimeout: "30s",
		Tools: config.ToolsConfig{
			ValidateFile: "true",
			Cat:          "cat",
			Sort:         sortPath,
		},
	}

	return &fixture{
		dir: dir,
		eng: &Engine{Config: cfg, Logger: zerolog.Nop()},
		g: grabber.Config{
			Name:       "tv_grab_fake",
			Command:    grabberPath,
			ConfigFile: configFile,
		},
		prefix: filepath.Join(dir, "artifacts", "fake"),
	}
}

func (f *fixture) validate(t *testing.T) *report.Report {
	t.Helper()
	rep, err := f.eng.Validate(context.Background(), f.g, f.prefix)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return rep
}

func (f *fixture) commandLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.prefix + ".log")
	if err != nil {
		t.Fatalf("reading command log: %v", err)
	}
	return string(data)
}

func TestValidate_WellBehavedGrabberPasses(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig"))
	rep := f.validate(t)

	if !rep.Pass() {
		t.Fatalf("codes = %v, want pass", rep.Codes())
	}
	log := f.commandLog(t)
	if !strings.Contains(log, "--offset 1 --days 2") {
		t.Errorf("primary grab missing from command log:\n%s", log)
	}
	if !strings.Contains(log, "--offset 2 --days 1") {
		t.Errorf("split grab missing from command log:\n%s", log)
	}
}

func TestValidate_MissingConfigFileIsFatal(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig"))
	f.g.ConfigFile = filepath.Join(f.dir, "absent.conf")
	rep := f.validate(t)

	if got := rep.Codes(); !slices.Equal(got, []string{"noconfigurationfile"}) {
		t.Fatalf("codes = %v, want exactly [noconfigurationfile]", got)
	}
	if log := f.commandLog(t); strings.Contains(log, "--days") {
		t.Errorf("grab commands were logged after fatal config check:\n%s", log)
	}
}

func TestValidate_AcceptsBogusFlag(t *testing.T) {
	// A grabber that swallows unknown options does no argument validation.
	script := strings.Replace(
		conformingGrabber("baseline manualconfig"),
		`*) echo "unknown option: $1" >&2; exit 1;;`,
		"*) ;;",
		1,
	)
	f := newFixture(t, script)
	rep := f.validate(t)

	if !slices.Contains(rep.Codes(), "noparamcheck") {
		t.Errorf("codes = %v, want noparamcheck", rep.Codes())
	}
}

func TestValidate_MissingBaselineCapability(t *testing.T) {
	f := newFixture(t, conformingGrabber("manualconfig"))
	rep := f.validate(t)

	codes := rep.Codes()
	if !slices.Contains(codes, "nobaseline") {
		t.Errorf("codes = %v, want nobaseline", codes)
	}
	if slices.Contains(codes, "nomanualconfig") {
		t.Errorf("codes = %v, nomanualconfig should not be present", codes)
	}
}

func TestValidate_PrimaryGrabFailureIsFatal(t *testing.T) {
	f := newFixture(t, grabberWith("baseline manualconfig", "exit 1"))
	rep := f.validate(t)

	if got := rep.Codes(); !slices.Equal(got, []string{"graberror"}) {
		t.Fatalf("codes = %v, want exactly [graberror]", got)
	}
	// Nothing past the primary grab may have run.
	if log := f.commandLog(t); strings.Contains(log, "--offset 2") {
		t.Errorf("split grab ran after fatal primary grab:\n%s", log)
	}
}

func TestValidate_HungGrabberTimesOut(t *testing.T) {
	f := newFixture(t, grabberWith("baseline manualconfig", "sleep 30"))
	f.eng.Config.RawTimeout = "500ms"
	rep := f.validate(t)

	findings := rep.ByCode("graberror")
	if len(findings) == 0 {
		t.Fatalf("codes = %v, want graberror after timeout", rep.Codes())
	}
	if !strings.Contains(findings[0].Diagnostic, "timed out") {
		t.Errorf("diagnostic = %q, want timeout mention", findings[0].Diagnostic)
	}
}

func TestValidate_QuietGrabberStillChatters(t *testing.T) {
	f := newFixture(t, grabberWith("baseline manualconfig", `echo "fetching listings..." >&2`))
	rep := f.validate(t)

	// Both quiet grabs chatter; the adjacent duplicates collapse to one.
	if got := rep.Codes(); !slices.Equal(got, []string{"notquiet"}) {
		t.Fatalf("codes = %v, want exactly [notquiet]", got)
	}
}

func TestValidate_EmptyStderrLogsRemoved(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig"))
	f.validate(t)

	for _, name := range []string{"_0.stderr", "_1.stderr"} {
		if _, err := os.Stat(f.prefix + name); err == nil {
			t.Errorf("empty stderr log %s was not removed", name)
		}
	}
}

func TestValidate_NotAdditive(t *testing.T) {
	// Emits a bonus entry only when queried with --days 2, so the
	// combined range can never match the concatenated splits.
	script := strings.Replace(
		conformingGrabber("baseline manualconfig"),
		`emit() {
  i=0`,
		`emit() {
  if [ "$days" -eq 2 ]; then echo "programme bonus"; fi
  i=0`,
		1,
	)
	f := newFixture(t, script)
	rep := f.validate(t)

	if got := rep.Codes(); !slices.Equal(got, []string{"notadditive"}) {
		t.Fatalf("codes = %v, want exactly [notadditive]", got)
	}
	if _, err := os.Stat(f.prefix + "_additivity.diff"); err != nil {
		t.Errorf("additivity diff artifact missing: %v", err)
	}
}

func TestValidate_AdditiveGrabberHasNoNotAdditive(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig"))
	rep := f.validate(t)

	if slices.Contains(rep.Codes(), "notadditive") {
		t.Errorf("codes = %v, notadditive must not appear for disjoint ranges", rep.Codes())
	}
}

func TestValidate_OutputModeDiffers(t *testing.T) {
	// Misbehaves only in --output mode for the combined range.
	script := strings.Replace(
		conformingGrabber("baseline manualconfig"),
		`if [ -n "$out" ]; then emit > "$out"; else emit; fi`,
		`if [ -n "$out" ]; then
  emit > "$out"
  if [ "$days" -eq 2 ]; then echo "sneaky extra" >> "$out"; fi
else
  emit
fi`,
		1,
	)
	f := newFixture(t, script)
	rep := f.validate(t)

	if got := rep.Codes(); !slices.Equal(got, []string{"outputdiffers"}) {
		t.Fatalf("codes = %v, want exactly [outputdiffers]", got)
	}
}

func TestValidate_ValidatorCodesPassthrough(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig"))
	validator := writeScript(t, f.dir, "fakevalidate", "#!/bin/sh\necho \"badstart badstop\"\nexit 1\n")
	f.eng.Config.Tools.ValidateFile = validator
	rep := f.validate(t)

	if got := rep.Codes(); !slices.Equal(got, []string{"badstart", "badstop"}) {
		t.Fatalf("codes = %v, want validator codes passed through", got)
	}
	if log := f.commandLog(t); strings.Contains(log, "--offset 2") {
		t.Errorf("pipeline continued past fatal validation failure:\n%s", log)
	}
}

func TestValidate_CatFailureIsFatal(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig"))
	f.eng.Config.Tools.Cat = "false"
	rep := f.validate(t)

	if got := rep.Codes(); !slices.Equal(got, []string{"caterror"}) {
		t.Fatalf("codes = %v, want exactly [caterror]", got)
	}
}

func TestValidate_SorterDuplicateWarningIsNonFatal(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig"))
	noisy := writeScript(t, f.dir, "noisysort",
		"#!/bin/sh\nif [ \"$1\" = \"--duplicate-detect\" ]; then shift; echo \"duplicate programme\" >&2; fi\nsort \"$@\"\n")
	f.eng.Config.Tools.Sort = noisy
	rep := f.validate(t)

	if !slices.Contains(rep.Codes(), "sorterror") {
		t.Fatalf("codes = %v, want sorterror", rep.Codes())
	}
	// Non-fatal: the split grabs still ran.
	if log := f.commandLog(t); !strings.Contains(log, "--offset 2") {
		t.Errorf("pipeline stopped at non-fatal sorterror:\n%s", log)
	}
}

func TestValidate_CapabilityConditionedFlags(t *testing.T) {
	f := newFixture(t, conformingGrabber("baseline manualconfig cache share"))
	f.g.UseCache = true
	f.g.ShareDir = filepath.Join(f.dir, "share")
	rep := f.validate(t)

	if !rep.Pass() {
		t.Fatalf("codes = %v, want pass", rep.Codes())
	}
	log := f.commandLog(t)
	if !strings.Contains(log, "--cache "+f.prefix+"_cache") {
		t.Errorf("--cache flag missing from grab commands:\n%s", log)
	}
	if !strings.Contains(log, "--share "+f.g.ShareDir) {
		t.Errorf("--share flag missing from grab commands:\n%s", log)
	}
	if fi, err := os.Stat(f.prefix + "_cache"); err != nil || !fi.IsDir() {
		t.Error("cache directory was not created")
	}
}

func TestValidate_ForeignSignalAbandonsRun(t *testing.T) {
	f := newFixture(t, grabberWith("baseline manualconfig", "kill -TERM 0"))
	_, err := f.eng.Validate(context.Background(), f.g, f.prefix)

	var interrupted ErrInterrupted
	if !errors.As(err, &interrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	// The log sink must have been closed with everything up to the
	// interruption recorded.
	if log := f.commandLog(t); !strings.Contains(log, "--days") {
		t.Errorf("interrupted grab missing from command log:\n%s", log)
	}
}

func TestProbe_DoesNotGrab(t *testing.T) {
	f := newFixture(t, conformingGrabber("manualconfig"))
	rep, err := f.eng.Probe(context.Background(), f.g, f.prefix)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	if rep.Kind != report.Probe {
		t.Errorf("Kind = %q, want probe", rep.Kind)
	}
	if got := rep.Codes(); !slices.Equal(got, []string{"nobaseline"}) {
		t.Errorf("codes = %v, want exactly [nobaseline]", got)
	}
	log := f.commandLog(t)
	if !strings.Contains(log, "--capabilities") {
		t.Errorf("capabilities probe missing from log:\n%s", log)
	}
	if strings.Contains(log, "--days") {
		t.Errorf("probe ran grab commands:\n%s", log)
	}
}

func TestDedupe(t *testing.T) {
	in := []report.Finding{
		{Code: "graberror"},
		{Code: "graberror", Diagnostic: "second"},
		{Code: "notquiet"},
		{Code: "notquiet"},
		{Code: "graberror"},
	}
	got := dedupe(in)
	want := []string{"graberror", "notquiet", "graberror"}
	if len(got) != len(want) {
		t.Fatalf("dedupe kept %d findings, want %d", len(got), len(want))
	}
	for i, f := range got {
		if f.Code != want[i] {
			t.Errorf("code[%d] = %q, want %q", i, f.Code, want[i])
		}
	}
}

func TestDedupe_Empty(t *testing.T) {
	if got := dedupe(nil); got != nil {
		t.Errorf("dedupe(nil) = %v, want nil", got)
	}
}
