// Package grabber describes the subject program under validation and
// implements the capability-probing side of the grabber contract.
package grabber

import (
	"sort"
	"strings"
)

// Capability names with meaning to the validator. The vocabulary is open;
// unknown capabilities are carried but ignored.
const (
	CapBaseline     = "baseline"
	CapManualConfig = "manualconfig"
	CapCache        = "cache"
	CapShare        = "share"
)

// Config describes the grabber under validation. Supplied once per run,
// never mutated.
type Config struct {
	Name       string // display name, e.g. "tv_grab_example"
	Command    string // command line invoking the grabber
	ConfigFile string // path to the grabber's configuration file
	ShareDir   string // shared-metadata directory, optional
	UseCache   bool   // pass --cache when the grabber advertises it
}

// Capabilities is the set of capability names a grabber advertises.
type Capabilities map[string]struct{}

// ParseCapabilities splits the captured --capabilities output on
// whitespace into a capability set.
func ParseCapabilities(text string) Capabilities {
	caps := make(Capabilities)
	for _, name := range strings.Fields(text) {
		caps[name] = struct{}{}
	}
	return caps
}

// Has reports whether the capability set contains name.
func (c Capabilities) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Names returns the capability names in sorted order.
func (c Capabilities) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GrabFlags computes the extra flags appended to every grab invocation,
// based on the advertised capabilities and the caller's configuration.
// Computed once per run and reused for every subsequent grab. cacheDir is
// the directory handed to --cache when cache usage is enabled.
func GrabFlags(cfg Config, caps Capabilities, cacheDir string) string {
	var flags strings.Builder
	if cfg.UseCache && caps.Has(CapCache) {
		flags.WriteString(" --cache ")
		flags.WriteString(cacheDir)
	}
	if cfg.ShareDir != "" && caps.Has(CapShare) {
		flags.WriteString(" --share ")
		flags.WriteString(cfg.ShareDir)
	}
	return flags.String()
}
