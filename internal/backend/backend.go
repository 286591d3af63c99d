// Package backend names the template correlation implementations available
// to the command line tools.
package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/jamesainslie/go-crater/internal/correlate"
)

// Default is the backend used when none is configured.
const Default = "fft"

var registry = map[string]func() correlate.Correlator{
	Default: func() correlate.Correlator { return correlate.NewFFT() },
}

func register(name string, build func() correlate.Correlator) {
	registry[name] = build
}

// Names lists the compiled-in backends.
func Names() []string {
	names := lo.Keys(registry)
	sort.Strings(names)
	return names
}

// Lookup returns the named backend. An empty name selects Default.
func Lookup(name string) (correlate.Correlator, error) {
	if name == "" {
		name = Default
	}
	build, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return build(), nil
}
