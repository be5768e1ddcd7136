// Package ENVIRON classifies the process as running in CI or locally. The
// result is computed once by the caller and injected wherever it matters.
package environ

import (
	"fmt"
	"os"
	"strings"
)

type Environment int

const (
	Local Environment = iota
	CI
)

func (e Environment) String() string {
	if e == CI {
		return "CI"
	}
	return "Local"
}

// Parse accepts "ci" or "local" in any case.
func Parse(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ci":
		return CI, nil
	case "local":
		return Local, nil
	default:
		return Local, fmt.Errorf("environ: unknown environment %q", s)
	}
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// Detector reports CI when any marker variable holds a non-empty value.
type Detector struct {
	Markers []string
	Lookup  LookupFunc
}

// NewDetector uses os.LookupEnv.
func NewDetector(markers ...string) *Detector {
	return &Detector{Markers: markers, Lookup: os.LookupEnv}
}

func (d *Detector) Detect() Environment {
	lookup := d.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, marker := range d.Markers {
		if v, ok := lookup(marker); ok && v != "" {
			return CI
		}
	}
	return Local
}
