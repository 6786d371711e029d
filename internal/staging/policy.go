package staging

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Cadence decides when the lateral-boundary loop flushes its links.
type Cadence string

const (
	// PerIteration stages each boundary file as soon as it is produced.
	PerIteration Cadence = "per-iteration"
	// Deferred stages every boundary file once, after the whole loop succeeded.
	Deferred Cadence = "deferred"
)

// Target decides where staged files land relative to the run directory.
type Target string

const (
	// TargetInput stages into an INPUT directory next to the run directory.
	TargetInput Target = "input"
	// TargetParent stages into the run directory's parent.
	TargetParent Target = "parent"
)

// Mode decides how a destination is created.
type Mode string

const (
	ModeLink Mode = "link"
	ModeCopy Mode = "copy"
)

// Policy bundles the staging choices for one run.
type Policy struct {
	Cadence Cadence
	Target  Target
	Mode    Mode
}

// DefaultPolicy stages every iteration by symlink into a sibling INPUT directory.
func DefaultPolicy() Policy {
	return Policy{Cadence: PerIteration, Target: TargetInput, Mode: ModeLink}
}

// Dir returns the directory files are staged into for the given run directory.
func (p Policy) Dir(rundir string) string {
	parent := filepath.Dir(filepath.Clean(rundir))
	if p.Target == TargetParent {
		return parent
	}
	return filepath.Join(parent, "INPUT")
}

// Validate checks that every field holds a known value.
func (p Policy) Validate() error {
	if _, err := ParseCadence(string(p.Cadence)); err != nil {
		return err
	}
	if _, err := ParseTarget(string(p.Target)); err != nil {
		return err
	}
	_, err := ParseMode(string(p.Mode))
	return err
}

// ParseCadence validates a cadence name.
func ParseCadence(s string) (Cadence, error) {
	switch c := Cadence(s); c {
	case PerIteration, Deferred:
		return c, nil
	}
	return "", fmt.Errorf("invalid staging cadence %q: must be %q or %q", s, PerIteration, Deferred)
}

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	switch tg := Target(s); tg {
	case TargetInput, TargetParent:
		return tg, nil
	}
	return "", fmt.Errorf("invalid staging target %q: must be %q or %q", s, TargetInput, TargetParent)
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLink, ModeCopy:
		return m, nil
	}
	return "", fmt.Errorf("invalid staging mode %q: must be %q or %q", s, ModeLink, ModeCopy)
}

// LinkSet maps destination names to source paths.
type LinkSet map[string]string

// Add records one destination. A later Add for the same name wins.
func (ls LinkSet) Add(name, source string) {
	ls[name] = source
}

// Merge copies every entry of other into ls.
func (ls LinkSet) Merge(other LinkSet) {
	for k, v := range other {
		ls[k] = v
	}
}

// Names returns the destination names in sorted order.
func (ls LinkSet) Names() []string {
	names := make([]string, 0, len(ls))
	for k := range ls {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
