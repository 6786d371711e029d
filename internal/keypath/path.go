package keypath

import (
	"fmt"
	"strings"
)

// Path is an ordered sequence of non-empty segments identifying a location
// in a configuration tree. The zero value addresses the root.
type Path []string

// Parse creates a Path from its dotted string representation. An empty
// string parses to the root path.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, nil
	}

	segments := strings.Split(raw, ".")
	p := make(Path, 0, len(segments))
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return nil, fmt.Errorf("key path %q contains an empty segment", raw)
		}
		p = append(p, segment)
	}
	return p, nil
}

// MustParse is like Parse but panics on malformed input. Intended for
// constant paths in code and tests.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String serializes the Path into its dotted representation.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Join returns a new Path with the given segments appended. The receiver is
// never aliased by the result.
func (p Path) Join(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Last returns the final segment, or "" for the root path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}
