package vardefs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is either a scalar string or an ordered sequence of strings.
type Value struct {
	Scalar   string
	Sequence []string
	IsSeq    bool
}

// String renders the value the way it would appear in the source file.
func (v Value) String() string {
	if v.IsSeq {
		return "(" + strings.Join(v.Sequence, " ") + ")"
	}
	return v.Scalar
}

// Table maps variable names to their parsed values. It is read-only once
// returned by Parse.
type Table map[string]Value

// Names returns the defined variable names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Scalar returns the scalar value of name.
func (t Table) Scalar(name string) (string, error) {
	v, ok := t[name]
	if !ok {
		return "", fmt.Errorf("variable %q is not defined", name)
	}
	if v.IsSeq {
		return "", fmt.Errorf("variable %q is a sequence, not a scalar", name)
	}
	return v.Scalar, nil
}

// Sequence returns a copy of the sequence value of name.
func (t Table) Sequence(name string) ([]string, error) {
	v, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("variable %q is not defined", name)
	}
	if !v.IsSeq {
		return nil, fmt.Errorf("variable %q is a scalar, not a sequence", name)
	}
	return append([]string(nil), v.Sequence...), nil
}

// Ints returns the sequence value of name parsed as integers.
func (t Table) Ints(name string) ([]int, error) {
	seq, err := t.Sequence(name)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(seq))
	for i, s := range seq {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("variable %q entry %d: %w", name, i, err)
		}
		out = append(out, n)
	}
	return out, nil
}
