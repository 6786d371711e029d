package keypath

import (
	"errors"
	"fmt"
)

// Kind classifies a navigation failure.
type Kind int

const (
	// MissingKeyPath means a segment was absent from the tree.
	MissingKeyPath Kind = iota + 1
	// NotATree means a segment named a scalar or sequence where a tree was required.
	NotATree
)

func (k Kind) String() string {
	switch k {
	case MissingKeyPath:
		return "MissingKeyPath"
	case NotATree:
		return "NotATree"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	// ErrConfigPath matches every navigation failure.
	ErrConfigPath = errors.New("config path error")
	// ErrMissingKeyPath matches failures of kind MissingKeyPath.
	ErrMissingKeyPath = errors.New("missing key path")
	// ErrNotATree matches failures of kind NotATree.
	ErrNotATree = errors.New("not a tree")
)

// Error reports a failed walk. Path is the offending location: for
// MissingKeyPath the walk up to and including the absent segment, for
// NotATree the prefix ending at the non-tree value.
type Error struct {
	Kind Kind
	Path Path
}

func (e *Error) Error() string {
	switch e.Kind {
	case MissingKeyPath:
		return fmt.Sprintf("key path %q not found in config", e.Path.String())
	case NotATree:
		return fmt.Sprintf("value at key path %q is not a tree", e.Path.String())
	default:
		return fmt.Sprintf("invalid key path %q", e.Path.String())
	}
}

// Is lets errors.Is match the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfigPath:
		return true
	case ErrMissingKeyPath:
		return e.Kind == MissingKeyPath
	case ErrNotATree:
		return e.Kind == NotATree
	}
	return false
}
