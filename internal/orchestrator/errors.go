package orchestrator

import (
	"errors"
	"fmt"
)

// ErrDriverFailure matches every *DriverFailure.
var ErrDriverFailure = errors.New("driver failure")

// DriverFailure reports a driver run that did not leave its completion
// marker, or that could not be attempted at all.
type DriverFailure struct {
	Driver string
	RunDir string
	// Index is the forecast-hour index of the failed run, or -1 for the
	// initial-condition run.
	Index int
	Err   error
}

func (e *DriverFailure) Error() string {
	where := "initial-condition run"
	if e.Index >= 0 {
		where = fmt.Sprintf("boundary run %d", e.Index)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed in %s: %v", e.Driver, where, e.RunDir, e.Err)
	}
	return fmt.Sprintf("%s %s failed in %s: completion marker is missing", e.Driver, where, e.RunDir)
}

func (e *DriverFailure) Unwrap() error { return e.Err }

func (e *DriverFailure) Is(target error) bool { return target == ErrDriverFailure }
