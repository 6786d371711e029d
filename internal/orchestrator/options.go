package orchestrator

import (
	"fmt"

	"github.com/vk/chgresrun/internal/staging"
)

// DefaultICSTask is the task block name that selects the initial-condition branch.
const DefaultICSTask = "task_make_ics"

// Options tune a Controller.
type Options struct {
	// ICSTask is compared with the last key-path segment to pick the
	// initial-condition branch.
	ICSTask string
	Policy  staging.Policy
	// BoundaryGroup is the first forecast-hour index the loop runs and
	// BoundaryGroupCount the stride, so several jobs can split the hours.
	BoundaryGroup      int
	BoundaryGroupCount int
	// DryRun resolves configuration and plans staging without running the
	// driver or touching the filesystem.
	DryRun bool
}

// DefaultOptions runs every forecast hour with the default staging policy.
func DefaultOptions() Options {
	return Options{
		ICSTask:            DefaultICSTask,
		Policy:             staging.DefaultPolicy(),
		BoundaryGroup:      0,
		BoundaryGroupCount: 1,
	}
}

// Validate checks the options for values the control loop cannot use.
func (o Options) Validate() error {
	if o.ICSTask == "" {
		return fmt.Errorf("ICS task name must not be empty")
	}
	if o.BoundaryGroup < 0 {
		return fmt.Errorf("boundary group must be >= 0, got %d", o.BoundaryGroup)
	}
	if o.BoundaryGroupCount < 1 {
		return fmt.Errorf("boundary group count must be >= 1, got %d", o.BoundaryGroupCount)
	}
	return o.Policy.Validate()
}
