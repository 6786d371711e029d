package orchestrator

import "fmt"

// State is a step of the control loop.
type State int

const (
	Init State = iota
	ResolveBase
	ICSBranch
	LBCLoop
	Invoke
	Stage
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case ResolveBase:
		return "RESOLVE_BASE"
	case ICSBranch:
		return "ICS_BRANCH"
	case LBCLoop:
		return "LBC_LOOP"
	case Invoke:
		return "INVOKE"
	case Stage:
		return "STAGE"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
