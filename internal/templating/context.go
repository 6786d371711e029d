package templating

import (
	"os"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
)

// Names of the variables a RunContext contributes to template evaluation.
const (
	VarEnv      = "env"
	VarCycle    = "cycle"
	VarMember   = "member"
	VarLeadtime = "leadtime"
)

// RunContext is the immutable per-invocation substitution context. The With
// methods return modified copies; the receiver never changes.
type RunContext struct {
	cycle       time.Time
	member      string
	leadtime    int
	hasLeadtime bool
	env         map[string]string
}

// NewRunContext creates a context for one cycle and ensemble member with an
// empty environment.
func NewRunContext(cycle time.Time, member string) RunContext {
	return RunContext{cycle: cycle.UTC(), member: member}
}

// Cycle returns the cycle timestamp in UTC.
func (rc RunContext) Cycle() time.Time { return rc.cycle }

// Member returns the ensemble member identifier.
func (rc RunContext) Member() string { return rc.member }

// Leadtime returns the forecast hour and whether one is set.
func (rc RunContext) Leadtime() (int, bool) { return rc.leadtime, rc.hasLeadtime }

// Env returns a copy of the captured environment.
func (rc RunContext) Env() map[string]string {
	out := make(map[string]string, len(rc.env))
	for k, v := range rc.env {
		out[k] = v
	}
	return out
}

// WithLeadtime returns a copy carrying the given forecast hour.
func (rc RunContext) WithLeadtime(hours int) RunContext {
	rc.leadtime = hours
	rc.hasLeadtime = true
	return rc
}

// WithEnv returns a copy whose environment is the receiver's merged with env.
func (rc RunContext) WithEnv(env map[string]string) RunContext {
	merged := rc.Env()
	for k, v := range env {
		merged[k] = v
	}
	rc.env = merged
	return rc
}

// WithEnvVar returns a copy with a single environment variable set.
func (rc RunContext) WithEnvVar(key, value string) RunContext {
	return rc.WithEnv(map[string]string{key: value})
}

// variables renders the context as HCL evaluation variables.
func (rc RunContext) variables() map[string]cty.Value {
	envAttrs := make(map[string]cty.Value, len(rc.env))
	for k, v := range rc.env {
		envAttrs[k] = cty.StringVal(v)
	}

	vars := map[string]cty.Value{
		VarEnv:    cty.ObjectVal(envAttrs),
		VarCycle:  cty.StringVal(rc.cycle.Format(time.RFC3339)),
		VarMember: cty.StringVal(rc.member),
	}
	if rc.hasLeadtime {
		vars[VarLeadtime] = cty.NumberIntVal(int64(rc.leadtime))
	}
	return vars
}

// EnvFromOS snapshots the process environment.
func EnvFromOS() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			env[pair[0]] = pair[1]
		}
	}
	return env
}
