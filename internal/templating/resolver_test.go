package templating

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/zclconf/go-cty/cty"
)

var testCycle = time.Date(2024, 7, 15, 18, 0, 0, 0, time.UTC)

func resolve(t *testing.T, tree cty.Value, rc RunContext) cty.Value {
	t.Helper()
	out, err := New().Resolve(context.Background(), tree, rc)
	require.NoError(t, err)
	return out
}

func str(t *testing.T, tree cty.Value, path string) string {
	t.Helper()
	s, err := configtree.String(tree, keypath.MustParse(path))
	require.NoError(t, err)
	return s
}

func TestResolve_NoTemplatesRoundTrip(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"workflow": map[string]any{"CRES": "C403", "FCST_LEN_HRS": 6, "flags": []any{true, "x"}},
		"nco":      map[string]any{"NET_default": "srw"},
	})
	out := resolve(t, tree, NewRunContext(testCycle, "000"))
	assert.True(t, tree.RawEquals(out))
}

func TestResolve_ContextVariables(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"task": map[string]any{
			"rundir":  "${env.EXPTDIR}/${formatdate(\"YYYYMMDDhh\", cycle)}/mem${member}",
			"fhr":     "f${format(\"%03d\", leadtime)}",
			"hour":    "${formatdate(\"hh\", cycle)}",
			"literal": "no templates here",
		},
	})
	rc := NewRunContext(testCycle, "001").
		WithEnvVar("EXPTDIR", "/expt").
		WithLeadtime(6)

	out := resolve(t, tree, rc)
	assert.Equal(t, "/expt/2024071518/mem001", str(t, out, "task.rundir"))
	assert.Equal(t, "f006", str(t, out, "task.fhr"))
	assert.Equal(t, "18", str(t, out, "task.hour"))
	assert.Equal(t, "no templates here", str(t, out, "task.literal"))
}

func TestResolve_SelfReferenceChain(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"user":     map[string]any{"EXPT_BASEDIR": "/work"},
		"workflow": map[string]any{"EXPTDIR": "${user.EXPT_BASEDIR}/test", "CRES": "C403"},
		"task_make_ics": map[string]any{
			"chgres_cube": map[string]any{
				"rundir": "${workflow.EXPTDIR}/${workflow.CRES}/make_ics",
			},
		},
	})
	out := resolve(t, tree, NewRunContext(testCycle, "000"))
	assert.Equal(t, "/work/test/C403/make_ics", str(t, out, "task_make_ics.chgres_cube.rundir"))
	assert.Equal(t, "/work/test", str(t, out, "workflow.EXPTDIR"))
}

func TestResolve_SingleInterpolationKeepsType(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"workflow": map[string]any{"FCST_LEN_HRS": 6},
		"task":     map[string]any{"hours": "${workflow.FCST_LEN_HRS}", "mixed": "h${workflow.FCST_LEN_HRS}"},
	})
	out := resolve(t, tree, NewRunContext(testCycle, "000"))

	hours, err := keypath.Walk(out, keypath.MustParse("task.hours"))
	require.NoError(t, err)
	assert.Equal(t, cty.Number, hours.Type())
	assert.Equal(t, "h6", str(t, out, "task.mixed"))
}

func TestResolve_TemplatesInsideSequences(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"nco":  map[string]any{"NET_default": "srw"},
		"list": []any{"${nco.NET_default}.a", "plain", 3},
	})
	out := resolve(t, tree, NewRunContext(testCycle, "000"))

	seq, err := configtree.Strings(out, keypath.MustParse("list"))
	require.NoError(t, err)
	assert.Equal(t, []string{"srw.a", "plain", "3"}, seq)
}

func TestResolve_ContextShadowsTopLevelKey(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"member": "from-tree",
		"task":   map[string]any{"m": "${member}"},
	})
	out := resolve(t, tree, NewRunContext(testCycle, "007"))
	assert.Equal(t, "007", str(t, out, "task.m"))
}

func TestResolve_UnresolvableIsFatal(t *testing.T) {
	testCases := []struct {
		name     string
		tree     cty.Value
		leafPath string
	}{
		{
			name:     "unknown variable",
			tree:     configtree.MustFromGo(map[string]any{"a": map[string]any{"b": "${nope.x}"}}),
			leafPath: "a.b",
		},
		{
			name:     "missing attribute",
			tree:     configtree.MustFromGo(map[string]any{"w": map[string]any{"x": 1}, "a": "${w.y}"}),
			leafPath: "a",
		},
		{
			name:     "missing environment variable",
			tree:     configtree.MustFromGo(map[string]any{"a": "${env.NOT_SET_ANYWHERE}"}),
			leafPath: "a",
		},
		{
			name:     "leadtime absent from context",
			tree:     configtree.MustFromGo(map[string]any{"a": "f${leadtime}"}),
			leafPath: "a",
		},
		{
			name:     "syntax error",
			tree:     configtree.MustFromGo(map[string]any{"a": "${unterminated"}),
			leafPath: "a",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Resolve(context.Background(), tc.tree, NewRunContext(testCycle, "000"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTemplateResolution)

			var resErr *ResolutionError
			require.True(t, errors.As(err, &resErr))
			assert.Equal(t, tc.leafPath, resErr.Path)
		})
	}
}

func TestResolve_CycleIsDetected(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"a": map[string]any{"x": "${b.y}"},
		"b": map[string]any{"y": "${a.x}"},
	})
	_, err := New().Resolve(context.Background(), tree, NewRunContext(testCycle, "000"))
	require.Error(t, err)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, "a.x", resErr.Path)
	assert.Contains(t, resErr.Error(), "cycle")
	assert.Contains(t, resErr.Error(), "a.x refers to b.y")
}

func TestResolve_InputUnmodified(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{"a": "${member}"})
	before := tree
	_ = resolve(t, tree, NewRunContext(testCycle, "001"))
	assert.True(t, before.RawEquals(tree))
	assert.Equal(t, "${member}", tree.GetAttr("a").AsString())
}

func TestEscape_SurvivesResolution(t *testing.T) {
	raw := configtree.MustFromGo(map[string]any{
		"files": []any{"weird${name}.grib2", "100%{x}"},
		"plain": "gfs.t12z.pgrb2.0p25.f000",
	})
	out := resolve(t, Escape(raw), NewRunContext(testCycle, "000"))
	assert.True(t, raw.RawEquals(out), "got %#v", out)
}

func TestRunContext_IsImmutable(t *testing.T) {
	base := NewRunContext(testCycle, "000").WithEnvVar("A", "1")
	derived := base.WithEnvVar("B", "2").WithLeadtime(3)

	_, hasLead := base.Leadtime()
	assert.False(t, hasLead)
	assert.Equal(t, map[string]string{"A": "1"}, base.Env())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, derived.Env())

	env := derived.Env()
	env["C"] = "3"
	assert.NotContains(t, derived.Env(), "C")
}

func TestResolveFor_OnlyPathAndDependencies(t *testing.T) {
	tree := configtree.MustFromGo(map[string]any{
		"user": map[string]any{"RES": 403, "GRID": "${format(\"C%d\", user.RES)}"},
		"workflow": map[string]any{
			"CRES":    "${user.GRID}",
			"EXPTDIR": "/expt/${workflow.CRES}",
		},
		"task": map[string]any{"mosaic": "${env.CRES}_mosaic.nc"},
	})

	out, err := New().ResolveFor(context.Background(), tree, NewRunContext(testCycle, "000"), keypath.MustParse("workflow.CRES"))
	require.NoError(t, err)
	assert.Equal(t, "C403", str(t, out, "workflow.CRES"))
	assert.Equal(t, "C403", str(t, out, "user.GRID"))
	assert.Equal(t, "/expt/${workflow.CRES}", str(t, out, "workflow.EXPTDIR"), "leaves outside the path stay as written")
	assert.Equal(t, "${env.CRES}_mosaic.nc", str(t, out, "task.mosaic"))

	_, err = New().Resolve(context.Background(), tree, NewRunContext(testCycle, "000"))
	require.Error(t, err, "the full tree needs env.CRES")

	full := resolve(t, tree, NewRunContext(testCycle, "000").WithEnvVar("CRES", "C403"))
	assert.Equal(t, "C403_mosaic.nc", str(t, full, "task.mosaic"))
}
