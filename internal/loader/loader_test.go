package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/zclconf/go-cty/cty"
)

func requireTreeEqual(t *testing.T, want, got cty.Value) {
	t.Helper()
	require.True(t, want.RawEquals(got), "trees differ\nwant: %#v\ngot:  %#v", want, got)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse_ScalarTypes(t *testing.T) {
	src := `
workflow:
  CRES: C403
  SDF_USES_RUC_LSM: true
  DT_ATMOS: 36
  ratio: 0.25
  EXPT_BASEDIR: ~
  DATE_FIRST_CYCL: 2024-07-15
task_get_extrn_lbcs:
  EXTRN_MDL_LBCS_OFFSET_HRS: 6
  fhrs: [6, 9, "12"]
`
	got, err := Parse([]byte(src))
	require.NoError(t, err)

	want := configtree.MustFromGo(map[string]any{
		"workflow": map[string]any{
			"CRES":             "C403",
			"SDF_USES_RUC_LSM": true,
			"DT_ATMOS":         36,
			"ratio":            0.25,
			"EXPT_BASEDIR":     nil,
			"DATE_FIRST_CYCL":  "2024-07-15",
		},
		"task_get_extrn_lbcs": map[string]any{
			"EXTRN_MDL_LBCS_OFFSET_HRS": 6,
			"fhrs":                      []any{6, 9, "12"},
		},
	})
	requireTreeEqual(t, want, got)
}

func TestParse_AnchorsAndMergeKeys(t *testing.T) {
	src := `
defaults: &defaults
  rundir: /work/base
  execution:
    executable: chgres_cube
task_make_lbcs:
  chgres_cube:
    <<: *defaults
    rundir: /work/lbcs
`
	got, err := Parse([]byte(src))
	require.NoError(t, err)

	rundir, err := configtree.String(got, keypath.MustParse("task_make_lbcs.chgres_cube.rundir"))
	require.NoError(t, err)
	assert.Equal(t, "/work/lbcs", rundir, "explicit keys win over merged ones")

	exe, err := configtree.String(got, keypath.MustParse("task_make_lbcs.chgres_cube.execution.executable"))
	require.NoError(t, err)
	assert.Equal(t, "chgres_cube", exe)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "top-level sequence", src: "- a\n- b\n", wantErr: "must be a mapping"},
		{name: "top-level scalar", src: "just text\n", wantErr: "must be a mapping"},
		{name: "invalid syntax", src: "a: [1, 2\n", wantErr: "failed to parse YAML"},
		{name: "non-finite float", src: "a: .nan\n", wantErr: "non-finite"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	got, err := Parse([]byte("# only a comment\n"))
	require.NoError(t, err)
	requireTreeEqual(t, cty.EmptyObjectVal, got)
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "config.yaml", `
workflow:
  CRES: C403
  PREDEF_GRID_NAME: RRFS_CONUS_3km
user:
  RUN_ENVIR: community
`)
	overrideDir := filepath.Join(dir, "overrides")
	writeFile(t, overrideDir, "10-env.yml", "user:\n  RUN_ENVIR: nco\n")
	writeFile(t, overrideDir, "20-grid.yaml", "workflow:\n  CRES: C3357\n")
	writeFile(t, overrideDir, "notes.txt", "ignored: true\n")

	got, err := New().Load(context.Background(), base, overrideDir)
	require.NoError(t, err)

	want := configtree.MustFromGo(map[string]any{
		"workflow": map[string]any{
			"CRES":             "C3357",
			"PREDEF_GRID_NAME": "RRFS_CONUS_3km",
		},
		"user": map[string]any{"RUN_ENVIR": "nco"},
	})
	requireTreeEqual(t, want, got)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New().Load(context.Background(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")

	_, err = New().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no YAML configuration files")

	bad := writeFile(t, dir, "bad.yaml", "- not\n- a mapping\n")
	_, err = New().Load(context.Background(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
