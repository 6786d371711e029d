package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/vk/chgresrun/internal/naming"
	"github.com/zclconf/go-cty/cty"
)

var testCycle = time.Date(2024, 7, 15, 18, 0, 0, 0, time.UTC)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chgres_cube.exe")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\n"+body+"\n"), 0o755))
	return path
}

func taskTree(rundir, executable string, extra map[string]any) cty.Value {
	block := map[string]any{
		"rundir": rundir,
		"execution": map[string]any{
			"executable": executable,
		},
		"namelist": map[string]any{
			"update_values": map[string]any{
				"config": map[string]any{
					"cycle_hour":  18,
					"convert_atm": true,
					"input_type":  "grib2",
					"varmap_file": "/fix/GSDphys_var_map.txt",
				},
			},
		},
	}
	for k, v := range extra {
		block[k] = v
	}
	return configtree.MustFromGo(map[string]any{
		"task_make_ics": map[string]any{"chgres_cube": block},
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(ChgresCubeName, NewChgresCube)

	f, err := r.Lookup(ChgresCubeName)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, []string{ChgresCubeName}, r.Names())

	_, err = r.Lookup("orog")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "orog"`)

	assert.Panics(t, func() { r.Register(ChgresCubeName, NewChgresCube) })
}

func TestNewChgresCube_ConfigErrors(t *testing.T) {
	path := keypath.Path{"task_make_ics"}

	testCases := []struct {
		name    string
		tree    cty.Value
		wantErr string
	}{
		{
			name:    "missing block",
			tree:    configtree.MustFromGo(map[string]any{"task_make_ics": map[string]any{}}),
			wantErr: "task_make_ics.chgres_cube",
		},
		{
			name: "missing rundir",
			tree: configtree.MustFromGo(map[string]any{
				"task_make_ics": map[string]any{"chgres_cube": map[string]any{
					"execution": map[string]any{"executable": "/bin/true"},
				}},
			}),
			wantErr: "rundir",
		},
		{
			name: "missing executable",
			tree: configtree.MustFromGo(map[string]any{
				"task_make_ics": map[string]any{"chgres_cube": map[string]any{"rundir": "/tmp/run"}},
			}),
			wantErr: "execution.executable",
		},
		{
			name: "base file rejected",
			tree: taskTree("/tmp/run", "/bin/true", map[string]any{
				"namelist": map[string]any{"base_file": "/fix/fort.41"},
			}),
			wantErr: "namelist.base_file is not supported",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChgresCube(context.Background(), tc.tree, testCycle, path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestChgresCube_RunSuccess(t *testing.T) {
	rundir := filepath.Join(t.TempDir(), "make_ics")
	exe := writeStub(t, "echo atm > out.atm.tile7.nc")

	d, err := NewChgresCube(context.Background(), taskTree(rundir, exe, nil), testCycle, keypath.Path{"task_make_ics"})
	require.NoError(t, err)
	assert.Equal(t, ChgresCubeName, d.Name())
	assert.Equal(t, rundir, d.RunDir())

	require.NoError(t, d.Run(context.Background()))

	assert.FileExists(t, filepath.Join(rundir, naming.DoneMarker(ChgresCubeName)))
	assert.FileExists(t, filepath.Join(rundir, "out.atm.tile7.nc"))
	assert.FileExists(t, filepath.Join(rundir, "runscript.chgres_cube.out"))

	nml, err := os.ReadFile(filepath.Join(rundir, NamelistFile))
	require.NoError(t, err)
	assert.Contains(t, string(nml), "&config\n")
	assert.Contains(t, string(nml), "    input_type = 'grib2'\n")
	assert.Contains(t, string(nml), "    cycle_hour = 18\n")
}

func TestChgresCube_RelativeRundir(t *testing.T) {
	exe := writeStub(t, "exit 0")
	dir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	d, err := NewChgresCube(context.Background(), taskTree(filepath.Join("run", "ics"), exe, nil), testCycle, keypath.Path{"task_make_ics"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run", "ics"), d.RunDir())

	require.NoError(t, d.Run(context.Background()))

	assert.FileExists(t, filepath.Join(dir, "run", "ics", naming.DoneMarker(ChgresCubeName)))
	assert.FileExists(t, filepath.Join(dir, "run", "ics", NamelistFile))
}

func TestChgresCube_RunFailureLeavesNoMarker(t *testing.T) {
	rundir := filepath.Join(t.TempDir(), "make_lbcs")
	require.NoError(t, os.MkdirAll(rundir, 0o755))
	stale := filepath.Join(rundir, naming.DoneMarker(ChgresCubeName))
	require.NoError(t, os.WriteFile(stale, nil, 0o644))
	exe := writeStub(t, "echo boom >&2\nexit 3")

	d, err := NewChgresCube(context.Background(), taskTree(rundir, exe, nil), testCycle, keypath.Path{"task_make_ics"})
	require.NoError(t, err)

	require.NoError(t, d.Run(context.Background()), "a non-zero exit is reported through the missing marker")
	assert.NoFileExists(t, stale)

	out, err := os.ReadFile(filepath.Join(rundir, "runscript.chgres_cube.out"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "boom")
}

func TestChgresCube_Runscript(t *testing.T) {
	tree := taskTree("/tmp/run dir", "/opt/bin/chgres_cube", map[string]any{
		"execution": map[string]any{
			"executable": "/opt/bin/chgres_cube",
			"mpicmd":     "srun",
			"mpiargs":    []string{"--export=ALL", "--ntasks", "48"},
			"envcmds":    []string{"module load build_hera_intel", "ulimit -s unlimited"},
		},
	})
	d, err := NewChgresCube(context.Background(), tree, testCycle, keypath.Path{"task_make_ics"})
	require.NoError(t, err)

	want := "#!/bin/bash\n\n" +
		"module load build_hera_intel\n" +
		"ulimit -s unlimited\n\n" +
		"time srun --export=ALL --ntasks 48 /opt/bin/chgres_cube\n" +
		"test $? -eq 0 && touch runscript.chgres_cube.done\n"
	assert.Equal(t, want, d.(*ChgresCube).renderRunscript())
	assert.Equal(t, "/tmp/run dir/runscript.chgres_cube", d.(*ChgresCube).Runscript())
}
