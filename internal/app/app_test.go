package app_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/chgresrun/internal/app"
	"github.com/vk/chgresrun/internal/cli"
	"github.com/vk/chgresrun/internal/orchestrator"
	"github.com/vk/chgresrun/internal/testutil"
)

func parseConfig(t *testing.T, args ...string) *app.Config {
	t.Helper()
	cfg, shouldExit, err := cli.Parse(args, &testutil.SafeBuffer{})
	require.NoError(t, err)
	require.False(t, shouldExit)
	return cfg
}

func TestDefaultDrivers(t *testing.T) {
	assert.Equal(t, []string{"chgres_cube"}, app.DefaultDrivers().Names())
}

func TestApp_RunLBC(t *testing.T) {
	exp := testutil.WriteExperiment(t, testutil.ExperimentOptions{
		Task:  "task_make_lbcs",
		Files: []string{"f000.grib2", "f006.grib2"},
		Hours: []int{0, 6},
	})
	fakes := &testutil.FakeDrivers{}
	cfg := parseConfig(t, "-c", exp.ConfigPath, "--cycle", "2024-07-15T18", "--key-path", "task_make_lbcs")

	result := testutil.RunApp(t, cfg, fakes.Registry())
	require.NoError(t, result.Err)

	assert.Len(t, fakes.Runs(), 2)
	assert.Equal(t, []string{
		"srw.t18z.gfs_bndy.tile7.f000.nc",
		"srw.t18z.gfs_bndy.tile7.f006.nc",
	}, testutil.StagedNames(t, exp.InputDir))
	testutil.AssertLogged(t, result, "Starting boundary loop.", "Run finished.")
}

func TestApp_RunStagesIntoParent(t *testing.T) {
	exp := testutil.WriteExperiment(t, testutil.ExperimentOptions{})
	fakes := &testutil.FakeDrivers{}
	cfg := parseConfig(t,
		"-c", exp.ConfigPath,
		"--cycle", "2024-07-15T18",
		"--key-path", "task_make_ics",
		"--staging-target", "parent",
		"--staging-mode", "copy",
	)

	result := testutil.RunApp(t, cfg, fakes.Registry())
	require.NoError(t, result.Err)

	parent := filepath.Dir(exp.RunDir)
	assert.Contains(t, testutil.StagedNames(t, parent), "srw.t18z.gfs_ctrl.nc")
	assert.Equal(t, "run 1\n", testutil.ReadStaged(t, parent, "srw.t18z.gfs_ctrl.nc"))
}

func TestApp_RunDriverFailure(t *testing.T) {
	exp := testutil.WriteExperiment(t, testutil.ExperimentOptions{})
	fakes := &testutil.FakeDrivers{FailOnRun: 1}
	cfg := parseConfig(t, "-c", exp.ConfigPath, "--cycle", "2024-07-15T18", "--key-path", "task_make_ics")

	result := testutil.RunApp(t, cfg, fakes.Registry())
	require.ErrorIs(t, result.Err, orchestrator.ErrDriverFailure)
	testutil.AssertLogged(t, result, "Completion marker missing after driver run.", "state=FAILED")
}

func TestApp_RunUnknownDriver(t *testing.T) {
	exp := testutil.WriteExperiment(t, testutil.ExperimentOptions{})
	cfg := parseConfig(t, "-c", exp.ConfigPath, "--cycle", "2024-07-15T18", "--key-path", "task_make_ics", "--driver", "orog")

	result := testutil.RunApp(t, cfg, nil)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), `unknown driver "orog"`)
}

func TestApp_RunMissingConfig(t *testing.T) {
	cfg := parseConfig(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"), "--cycle", "2024-07-15T18", "--key-path", "task_make_ics")

	result := testutil.RunApp(t, cfg, nil)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "failed to load configuration")
}
