package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/driver"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/vk/chgresrun/internal/naming"
	"github.com/zclconf/go-cty/cty"
)

// FakeRun records one call to a fake driver's Run.
type FakeRun struct {
	RunDir string
	// Namelist is the driver's namelist "config" group as resolved for this run.
	Namelist cty.Value
}

// FakeDrivers builds fake chgres_cube drivers that write placeholder outputs
// instead of running an executable. It is safe for concurrent use.
type FakeDrivers struct {
	// FailOnRun is the 1-based Run call that leaves no completion marker;
	// zero means every run succeeds.
	FailOnRun int
	// RunErr, when set, is returned by every Run without doing anything.
	RunErr error

	mu     sync.Mutex
	builds int
	runs   []FakeRun
}

// Factory returns a driver.Factory producing fake drivers.
func (f *FakeDrivers) Factory() driver.Factory {
	return func(ctx context.Context, tree cty.Value, cycle time.Time, path keypath.Path) (driver.Driver, error) {
		block, err := keypath.WalkTree(tree, path.Join(driver.ChgresCubeName))
		if err != nil {
			return nil, err
		}
		rundir, err := configtree.String(block, keypath.Path{"rundir"})
		if err != nil {
			return nil, err
		}
		nml, err := keypath.Walk(block, keypath.MustParse("namelist.update_values.config"))
		if err != nil {
			nml = cty.EmptyObjectVal
		}

		f.mu.Lock()
		f.builds++
		f.mu.Unlock()
		return &fakeDriver{owner: f, rundir: rundir, namelist: nml}, nil
	}
}

// Registry returns a registry holding the fake under the chgres_cube name.
func (f *FakeDrivers) Registry() *driver.Registry {
	reg := driver.NewRegistry()
	reg.Register(driver.ChgresCubeName, f.Factory())
	return reg
}

// Runs returns a copy of the recorded runs.
func (f *FakeDrivers) Runs() []FakeRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeRun(nil), f.runs...)
}

// Builds returns how many drivers the factory constructed.
func (f *FakeDrivers) Builds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

type fakeDriver struct {
	owner    *FakeDrivers
	rundir   string
	namelist cty.Value
}

func (d *fakeDriver) Name() string   { return driver.ChgresCubeName }
func (d *fakeDriver) RunDir() string { return d.rundir }

// Run writes every chgres_cube output with the run number as content and
// then the completion marker, unless this run is set up to fail.
func (d *fakeDriver) Run(ctx context.Context) error {
	f := d.owner
	if f.RunErr != nil {
		return f.RunErr
	}

	f.mu.Lock()
	f.runs = append(f.runs, FakeRun{RunDir: d.rundir, Namelist: d.namelist})
	n := len(f.runs)
	f.mu.Unlock()

	if err := os.MkdirAll(d.rundir, 0o755); err != nil {
		return err
	}
	marker := filepath.Join(d.rundir, naming.DoneMarker(driver.ChgresCubeName))
	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return err
	}
	if n == f.FailOnRun {
		return nil
	}

	content := []byte(fmt.Sprintf("run %d\n", n))
	for _, kind := range naming.ICSKinds {
		if err := os.WriteFile(filepath.Join(d.rundir, naming.ICSSource(kind, 7)), content, 0o644); err != nil {
			return err
		}
	}
	return os.WriteFile(marker, nil, 0o644)
}
