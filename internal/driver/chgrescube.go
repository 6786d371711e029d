package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/ctxlog"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/vk/chgresrun/internal/namelist"
	"github.com/vk/chgresrun/internal/naming"
	"github.com/zclconf/go-cty/cty"
)

// ChgresCubeName is the registry name and config block name of the chgres_cube driver.
const ChgresCubeName = "chgres_cube"

// NamelistFile is the namelist chgres_cube reads from its working directory.
const NamelistFile = "fort.41"

var (
	pathRundir       = keypath.Path{"rundir"}
	pathExecutable   = keypath.Path{"execution", "executable"}
	pathMPICmd       = keypath.Path{"execution", "mpicmd"}
	pathMPIArgs      = keypath.Path{"execution", "mpiargs"}
	pathEnvCmds      = keypath.Path{"execution", "envcmds"}
	pathUpdateValues = keypath.Path{"namelist", "update_values"}
	pathNamelistBase = keypath.Path{"namelist", "base_file"}
)

// ChgresCube runs the chgres_cube executable through a generated runscript.
type ChgresCube struct {
	rundir     string
	executable string
	mpicmd     string
	mpiargs    []string
	envcmds    []string
	groups     cty.Value
}

// NewChgresCube is the Factory for the chgres_cube driver. Its block lives at
// <path>.chgres_cube in tree.
func NewChgresCube(ctx context.Context, tree cty.Value, cycle time.Time, path keypath.Path) (Driver, error) {
	block, err := keypath.WalkTree(tree, path.Join(ChgresCubeName))
	if err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: %w", err)
	}

	d := &ChgresCube{}
	rundir, err := configtree.String(block, pathRundir)
	if err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: %w", err)
	}
	if d.rundir, err = filepath.Abs(rundir); err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: rundir %q: %w", rundir, err)
	}
	if d.executable, err = configtree.String(block, pathExecutable); err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: %w", err)
	}
	if d.mpicmd, err = configtree.OptionalString(block, pathMPICmd, ""); err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: %w", err)
	}
	if d.mpiargs, err = optionalStrings(block, pathMPIArgs); err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: %w", err)
	}
	if d.envcmds, err = optionalStrings(block, pathEnvCmds); err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: %w", err)
	}

	if _, err := keypath.Walk(block, pathNamelistBase); err == nil {
		return nil, fmt.Errorf("chgres_cube driver config: %s is not supported, put every value under %s", pathNamelistBase, pathUpdateValues)
	}
	d.groups, err = keypath.WalkTree(block, pathUpdateValues)
	if errors.Is(err, keypath.ErrMissingKeyPath) {
		d.groups, err = cty.EmptyObjectVal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chgres_cube driver config: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("chgres_cube driver configured.", "cycle", cycle.UTC().Format(time.RFC3339), "rundir", d.rundir, "executable", d.executable)
	return d, nil
}

// Name implements Driver.
func (d *ChgresCube) Name() string { return ChgresCubeName }

// RunDir implements Driver.
func (d *ChgresCube) RunDir() string { return d.rundir }

// Runscript returns the path of the generated runscript.
func (d *ChgresCube) Runscript() string {
	return filepath.Join(d.rundir, "runscript."+ChgresCubeName)
}

// Run prepares the run directory and executes the runscript. A non-zero exit
// of the executable is logged but not returned; the missing completion
// marker is what reports it.
func (d *ChgresCube) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("driver", ChgresCubeName, "rundir", d.rundir)

	if err := os.MkdirAll(d.rundir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	marker := filepath.Join(d.rundir, naming.DoneMarker(ChgresCubeName))
	if err := os.Remove(marker); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale completion marker: %w", err)
	}

	nml, err := namelist.Marshal(d.groups)
	if err != nil {
		return fmt.Errorf("failed to render namelist: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.rundir, NamelistFile), nml, 0o644); err != nil {
		return fmt.Errorf("failed to write namelist: %w", err)
	}

	script := d.renderRunscript()
	if err := os.WriteFile(d.Runscript(), []byte(script), 0o755); err != nil {
		return fmt.Errorf("failed to write runscript: %w", err)
	}

	outPath := d.Runscript() + ".out"
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create runscript output file: %w", err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, "/bin/bash", d.Runscript())
	cmd.Dir = d.rundir
	cmd.Stdout = out
	cmd.Stderr = out

	logger.Info("Running chgres_cube.", "output", outPath)
	start := time.Now()
	err = cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		logger.Warn("Runscript exited with an error.", "exit_code", exitErr.ExitCode(), "elapsed", time.Since(start))
		return nil
	case err != nil:
		return fmt.Errorf("failed to execute runscript: %w", err)
	}
	logger.Info("Runscript finished.", "elapsed", time.Since(start))
	return nil
}

// renderRunscript builds the bash script that runs the executable and
// touches the completion marker only on success.
func (d *ChgresCube) renderRunscript() string {
	var sb strings.Builder
	sb.WriteString("#!/bin/bash\n\n")
	for _, cmd := range d.envcmds {
		sb.WriteString(cmd)
		sb.WriteString("\n")
	}
	if len(d.envcmds) > 0 {
		sb.WriteString("\n")
	}

	var argv []string
	if d.mpicmd != "" {
		argv = append(argv, d.mpicmd)
		argv = append(argv, d.mpiargs...)
	}
	argv = append(argv, d.executable)

	sb.WriteString("time " + shellquote.Join(argv...) + "\n")
	sb.WriteString("test $? -eq 0 && touch " + naming.DoneMarker(ChgresCubeName) + "\n")
	return sb.String()
}

func optionalStrings(tree cty.Value, p keypath.Path) ([]string, error) {
	out, err := configtree.Strings(tree, p)
	if errors.Is(err, keypath.ErrMissingKeyPath) {
		return nil, nil
	}
	return out, err
}
