package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/chgresrun/internal/configtree"
	"github.com/vk/chgresrun/internal/ctxlog"
	"github.com/vk/chgresrun/internal/driver"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/vk/chgresrun/internal/naming"
	"github.com/vk/chgresrun/internal/staging"
	"github.com/vk/chgresrun/internal/templating"
	"github.com/vk/chgresrun/internal/vardefs"
	"github.com/zclconf/go-cty/cty"
)

// envCRES is the environment name the grid resolution is published under
// for templates.
const envCRES = "CRES"

// Stager creates staged destinations inside a target directory.
type Stager interface {
	Stage(ctx context.Context, targetDir string, links staging.LinkSet) error
}

// Request identifies one control-loop run.
type Request struct {
	// Tree is the raw, unresolved experiment configuration.
	Tree    cty.Value
	Cycle   time.Time
	Member  string
	KeyPath keypath.Path
	// Env is the environment templates see as env.*.
	Env map[string]string
}

// Iteration records the overlay one driver run was given.
type Iteration struct {
	Index int
	// ForecastHour is nil for the initial-condition run.
	ForecastHour *int
	Overlay      cty.Value
}

// Result describes what a control-loop run did, including on failure.
type Result struct {
	Trail      []State
	Iterations []Iteration
	StageDir   string
	// Staged lists the destination names staged, in staging order.
	Staged []string
}

// State returns the last state entered.
func (r *Result) State() State {
	if len(r.Trail) == 0 {
		return Init
	}
	return r.Trail[len(r.Trail)-1]
}

func (r *Result) enter(s State) {
	r.Trail = append(r.Trail, s)
}

// Controller runs the control loop for one task block.
type Controller struct {
	factory  driver.Factory
	resolver *templating.Resolver
	stager   Stager
	opts     Options
}

// New creates a Controller that builds drivers with factory and stages
// outputs with stager.
func New(factory driver.Factory, stager Stager, opts Options) (*Controller, error) {
	if factory == nil {
		return nil, errors.New("driver factory must not be nil")
	}
	if stager == nil {
		return nil, errors.New("stager must not be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &Controller{
		factory:  factory,
		resolver: templating.New(),
		stager:   stager,
		opts:     opts,
	}, nil
}

// base is everything the branches share after RESOLVE_BASE.
type base struct {
	rc          templating.RunContext
	resolved    cty.Value
	driverName  string
	rundir      string
	task        cty.Value
	vars        vardefs.Table
	inputType   string
	fields      naming.Fields
	overlayPath keypath.Path
}

// Run executes the control loop. The returned Result is never nil; on error
// its final state is Failed.
func (c *Controller) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	res.enter(Init)

	if err := c.run(ctx, req, res); err != nil {
		res.enter(Failed)
		return res, err
	}
	res.enter(Done)
	return res, nil
}

func (c *Controller) run(ctx context.Context, req Request, res *Result) error {
	if len(req.KeyPath) == 0 {
		return errors.New("key path must name a task block")
	}
	ctx, logger := ctxlog.With(ctx,
		"key_path", req.KeyPath.String(),
		"cycle", req.Cycle.UTC().Format(time.RFC3339),
		"member", req.Member,
	)

	res.enter(ResolveBase)
	b, err := c.resolveBase(ctx, req)
	if err != nil {
		return err
	}
	logger.Info("Will run in run directory.", "driver", b.driverName, "rundir", b.rundir)

	if req.KeyPath.Last() == c.opts.ICSTask {
		res.enter(ICSBranch)
		return c.runICS(ctx, req, b, res)
	}
	res.enter(LBCLoop)
	return c.runLBC(ctx, req, b, res)
}

func (c *Controller) resolveBase(ctx context.Context, req Request) (*base, error) {
	rc := templating.NewRunContext(req.Cycle, req.Member).WithEnv(req.Env)
	partial, err := c.resolver.ResolveFor(ctx, req.Tree, rc, pathCRES)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", pathCRES, err)
	}
	cres, err := configtree.String(partial, pathCRES)
	if err != nil {
		return nil, err
	}
	rc = rc.WithEnvVar(envCRES, cres)

	resolved, err := c.resolver.Resolve(ctx, req.Tree, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration: %w", err)
	}

	d, err := c.factory(ctx, resolved, req.Cycle, req.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to configure driver: %w", err)
	}

	task, err := keypath.WalkTree(resolved, req.KeyPath)
	if err != nil {
		return nil, err
	}
	metadata, err := configtree.String(task, pathMetadata)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", req.KeyPath, err)
	}
	vars, err := vardefs.ParseFile(metadata)
	if err != nil {
		return nil, err
	}

	overlayPath := req.KeyPath.Join(append([]string{d.Name()}, pathNamelistConfig...)...)
	inputType, err := configtree.String(resolved, overlayPath.Join(keyInputType))
	if err != nil {
		return nil, err
	}

	fields, err := readFields(resolved, req)
	if err != nil {
		return nil, err
	}

	return &base{
		rc:          rc,
		resolved:    resolved,
		driverName:  d.Name(),
		rundir:      d.RunDir(),
		task:        task,
		vars:        vars,
		inputType:   inputType,
		fields:      fields,
		overlayPath: overlayPath,
	}, nil
}

func readFields(resolved cty.Value, req Request) (naming.Fields, error) {
	f := naming.Fields{Cycle: req.Cycle, Member: req.Member}
	var err error
	if f.Network, err = configtree.String(resolved, pathNetwork); err != nil {
		return f, err
	}
	if f.Tile, err = configtree.Int(resolved, pathTile); err != nil {
		return f, err
	}
	if f.Halo, err = configtree.Int(resolved, pathHalo); err != nil {
		return f, err
	}
	if f.Ensemble, err = configtree.OptionalBool(resolved, pathEnsemble, false); err != nil {
		return f, err
	}
	runEnvir, err := configtree.OptionalString(resolved, pathRunEnvir, "")
	if err != nil {
		return f, err
	}
	f.Operational = strings.EqualFold(runEnvir, "nco")
	return f, nil
}

func (c *Controller) runICS(ctx context.Context, req Request, b *base, res *Result) error {
	logger := ctxlog.FromContext(ctx)

	files, err := b.vars.Sequence(varFileNames)
	if err != nil {
		return fmt.Errorf("var-defs file: %w", err)
	}
	overrides, err := readModelOverrides(b.resolved, pathICSModel)
	if err != nil {
		return err
	}
	overlay, err := icsOverlay(b.inputType, files, overrides)
	if err != nil {
		return err
	}
	res.Iterations = append(res.Iterations, Iteration{Index: -1, Overlay: overlay})

	threaded, err := configtree.Overlay(req.Tree, b.overlayPath, templating.Escape(overlay))
	if err != nil {
		return err
	}

	res.enter(Invoke)
	rundir, err := c.invoke(ctx, threaded, b.rc, req, -1)
	if err != nil {
		return err
	}

	sources, err := icsSources(b.task, b.fields.Tile)
	if err != nil {
		return err
	}
	links := make(staging.LinkSet)
	for i, kind := range naming.ICSKinds {
		links.Add(b.fields.ICSName(kind), filepath.Join(rundir, sources[i]))
	}

	res.enter(Stage)
	if err := c.stage(ctx, rundir, links, res); err != nil {
		return err
	}
	logger.Info("Initial conditions complete.", "staged", len(links))
	return nil
}

// icsSources returns the run-directory names of the four initial-condition
// outputs, from output_file_labels when the task sets it.
func icsSources(task cty.Value, tile int) ([]string, error) {
	labels, err := configtree.Strings(task, pathLabels)
	if errors.Is(err, keypath.ErrMissingKeyPath) {
		out := make([]string, 0, len(naming.ICSKinds))
		for _, kind := range naming.ICSKinds {
			out = append(out, naming.ICSSource(kind, tile))
		}
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if len(labels) != len(naming.ICSKinds) {
		return nil, fmt.Errorf("%s must list %d files, got %d", pathLabels, len(naming.ICSKinds), len(labels))
	}
	return labels, nil
}

func (c *Controller) runLBC(ctx context.Context, req Request, b *base, res *Result) error {
	logger := ctxlog.FromContext(ctx)

	files, err := b.vars.Sequence(varFileNames)
	if err != nil {
		return fmt.Errorf("var-defs file: %w", err)
	}
	hours, err := b.vars.Ints(varFcstHours)
	if err != nil {
		return fmt.Errorf("var-defs file: %w", err)
	}
	offset, err := configtree.Int(b.resolved, pathLBCOffset)
	if err != nil {
		return err
	}
	overrides, err := readModelOverrides(b.resolved, pathLBCModel)
	if err != nil {
		return err
	}

	numHours := len(hours)
	logger.Info("Starting boundary loop.", "hours", numHours, "group", c.opts.BoundaryGroup, "stride", c.opts.BoundaryGroupCount)

	deferred := make(staging.LinkSet)
	threaded := req.Tree
	var lastRundir string
	for i := c.opts.BoundaryGroup; i < numHours; i += c.opts.BoundaryGroupCount {
		if err := ctx.Err(); err != nil {
			return err
		}
		hour := hours[i]
		iterLogger := logger.With("index", i, "forecast_hour", hour)

		overlay, err := lbcOverlay(b.inputType, files, i, overrides)
		if err != nil {
			return err
		}
		res.Iterations = append(res.Iterations, Iteration{Index: i, ForecastHour: &hour, Overlay: overlay})

		threaded, err = configtree.Overlay(threaded, b.overlayPath, templating.Escape(overlay))
		if err != nil {
			return err
		}

		fcst, err := naming.ForecastOffset(hours, i, offset)
		if err != nil {
			return err
		}
		name, err := b.fields.LBCName(fcst)
		if err != nil {
			return err
		}
		held, err := naming.LBCHeldName(fcst)
		if err != nil {
			return err
		}

		res.enter(Invoke)
		rundir, err := c.invoke(ctx, threaded, b.rc.WithLeadtime(hour), req, i)
		if err != nil {
			return err
		}
		lastRundir = rundir

		source := filepath.Join(rundir, held)
		if !c.opts.DryRun {
			if err := os.Rename(filepath.Join(rundir, naming.LBCSource), source); err != nil {
				return fmt.Errorf("failed to keep boundary output of forecast hour %d: %w", hour, err)
			}
		}

		links := staging.LinkSet{name: source}
		if c.opts.Policy.Cadence == staging.Deferred {
			deferred.Merge(links)
			iterLogger.Debug("Deferred staging of boundary file.", "name", name)
			continue
		}
		res.enter(Stage)
		if err := c.stage(ctx, rundir, links, res); err != nil {
			return err
		}
	}

	if c.opts.Policy.Cadence == staging.Deferred && len(deferred) > 0 {
		res.enter(Stage)
		if err := c.stage(ctx, lastRundir, deferred, res); err != nil {
			return err
		}
	}
	logger.Info("Boundary loop complete.", "staged", len(res.Staged))
	return nil
}

// invoke resolves the threaded tree for one run, builds a fresh driver from
// it, runs it and checks its completion marker. It returns the run directory.
func (c *Controller) invoke(ctx context.Context, threaded cty.Value, rc templating.RunContext, req Request, index int) (string, error) {
	logger := ctxlog.FromContext(ctx)

	resolved, err := c.resolver.Resolve(ctx, threaded, rc)
	if err != nil {
		return "", fmt.Errorf("failed to resolve configuration: %w", err)
	}
	d, err := c.factory(ctx, resolved, req.Cycle, req.KeyPath)
	if err != nil {
		return "", fmt.Errorf("failed to configure driver: %w", err)
	}
	rundir := d.RunDir()

	if c.opts.DryRun {
		logger.Info("Dry run, not running driver.", "driver", d.Name(), "rundir", rundir, "index", index)
		return rundir, nil
	}

	if err := d.Run(ctx); err != nil {
		return "", &DriverFailure{Driver: d.Name(), RunDir: rundir, Index: index, Err: err}
	}
	marker := filepath.Join(rundir, naming.DoneMarker(d.Name()))
	if _, err := os.Stat(marker); err != nil {
		logger.Error("Completion marker missing after driver run.", "marker", marker)
		return "", &DriverFailure{Driver: d.Name(), RunDir: rundir, Index: index}
	}
	return rundir, nil
}

func (c *Controller) stage(ctx context.Context, rundir string, links staging.LinkSet, res *Result) error {
	dir := c.opts.Policy.Dir(rundir)
	res.StageDir = dir
	if c.opts.DryRun {
		for _, name := range links.Names() {
			ctxlog.FromContext(ctx).Info("Dry run, would stage.", "name", name, "source", links[name], "target_dir", dir)
		}
		return nil
	}
	if err := c.stager.Stage(ctx, dir, links); err != nil {
		return fmt.Errorf("failed to stage outputs: %w", err)
	}
	res.Staged = append(res.Staged, links.Names()...)
	return nil
}
