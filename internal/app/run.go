package app

import (
	"context"
	"fmt"

	"github.com/vk/chgresrun/internal/ctxlog"
	"github.com/vk/chgresrun/internal/orchestrator"
)

// Run loads the experiment configuration and runs the control loop for the
// configured task block. A failed driver run is returned as an
// *orchestrator.DriverFailure.
func (a *App) Run(ctx context.Context) error {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	tree, err := a.loader.Load(ctx, a.config.ConfigFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Experiment configuration loaded.", "files", a.config.ConfigFiles)

	factory, err := a.drivers.Lookup(a.config.Driver)
	if err != nil {
		return err
	}

	opts := orchestrator.DefaultOptions()
	opts.Policy = a.config.Staging
	opts.BoundaryGroup = a.config.BoundaryGroup
	opts.BoundaryGroupCount = a.config.BoundaryGroupCount
	opts.DryRun = a.config.DryRun

	ctrl, err := orchestrator.New(factory, a.stager, opts)
	if err != nil {
		return err
	}

	res, err := ctrl.Run(ctx, orchestrator.Request{
		Tree:    tree,
		Cycle:   a.config.Cycle,
		Member:  a.config.Member,
		KeyPath: a.config.KeyPath,
		Env:     a.env,
	})
	if err != nil {
		logger.Error("Run failed.", "state", res.State().String(), "trail", res.Trail, "error", err)
		return err
	}

	logger.Info("Run finished.", "runs", len(res.Iterations), "staged", len(res.Staged), "stage_dir", res.StageDir)
	logger.Debug("App.Run method finished.")
	return nil
}
