package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/chgresrun/internal/ctxlog"
	"github.com/vk/chgresrun/internal/driver"
	"github.com/vk/chgresrun/internal/loader"
	"github.com/vk/chgresrun/internal/orchestrator"
	"github.com/vk/chgresrun/internal/staging"
	"github.com/vk/chgresrun/internal/templating"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	drivers *driver.Registry
	loader  *loader.Loader
	stager  orchestrator.Stager
	env     map[string]string
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger. A nil drivers registry means DefaultDrivers.
func NewApp(outW io.Writer, cfg *Config, drivers *driver.Registry) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if drivers == nil {
		drivers = DefaultDrivers()
	}
	logger.Debug("Drivers registered.", "names", drivers.Names())

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		drivers: drivers,
		loader:  loader.New(),
		stager:  staging.NewLinker(cfg.Staging.Mode),
		env:     templating.EnvFromOS(),
	}
}

// Drivers returns the application's driver registry. This is primarily for testing.
func (a *App) Drivers() *driver.Registry {
	return a.drivers
}

// Context returns ctx carrying the application's logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
