package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/chgresrun/internal/driver"
	"github.com/vk/chgresrun/internal/keypath"
	"github.com/vk/chgresrun/internal/staging"
)

// DefaultMember is the ensemble member used when none is given.
const DefaultMember = "000"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigFiles []string // YAML files or directories, merged in order
	Cycle       time.Time
	KeyPath     keypath.Path
	Member      string
	Driver      string

	Staging            staging.Policy
	BoundaryGroup      int
	BoundaryGroupCount int
	DryRun             bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills in defaults for optional fields.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigFiles) == 0 {
		return nil, errors.New("at least one config file is required")
	}
	if cfg.Cycle.IsZero() {
		return nil, errors.New("cycle is required")
	}
	cfg.Cycle = cfg.Cycle.UTC()
	if len(cfg.KeyPath) == 0 {
		return nil, errors.New("key path is required")
	}

	if cfg.Member == "" {
		cfg.Member = DefaultMember
	}
	if cfg.Driver == "" {
		cfg.Driver = driver.ChgresCubeName
	}

	def := staging.DefaultPolicy()
	if cfg.Staging.Cadence == "" {
		cfg.Staging.Cadence = def.Cadence
	}
	if cfg.Staging.Target == "" {
		cfg.Staging.Target = def.Target
	}
	if cfg.Staging.Mode == "" {
		cfg.Staging.Mode = def.Mode
	}
	if err := cfg.Staging.Validate(); err != nil {
		return nil, err
	}

	if cfg.BoundaryGroupCount == 0 {
		cfg.BoundaryGroupCount = 1
	}
	if cfg.BoundaryGroup < 0 || cfg.BoundaryGroupCount < 0 {
		return nil, fmt.Errorf("boundary group %d/%d must not be negative", cfg.BoundaryGroup, cfg.BoundaryGroupCount)
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return &cfg, nil
}
