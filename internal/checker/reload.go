package checker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leslieo2/go-probe/internal/config"
)

// ConfigLoader returns the current configuration, typically by re-reading
// the config file with the same flag and environment overrides.
type ConfigLoader func() (*config.Config, error)

// Reloader re-reads the dependency list and reconciles the scheduler with
// it. An invalid configuration leaves the running checks untouched.
type Reloader struct {
	load      ConfigLoader
	scheduler *Scheduler
	logger    *zap.Logger
}

func NewReloader(load ConfigLoader, scheduler *Scheduler, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{load: load, scheduler: scheduler, logger: logger}
}

func (r *Reloader) Name() string {
	return "dependency-checks"
}

func (r *Reloader) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := r.load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	defs, err := BuildDefinitions(cfg.Checks)
	if err != nil {
		return err
	}

	if err := r.scheduler.Sync(defs); err != nil {
		return err
	}

	r.logger.Info("Dependency checks reloaded", zap.Strings("checks", r.scheduler.Names()))
	return nil
}
