package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/leslieo2/go-probe/internal/checker"
	"github.com/leslieo2/go-probe/internal/config"
	"github.com/leslieo2/go-probe/internal/hotreload"
	"github.com/leslieo2/go-probe/internal/observability"
	"github.com/leslieo2/go-probe/internal/probe"
	"github.com/leslieo2/go-probe/internal/runtimeinfo"
	"github.com/leslieo2/go-probe/internal/server"
)

// cleanupTimeout bounds each teardown step after the server has drained
const cleanupTimeout = 5 * time.Second

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Serves liveness (/health), readiness (/ready) and metrics (/metrics) probes.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	cliFlags := config.RegisterFlags(fs)

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := run(cliFlags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cliFlags *config.CLIFlags) error {
	configFile := *cliFlags.ConfigFile
	loadConfig := func() (*config.Config, error) {
		return config.LoadConfig(configFile, cliFlags)
	}

	// Load configuration with precedence (CLI > Env > File > Defaults)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Observability.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingCfg := cfg.Observability.Tracing
	if tracingCfg.ServiceName == "" {
		tracingCfg.ServiceName = cfg.App.Name
	}
	if tracingCfg.Version == "" {
		tracingCfg.Version = cfg.App.Version
	}
	if tracingCfg.Environment == "" {
		tracingCfg.Environment = cfg.App.Environment
	}
	tracer, err := observability.NewTracer(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	probes := probe.New(probe.WithLogger(logger.Named("probe")))
	info := runtimeinfo.NewProvider(cfg.App.Name, cfg.App.Version, cfg.App.Environment, probes.Liveness())
	if cfg.Observability.Metrics.Runtime {
		if err := info.RegisterProducers(probes.Registry()); err != nil {
			return fmt.Errorf("failed to register runtime metrics: %w", err)
		}
	}

	metrics := observability.NewMetrics()
	if err := metrics.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	if err := probes.Registry().RegisterCollector("service", observability.GathererCollector(metrics.Gatherer())); err != nil {
		return fmt.Errorf("failed to bridge service metrics: %w", err)
	}

	scheduler, err := startChecks(cfg, probes, metrics, logger.Named("checker"))
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	if cfg.HotReload.Enabled && configFile != "" {
		manager, err := startHotReload(cfg, configFile, checker.NewReloader(loadConfig, scheduler, logger.Named("checker")), logger.Named("hotreload"))
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
			defer cancel()
			if err := manager.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown hot reload manager", zap.Error(err))
			}
		}()
	}

	srv, err := server.New(cfg, probes,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithTracer(tracer),
		server.WithRuntimeInfo(info),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("Starting go-probe",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("address", cfg.GetServerAddress()),
		zap.Strings("checks", scheduler.Names()),
		zap.Bool("rate_limit", cfg.Security.RateLimit.Enabled),
	)

	return srv.Start(ctx)
}

// startChecks builds the configured dependency checks and starts running them
func startChecks(cfg *config.Config, probes *probe.Set, metrics *observability.Metrics, logger *zap.Logger) (*checker.Scheduler, error) {
	defs, err := checker.BuildDefinitions(cfg.Checks)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency checks: %w", err)
	}

	scheduler := checker.NewScheduler(probes.Readiness(),
		checker.WithObserver(metrics),
		checker.WithLogger(logger),
		checker.WithBreaker(checker.BreakerSettings{
			Failures:    cfg.Checks.Breaker.Failures,
			OpenTimeout: cfg.Checks.Breaker.OpenTimeout,
		}),
	)
	for i, def := range defs {
		if err := scheduler.Add(def); err != nil {
			scheduler.Stop()
			for _, rest := range defs[i:] {
				if rest.Closer != nil {
					_ = rest.Closer.Close()
				}
			}
			return nil, fmt.Errorf("failed to schedule check %s: %w", def.Name, err)
		}
	}
	scheduler.Start()

	return scheduler, nil
}

// startHotReload watches the config file and reconciles the check set
// whenever it changes
func startHotReload(cfg *config.Config, configFile string, reloader *checker.Reloader, logger *zap.Logger) (*hotreload.Manager, error) {
	manager, err := hotreload.NewManager(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create hot reload manager: %w", err)
	}

	manager.SetDebounceTime(cfg.HotReload.Debounce)

	if err := manager.AddWatch(configFile); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	if err := manager.RegisterReloadable(reloader); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to register reloader: %w", err)
	}
	if err := manager.Start(); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to start hot reload: %w", err)
	}

	logger.Info("Hot reload enabled", zap.String("config_file", configFile))
	return manager, nil
}
