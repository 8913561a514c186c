// Package main is the entry point for planner-svc.
//
// planner-svc repairs district contiguity on a geo-unit adjacency graph and
// seeds new districts until the required count is reached. It runs as a CLI:
//
//	planner plan graph.json --districts 8 --seed 42 --report pdf
//	planner check graph.yaml --strict
//	planner runs list --status failed
//	planner migrate up
//	planner cache clear graph.json
//	planner serve-metrics
//
// # Configuration
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command line flags (engine parameters only)
//  2. Environment variables (prefix: REDISTRICT_)
//  3. Config file (--config, CONFIG_PATH, config.yaml, config/config.yaml)
//  4. Default values
//
// # Exit codes
//
//	0   success
//	1   internal or storage failure
//	2   invalid input or configuration
//	3   repair did not converge
//	4   seeding infeasible
//	5   isolated component (enable planner.bridge_isolated to repair it)
//	130 cancelled
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redistrict/pkg/apperror"
	"redistrict/pkg/cache"
	"redistrict/pkg/config"
	"redistrict/pkg/database"
	"redistrict/pkg/logger"
	"redistrict/pkg/metrics"
	"redistrict/pkg/telemetry"
	"redistrict/services/planner-svc/internal/repository"
	"redistrict/services/planner-svc/internal/service"
	"redistrict/services/planner-svc/migrations"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Log.Error("command failed", "code", apperror.Code(err), "error", err)
		os.Exit(apperror.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planner",
		Short:         "District contiguity repair and seeding",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(
		newPlanCmd(),
		newCheckCmd(),
		newRunsCmd(),
		newMigrateCmd(),
		newCacheCmd(),
		newServeMetricsCmd(),
	)
	return root
}

// app собранные зависимости команды
type app struct {
	cfg      *config.Config
	db       *database.PostgresDB
	cache    cache.Cache
	provider *telemetry.Provider
}

// bootstrap загружает конфигурацию и поднимает логгер, телеметрию и метрики
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if cfg.App.Debug {
		level = "debug"
	}
	if cfg.IsDevelopment() && format == "" {
		format = "text"
	}

	logger.InitWithConfig(logger.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	a := &app{cfg: cfg}

	if cfg.IsProduction() && cfg.Tracing.Enabled && cfg.Tracing.Insecure {
		logger.Log.Warn("Tracing exporter uses an insecure connection in production")
	}

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
			ServiceName: cfg.Tracing.ServiceName,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			a.provider = tp
			logger.Log.Info("Telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	return a, nil
}

// openDB подключается к PostgreSQL
func (a *app) openDB(ctx context.Context) (*database.PostgresDB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if !a.cfg.Database.Enabled {
		return nil, apperror.New(apperror.CodeInvalidConfig, "database is disabled").
			WithField("database.enabled")
	}

	db, err := database.NewPostgresDB(ctx, &a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// newService собирает сервис планирования с кэшем и хранилищем из конфигурации
func (a *app) newService(ctx context.Context) (*service.PlannerService, error) {
	cfg := a.cfg
	opts := []service.Option{service.WithLogger(logger.WithComponent("planner"))}

	if cfg.Cache.Enabled {
		c, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("Failed to create cache, continuing without cache", "error", err)
		} else {
			a.cache = c
			opts = append(opts, service.WithCache(c, cfg.Cache.KeyPrefix))
			logger.Log.Info("Plan cache initialized", "driver", cfg.Cache.Driver, "ttl", cfg.Cache.DefaultTTL)
		}
	}

	if cfg.Database.Enabled {
		db, err := a.openDB(ctx)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, db.Pool(), cfg.Database.AutoMigrate, migrations.FS, migrations.Dir); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeUnavailable, "failed to apply migrations")
		}
		opts = append(opts, service.WithRepository(repository.NewPostgresRunRepository(db)))
	}

	return service.NewPlannerService(service.Config{
		BridgeIsolated:    cfg.Planner.BridgeIsolated,
		BridgeFactor:      cfg.Planner.BridgeFactor,
		MaxBridgeAttempts: cfg.Planner.MaxBridgeAttempts,
		PersistRuns:       cfg.Planner.PersistRuns,
		RunTimeout:        cfg.Planner.RunTimeout,
		CacheTTL:          cfg.Cache.DefaultTTL,
	}, opts...), nil
}

// Close освобождает ресурсы в обратном порядке
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Log.Warn("Failed to close cache", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.provider != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.provider.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}
}
