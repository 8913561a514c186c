// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"redistrict/pkg/apperror"
)

// Config - главная структура конфигурации
type Config struct {
	App      AppConfig      `koanf:"app"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Tracing  TracingConfig  `koanf:"tracing"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Engine   EngineConfig   `koanf:"engine"`
	Planner  PlannerConfig  `koanf:"planner"`
	Report   ReportConfig   `koanf:"report"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
	Insecure    bool    `koanf:"insecure"`
}

// DatabaseConfig - настройки базы данных для хранения запусков
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения PostgreSQL
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// CacheConfig - настройки кэша результатов
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
	KeyPrefix  string        `koanf:"key_prefix"`
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EngineConfig - параметры ремонта связности и посева округов
type EngineConfig struct {
	RequiredDistrictCount   int   `koanf:"required_district_count"`
	MaxRepairSweeps         int   `koanf:"max_repair_sweeps"`
	SeedCandidateMultiplier int   `koanf:"seed_candidate_multiplier"`
	RandomSeed              int64 `koanf:"random_seed"`
	Workers                 int   `koanf:"workers"`
}

// PlannerConfig - политика сервиса планирования
type PlannerConfig struct {
	BridgeIsolated    bool          `koanf:"bridge_isolated"`     // соединять изолированные компоненты мостами
	BridgeFactor      float64       `koanf:"bridge_factor"`       // множитель минимального расстояния
	MaxBridgeAttempts int           `koanf:"max_bridge_attempts"` // повторов после моста
	PersistRuns       bool          `koanf:"persist_runs"`
	RunTimeout        time.Duration `koanf:"run_timeout"`
}

// ReportConfig - настройки выгрузки отчётов
type ReportConfig struct {
	Format            string `koanf:"format"` // xlsx, csv, pdf
	OutputDir         string `koanf:"output_dir"`
	MaxAssignmentRows int    `koanf:"max_assignment_rows"` // 0 - без ограничения
}

// Validate проверяет конфигурацию и собирает все нарушения
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}

	if c.Cache.Enabled {
		switch c.Cache.Driver {
		case "memory", "redis":
		default:
			errs = append(errs, fmt.Sprintf("cache.driver must be one of: memory, redis, got %s", c.Cache.Driver))
		}
	}

	// Валидация параметров движка
	if c.Engine.RequiredDistrictCount < 0 {
		errs = append(errs, "engine.required_district_count must be non-negative")
	}
	if c.Engine.MaxRepairSweeps < 1 {
		errs = append(errs, "engine.max_repair_sweeps must be at least 1")
	}
	if c.Engine.SeedCandidateMultiplier < 1 {
		errs = append(errs, "engine.seed_candidate_multiplier must be at least 1")
	}
	if c.Engine.Workers < 1 || c.Engine.Workers > 256 {
		errs = append(errs, fmt.Sprintf("engine.workers must be between 1 and 256, got %d", c.Engine.Workers))
	}

	if c.Planner.BridgeFactor < 1 {
		errs = append(errs, fmt.Sprintf("planner.bridge_factor must be at least 1, got %v", c.Planner.BridgeFactor))
	}
	if c.Planner.MaxBridgeAttempts < 0 {
		errs = append(errs, "planner.max_bridge_attempts must be non-negative")
	}
	if c.Planner.PersistRuns && !c.Database.Enabled {
		errs = append(errs, "planner.persist_runs requires database.enabled")
	}

	validFormats := map[string]bool{"xlsx": true, "csv": true, "pdf": true}
	if c.Report.Format != "" && !validFormats[c.Report.Format] {
		errs = append(errs, fmt.Sprintf("report.format must be one of: xlsx, csv, pdf, got %s", c.Report.Format))
	}

	if len(errs) > 0 {
		return apperror.New(apperror.CodeInvalidConfig,
			"configuration validation failed: "+strings.Join(errs, "; ")).
			WithDetails("violations", errs)
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
