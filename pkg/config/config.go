// pkg/config/config.go
package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App      AppConfig      `koanf:"app"`
	GRPC     GRPCConfig     `koanf:"grpc"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Tracing  TracingConfig  `koanf:"tracing"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	Solver   SolverConfig   `koanf:"solver"`
	Retry    RetryConfig    `koanf:"retry"`

	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// GRPCConfig - настройки gRPC сервера
type GRPCConfig struct {
	Port              int             `koanf:"port"`
	MaxRecvMsgSize    int             `koanf:"max_recv_msg_size"` // bytes
	MaxSendMsgSize    int             `koanf:"max_send_msg_size"` // bytes
	MaxConcurrentConn int             `koanf:"max_concurrent_conn"`
	KeepAlive         KeepAliveConfig `koanf:"keepalive"`
	TLS               TLSConfig       `koanf:"tls"`
}

// KeepAliveConfig - настройки keep-alive
type KeepAliveConfig struct {
	MaxConnectionIdle     time.Duration `koanf:"max_connection_idle"`
	MaxConnectionAge      time.Duration `koanf:"max_connection_age"`
	MaxConnectionAgeGrace time.Duration `koanf:"max_connection_age_grace"`
	Time                  time.Duration `koanf:"time"`
	Timeout               time.Duration `koanf:"timeout"`
}

// TLSConfig - настройки TLS
type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
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
}

// DatabaseConfig - настройки базы данных (история запусков)
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
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
	)
}

// CacheConfig - настройки кэширования решений
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SolverConfig - параметры решателя по умолчанию.
// Запрос может переопределить их через SolveOptions.
type SolverConfig struct {
	ScalingFactor           int64         `koanf:"scaling_factor"`
	CheckIntermediateStatus bool          `koanf:"check_intermediate_status"`
	GlobalRelabelFreqFactor float64       `koanf:"global_relabel_freq_factor"`
	PriceRefineLimit        int           `koanf:"price_refine_limit"`
	VerifySolutions         bool          `koanf:"verify_solutions"`
	MaxEdges                int           `koanf:"max_edges"`
	MaxVertices             int           `koanf:"max_vertices"`
	MaxConcurrent           int           `koanf:"max_concurrent"`
	Timeout                 time.Duration `koanf:"timeout"`
}

// RateLimitConfig - бюджет клиента в единицах стоимости графа
type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled"`
	Backend string        `koanf:"backend"` // memory, redis (адрес из cache)
	Limit   int           `koanf:"limit"`   // единиц за window
	Burst   int           `koanf:"burst"`
	Window  time.Duration `koanf:"window"`
}

// RetryConfig конфигурация retry для клиента
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		errs = append(errs, fmt.Sprintf("grpc.port must be between 1 and 65535, got %d", c.GRPC.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	validDrivers := map[string]bool{"memory": true, "redis": true}
	if c.Cache.Enabled && !validDrivers[c.Cache.Driver] {
		errs = append(errs, fmt.Sprintf("cache.driver must be one of: memory, redis, got %s", c.Cache.Driver))
	}

	// Параметры решателя
	if c.Solver.ScalingFactor <= 1 {
		errs = append(errs, fmt.Sprintf("solver.scaling_factor must be greater than 1, got %d", c.Solver.ScalingFactor))
	}
	if f := c.Solver.GlobalRelabelFreqFactor; math.IsNaN(f) || math.IsInf(f, 0) {
		errs = append(errs, "solver.global_relabel_freq_factor must be finite")
	}
	if c.Solver.PriceRefineLimit < 0 {
		errs = append(errs, "solver.price_refine_limit must be non-negative")
	}
	if c.Solver.MaxEdges < 0 {
		errs = append(errs, "solver.max_edges must be non-negative")
	}
	if c.Solver.MaxVertices < 0 {
		errs = append(errs, "solver.max_vertices must be non-negative")
	}

	if c.RateLimit.Enabled {
		if !validDrivers[c.RateLimit.Backend] {
			errs = append(errs, fmt.Sprintf("ratelimit.backend must be one of: memory, redis, got %s", c.RateLimit.Backend))
		}
		if c.RateLimit.Limit <= 0 {
			errs = append(errs, "ratelimit.limit must be positive")
		}
		if c.RateLimit.Burst < 0 {
			errs = append(errs, "ratelimit.burst must be non-negative")
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, "ratelimit.window must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
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
