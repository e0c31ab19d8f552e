package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "COASSIGN_"
	configEnvVar = "CONFIG_PATH"
)

// Loader загружает конфигурацию из значений по умолчанию, yaml-файла и
// переменных окружения
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string

	// overrides заменяют значения по умолчанию, но не файл и окружение
	overrides map[string]any

	// configFile путь к прочитанному файлу, пусто если файл не найден
	configFile string
}

// LoaderOption - опция загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска файла конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithServiceDefaults задаёт имя сервиса и порт по умолчанию. Явные
// значения из файла или окружения имеют приоритет.
func WithServiceDefaults(serviceName string, port int) LoaderOption {
	return func(l *Loader) {
		if l.overrides == nil {
			l.overrides = make(map[string]any)
		}
		if serviceName != "" {
			l.overrides["app.name"] = serviceName
			l.overrides["tracing.service_name"] = serviceName
		}
		if port != 0 {
			l.overrides["grpc.port"] = port
		}
	}
}

// NewLoader создаёт загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/coassign/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// ConfigFile возвращает путь к прочитанному файлу конфигурации
func (l *Loader) ConfigFile() string {
	return l.configFile
}

// Load загружает конфигурацию. Приоритет по возрастанию: значения по
// умолчанию, файл, переменные окружения. Файл не обязателен.
func (l *Loader) Load() (*Config, error) {
	defaults := defaultValues()
	for key, value := range l.overrides {
		defaults[key] = value
	}
	if err := l.k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := l.findConfigFile(); path != "" {
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		l.configFile = path
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// findConfigFile ищет файл: сначала CONFIG_PATH, затем configPaths
func (l *Loader) findConfigFile() string {
	candidates := l.configPaths
	if p := os.Getenv(configEnvVar); p != "" {
		candidates = append([]string{p}, candidates...)
	}

	for _, path := range candidates {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return abs
		}
	}
	return ""
}

// loadEnv загружает переменные окружения. Ключ сопоставляется с известным
// ключом конфигурации (COASSIGN_DATABASE_MAX_OPEN_CONNS -> database.max_open_conns),
// неизвестные ключи получают точки вместо всех подчёркиваний.
func (l *Loader) loadEnv() error {
	known := make(map[string]string)
	for _, key := range l.k.Keys() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}

	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey, value string) (string, any) {
		key := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))
		if mapped, ok := known[key]; ok {
			return mapped, value
		}
		return strings.ReplaceAll(key, "_", "."), value
	}), nil)
}

// defaultValues значения по умолчанию. Каждый ключ конфигурации должен быть
// здесь, иначе его переменная окружения не найдётся при подчёркиваниях в имени.
func defaultValues() map[string]any {
	return map[string]any{
		// App
		"app.name":        "coassign",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// GRPC
		"grpc.port":                               50051,
		"grpc.max_recv_msg_size":                  64 * 1024 * 1024,
		"grpc.max_send_msg_size":                  64 * 1024 * 1024,
		"grpc.max_concurrent_conn":                1000,
		"grpc.keepalive.max_connection_idle":      15 * time.Minute,
		"grpc.keepalive.max_connection_age":       30 * time.Minute,
		"grpc.keepalive.max_connection_age_grace": 5 * time.Minute,
		"grpc.keepalive.time":                     5 * time.Minute,
		"grpc.keepalive.timeout":                  20 * time.Second,
		"grpc.tls.enabled":                        false,
		"grpc.tls.cert_file":                      "",
		"grpc.tls.key_file":                       "",

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.file_path":   "",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "coassign",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "coassign",
		"tracing.sample_rate":  0.1,

		// Database
		"database.enabled":            false,
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "coassign",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,

		// Cache
		"cache.enabled":     false,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.password":    "",
		"cache.db":          0,
		"cache.default_ttl": 10 * time.Minute,
		"cache.max_entries": 1000,

		// Solver
		"solver.scaling_factor":             8,
		"solver.check_intermediate_status":  false,
		"solver.global_relabel_freq_factor": 0.6,
		"solver.price_refine_limit":         0,
		"solver.verify_solutions":           true,
		"solver.max_edges":                  1_000_000,
		"solver.max_vertices":               200_000,
		"solver.max_concurrent":             10,
		"solver.timeout":                    5 * time.Minute,

		// Rate limit
		"ratelimit.enabled": false,
		"ratelimit.backend": "memory",
		"ratelimit.limit":   600,
		"ratelimit.burst":   100,
		"ratelimit.window":  time.Minute,

		// Retry
		"retry.max_attempts":       3,
		"retry.initial_backoff":    100 * time.Millisecond,
		"retry.max_backoff":        10 * time.Second,
		"retry.backoff_multiplier": 2.0,
	}
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadWithServiceDefaults загружает конфигурацию с именем и портом сервиса
// по умолчанию
func LoadWithServiceDefaults(serviceName string, defaultPort int) (*Config, error) {
	return NewLoader(WithServiceDefaults(serviceName, defaultPort)).Load()
}
