package config

import (
	"math"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:    AppConfig{Name: "test-service"},
		GRPC:   GRPCConfig{Port: 50051},
		Log:    LogConfig{Level: "info"},
		Solver: SolverConfig{ScalingFactor: 8, GlobalRelabelFreqFactor: 0.6},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "missing app name", modify: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "invalid port - zero", modify: func(c *Config) { c.GRPC.Port = 0 }, wantErr: true},
		{name: "invalid port - too high", modify: func(c *Config) { c.GRPC.Port = 70000 }, wantErr: true},
		{name: "invalid log level", modify: func(c *Config) { c.Log.Level = "invalid" }, wantErr: true},
		{name: "empty log level defaults", modify: func(c *Config) { c.Log.Level = "" }},
		{name: "valid debug level", modify: func(c *Config) { c.Log.Level = "debug" }},
		{name: "scaling factor one", modify: func(c *Config) { c.Solver.ScalingFactor = 1 }, wantErr: true},
		{name: "scaling factor two", modify: func(c *Config) { c.Solver.ScalingFactor = 2 }},
		{name: "relabel factor NaN", modify: func(c *Config) { c.Solver.GlobalRelabelFreqFactor = math.NaN() }, wantErr: true},
		{name: "relabel factor disabled", modify: func(c *Config) { c.Solver.GlobalRelabelFreqFactor = 0 }},
		{name: "negative price refine limit", modify: func(c *Config) { c.Solver.PriceRefineLimit = -1 }, wantErr: true},
		{name: "negative max edges", modify: func(c *Config) { c.Solver.MaxEdges = -1 }, wantErr: true},
		{name: "negative max vertices", modify: func(c *Config) { c.Solver.MaxVertices = -1 }, wantErr: true},
		{name: "unlimited max vertices", modify: func(c *Config) { c.Solver.MaxVertices = 0 }},
		{
			name: "unknown cache driver",
			modify: func(c *Config) {
				c.Cache = CacheConfig{Enabled: true, Driver: "memcached"}
			},
			wantErr: true,
		},
		{
			name: "disabled cache ignores driver",
			modify: func(c *Config) {
				c.Cache = CacheConfig{Enabled: false, Driver: "memcached"}
			},
		},
		{
			name: "rate limit enabled",
			modify: func(c *Config) {
				c.RateLimit = RateLimitConfig{Enabled: true, Backend: "memory", Limit: 10, Window: time.Minute}
			},
		},
		{
			name: "rate limit zero limit",
			modify: func(c *Config) {
				c.RateLimit = RateLimitConfig{Enabled: true, Backend: "memory", Window: time.Minute}
			},
			wantErr: true,
		},
		{
			name: "rate limit zero window",
			modify: func(c *Config) {
				c.RateLimit = RateLimitConfig{Enabled: true, Backend: "redis", Limit: 10}
			},
			wantErr: true,
		},
		{
			name: "rate limit unknown backend",
			modify: func(c *Config) {
				c.RateLimit = RateLimitConfig{Enabled: true, Backend: "etcd", Limit: 10, Window: time.Minute}
			},
			wantErr: true,
		},
		{
			name: "disabled rate limit is not checked",
			modify: func(c *Config) {
				c.RateLimit = RateLimitConfig{Enabled: false, Limit: -1}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"dev", true},
		{"production", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"development", false},
		{"staging", false},
	}

	for _, tt := range tests {
		cfg := &Config{App: AppConfig{Environment: tt.env}}
		if got := cfg.IsProduction(); got != tt.want {
			t.Errorf("IsProduction() for %s = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "testdb",
		Username: "user",
		Password: "pass",
		SSLMode:  "disable",
	}

	expect := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if dsn := cfg.DSN(); dsn != expect {
		t.Errorf("expected DSN %s, got %s", expect, dsn)
	}
}

func TestCacheConfig_Address(t *testing.T) {
	cfg := CacheConfig{
		Host: "redis.local",
		Port: 6379,
	}

	addr := cfg.Address()
	if addr != "redis.local:6379" {
		t.Errorf("expected 'redis.local:6379', got %s", addr)
	}
}

func TestKeepAliveConfig(t *testing.T) {
	cfg := KeepAliveConfig{
		MaxConnectionIdle:     15 * time.Minute,
		MaxConnectionAge:      30 * time.Minute,
		MaxConnectionAgeGrace: 5 * time.Minute,
		Time:                  5 * time.Minute,
		Timeout:               20 * time.Second,
	}

	if cfg.MaxConnectionIdle != 15*time.Minute {
		t.Errorf("unexpected MaxConnectionIdle: %v", cfg.MaxConnectionIdle)
	}
}
