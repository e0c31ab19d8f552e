// Package testutil общие помощники интеграционных тестов: доступность
// внешних зависимостей, конфигурации и проверки найденных паросочетаний.
package testutil

import (
	"context"
	"math/rand"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/config"
	"coassign/pkg/domain"
)

// Переменные окружения интеграционных тестов
const (
	EnvIntegrationTests = "INTEGRATION_TESTS"
	EnvRedisAddr        = "REDIS_TEST_ADDR"
	EnvPostgresHost     = "POSTGRES_HOST"
	EnvPostgresPort     = "POSTGRES_PORT"
)

// dialTimeout время на проверку доступности зависимости
const dialTimeout = 2 * time.Second

// SkipIfNotIntegration пропускает тест вне integration-режима
func SkipIfNotIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvIntegrationTests) != "1" {
		t.Skip("skipping integration test; set INTEGRATION_TESTS=1 to run")
	}
}

// requireTCP пропускает тест, если по addr никто не слушает
func requireTCP(t *testing.T, what, addr string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.Skipf("%s not available at %s: %v", what, addr, err)
	}
	_ = conn.Close()
}

// RequireRedis возвращает адрес доступного Redis
func RequireRedis(t *testing.T) string {
	t.Helper()
	SkipIfNotIntegration(t)

	addr := os.Getenv(EnvRedisAddr)
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	requireTCP(t, "Redis", addr)
	return addr
}

// RequirePostgres возвращает конфигурацию доступного PostgreSQL
func RequirePostgres(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	SkipIfNotIntegration(t)

	cfg := PostgresConfig()
	requireTCP(t, "PostgreSQL", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	return cfg
}

// PostgresConfig конфигурация тестовой базы истории запусков
func PostgresConfig() *config.DatabaseConfig {
	port := 5433
	if v, err := strconv.Atoi(os.Getenv(EnvPostgresPort)); err == nil {
		port = v
	}

	return &config.DatabaseConfig{
		Enabled:         true,
		Host:            envOr(EnvPostgresHost, "localhost"),
		Port:            port,
		Database:        envOr("POSTGRES_DB", "coassign_test"),
		Username:        envOr("POSTGRES_USER", "postgres"),
		Password:        envOr("POSTGRES_PASSWORD", "postgres"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
		AutoMigrate:     true,
	}
}

// RequireService возвращает адрес запущенного сервиса: из envVar или defaultAddr
func RequireService(t *testing.T, envVar, defaultAddr string) string {
	t.Helper()
	SkipIfNotIntegration(t)

	addr := envOr(envVar, defaultAddr)
	requireTCP(t, "service", addr)
	return addr
}

// Context контекст теста с общим таймаутом
func Context(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(t.Context(), 30*time.Second)
}

// ShortID короткий случайный идентификатор для ключей и request id
func ShortID() string {
	return uuid.NewString()[:8]
}

// UniqueKey ключ, не пересекающийся с другими тестами и запусками
func UniqueKey(t *testing.T, prefix string) string {
	t.Helper()
	return prefix + ":" + t.Name() + ":" + ShortID()
}

// FreePort находит свободный TCP порт
func FreePort(t *testing.T) int {
	t.Helper()

	var lc net.ListenConfig
	lis, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

// RandomGraph детерминированный случайный граф со сторонами до maxSide
func RandomGraph(t *testing.T, seed, maxSide int64) *domain.BipartiteGraph {
	t.Helper()

	p := domain.DefaultRandomParams()
	p.LSize = domain.Range{Min: 1, Max: maxSide + 1}
	p.RSize = domain.Range{Min: 1, Max: maxSide + 1}

	g, err := domain.RandomGraph(rand.New(rand.NewSource(seed)), p)
	if err != nil {
		t.Fatalf("RandomGraph(seed=%d) error = %v", seed, err)
	}
	return g
}

// CheckMatching проверяет, что ответ сервиса допустим для g: каждая пара
// является ребром, степени не превышают кратностей, вес совпадает с Value.
// Оптимальность по ответу не проверить без рёбер сертификата, её проверяет сервис.
func CheckMatching(t *testing.T, g *domain.BipartiteGraph, resp *matchingv1.SolveResponse) {
	t.Helper()

	type pair struct{ l, r int }
	weights := make(map[pair][]int64)
	for _, e := range g.Edges() {
		p := pair{e.Left, e.Right}
		weights[p] = append(weights[p], e.Weight)
	}

	l, r := g.OriginalSizes()
	leftDeg := make([]int64, l)
	rightDeg := make([]int64, r)

	var total int64
	for _, m := range resp.Matches {
		p := pair{m.Left, m.Right}
		ws := weights[p]
		if len(ws) == 0 {
			t.Fatalf("matched pair (%d, %d) is not an edge", m.Left, m.Right)
		}
		// Кратные рёбра расходуются по одному
		total += ws[0]
		weights[p] = ws[1:]
		leftDeg[m.Left]++
		rightDeg[m.Right]++
	}

	for i, m := range g.LeftMultiplicities() {
		if leftDeg[i] > m {
			t.Errorf("left vertex %d matched %d times, multiplicity %d", i, leftDeg[i], m)
		}
	}
	for j, m := range g.RightMultiplicities() {
		if rightDeg[j] > m {
			t.Errorf("right vertex %d matched %d times, multiplicity %d", j, rightDeg[j], m)
		}
	}

	// При кратных рёбрах сумма зависит от выбора среди них
	if !hasParallelEdges(g) && total != resp.Value {
		t.Errorf("sum of matched weights = %d, Value = %d", total, resp.Value)
	}
}

func hasParallelEdges(g *domain.BipartiteGraph) bool {
	seen := make(map[[2]int]bool)
	for _, e := range g.Edges() {
		k := [2]int{e.Left, e.Right}
		if seen[k] {
			return true
		}
		seen[k] = true
	}
	return false
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
