// Package logger глобальный slog-логгер сервиса с ротацией файлов через
// lumberjack и request ID из контекста.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log глобальный логгер. До вызова Init пишет через slog.Default().
var Log = slog.Default()

const defaultLogFile = "logs/coassign.log"

// Config конфигурация логгера
type Config struct {
	Level      string
	Format     string // json или text
	Output     string // stdout, stderr или file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // дни
	Compress   bool
}

// Init включает JSON-логгер в stdout с заданным уровнем
func Init(level string) {
	InitWithConfig(Config{Level: level, Format: "json", Output: "stdout"})
}

// InitWithConfig заменяет глобальный логгер. Если файл логов открыть
// нельзя, логгер пишет в stderr и сообщает об этом первой записью.
func InitWithConfig(cfg Config) {
	w, err := openOutput(cfg)
	if err != nil {
		Log = New(cfg, os.Stderr)
		Log.Warn("log file unavailable, writing to stderr", "error", err)
		return
	}
	Log = New(cfg, w)
}

// New создаёт логгер, пишущий в w. На уровне debug добавляется источник.
func New(cfg Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel разбирает уровень в синтаксисе slog ("debug", "WARN", "error+2").
// Нераспознанный уровень даёт info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func openOutput(cfg Config) (io.Writer, error) {
	switch cfg.Output {
	case "stderr":
		return os.Stderr, nil
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = defaultLogFile
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}, nil
	default:
		return os.Stdout, nil
	}
}

type requestIDKey struct{}

// ContextWithRequestID сохраняет request ID в контексте
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext возвращает request ID из контекста
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// WithContext возвращает логгер с request ID из ctx и дополнительными полями
func WithContext(ctx context.Context, args ...any) *slog.Logger {
	l := Log
	if id, ok := RequestIDFromContext(ctx); ok {
		args = append([]any{"request_id", id}, args...)
	}
	if len(args) > 0 {
		l = l.With(args...)
	}
	return l
}

// DebugEnabled сообщает, пишет ли логгер debug-уровень. Нужен, чтобы не
// собирать дорогие поля (статистику фаз) впустую.
func DebugEnabled() bool {
	return Log.Enabled(context.Background(), slog.LevelDebug)
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }

func Info(msg string, args ...any) { Log.Info(msg, args...) }

// Fatal пишет ошибку и завершает процесс с кодом 1
func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}
