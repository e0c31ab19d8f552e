package repository

import (
	"context"
	"errors"
	"time"
)

// Стандартные ошибки
var (
	ErrRunNotFound  = errors.New("run not found")
	ErrInvalidRunID = errors.New("invalid run id")
)

// Run запись об одном решении задачи о паросочетании
type Run struct {
	ID                string
	RequestID         string
	Source            string // solve, generate
	GraphHash         string
	LeftSize          int
	RightSize         int
	EdgeCount         int
	ScalingFactor     int64
	Value             int64
	MatchedPairs      int
	Verified          bool
	CacheHit          bool
	ComputationTimeMs float64
	Tags              []string
	Phases            []Phase
	CreatedAt         time.Time
}

// Phase статистика фазы масштабирования в составе запуска
type Phase struct {
	Epsilon        int64
	PriceRefined   bool
	GlobalRelabels int
	Relabels       int64
	Pushes         int64
	DurationMs     float64
}

// ListFilter фильтры для списка
type ListFilter struct {
	Source    string
	GraphHash string
	Tags      []string // запуск должен иметь хотя бы один из тегов
}

// ListOptions опции для списка
type ListOptions struct {
	Limit  int
	Offset int
	Filter *ListFilter
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (o *ListOptions) normalize() *ListOptions {
	out := ListOptions{Limit: defaultListLimit}
	if o != nil {
		out = *o
	}
	if out.Limit <= 0 {
		out.Limit = defaultListLimit
	}
	if out.Limit > maxListLimit {
		out.Limit = maxListLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return &out
}

// RunRepository хранилище истории запусков
type RunRepository interface {
	// Create сохраняет запуск вместе с фазами. Пустой ID генерируется.
	Create(ctx context.Context, run *Run) error
	// GetByID возвращает запуск с фазами
	GetByID(ctx context.Context, id string) (*Run, error)
	// List возвращает страницу запусков без фаз и общее количество
	List(ctx context.Context, opts *ListOptions) ([]*Run, int64, error)
	Delete(ctx context.Context, id string) error
}
