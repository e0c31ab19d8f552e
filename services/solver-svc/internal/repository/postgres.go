package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"coassign/pkg/database"
	"coassign/pkg/telemetry"
)

// PostgresRunRepository PostgreSQL реализация
type PostgresRunRepository struct {
	db database.DB
}

var _ RunRepository = (*PostgresRunRepository)(nil)

// NewPostgresRunRepository создаёт новый репозиторий
func NewPostgresRunRepository(db database.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

const insertRunQuery = `
	INSERT INTO matching_runs (
		id, request_id, source, graph_hash,
		left_size, right_size, edge_count, scaling_factor,
		value, matched_pairs, verified, cache_hit,
		computation_time_ms, tags
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING created_at
`

const insertPhaseQuery = `
	INSERT INTO matching_run_phases (
		run_id, phase, epsilon, price_refined,
		global_relabels, relabels, pushes, duration_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (r *PostgresRunRepository) Create(ctx context.Context, run *Run) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.Create")
	defer span.End()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	tags := run.Tags
	if tags == nil {
		tags = []string{}
	}

	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertRunQuery,
			run.ID,
			run.RequestID,
			run.Source,
			run.GraphHash,
			run.LeftSize,
			run.RightSize,
			run.EdgeCount,
			run.ScalingFactor,
			run.Value,
			run.MatchedPairs,
			run.Verified,
			run.CacheHit,
			run.ComputationTimeMs,
			tags,
		).Scan(&run.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		for i, p := range run.Phases {
			_, err := tx.Exec(ctx, insertPhaseQuery,
				run.ID,
				i,
				p.Epsilon,
				p.PriceRefined,
				p.GlobalRelabels,
				p.Relabels,
				p.Pushes,
				p.DurationMs,
			)
			if err != nil {
				return fmt.Errorf("failed to insert phase %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.SetError(ctx, err)
		return fmt.Errorf("failed to create run: %w", err)
	}

	telemetry.SetAttributes(ctx, attribute.String(telemetry.AttrRunID, run.ID))
	return nil
}

func (r *PostgresRunRepository) GetByID(ctx context.Context, id string) (*Run, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.GetByID")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidRunID
	}

	query := `
		SELECT
			id, request_id, source, graph_hash,
			left_size, right_size, edge_count, scaling_factor,
			value, matched_pairs, verified, cache_hit,
			computation_time_ms, tags, created_at
		FROM matching_runs
		WHERE id = $1
	`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	phases, err := r.listPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Phases = phases

	return run, nil
}

func (r *PostgresRunRepository) listPhases(ctx context.Context, runID string) ([]Phase, error) {
	query := `
		SELECT epsilon, price_refined, global_relabels, relabels, pushes, duration_ms
		FROM matching_run_phases
		WHERE run_id = $1
		ORDER BY phase
	`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases: %w", err)
	}
	defer rows.Close()

	var phases []Phase
	for rows.Next() {
		var p Phase
		if err := rows.Scan(
			&p.Epsilon,
			&p.PriceRefined,
			&p.GlobalRelabels,
			&p.Relabels,
			&p.Pushes,
			&p.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan phase: %w", err)
		}
		phases = append(phases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return phases, nil
}

func (r *PostgresRunRepository) List(ctx context.Context, opts *ListOptions) ([]*Run, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.List")
	defer span.End()

	opts = opts.normalize()
	where, args := buildWhereClause(opts.Filter)

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM matching_runs WHERE %s`, where)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT
			id, request_id, source, graph_hash,
			left_size, right_size, edge_count, scaling_factor,
			value, matched_pairs, verified, cache_hit,
			computation_time_ms, tags, created_at
		FROM matching_runs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return runs, total, nil
}

func (r *PostgresRunRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRunRepository.Delete")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidRunID
	}

	// Фазы удаляются каскадно
	result, err := r.db.Exec(ctx, `DELETE FROM matching_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}

	err := row.Scan(
		&run.ID,
		&run.RequestID,
		&run.Source,
		&run.GraphHash,
		&run.LeftSize,
		&run.RightSize,
		&run.EdgeCount,
		&run.ScalingFactor,
		&run.Value,
		&run.MatchedPairs,
		&run.Verified,
		&run.CacheHit,
		&run.ComputationTimeMs,
		&run.Tags,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func buildWhereClause(filter *ListFilter) (string, []any) {
	conditions := []string{"1=1"}
	var args []any
	argIdx := 1

	if filter == nil {
		return conditions[0], args
	}

	if filter.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIdx))
		args = append(args, filter.Source)
		argIdx++
	}

	if filter.GraphHash != "" {
		conditions = append(conditions, fmt.Sprintf("graph_hash = $%d", argIdx))
		args = append(args, filter.GraphHash)
		argIdx++
	}

	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags && $%d", argIdx))
		args = append(args, pq.Array(filter.Tags))
	}

	return strings.Join(conditions, " AND "), args
}
