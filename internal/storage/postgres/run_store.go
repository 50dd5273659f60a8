package postgres

import (
	"context"
	"fmt"
	"time"

	"contagion-lab/internal/domain"
	"contagion-lab/internal/observability"
	"contagion-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool    *Pool
	metrics *observability.Metrics
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// WithMetrics attaches query instrumentation and returns the store.
func (s *RunStore) WithMetrics(m *observability.Metrics) *RunStore {
	s.metrics = m
	return s
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

func (s *RunStore) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveDBQuery("runs", operation, time.Since(start).Seconds(), *err)
}

// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) (err error) {
	defer s.observe("insert", time.Now(), &err)
	query := `
		INSERT INTO runs (
			run_id, network_id, method, shock_target, solve_assets,
			status, rounds, inner_iterations, tolerance, max_rounds, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID,
		r.NetworkID,
		r.Method,
		r.ShockTarget,
		r.SolveAssets,
		r.Status,
		r.Rounds,
		r.InnerIterations,
		r.Tolerance,
		r.MaxRounds,
		r.StartedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (_ *domain.RunRecord, err error) {
	defer s.observe("get_by_id", time.Now(), &err)
	query := `
		SELECT run_id, network_id, method, shock_target, solve_assets,
		       status, rounds, inner_iterations, tolerance, max_rounds,
		       started_at, created_at
		FROM runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// ListByNetwork retrieves all runs over a network, ordered by started_at
// ASC, run_id ASC.
func (s *RunStore) ListByNetwork(ctx context.Context, networkID string) (_ []*domain.RunRecord, err error) {
	defer s.observe("list_by_network", time.Now(), &err)
	query := `
		SELECT run_id, network_id, method, shock_target, solve_assets,
		       status, rounds, inner_iterations, tolerance, max_rounds,
		       started_at, created_at
		FROM runs
		WHERE network_id = $1
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, networkID)
	if err != nil {
		return nil, fmt.Errorf("list runs by network: %w", err)
	}
	defer rows.Close()

	var out []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// scanner abstracts pgx.Row and pgx.Rows for scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.RunRecord, error) {
	var r domain.RunRecord
	err := row.Scan(
		&r.RunID,
		&r.NetworkID,
		&r.Method,
		&r.ShockTarget,
		&r.SolveAssets,
		&r.Status,
		&r.Rounds,
		&r.InnerIterations,
		&r.Tolerance,
		&r.MaxRounds,
		&r.StartedAt,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
