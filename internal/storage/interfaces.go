package storage

import (
	"context"

	"contagion-lab/internal/domain"
)

// RunStore provides access to runs storage.
type RunStore interface {
	// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// ListByNetwork retrieves all runs over a network, ordered by
	// started_at ASC, run_id ASC.
	ListByNetwork(ctx context.Context, networkID string) ([]*domain.RunRecord, error)
}

// HistoryStore provides access to equity_history storage.
type HistoryStore interface {
	// InsertBulk adds the points of one run atomically. Fails the entire
	// batch on any duplicate (run_id, round, bank_index).
	InsertBulk(ctx context.Context, points []*domain.EquityPoint) error

	// GetByRunID retrieves all points for a run, ordered by round ASC,
	// bank_index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error)
}
