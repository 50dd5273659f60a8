package clickhouse

import (
	"context"
	"fmt"
	"time"

	"contagion-lab/internal/domain"
	"contagion-lab/internal/observability"
	"contagion-lab/internal/storage"
)

// HistoryStore implements storage.HistoryStore using ClickHouse.
//
// ClickHouse MergeTree does not enforce uniqueness at insert time, so
// duplicates are rejected by an explicit existence check on the run before
// the batch is sent. A run's history is written exactly once.
type HistoryStore struct {
	conn    *Conn
	metrics *observability.Metrics
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(conn *Conn) *HistoryStore {
	return &HistoryStore{conn: conn}
}

// WithMetrics attaches query instrumentation and returns the store.
func (s *HistoryStore) WithMetrics(m *observability.Metrics) *HistoryStore {
	s.metrics = m
	return s
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

func (s *HistoryStore) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveDBQuery("equity_history", operation, time.Since(start).Seconds(), *err)
}

// InsertBulk adds the points of one run atomically. Fails the entire batch
// on any duplicate (run_id, round, bank_index).
func (s *HistoryStore) InsertBulk(ctx context.Context, points []*domain.EquityPoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	defer s.observe("insert_bulk", time.Now(), &err)

	// Check for intra-batch duplicates
	type key struct {
		runID     string
		round     int
		bankIndex int
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.RunID, p.Round, p.BankIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for already-written runs
	for runID := range runIDs(points) {
		exists, err := s.runExists(ctx, runID)
		if err != nil {
			return fmt.Errorf("check run exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_history (
			run_id, round, bank_index, bank_name, equity, ext_asset
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, uint32(p.Round), uint32(p.BankIndex), p.BankName,
			p.Equity, p.ExtAsset,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by round ASC,
// bank_index ASC.
func (s *HistoryStore) GetByRunID(ctx context.Context, runID string) (_ []*domain.EquityPoint, err error) {
	defer s.observe("get_by_run_id", time.Now(), &err)
	query := `
		SELECT run_id, round, bank_index, bank_name, equity, ext_asset
		FROM equity_history
		WHERE run_id = ?
		ORDER BY round ASC, bank_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var out []*domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		var round, bankIndex uint32
		if err := rows.Scan(&p.RunID, &round, &bankIndex, &p.BankName, &p.Equity, &p.ExtAsset); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Round = int(round)
		p.BankIndex = int(bankIndex)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}
	return out, nil
}

func (s *HistoryStore) runExists(ctx context.Context, runID string) (bool, error) {
	row := s.conn.QueryRow(ctx, `SELECT count() FROM equity_history WHERE run_id = ?`, runID)
	var count uint64
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func runIDs(points []*domain.EquityPoint) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, p := range points {
		ids[p.RunID] = struct{}{}
	}
	return ids
}
