package memory

import (
	"context"
	"sort"
	"sync"

	"contagion-lab/internal/domain"
	"contagion-lab/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.EquityPoint // keyed by run_id
	seen map[pointKey]struct{}
}

type pointKey struct {
	runID     string
	round     int
	bankIndex int
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		data: make(map[string][]*domain.EquityPoint),
		seen: make(map[pointKey]struct{}),
	}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// InsertBulk adds the points of one run atomically. Fails the entire batch
// on any duplicate (run_id, round, bank_index).
func (s *HistoryStore) InsertBulk(_ context.Context, points []*domain.EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check against existing and intra-batch duplicates before writing
	// anything, so a failed batch leaves no partial state.
	batch := make(map[pointKey]struct{}, len(points))
	for _, p := range points {
		k := pointKey{p.RunID, p.Round, p.BankIndex}
		if _, exists := s.seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[p.RunID] = append(s.data[p.RunID], &pointCopy)
		s.seen[pointKey{p.RunID, p.Round, p.BankIndex}] = struct{}{}
	}
	return nil
}

// GetByRunID retrieves all points for a run, ordered by round ASC,
// bank_index ASC.
func (s *HistoryStore) GetByRunID(_ context.Context, runID string) ([]*domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.data[runID]
	out := make([]*domain.EquityPoint, len(points))
	for i, p := range points {
		pointCopy := *p
		out[i] = &pointCopy
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].BankIndex < out[j].BankIndex
	})
	return out, nil
}
