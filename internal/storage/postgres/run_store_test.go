package postgres

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contagion-lab/internal/domain"
	"contagion-lab/internal/observability"
	"contagion-lab/internal/storage"
)

func testRun(runID, networkID string, startedAt int64) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:           runID,
		NetworkID:       networkID,
		Method:          "eisenberg_noe",
		ShockTarget:     "equity",
		SolveAssets:     false,
		Status:          "converged",
		Rounds:          4,
		InnerIterations: 12,
		Tolerance:       1e-3,
		MaxRounds:       100,
		StartedAt:       startedAt,
		CreatedAt:       startedAt,
	}
}

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	run := testRun("run-001", "net-001", 1700000000000)
	run.SolveAssets = true

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, run.NetworkID, got.NetworkID)
	assert.Equal(t, run.Method, got.Method)
	assert.Equal(t, run.ShockTarget, got.ShockTarget)
	assert.Equal(t, run.SolveAssets, got.SolveAssets)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, run.Rounds, got.Rounds)
	assert.Equal(t, run.InnerIterations, got.InnerIterations)
	assert.Equal(t, run.Tolerance, got.Tolerance)
	assert.Equal(t, run.MaxRounds, got.MaxRounds)
	assert.Equal(t, run.StartedAt, got.StartedAt)
	assert.NotZero(t, got.CreatedAt)
}

func TestRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	run := testRun("run-dup", "net-001", 1700000000000)

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	err = store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)

	_, err := store.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListByNetwork(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRunStore(pool)
	ctx := context.Background()

	// Insert in reverse of the expected order.
	runs := []*domain.RunRecord{
		testRun("run-z", "net-a", 1000),
		testRun("run-a", "net-a", 1000), // same start, earlier run_id
		testRun("run-late", "net-a", 2000),
		testRun("run-other", "net-b", 500),
	}
	for _, r := range runs {
		require.NoError(t, store.Insert(ctx, r))
	}

	got, err := store.ListByNetwork(ctx, "net-a")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "run-a", got[0].RunID)
	assert.Equal(t, "run-z", got[1].RunID)
	assert.Equal(t, "run-late", got[2].RunID)

	empty, err := store.ListByNetwork(ctx, "net-none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRunStore_QueryMetrics(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	metrics := observability.NewMetrics("test_pg_run_store")
	store := NewRunStore(pool).WithMetrics(metrics)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRun("run-m", "net-m", 1000)))
	_, err := store.GetByID(ctx, "run-m")
	require.NoError(t, err)

	assert.NotZero(t, testutil.CollectAndCount(metrics.DBQueryDuration))
	assert.Zero(t, testutil.ToFloat64(metrics.DBQueryErrors.WithLabelValues("runs", "insert")))

	// A duplicate insert counts as a failed query.
	require.Error(t, store.Insert(ctx, testRun("run-m", "net-m", 1000)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DBQueryErrors.WithLabelValues("runs", "insert")))
}
