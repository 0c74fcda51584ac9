package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// TestRecordAndGetRun tests that a recorded run round-trips through
// GetRun.
func TestRecordAndGetRun(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Second)
	finish := start.Add(5 * time.Second)

	id, err := store.RecordRun(ctx, Run{
		WorkflowName: "add-two-numbers",
		StartedAt:    start,
		FinishedAt:   finish,
		Success:      true,
		Result:       "end",
		Steps:        1,
	})
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "add-two-numbers", got.WorkflowName)
	require.True(t, got.Success)
	require.Equal(t, "end", got.Result)
	require.Equal(t, 1, got.Steps)
	require.NotEmpty(t, got.RunID)
}

// TestRecordRunAssignsUUIDWhenRunIDEmpty tests that an unset RunID is
// auto-populated with a UUID.
func TestRecordRunAssignsUUIDWhenRunIDEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := store.RecordRun(ctx, Run{WorkflowName: "w", StartedAt: now, FinishedAt: now, Success: true, Result: "end"})
	require.NoError(t, err)

	got, err := store.GetRun(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, got.RunID)
}

// TestListRunsFiltersByWorkflowName tests that ListRuns scopes to the
// named workflow when one is given, and returns every run otherwise.
func TestListRunsFiltersByWorkflowName(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.RecordRun(ctx, Run{WorkflowName: "a", StartedAt: now, FinishedAt: now, Success: true, Result: "end"})
	require.NoError(t, err)
	_, err = store.RecordRun(ctx, Run{WorkflowName: "b", StartedAt: now, FinishedAt: now, Success: false, Result: "failed"})
	require.NoError(t, err)
	_, err = store.RecordRun(ctx, Run{WorkflowName: "a", StartedAt: now, FinishedAt: now, Success: true, Result: "end"})
	require.NoError(t, err)

	onlyA, err := store.ListRuns(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	for _, r := range onlyA {
		require.Equal(t, "a", r.WorkflowName)
	}

	all, err := store.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

// TestListRunsOrdersNewestFirst tests that results come back in descending
// id order.
func TestListRunsOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := store.RecordRun(ctx, Run{WorkflowName: "w", StartedAt: now, FinishedAt: now, Success: true, Result: "end"})
	require.NoError(t, err)
	second, err := store.RecordRun(ctx, Run{WorkflowName: "w", StartedAt: now, FinishedAt: now, Success: true, Result: "end"})
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, "w", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, second, runs[0].ID)
	require.Equal(t, first, runs[1].ID)
}

// TestListRunsRespectsLimit tests that limit bounds the returned count.
func TestListRunsRespectsLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := store.RecordRun(ctx, Run{WorkflowName: "w", StartedAt: now, FinishedAt: now, Success: true, Result: "end"})
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, "w", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

// TestGetRunUnknownIDReturnsError tests that fetching a nonexistent id
// surfaces an error rather than a zero-value Run.
func TestGetRunUnknownIDReturnsError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), 99999)
	require.Error(t, err)
}

// TestOpenIsIdempotentAcrossReopen tests that reopening the same database
// file does not fail migration and preserves existing rows.
func TestOpenIsIdempotentAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")

	store, err := Open(dbPath)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()
	_, err = store.RecordRun(ctx, Run{WorkflowName: "w", StartedAt: now, FinishedAt: now, Success: true, Result: "end"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, "w", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
