package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookmark-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func record(id, category string) model.Record {
	return model.Record{
		ID:           id,
		Text:         "text " + id,
		AuthorName:   "User " + id,
		AuthorHandle: "@user" + id,
		Timestamp:    "2024-05-01T12:00:00.000Z",
		URL:          "https://x.com/user/status/" + id,
		Category:     category,
		IsBookmarked: true,
	}
}

// --- State ---

func TestSQLite_State_SetGetDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, ok, err := st.GetState(ctx, model.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetState(ctx, map[string]string{
		model.KeyToken:     "tok-1",
		model.KeyUserEmail: "a@example.com",
	}))

	v, ok, err := st.GetState(ctx, model.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", v)

	require.NoError(t, st.SetState(ctx, map[string]string{model.KeyToken: "tok-2"}))
	v, _, err = st.GetState(ctx, model.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", v, "last writer wins")

	require.NoError(t, st.DeleteState(ctx, model.KeyToken, model.KeyUserEmail, "missing"))
	_, ok, err = st.GetState(ctx, model.KeyUserEmail)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_State_EmptyWrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	assert.NoError(t, st.SetState(ctx, nil))
	assert.NoError(t, st.DeleteState(ctx))
}

// --- Bookmarks ---

func TestSQLite_AppendBookmarks_KeepsFirstRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.AppendBookmarks(ctx, []model.Record{
		record("1", model.CategoryTech),
		record("2", model.CategoryHumor),
		{Text: "no permalink"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rescraped := record("1", model.CategoryHumor)
	rescraped.Text = "second"
	n, err = st.AppendBookmarks(ctx, []model.Record{rescraped, record("3", model.CategoryNews)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := st.ListBookmarks(ctx, BookmarkFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byID := map[string]model.Record{}
	for _, r := range all {
		byID[r.ID] = r
	}
	assert.Equal(t, record("1", model.CategoryTech), byID["1"])
	assert.Equal(t, record("2", model.CategoryHumor), byID["2"])
}

func TestSQLite_ListBookmarks_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.AppendBookmarks(ctx, []model.Record{
		record("1", model.CategoryTech),
		record("2", model.CategoryHumor),
		record("3", model.CategoryTech),
	})
	require.NoError(t, err)

	tech, err := st.ListBookmarks(ctx, BookmarkFilter{Category: model.CategoryTech})
	require.NoError(t, err)
	require.Len(t, tech, 2)
	assert.Equal(t, "1", tech[0].ID)
	assert.Equal(t, "3", tech[1].ID)

	page, err := st.ListBookmarks(ctx, BookmarkFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "2", page[0].ID)
}

func TestSQLite_BookmarkIDs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ids, err := st.BookmarkIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = st.AppendBookmarks(ctx, []model.Record{record("a", ""), record("b", "")})
	require.NoError(t, err)

	ids, err = st.BookmarkIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestSQLite_AppendBookmarks_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.AppendBookmarks(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// --- Runs ---

func TestSQLite_Runs_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := &model.Run{Mode: "live"}
	require.NoError(t, st.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	run.Status = model.RunStatusComplete
	run.Reason = "feed_end"
	run.Cycles = 7
	run.Found = 12
	run.Synced = 10
	run.Skipped = 1
	run.SyncFailures = 1
	require.NoError(t, st.FinishRun(ctx, run))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "live", got.Mode)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "feed_end", got.Reason)
	assert.Equal(t, 7, got.Cycles)
	assert.Equal(t, 12, got.Found)
	assert.Equal(t, 10, got.Synced)
	assert.False(t, got.FinishedAt.IsZero())

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestSQLite_FinishRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.FinishRun(context.Background(), &model.Run{ID: "nope", Status: model.RunStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_ImplementsStore(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}
