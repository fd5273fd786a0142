package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// seedEntries inserts completed entries with fixed durations via the import
// path, which keeps the fixtures independent of the start/stop state machine.
func seedEntries(t *testing.T, store *Store, userID, categoryID, taskName string, count, minutes int, base time.Time) {
	t.Helper()
	for i := 0; i < count; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		end := start.Add(time.Duration(minutes) * time.Minute)
		duration := minutes
		require.NoError(t, store.ImportTimeEntry(context.Background(), &entities.TimeEntry{
			UserID:          userID,
			CategoryID:      categoryID,
			TaskName:        taskName,
			StartTime:       start,
			EndTime:         &end,
			DurationMinutes: &duration,
		}))
	}
}

func TestListTaskNames(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice@example.com", "alice")
	dev := createTestCategory(t, store, user.ID, "Dev")
	ops := createTestCategory(t, store, user.ID, "Ops")
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	seedEntries(t, store, user.ID, dev.ID, "review", 3, 20, base)                 // 60 min
	seedEntries(t, store, user.ID, dev.ID, "coding", 2, 90, base.Add(time.Hour)) // 180 min
	seedEntries(t, store, user.ID, ops.ID, "review", 1, 45, base.Add(30*time.Hour))
	seedEntries(t, store, user.ID, ops.ID, "deploy", 4, 5, base.Add(2*time.Hour)) // 20 min

	t.Run("groups by name and category", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{})
		require.NoError(t, err)
		assert.Equal(t, int64(4), page.TotalCount)

		// "review" appears once per category
		reviews := 0
		for _, item := range page.Items {
			if item.TaskName == "review" {
				reviews++
			}
		}
		assert.Equal(t, 2, reviews)
	})

	t.Run("default sort is total time descending", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{})
		require.NoError(t, err)
		require.NotEmpty(t, page.Items)
		assert.Equal(t, "coding", page.Items[0].TaskName)
		assert.Equal(t, 180, page.Items[0].TotalMinutes)
		assert.Equal(t, "Dev", page.Items[0].CategoryName)
	})

	t.Run("sort by count", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{SortBy: storage.SortByCount})
		require.NoError(t, err)
		assert.Equal(t, "deploy", page.Items[0].TaskName)
		assert.Equal(t, 4, page.Items[0].Count)
	})

	t.Run("sort alphabetically", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{SortBy: storage.SortByAlpha})
		require.NoError(t, err)
		assert.Equal(t, "coding", page.Items[0].TaskName)
		assert.Equal(t, "deploy", page.Items[1].TaskName)
	})

	t.Run("sort by recency", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{SortBy: storage.SortByRecent})
		require.NoError(t, err)
		assert.Equal(t, "review", page.Items[0].TaskName)
		assert.Equal(t, "Ops", page.Items[0].CategoryName)
	})

	t.Run("search filters case-insensitively", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{Search: "REV"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.TotalCount)
	})

	t.Run("category filter scopes the drilldown", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{Category: "Ops"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.TotalCount)
		for _, item := range page.Items {
			assert.Equal(t, "Ops", item.CategoryName)
		}
	})

	t.Run("pagination clamps and pages beyond the end are empty", func(t *testing.T) {
		page, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{Page: 2, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), page.TotalCount)
		assert.Len(t, page.Items, 1)

		beyond, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{Page: 99, PageSize: 3})
		require.NoError(t, err)
		assert.Empty(t, beyond.Items)
		assert.Equal(t, int64(4), beyond.TotalCount)
	})

	t.Run("invalid sort is rejected", func(t *testing.T) {
		_, err := store.ListTaskNames(ctx, user.ID, storage.PageParams{SortBy: "wat"})
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	})
}

func TestListTaskSuggestions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice@example.com", "alice")
	dev := createTestCategory(t, store, user.ID, "Dev")
	ops := createTestCategory(t, store, user.ID, "Ops")
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	seedEntries(t, store, user.ID, dev.ID, "review", 3, 20, base)
	seedEntries(t, store, user.ID, dev.ID, "refactor", 1, 20, base)
	seedEntries(t, store, user.ID, ops.ID, "deploy", 2, 20, base)

	t.Run("ranked by usage", func(t *testing.T) {
		suggestions, err := store.ListTaskSuggestions(ctx, user.ID, "", "", 10)
		require.NoError(t, err)
		require.Len(t, suggestions, 3)
		assert.Equal(t, "review", suggestions[0].TaskName)
		assert.Equal(t, 3, suggestions[0].Count)
	})

	t.Run("category scoping", func(t *testing.T) {
		suggestions, err := store.ListTaskSuggestions(ctx, user.ID, ops.ID, "", 10)
		require.NoError(t, err)
		require.Len(t, suggestions, 1)
		assert.Equal(t, "deploy", suggestions[0].TaskName)
	})

	t.Run("prefix query", func(t *testing.T) {
		suggestions, err := store.ListTaskSuggestions(ctx, user.ID, "", "re", 10)
		require.NoError(t, err)
		assert.Len(t, suggestions, 2)
	})
}

func TestBulkTaskNameUpdates(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice@example.com", "alice")
	dev := createTestCategory(t, store, user.ID, "Dev")
	ops := createTestCategory(t, store, user.ID, "Ops")
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	seedEntries(t, store, user.ID, dev.ID, "draft", 5, 10, base)
	seedEntries(t, store, user.ID, ops.ID, "draft", 7, 10, base.Add(time.Hour))
	seedEntries(t, store, user.ID, dev.ID, "polish", 2, 10, base)

	t.Run("rename across categories", func(t *testing.T) {
		name := "sketch"
		affected, err := store.UpdateTimeEntriesByTaskName(ctx, user.ID, "polish", storage.TaskNameUpdate{NewName: &name})
		require.NoError(t, err)
		assert.Equal(t, int64(2), affected)
	})

	t.Run("scoped to one category", func(t *testing.T) {
		name := "draft-dev"
		affected, err := store.UpdateTimeEntriesByTaskAndCategory(ctx, user.ID, "draft", dev.ID,
			storage.TaskNameUpdate{NewName: &name})
		require.NoError(t, err)
		assert.Equal(t, int64(5), affected)

		count, err := store.CountTimeEntriesByTaskNames(ctx, user.ID, []string{"draft"})
		require.NoError(t, err)
		assert.Equal(t, int64(7), count)
	})

	t.Run("recategorize validates the target category", func(t *testing.T) {
		missing := "missing"
		_, err := store.UpdateTimeEntriesByTaskName(ctx, user.ID, "draft", storage.TaskNameUpdate{NewCategoryID: &missing})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("blank new name is invalid", func(t *testing.T) {
		blank := "   "
		_, err := store.UpdateTimeEntriesByTaskName(ctx, user.ID, "draft", storage.TaskNameUpdate{NewName: &blank})
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	})

	t.Run("merge collapses all sources and reports the count", func(t *testing.T) {
		affected, err := store.MergeTaskNames(ctx, user.ID, []string{"draft", "draft-dev"}, "Draft Report", "")
		require.NoError(t, err)
		assert.Equal(t, int64(12), affected)

		count, err := store.CountTimeEntriesByTaskNames(ctx, user.ID, []string{"draft", "draft-dev"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		count, err = store.CountTimeEntriesByTaskNames(ctx, user.ID, []string{"Draft Report"})
		require.NoError(t, err)
		assert.Equal(t, int64(12), count)
	})

	t.Run("merge can move everything into one category", func(t *testing.T) {
		affected, err := store.MergeTaskNames(ctx, user.ID, []string{"Draft Report"}, "Draft Report", ops.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(12), affected)

		_, total, err := store.ListTimeEntries(ctx, user.ID, storage.EntryFilter{CategoryID: ops.ID, Search: "Draft Report"})
		require.NoError(t, err)
		assert.Equal(t, int64(12), total)
	})

	t.Run("merge without sources or target is invalid", func(t *testing.T) {
		_, err := store.MergeTaskNames(ctx, user.ID, nil, "x", "")
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)

		_, err = store.MergeTaskNames(ctx, user.ID, []string{"a"}, "  ", "")
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	})

	t.Run("merging unknown names affects zero rows", func(t *testing.T) {
		affected, err := store.MergeTaskNames(ctx, user.ID, []string{"nope"}, "whatever", "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), affected)
	})
}
