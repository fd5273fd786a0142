package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// fakeSource serves a fixed entry list filtered by the requested window.
type fakeSource struct {
	entries    []entities.TimeEntry
	categories []entities.Category
}

func (f *fakeSource) ListTimeEntriesInRange(_ context.Context, _ string, start, end time.Time) ([]entities.TimeEntry, error) {
	var out []entities.TimeEntry
	for _, e := range f.entries {
		if !e.StartTime.Before(start) && e.StartTime.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeSource) ListCategories(context.Context, string) ([]entities.Category, error) {
	return f.categories, nil
}

func entry(categoryID, task string, start time.Time, minutes int) entities.TimeEntry {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return entities.TimeEntry{
		CategoryID:      categoryID,
		TaskName:        task,
		StartTime:       start,
		EndTime:         &end,
		DurationMinutes: &minutes,
	}
}

var testCategories = []entities.Category{
	{ID: "work", Name: "Work", Color: "#4f8a8b"},
	{ID: "health", Name: "Health", Color: "#95d5b2"},
}

func TestSummaryAggregation(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	source := &fakeSource{
		categories: testCategories,
		entries: []entities.TimeEntry{
			entry("work", "coding", day1, 60),
			entry("work", "coding", day1.Add(2*time.Hour), 30),
			entry("health", "run", day3, 45),
		},
	}
	engine := NewEngine(source)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	summary, err := engine.Summary(context.Background(), "u", start, end, 0)
	require.NoError(t, err)

	t.Run("totals agree across breakdowns", func(t *testing.T) {
		assert.Equal(t, 135, summary.Summary.TotalMinutes)
		assert.Equal(t, 3, summary.Summary.TotalEntries)

		byCategorySum := 0
		for _, c := range summary.ByCategory {
			byCategorySum += c.Minutes
		}
		dailySum := 0
		for _, d := range summary.Daily {
			dailySum += d.Minutes
		}
		assert.Equal(t, summary.Summary.TotalMinutes, byCategorySum)
		assert.Equal(t, summary.Summary.TotalMinutes, dailySum)
	})

	t.Run("byCategory sorted by minutes descending", func(t *testing.T) {
		require.Len(t, summary.ByCategory, 2)
		assert.Equal(t, "Work", summary.ByCategory[0].Name)
		assert.Equal(t, 90, summary.ByCategory[0].Minutes)
		assert.Equal(t, 2, summary.ByCategory[0].Count)
		assert.Equal(t, "#4f8a8b", summary.ByCategory[0].Color)
	})

	t.Run("daily is sparse with per-category breakdown", func(t *testing.T) {
		require.Len(t, summary.Daily, 2)
		assert.Equal(t, "2026-03-02", summary.Daily[0].Date)
		assert.Equal(t, 90, summary.Daily[0].Minutes)
		assert.Equal(t, 90, summary.Daily[0].ByCategory["Work"])
		assert.Equal(t, "2026-03-04", summary.Daily[1].Date)
	})

	t.Run("average divides by active days", func(t *testing.T) {
		// 135 minutes over 2 active days, not 3 calendar days
		assert.Equal(t, 68, summary.Summary.AvgMinutesPerDay)
	})

	t.Run("topTasks ranked by count", func(t *testing.T) {
		require.Len(t, summary.TopTasks, 2)
		assert.Equal(t, "coding", summary.TopTasks[0].TaskName)
		assert.Equal(t, 2, summary.TopTasks[0].Count)
		assert.Equal(t, 90, summary.TopTasks[0].TotalMinutes)
	})
}

func TestSummaryTimezoneBucketing(t *testing.T) {
	// 23:30 UTC on March 2nd is already March 3rd at UTC+2 (offset -120)
	late := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	source := &fakeSource{
		categories: testCategories,
		entries:    []entities.TimeEntry{entry("work", "night", late, 20)},
	}
	engine := NewEngine(source)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	utcView, err := engine.Summary(context.Background(), "u", start, end, 0)
	require.NoError(t, err)
	require.Len(t, utcView.Daily, 1)
	assert.Equal(t, "2026-03-02", utcView.Daily[0].Date)

	shifted, err := engine.Summary(context.Background(), "u", start, end, -120)
	require.NoError(t, err)
	require.Len(t, shifted.Daily, 1)
	assert.Equal(t, "2026-03-03", shifted.Daily[0].Date)
}

func TestSummaryPreviousPeriod(t *testing.T) {
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	source := &fakeSource{
		categories: testCategories,
		entries: []entities.TimeEntry{
			entry("work", "a", start.Add(10*time.Hour), 150),
			// preceding week
			entry("work", "b", start.AddDate(0, 0, -3), 100),
			// before the preceding week, must not count
			entry("work", "c", start.AddDate(0, 0, -10), 500),
		},
	}
	engine := NewEngine(source)

	summary, err := engine.Summary(context.Background(), "u", start, end, 0)
	require.NoError(t, err)
	assert.Equal(t, 150, summary.Summary.TotalMinutes)
	assert.Equal(t, 100, summary.Summary.PreviousTotal)
	assert.Equal(t, 50, summary.Summary.Change)
}

func TestSummaryEdgeCases(t *testing.T) {
	engine := NewEngine(&fakeSource{categories: testCategories})
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("empty period", func(t *testing.T) {
		summary, err := engine.Summary(context.Background(), "u", start, start.AddDate(0, 0, 7), 0)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Summary.TotalMinutes)
		assert.Equal(t, 0, summary.Summary.Change)
		assert.Empty(t, summary.ByCategory)
		assert.Empty(t, summary.Daily)
		assert.Empty(t, summary.TopTasks)
	})

	t.Run("inverted period is invalid", func(t *testing.T) {
		_, err := engine.Summary(context.Background(), "u", start, start.Add(-time.Hour), 0)
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	})

	t.Run("running entries do not contribute", func(t *testing.T) {
		running := entities.TimeEntry{CategoryID: "work", TaskName: "live", StartTime: start.Add(time.Hour)}
		source := &fakeSource{categories: testCategories, entries: []entities.TimeEntry{running}}
		summary, err := NewEngine(source).Summary(context.Background(), "u", start, start.AddDate(0, 0, 1), 0)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Summary.TotalMinutes)
		assert.Equal(t, 0, summary.Summary.TotalEntries)
	})

	t.Run("zero previous gives zero change", func(t *testing.T) {
		source := &fakeSource{
			categories: testCategories,
			entries:    []entities.TimeEntry{entry("work", "a", start.Add(time.Hour), 60)},
		}
		summary, err := NewEngine(source).Summary(context.Background(), "u", start, start.AddDate(0, 0, 1), 0)
		require.NoError(t, err)
		assert.Equal(t, 60, summary.Summary.TotalMinutes)
		assert.Equal(t, 0, summary.Summary.PreviousTotal)
		assert.Equal(t, 0, summary.Summary.Change)
	})

	t.Run("nameless entries count in totals but not topTasks", func(t *testing.T) {
		source := &fakeSource{
			categories: testCategories,
			entries:    []entities.TimeEntry{entry("work", "", start.Add(time.Hour), 15)},
		}
		summary, err := NewEngine(source).Summary(context.Background(), "u", start, start.AddDate(0, 0, 1), 0)
		require.NoError(t, err)
		assert.Equal(t, 15, summary.Summary.TotalMinutes)
		assert.Empty(t, summary.TopTasks)
	})

	t.Run("entries with a vanished category bucket as Uncategorized", func(t *testing.T) {
		source := &fakeSource{
			categories: testCategories,
			entries:    []entities.TimeEntry{entry("gone", "orphan", start.Add(time.Hour), 20)},
		}
		summary, err := NewEngine(source).Summary(context.Background(), "u", start, start.AddDate(0, 0, 1), 0)
		require.NoError(t, err)
		require.Len(t, summary.ByCategory, 1)
		assert.Equal(t, "Uncategorized", summary.ByCategory[0].Name)
		assert.Equal(t, 20, summary.ByCategory[0].Minutes)
		require.Len(t, summary.Daily, 1)
		assert.Equal(t, 20, summary.Daily[0].ByCategory["Uncategorized"])
	})

	t.Run("topTasks caps at ten", func(t *testing.T) {
		var entries []entities.TimeEntry
		for i := 0; i < 15; i++ {
			entries = append(entries, entry("work", string(rune('a'+i)), start.Add(time.Duration(i)*time.Minute), 5))
		}
		source := &fakeSource{categories: testCategories, entries: entries}
		summary, err := NewEngine(source).Summary(context.Background(), "u", start, start.AddDate(0, 0, 1), 0)
		require.NoError(t, err)
		assert.Len(t, summary.TopTasks, 10)
	})
}
