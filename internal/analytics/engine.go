// Package analytics computes multi-granularity time analytics on top of the
// storage contract. The engine is pure aggregation: it fetches the raw
// window of entries and does all grouping in Go, so both storage backends
// produce numerically identical results by construction.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// topTasksLimit caps the ranked task list in the summary.
const topTasksLimit = 10

// unknownCategoryName labels entries whose category no longer exists,
// e.g. data imported before its category was removed.
const unknownCategoryName = "Uncategorized"

// Source is the slice of the storage contract the engine consumes.
type Source interface {
	ListTimeEntriesInRange(ctx context.Context, userID string, start, end time.Time) ([]entities.TimeEntry, error)
	ListCategories(ctx context.Context, userID string) ([]entities.Category, error)
}

type Engine struct {
	source Source
}

func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Summary aggregates the half-open [start, end) window. tzOffsetMinutes is
// the caller's UTC offset in minutes (UTC = local + offset) and only affects
// which local calendar date a bucket lands on. Only completed entries
// contribute; a running entry has no duration yet.
func (e *Engine) Summary(ctx context.Context, userID string, start, end time.Time, tzOffsetMinutes int) (*entities.AnalyticsSummary, error) {
	if !end.After(start) {
		return nil, storage.InvalidArgumentf("analytics period end must follow start")
	}

	entries, err := e.source.ListTimeEntriesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	categories, err := e.source.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	categoryByID := make(map[string]entities.Category, len(categories))
	for _, c := range categories {
		categoryByID[c.ID] = c
	}

	result := &entities.AnalyticsSummary{
		Period:     entities.Period{Start: start, End: end},
		ByCategory: []entities.CategoryTotal{},
		Daily:      []entities.DailyTotal{},
		TopTasks:   []entities.TaskTotal{},
	}

	type categoryAgg struct {
		minutes int
		count   int
	}
	type taskAgg struct {
		count   int
		minutes int
		order   int // first-seen index, keeps equal-count ranking stable
	}
	byCategory := map[string]*categoryAgg{}
	byDay := map[string]*entities.DailyTotal{}
	byTask := map[string]*taskAgg{}

	totalMinutes := 0
	totalEntries := 0
	for _, entry := range entries {
		if entry.DurationMinutes == nil {
			continue
		}
		minutes := *entry.DurationMinutes
		totalMinutes += minutes
		totalEntries++

		agg := byCategory[entry.CategoryID]
		if agg == nil {
			agg = &categoryAgg{}
			byCategory[entry.CategoryID] = agg
		}
		agg.minutes += minutes
		agg.count++

		date := localDate(entry.StartTime, tzOffsetMinutes)
		day := byDay[date]
		if day == nil {
			day = &entities.DailyTotal{Date: date, ByCategory: map[string]int{}}
			byDay[date] = day
		}
		day.Minutes += minutes
		categoryName := unknownCategoryName
		if category, ok := categoryByID[entry.CategoryID]; ok {
			categoryName = category.Name
		}
		day.ByCategory[categoryName] += minutes

		if entry.TaskName != "" {
			task := byTask[entry.TaskName]
			if task == nil {
				task = &taskAgg{order: len(byTask)}
				byTask[entry.TaskName] = task
			}
			task.count++
			task.minutes += minutes
		}
	}

	for id, agg := range byCategory {
		category, ok := categoryByID[id]
		if !ok {
			category.Name = unknownCategoryName
		}
		result.ByCategory = append(result.ByCategory, entities.CategoryTotal{
			Name:    category.Name,
			Color:   category.Color,
			Minutes: agg.minutes,
			Count:   agg.count,
		})
	}
	sort.Slice(result.ByCategory, func(i, j int) bool {
		return result.ByCategory[i].Minutes > result.ByCategory[j].Minutes
	})

	for _, day := range byDay {
		result.Daily = append(result.Daily, *day)
	}
	sort.Slice(result.Daily, func(i, j int) bool {
		return result.Daily[i].Date < result.Daily[j].Date
	})

	type rankedTask struct {
		name string
		agg  *taskAgg
	}
	ranked := make([]rankedTask, 0, len(byTask))
	for name, agg := range byTask {
		ranked = append(ranked, rankedTask{name: name, agg: agg})
	}
	// Equal counts keep first-seen order via the stable sort.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].agg.count != ranked[j].agg.count {
			return ranked[i].agg.count > ranked[j].agg.count
		}
		return ranked[i].agg.order < ranked[j].agg.order
	})
	for i, task := range ranked {
		if i == topTasksLimit {
			break
		}
		result.TopTasks = append(result.TopTasks, entities.TaskTotal{
			TaskName:     task.name,
			Count:        task.agg.count,
			TotalMinutes: task.agg.minutes,
		})
	}

	previousTotal, err := e.previousPeriodTotal(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	result.Summary = entities.Summary{
		TotalMinutes:     totalMinutes,
		TotalEntries:     totalEntries,
		AvgMinutesPerDay: roundDiv(totalMinutes, max(1, len(byDay))),
		PreviousTotal:    previousTotal,
		Change:           changePercent(totalMinutes, previousTotal),
	}
	return result, nil
}

// previousPeriodTotal sums the window of identical length immediately before
// [start, end). Total only; no per-category breakdown is kept.
func (e *Engine) previousPeriodTotal(ctx context.Context, userID string, start, end time.Time) (int, error) {
	length := end.Sub(start)
	entries, err := e.source.ListTimeEntriesInRange(ctx, userID, start.Add(-length), start)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, entry := range entries {
		if entry.DurationMinutes != nil {
			total += *entry.DurationMinutes
		}
	}
	return total, nil
}

// localDate buckets a UTC instant into the caller's local calendar date.
// tzOffsetMinutes follows the JavaScript getTimezoneOffset convention:
// UTC = local + offset, so local = utc - offset.
func localDate(utc time.Time, tzOffsetMinutes int) string {
	return utc.UTC().Add(-time.Duration(tzOffsetMinutes) * time.Minute).Format("2006-01-02")
}

func changePercent(current, previous int) int {
	if previous <= 0 {
		return 0
	}
	return int(math.Round(float64(current-previous) / float64(previous) * 100))
}

func roundDiv(numerator, denominator int) int {
	return int(math.Round(float64(numerator) / float64(denominator)))
}
