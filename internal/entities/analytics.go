package entities

import "time"

// CategoryTotal is one row of the per-category analytics breakdown.
type CategoryTotal struct {
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
	Minutes int    `json:"minutes"`
	Count   int    `json:"count"`
}

// DailyTotal is one local-calendar-date bucket. Only dates with activity are
// emitted; zero-filling the requested range is the caller's job.
type DailyTotal struct {
	Date       string         `json:"date"` // YYYY-MM-DD in the caller's locale
	Minutes    int            `json:"minutes"`
	ByCategory map[string]int `json:"byCategory"`
}

// TaskTotal is one row of the top-tasks ranking.
type TaskTotal struct {
	TaskName     string `json:"task_name"`
	Count        int    `json:"count"`
	TotalMinutes int    `json:"total_minutes"`
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Summary struct {
	TotalMinutes     int `json:"totalMinutes"`
	TotalEntries     int `json:"totalEntries"`
	AvgMinutesPerDay int `json:"avgMinutesPerDay"`
	PreviousTotal    int `json:"previousTotal"`
	Change           int `json:"change"` // percent vs the preceding period
}

// AnalyticsSummary is the full aggregation result for one period.
type AnalyticsSummary struct {
	Period     Period          `json:"period"`
	Summary    Summary         `json:"summary"`
	ByCategory []CategoryTotal `json:"byCategory"`
	Daily      []DailyTotal    `json:"daily"`
	TopTasks   []TaskTotal     `json:"topTasks"`
}

// TaskNameItem is one row of the grouped task-name listing. Grouping is by
// (task name, category) pair, so a name reused under two categories shows up
// as two rows.
type TaskNameItem struct {
	TaskName      string    `json:"task_name"`
	CategoryID    string    `json:"category_id"`
	CategoryName  string    `json:"category_name"`
	CategoryColor string    `json:"category_color,omitempty"`
	Count         int       `json:"count"`
	TotalMinutes  int       `json:"total_minutes"`
	LastUsed      time.Time `json:"last_used"`
}

// TaskNamePage is a page of the task-name listing plus the unpaged total.
type TaskNamePage struct {
	Items      []TaskNameItem `json:"items"`
	TotalCount int64          `json:"totalCount"`
}

// TaskSuggestion is an autocomplete candidate, ranked by usage.
type TaskSuggestion struct {
	TaskName string    `json:"task_name"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// ExportRow is a flat, denormalized entry row for the export surface.
type ExportRow struct {
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	Category string `json:"category"`
	TaskName string `json:"task_name,omitempty"`
	Minutes  *int   `json:"minutes"`
}
