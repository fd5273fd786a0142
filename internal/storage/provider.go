// Package storage defines the backend-agnostic contract every storage
// implementation satisfies. All invariants (single active entry per user,
// per-user category name uniqueness, safe category deletion) are part of the
// contract itself, not caller responsibility. Every operation is scoped by
// userID and must never read or mutate another user's rows.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/mrlokans/tempo/internal/entities"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SortBy selects the ordering for grouped task-name listings.
type SortBy string

const (
	SortByTime   SortBy = "time"   // total minutes, descending
	SortByAlpha  SortBy = "alpha"  // task name, ascending
	SortByCount  SortBy = "count"  // entry count, descending
	SortByRecent SortBy = "recent" // last use, descending
)

// PageParams is the shared paging/sorting contract for task-name listings
// and category drilldowns.
type PageParams struct {
	Page     int    // 1-based
	PageSize int    // capped at MaxPageSize
	SortBy   SortBy // defaults to SortByTime
	Search   string // case-insensitive substring match on task name
	Category string // category name filter (drilldown)
}

// Normalize validates and clamps paging parameters in place. This lives in
// the contract layer so both backends apply identical rules.
func (p *PageParams) Normalize() error {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Page < 1 {
		return InvalidArgumentf("page %d", p.Page)
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	switch p.SortBy {
	case "":
		p.SortBy = SortByTime
	case SortByTime, SortByAlpha, SortByCount, SortByRecent:
	default:
		return InvalidArgumentf("sortBy %q", string(p.SortBy))
	}
	p.Search = strings.TrimSpace(p.Search)
	p.Category = strings.TrimSpace(p.Category)
	return nil
}

// Offset returns the row offset for the normalized page.
func (p *PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// EntryFilter narrows ListTimeEntries.
type EntryFilter struct {
	Start      *time.Time // inclusive
	End        *time.Time // exclusive
	CategoryID string
	Search     string // substring match on task name
	Limit      int
	Offset     int
}

// CategoryUpdate is a partial category update; nil fields are left untouched.
type CategoryUpdate struct {
	Name  *string
	Color *string
}

// EntryUpdate is a partial time-entry update; nil fields are left untouched.
// ClearEndTime reopens the entry (end_time back to null, duration cleared).
type EntryUpdate struct {
	CategoryID   *string
	TaskName     *string
	StartTime    *time.Time
	EndTime      *time.Time
	ClearEndTime bool
}

// TaskNameUpdate renames and/or recategorizes the matched entries.
type TaskNameUpdate struct {
	NewName       *string
	NewCategoryID *string
}

// Provider is the storage contract. Two implementations exist: an embedded
// relational backend (sqlite) and a document backend (mongo). They must be
// observably identical for every method.
type Provider interface {
	// Users.
	CreateUser(ctx context.Context, user *entities.User) error
	GetUserByID(ctx context.Context, userID string) (*entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
	GetUserByUsername(ctx context.Context, username string) (*entities.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	// DeleteUser cascades to the user's categories, entries, tokens and settings.
	DeleteUser(ctx context.Context, userID string) error
	// ListUsers exists for the migration tool only.
	ListUsers(ctx context.Context) ([]entities.User, error)

	// Refresh tokens.
	CreateRefreshToken(ctx context.Context, token *entities.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*entities.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// Password reset tokens. Upsert replaces any prior token for the user.
	UpsertPasswordResetToken(ctx context.Context, token *entities.PasswordResetToken) error
	GetPasswordResetToken(ctx context.Context, token string) (*entities.PasswordResetToken, error)
	DeletePasswordResetToken(ctx context.Context, userID string) error

	// Categories.
	ListCategories(ctx context.Context, userID string) ([]entities.Category, error)
	GetCategory(ctx context.Context, userID, categoryID string) (*entities.Category, error)
	CreateCategory(ctx context.Context, category *entities.Category) error
	UpdateCategory(ctx context.Context, userID, categoryID string, update CategoryUpdate) (*entities.Category, error)
	// DeleteCategory reassigns linked entries to replacementID before
	// deleting. replacementID may be empty only when no entries are linked.
	DeleteCategory(ctx context.Context, userID, categoryID, replacementID string) error
	CountCategories(ctx context.Context, userID string) (int64, error)
	CreateDefaultCategories(ctx context.Context, userID string) ([]entities.Category, error)

	// Time entries.
	ListTimeEntries(ctx context.Context, userID string, filter EntryFilter) ([]entities.TimeEntry, int64, error)
	GetTimeEntry(ctx context.Context, userID, entryID string) (*entities.TimeEntry, error)
	// GetActiveTimeEntry returns (nil, nil) when no entry is running.
	GetActiveTimeEntry(ctx context.Context, userID string) (*entities.TimeEntry, error)
	// StartTimeEntry finalizes any running entry as part of the same call,
	// then inserts the new active entry. Callers never observe two active
	// entries for one user.
	StartTimeEntry(ctx context.Context, userID, categoryID, taskName string, start time.Time, scheduledEnd *time.Time) (*entities.TimeEntry, error)
	// StopTimeEntry requires entryID to be the user's active entry.
	StopTimeEntry(ctx context.Context, userID, entryID string, end time.Time) (*entities.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, userID, entryID string, update EntryUpdate) (*entities.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, userID, entryID string) error
	// DeleteTimeEntriesByDate removes the user's completed entries on the
	// given local calendar date; the active entry is never touched.
	DeleteTimeEntriesByDate(ctx context.Context, userID, date string, tzOffsetMinutes int) (int64, error)
	ReassignTimeEntriesCategory(ctx context.Context, userID, fromCategoryID, toCategoryID string) (int64, error)
	// ListTimeEntriesInRange feeds the analytics engine: completed and
	// active entries whose start falls in [start, end).
	ListTimeEntriesInRange(ctx context.Context, userID string, start, end time.Time) ([]entities.TimeEntry, error)
	// ListAllTimeEntries exists for the migration tool only.
	ListAllTimeEntries(ctx context.Context, userID string) ([]entities.TimeEntry, error)
	// ImportTimeEntry inserts a fully formed entry verbatim, preserving its
	// end time and duration. Migration-only; it bypasses the start/stop
	// state machine on purpose.
	ImportTimeEntry(ctx context.Context, entry *entities.TimeEntry) error

	// Task names.
	ListTaskSuggestions(ctx context.Context, userID, categoryID, query string, limit int) ([]entities.TaskSuggestion, error)
	ListTaskNames(ctx context.Context, userID string, params PageParams) (*entities.TaskNamePage, error)
	UpdateTimeEntriesByTaskName(ctx context.Context, userID, taskName string, update TaskNameUpdate) (int64, error)
	UpdateTimeEntriesByTaskAndCategory(ctx context.Context, userID, taskName, categoryID string, update TaskNameUpdate) (int64, error)
	// MergeTaskNames collapses the source names into target in one bulk
	// update; targetCategoryID may be empty to keep each entry's category.
	MergeTaskNames(ctx context.Context, userID string, sources []string, target, targetCategoryID string) (int64, error)
	CountTimeEntriesByTaskNames(ctx context.Context, userID string, names []string) (int64, error)

	// Settings and export.
	GetUserSettings(ctx context.Context, userID string) (*entities.UserSettings, error)
	UpsertUserSettings(ctx context.Context, settings *entities.UserSettings) error
	ListExportRows(ctx context.Context, userID string, start, end *time.Time) ([]entities.ExportRow, error)

	// Close releases the backend; the relational backend drains its dirty
	// snapshot first.
	Close(ctx context.Context) error
}

// DefaultCategories is the seed set created for every new account and
// anonymous session.
var DefaultCategories = []entities.Category{
	{Name: "Work", Color: "#4f8a8b"},
	{Name: "Personal", Color: "#fbd46d"},
	{Name: "Health", Color: "#95d5b2"},
	{Name: "Learning", Color: "#b788f9"},
}

// LocalDayWindow converts a local calendar date plus a UTC offset in minutes
// (UTC = local + offset) into the matching half-open UTC window. Both
// backends use it so date-scoped deletes behave identically.
func LocalDayWindow(date string, tzOffsetMinutes int) (time.Time, time.Time, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, InvalidArgumentf("date %q", date)
	}
	start := day.Add(time.Duration(tzOffsetMinutes) * time.Minute)
	return start, start.Add(24 * time.Hour), nil
}

// TotalPages derives the page count for a listing response.
func TotalPages(totalCount int64, pageSize int) int {
	if totalCount <= 0 || pageSize <= 0 {
		return 0
	}
	return int((totalCount + int64(pageSize) - 1) / int64(pageSize))
}
