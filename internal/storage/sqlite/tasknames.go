package sqlite

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// taskGroupScan receives one GROUP BY row; last_used arrives as raw text
// because it is a computed column.
type taskGroupScan struct {
	TaskName      string
	CategoryID    string
	CategoryName  string
	CategoryColor string
	Count         int
	TotalMinutes  int
	LastUsed      string
}

func (s *Store) ListTaskSuggestions(ctx context.Context, userID, categoryID, query string, limit int) ([]entities.TaskSuggestion, error) {
	if limit <= 0 || limit > storage.MaxPageSize {
		limit = storage.DefaultPageSize
	}

	q := s.db.WithContext(ctx).Model(&entities.TimeEntry{}).
		Select("task_name, COUNT(*) AS count, MAX(start_time) AS last_used").
		Where("user_id = ? AND task_name <> ''", userID)
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	if query != "" {
		q = q.Where("LOWER(task_name) LIKE LOWER(?)", "%"+strings.TrimSpace(query)+"%")
	}

	var scanned []struct {
		TaskName string
		Count    int
		LastUsed string
	}
	err := q.Group("task_name").
		Order("count DESC, last_used DESC").
		Limit(limit).
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}

	suggestions := make([]entities.TaskSuggestion, 0, len(scanned))
	for _, row := range scanned {
		lastUsed, err := parseSQLiteTime(row.LastUsed)
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, entities.TaskSuggestion{
			TaskName: row.TaskName,
			Count:    row.Count,
			LastUsed: lastUsed,
		})
	}
	return suggestions, nil
}

// ListTaskNames is the paginated grouped listing; the category drilldown is
// the same query with the Category filter set. Grouping, sorting and paging
// are all set-based SQL.
func (s *Store) ListTaskNames(ctx context.Context, userID string, params storage.PageParams) (*entities.TaskNamePage, error) {
	if err := params.Normalize(); err != nil {
		return nil, err
	}

	grouped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&entities.TimeEntry{}).
			Select("time_entries.task_name, time_entries.category_id, " +
				"categories.name AS category_name, categories.color AS category_color, " +
				"COUNT(*) AS count, COALESCE(SUM(time_entries.duration_minutes), 0) AS total_minutes, " +
				"MAX(time_entries.start_time) AS last_used").
			Joins("JOIN categories ON categories.id = time_entries.category_id").
			Where("time_entries.user_id = ? AND time_entries.task_name <> ''", userID)
		if params.Search != "" {
			q = q.Where("LOWER(time_entries.task_name) LIKE LOWER(?)", "%"+params.Search+"%")
		}
		if params.Category != "" {
			q = q.Where("categories.name = ?", params.Category)
		}
		return q.Group("time_entries.task_name, time_entries.category_id")
	}

	var totalCount int64
	err := s.db.WithContext(ctx).Table("(?) AS grouped", grouped()).Count(&totalCount).Error
	if err != nil {
		return nil, err
	}

	var order string
	switch params.SortBy {
	case storage.SortByAlpha:
		order = "time_entries.task_name COLLATE NOCASE ASC"
	case storage.SortByCount:
		order = "count DESC"
	case storage.SortByRecent:
		order = "last_used DESC"
	default: // SortByTime
		order = "total_minutes DESC"
	}

	var scanned []taskGroupScan
	err = grouped().Order(order).
		Limit(params.PageSize).
		Offset(params.Offset()).
		Scan(&scanned).Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.TaskNameItem, 0, len(scanned))
	for _, row := range scanned {
		lastUsed, err := parseSQLiteTime(row.LastUsed)
		if err != nil {
			return nil, err
		}
		items = append(items, entities.TaskNameItem{
			TaskName:      row.TaskName,
			CategoryID:    row.CategoryID,
			CategoryName:  row.CategoryName,
			CategoryColor: row.CategoryColor,
			Count:         row.Count,
			TotalMinutes:  row.TotalMinutes,
			LastUsed:      lastUsed,
		})
	}
	return &entities.TaskNamePage{Items: items, TotalCount: totalCount}, nil
}

// UpdateTimeEntriesByTaskName renames and/or recategorizes every entry of
// the user sharing the task name, returning the affected count.
func (s *Store) UpdateTimeEntriesByTaskName(ctx context.Context, userID, taskName string, update storage.TaskNameUpdate) (int64, error) {
	return s.bulkUpdateTaskEntries(ctx, userID, update, "user_id = ? AND task_name = ?", userID, taskName)
}

// UpdateTimeEntriesByTaskAndCategory restricts the bulk update to the exact
// (task name, category) pair.
func (s *Store) UpdateTimeEntriesByTaskAndCategory(ctx context.Context, userID, taskName, categoryID string, update storage.TaskNameUpdate) (int64, error) {
	return s.bulkUpdateTaskEntries(ctx, userID, update,
		"user_id = ? AND task_name = ? AND category_id = ?", userID, taskName, categoryID)
}

func (s *Store) bulkUpdateTaskEntries(ctx context.Context, userID string, update storage.TaskNameUpdate, where string, args ...any) (int64, error) {
	updates := map[string]any{}
	if update.NewName != nil {
		name := strings.TrimSpace(*update.NewName)
		if name == "" {
			return 0, storage.InvalidArgumentf("task name cannot be blank")
		}
		updates["task_name"] = name
	}
	if update.NewCategoryID != nil {
		updates["category_id"] = *update.NewCategoryID
	}
	if len(updates) == 0 {
		return 0, storage.InvalidArgumentf("nothing to update")
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if update.NewCategoryID != nil {
			if _, err := getCategory(tx, userID, *update.NewCategoryID); err != nil {
				return err
			}
		}
		result := tx.Model(&entities.TimeEntry{}).Where(where, args...).Updates(updates)
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.markDirty()
	}
	return affected, nil
}

// MergeTaskNames collapses the source names into target in one bulk update.
func (s *Store) MergeTaskNames(ctx context.Context, userID string, sources []string, target, targetCategoryID string) (int64, error) {
	target = strings.TrimSpace(target)
	if len(sources) == 0 {
		return 0, storage.InvalidArgumentf("merge requires at least one source task name")
	}
	if target == "" {
		return 0, storage.InvalidArgumentf("merge target name cannot be blank")
	}

	updates := map[string]any{"task_name": target}
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if targetCategoryID != "" {
			if _, err := getCategory(tx, userID, targetCategoryID); err != nil {
				return err
			}
			updates["category_id"] = targetCategoryID
		}
		result := tx.Model(&entities.TimeEntry{}).
			Where("user_id = ? AND task_name IN ?", userID, sources).
			Updates(updates)
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.markDirty()
	}
	return affected, nil
}

func (s *Store) CountTimeEntriesByTaskNames(ctx context.Context, userID string, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.TimeEntry{}).
		Where("user_id = ? AND task_name IN ?", userID, names).
		Count(&count).Error
	return count, err
}
