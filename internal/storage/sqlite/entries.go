package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

func (s *Store) ListTimeEntries(ctx context.Context, userID string, filter storage.EntryFilter) ([]entities.TimeEntry, int64, error) {
	// Chained gorm queries cannot be reused after a finisher, so the
	// filter is rebuilt for the count and the page fetch.
	filtered := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&entities.TimeEntry{}).Where("user_id = ?", userID)
		if filter.Start != nil {
			query = query.Where("start_time >= ?", *filter.Start)
		}
		if filter.End != nil {
			query = query.Where("start_time < ?", *filter.End)
		}
		if filter.CategoryID != "" {
			query = query.Where("category_id = ?", filter.CategoryID)
		}
		if filter.Search != "" {
			query = query.Where("LOWER(task_name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := filtered().Order("start_time DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []entities.TimeEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) GetTimeEntry(ctx context.Context, userID, entryID string) (*entities.TimeEntry, error) {
	return getEntry(s.db.WithContext(ctx), userID, entryID)
}

func getEntry(db *gorm.DB, userID, entryID string) (*entities.TimeEntry, error) {
	var entry entities.TimeEntry
	err := db.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFoundf("time entry %s", entryID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) GetActiveTimeEntry(ctx context.Context, userID string) (*entities.TimeEntry, error) {
	var entry entities.TimeEntry
	err := s.db.WithContext(ctx).Where("user_id = ? AND end_time IS NULL", userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// StartTimeEntry finalizes the running entry (if any) and inserts the new
// active entry inside one transaction, so the single-active invariant holds
// at every observable instant.
func (s *Store) StartTimeEntry(ctx context.Context, userID, categoryID, taskName string, start time.Time, scheduledEnd *time.Time) (*entities.TimeEntry, error) {
	if start.IsZero() {
		start = time.Now().UTC()
	}
	entry := &entities.TimeEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		CategoryID:       categoryID,
		TaskName:         taskName,
		StartTime:        start,
		ScheduledEndTime: scheduledEnd,
		CreatedAt:        time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getCategory(tx, userID, categoryID); err != nil {
			return err
		}

		var active entities.TimeEntry
		err := tx.Where("user_id = ? AND end_time IS NULL", userID).First(&active).Error
		if err == nil {
			duration := entities.ElapsedMinutes(active.StartTime, start)
			err = tx.Model(&entities.TimeEntry{}).
				Where("id = ? AND end_time IS NULL", active.ID).
				Updates(map[string]any{"end_time": start, "duration_minutes": duration}).Error
			if err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}
	s.markDirty()
	return entry, nil
}

// StopTimeEntry finalizes the entry, which must be the user's active one.
func (s *Store) StopTimeEntry(ctx context.Context, userID, entryID string, end time.Time) (*entities.TimeEntry, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	var stopped *entities.TimeEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := getEntry(tx, userID, entryID)
		if err != nil {
			return err
		}
		if !entry.Active() {
			return storage.Conflictf("time entry %s is not running", entryID)
		}
		duration := entities.ElapsedMinutes(entry.StartTime, end)
		err = tx.Model(entry).Updates(map[string]any{"end_time": end, "duration_minutes": duration}).Error
		if err != nil {
			return err
		}
		entry.EndTime = &end
		entry.DurationMinutes = &duration
		stopped = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.markDirty()
	return stopped, nil
}

func (s *Store) UpdateTimeEntry(ctx context.Context, userID, entryID string, update storage.EntryUpdate) (*entities.TimeEntry, error) {
	var updated *entities.TimeEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := getEntry(tx, userID, entryID)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if update.CategoryID != nil {
			if _, err := getCategory(tx, userID, *update.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *update.CategoryID
			entry.CategoryID = *update.CategoryID
		}
		if update.TaskName != nil {
			updates["task_name"] = *update.TaskName
			entry.TaskName = *update.TaskName
		}

		timesChanged := update.StartTime != nil || update.EndTime != nil || update.ClearEndTime
		if update.StartTime != nil {
			entry.StartTime = update.StartTime.UTC()
			updates["start_time"] = entry.StartTime
		}
		if update.ClearEndTime {
			entry.EndTime = nil
		} else if update.EndTime != nil {
			end := update.EndTime.UTC()
			entry.EndTime = &end
		}
		if timesChanged {
			updates["end_time"] = entry.EndTime
			if entry.EndTime == nil {
				entry.DurationMinutes = nil
				updates["duration_minutes"] = nil
			} else {
				if entry.EndTime.Before(entry.StartTime) {
					return storage.InvalidArgumentf("end time precedes start time")
				}
				duration := entities.ElapsedMinutes(entry.StartTime, *entry.EndTime)
				entry.DurationMinutes = &duration
				updates["duration_minutes"] = duration
			}
		}

		if len(updates) == 0 {
			return storage.InvalidArgumentf("no entry fields to update")
		}
		updated = entry
		return tx.Model(&entities.TimeEntry{}).Where("id = ?", entry.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	s.markDirty()
	return updated, nil
}

func (s *Store) DeleteTimeEntry(ctx context.Context, userID, entryID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", entryID, userID).
		Delete(&entities.TimeEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.NotFoundf("time entry %s", entryID)
	}
	s.markDirty()
	return nil
}

// DeleteTimeEntriesByDate removes completed entries whose start falls on the
// given local calendar date. The active entry survives.
func (s *Store) DeleteTimeEntriesByDate(ctx context.Context, userID, date string, tzOffsetMinutes int) (int64, error) {
	dayStart, dayEnd, err := storage.LocalDayWindow(date, tzOffsetMinutes)
	if err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND end_time IS NOT NULL AND start_time >= ? AND start_time < ?", userID, dayStart, dayEnd).
		Delete(&entities.TimeEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.markDirty()
	}
	return result.RowsAffected, nil
}

func (s *Store) ListTimeEntriesInRange(ctx context.Context, userID string, start, end time.Time) ([]entities.TimeEntry, error) {
	var entries []entities.TimeEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, start, end).
		Order("start_time ASC").
		Find(&entries).Error
	return entries, err
}

func (s *Store) ImportTimeEntry(ctx context.Context, entry *entities.TimeEntry) error {
	if entry.UserID == "" || entry.CategoryID == "" {
		return storage.InvalidArgumentf("imported entry needs user and category ids")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}
	s.markDirty()
	return nil
}

func (s *Store) ListAllTimeEntries(ctx context.Context, userID string) ([]entities.TimeEntry, error) {
	var entries []entities.TimeEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time ASC").
		Find(&entries).Error
	return entries, err
}

// ListExportRows returns denormalized rows for the export surface, oldest
// first, joined with category names in one set-based query.
func (s *Store) ListExportRows(ctx context.Context, userID string, start, end *time.Time) ([]entities.ExportRow, error) {
	type exportScan struct {
		StartTime       string
		EndTime         *string
		CategoryName    string
		TaskName        string
		DurationMinutes *int
	}

	query := s.db.WithContext(ctx).Model(&entities.TimeEntry{}).
		Select("time_entries.start_time, time_entries.end_time, categories.name AS category_name, time_entries.task_name, time_entries.duration_minutes").
		Joins("JOIN categories ON categories.id = time_entries.category_id").
		Where("time_entries.user_id = ?", userID)
	if start != nil {
		query = query.Where("time_entries.start_time >= ?", *start)
	}
	if end != nil {
		query = query.Where("time_entries.start_time < ?", *end)
	}

	var scanned []exportScan
	if err := query.Order("time_entries.start_time ASC").Scan(&scanned).Error; err != nil {
		return nil, err
	}

	rows := make([]entities.ExportRow, 0, len(scanned))
	for _, row := range scanned {
		startAt, err := parseSQLiteTime(row.StartTime)
		if err != nil {
			return nil, err
		}
		out := entities.ExportRow{
			Date:     startAt.Format("2006-01-02"),
			Start:    startAt.Format(time.RFC3339),
			Category: row.CategoryName,
			TaskName: row.TaskName,
			Minutes:  row.DurationMinutes,
		}
		if row.EndTime != nil {
			endAt, err := parseSQLiteTime(*row.EndTime)
			if err != nil {
				return nil, err
			}
			out.End = endAt.Format(time.RFC3339)
		}
		rows = append(rows, out)
	}
	return rows, nil
}
