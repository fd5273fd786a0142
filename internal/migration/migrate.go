// Package migration moves a full dataset between storage backends. The ETL
// is idempotent: every create step first looks for an existing natural-key
// match (users by email, categories by name per user, entries by their
// time/category/task shape), so running it twice adds nothing.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// Stats reports what a run actually did.
type Stats struct {
	Users          int
	UsersCreated   int
	Categories     int
	Entries        int
	EntriesSkipped int
	SettingsCopied int
}

// Run copies every user's dataset from source to target.
func Run(ctx context.Context, source, target storage.Provider) (*Stats, error) {
	users, err := source.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source users: %w", err)
	}

	stats := &Stats{}
	for _, user := range users {
		if err := migrateUser(ctx, source, target, user, stats); err != nil {
			return stats, fmt.Errorf("migrate user %s: %w", user.Email, err)
		}
		stats.Users++
	}
	log.Printf("migration: %d users (%d created), %d categories, %d entries copied, %d skipped, %d settings",
		stats.Users, stats.UsersCreated, stats.Categories, stats.Entries, stats.EntriesSkipped, stats.SettingsCopied)
	return stats, nil
}

func migrateUser(ctx context.Context, source, target storage.Provider, user entities.User, stats *Stats) error {
	// Find-or-create the target user by email, the natural key.
	targetUser, err := target.GetUserByEmail(ctx, user.Email)
	if errors.Is(err, storage.ErrNotFound) {
		targetUser = &entities.User{
			Email:        user.Email,
			Username:     user.Username,
			PasswordHash: user.PasswordHash,
			CreatedAt:    user.CreatedAt,
		}
		if err := target.CreateUser(ctx, targetUser); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		stats.UsersCreated++
	} else if err != nil {
		return err
	}

	categoryMap, err := migrateCategories(ctx, source, target, user.ID, targetUser.ID, stats)
	if err != nil {
		return err
	}
	if err := migrateEntries(ctx, source, target, user.ID, targetUser.ID, categoryMap, stats); err != nil {
		return err
	}
	return migrateSettings(ctx, source, target, user.ID, targetUser.ID, stats)
}

// migrateCategories find-or-creates each category by (user, name) and
// returns the source-id to target-id mapping.
func migrateCategories(ctx context.Context, source, target storage.Provider, sourceUserID, targetUserID string, stats *Stats) (map[string]string, error) {
	sourceCategories, err := source.ListCategories(ctx, sourceUserID)
	if err != nil {
		return nil, fmt.Errorf("list source categories: %w", err)
	}
	targetCategories, err := target.ListCategories(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("list target categories: %w", err)
	}

	byName := make(map[string]string, len(targetCategories))
	for _, c := range targetCategories {
		byName[c.Name] = c.ID
	}

	mapping := make(map[string]string, len(sourceCategories))
	for _, c := range sourceCategories {
		if existingID, ok := byName[c.Name]; ok {
			mapping[c.ID] = existingID
			continue
		}
		created := entities.Category{
			UserID:    targetUserID,
			Name:      c.Name,
			Color:     c.Color,
			CreatedAt: c.CreatedAt,
		}
		if err := target.CreateCategory(ctx, &created); err != nil {
			return nil, fmt.Errorf("create category %q: %w", c.Name, err)
		}
		byName[created.Name] = created.ID
		mapping[c.ID] = created.ID
		stats.Categories++
	}
	return mapping, nil
}

// entryKey is the natural-key shape used to deduplicate entries between runs.
func entryKey(startTime time.Time, categoryID, taskName string, endTime *time.Time) string {
	end := int64(-1)
	if endTime != nil {
		end = endTime.UTC().UnixMilli()
	}
	return fmt.Sprintf("%d|%s|%s|%d", startTime.UTC().UnixMilli(), categoryID, taskName, end)
}

func migrateEntries(ctx context.Context, source, target storage.Provider, sourceUserID, targetUserID string, categoryMap map[string]string, stats *Stats) error {
	sourceEntries, err := source.ListAllTimeEntries(ctx, sourceUserID)
	if err != nil {
		return fmt.Errorf("list source entries: %w", err)
	}
	targetEntries, err := target.ListAllTimeEntries(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("list target entries: %w", err)
	}

	existing := make(map[string]bool, len(targetEntries))
	for _, e := range targetEntries {
		existing[entryKey(e.StartTime, e.CategoryID, e.TaskName, e.EndTime)] = true
	}

	for _, e := range sourceEntries {
		targetCategoryID, ok := categoryMap[e.CategoryID]
		if !ok {
			// Entry points at a category that failed to map; skip it
			// rather than invent a dangling reference.
			stats.EntriesSkipped++
			continue
		}
		key := entryKey(e.StartTime, targetCategoryID, e.TaskName, e.EndTime)
		if existing[key] {
			continue
		}
		imported := entities.TimeEntry{
			UserID:           targetUserID,
			CategoryID:       targetCategoryID,
			TaskName:         e.TaskName,
			StartTime:        e.StartTime,
			EndTime:          e.EndTime,
			ScheduledEndTime: e.ScheduledEndTime,
			DurationMinutes:  e.DurationMinutes,
			CreatedAt:        e.CreatedAt,
		}
		if err := target.ImportTimeEntry(ctx, &imported); err != nil {
			return fmt.Errorf("import entry: %w", err)
		}
		existing[key] = true
		stats.Entries++
	}
	return nil
}

func migrateSettings(ctx context.Context, source, target storage.Provider, sourceUserID, targetUserID string, stats *Stats) error {
	settings, err := source.GetUserSettings(ctx, sourceUserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get source settings: %w", err)
	}
	copied := entities.UserSettings{UserID: targetUserID, Timezone: settings.Timezone}
	if err := target.UpsertUserSettings(ctx, &copied); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	stats.SettingsCopied++
	return nil
}
