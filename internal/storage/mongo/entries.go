package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

func taskNameRegex(search string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
}

func (s *Store) ListTimeEntries(ctx context.Context, userID string, filter storage.EntryFilter) ([]entities.TimeEntry, int64, error) {
	query := bson.M{"user_id": userID}
	timeRange := bson.M{}
	if filter.Start != nil {
		timeRange["$gte"] = *filter.Start
	}
	if filter.End != nil {
		timeRange["$lt"] = *filter.End
	}
	if len(timeRange) > 0 {
		query["start_time"] = timeRange
	}
	if filter.CategoryID != "" {
		query["category_id"] = filter.CategoryID
	}
	if filter.Search != "" {
		query["task_name"] = taskNameRegex(filter.Search)
	}

	total, err := s.entries().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}})
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts = opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := s.entries().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	entries := []entities.TimeEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Store) GetTimeEntry(ctx context.Context, userID, entryID string) (*entities.TimeEntry, error) {
	var entry entities.TimeEntry
	err := s.entries().FindOne(ctx, bson.M{"_id": entryID, "user_id": userID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFoundf("time entry %s", entryID)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) GetActiveTimeEntry(ctx context.Context, userID string) (*entities.TimeEntry, error) {
	var entry entities.TimeEntry
	err := s.entries().FindOne(ctx, bson.M{"user_id": userID, "end_time": nil}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// StartTimeEntry finalizes the running entry with a single
// find-and-update-if-null whose pipeline computes the duration server-side,
// then inserts the new active entry. The single conditional update keeps the
// race window minimal without multi-document transactions.
func (s *Store) StartTimeEntry(ctx context.Context, userID, categoryID, taskName string, start time.Time, scheduledEnd *time.Time) (*entities.TimeEntry, error) {
	if start.IsZero() {
		start = time.Now().UTC()
	}
	if _, err := s.GetCategory(ctx, userID, categoryID); err != nil {
		return nil, err
	}

	// $round rounds half to even; $floor of minutes+0.5 matches
	// entities.ElapsedMinutes for non-negative elapsed times.
	finalize := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "end_time", Value: start},
			{Key: "duration_minutes", Value: bson.D{{Key: "$floor", Value: bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$divide", Value: bson.A{
					bson.D{{Key: "$subtract", Value: bson.A{start, "$start_time"}}},
					60000,
				}}},
				0.5,
			}}}}}},
		}}},
	}
	err := s.entries().FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "end_time": nil},
		finalize).Err()
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
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
	if _, err := s.entries().InsertOne(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// StopTimeEntry finalizes the entry if and only if it is still the active
// one; the null-end condition is part of the update filter.
func (s *Store) StopTimeEntry(ctx context.Context, userID, entryID string, end time.Time) (*entities.TimeEntry, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	entry, err := s.GetTimeEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Active() {
		return nil, storage.Conflictf("time entry %s is not running", entryID)
	}

	duration := entities.ElapsedMinutes(entry.StartTime, end)
	result, err := s.entries().UpdateOne(ctx,
		bson.M{"_id": entryID, "user_id": userID, "end_time": nil},
		bson.M{"$set": bson.M{"end_time": end, "duration_minutes": duration}})
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, storage.Conflictf("time entry %s is not running", entryID)
	}
	entry.EndTime = &end
	entry.DurationMinutes = &duration
	return entry, nil
}

func (s *Store) UpdateTimeEntry(ctx context.Context, userID, entryID string, update storage.EntryUpdate) (*entities.TimeEntry, error) {
	entry, err := s.GetTimeEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if update.CategoryID != nil {
		if _, err := s.GetCategory(ctx, userID, *update.CategoryID); err != nil {
			return nil, err
		}
		entry.CategoryID = *update.CategoryID
		set["category_id"] = entry.CategoryID
	}
	if update.TaskName != nil {
		entry.TaskName = *update.TaskName
		set["task_name"] = entry.TaskName
	}

	timesChanged := update.StartTime != nil || update.EndTime != nil || update.ClearEndTime
	if update.StartTime != nil {
		entry.StartTime = update.StartTime.UTC()
		set["start_time"] = entry.StartTime
	}
	if update.ClearEndTime {
		entry.EndTime = nil
	} else if update.EndTime != nil {
		end := update.EndTime.UTC()
		entry.EndTime = &end
	}
	if timesChanged {
		set["end_time"] = entry.EndTime
		if entry.EndTime == nil {
			entry.DurationMinutes = nil
			set["duration_minutes"] = nil
		} else {
			if entry.EndTime.Before(entry.StartTime) {
				return nil, storage.InvalidArgumentf("end time precedes start time")
			}
			duration := entities.ElapsedMinutes(entry.StartTime, *entry.EndTime)
			entry.DurationMinutes = &duration
			set["duration_minutes"] = duration
		}
	}

	if len(set) == 0 {
		return nil, storage.InvalidArgumentf("no entry fields to update")
	}
	_, err = s.entries().UpdateOne(ctx, bson.M{"_id": entryID, "user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) DeleteTimeEntry(ctx context.Context, userID, entryID string) error {
	result, err := s.entries().DeleteOne(ctx, bson.M{"_id": entryID, "user_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return storage.NotFoundf("time entry %s", entryID)
	}
	return nil
}

func (s *Store) DeleteTimeEntriesByDate(ctx context.Context, userID, date string, tzOffsetMinutes int) (int64, error) {
	dayStart, dayEnd, err := storage.LocalDayWindow(date, tzOffsetMinutes)
	if err != nil {
		return 0, err
	}
	result, err := s.entries().DeleteMany(ctx, bson.M{
		"user_id":    userID,
		"end_time":   bson.M{"$ne": nil},
		"start_time": bson.M{"$gte": dayStart, "$lt": dayEnd},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (s *Store) ListTimeEntriesInRange(ctx context.Context, userID string, start, end time.Time) ([]entities.TimeEntry, error) {
	cursor, err := s.entries().Find(ctx,
		bson.M{"user_id": userID, "start_time": bson.M{"$gte": start, "$lt": end}},
		options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, err
	}
	entries := []entities.TimeEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
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
	_, err := s.entries().InsertOne(ctx, entry)
	return err
}

func (s *Store) ListAllTimeEntries(ctx context.Context, userID string) ([]entities.TimeEntry, error) {
	cursor, err := s.entries().Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, err
	}
	entries := []entities.TimeEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ListExportRows fetches the window and denormalizes category names in
// memory; the document model has no join to lean on here.
func (s *Store) ListExportRows(ctx context.Context, userID string, start, end *time.Time) ([]entities.ExportRow, error) {
	query := bson.M{"user_id": userID}
	timeRange := bson.M{}
	if start != nil {
		timeRange["$gte"] = *start
	}
	if end != nil {
		timeRange["$lt"] = *end
	}
	if len(timeRange) > 0 {
		query["start_time"] = timeRange
	}

	cursor, err := s.entries().Find(ctx, query, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var entries []entities.TimeEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	categories, err := s.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	rows := make([]entities.ExportRow, 0, len(entries))
	for _, entry := range entries {
		row := entities.ExportRow{
			Date:     entry.StartTime.UTC().Format("2006-01-02"),
			Start:    entry.StartTime.UTC().Format(time.RFC3339),
			Category: names[entry.CategoryID],
			TaskName: entry.TaskName,
			Minutes:  entry.DurationMinutes,
		}
		if entry.EndTime != nil {
			row.End = entry.EndTime.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
