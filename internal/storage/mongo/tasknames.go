package mongo

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

func (s *Store) ListTaskSuggestions(ctx context.Context, userID, categoryID, query string, limit int) ([]entities.TaskSuggestion, error) {
	if limit <= 0 || limit > storage.MaxPageSize {
		limit = storage.DefaultPageSize
	}

	match := bson.M{
		"user_id":   userID,
		"task_name": bson.M{"$nin": bson.A{"", nil}},
	}
	if categoryID != "" {
		match["category_id"] = categoryID
	}
	if query != "" {
		match["$and"] = bson.A{bson.M{"task_name": taskNameRegex(strings.TrimSpace(query))}}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$task_name"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_used", Value: bson.D{{Key: "$max", Value: "$start_time"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "last_used", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	}

	cursor, err := s.entries().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var grouped []struct {
		TaskName string    `bson:"_id"`
		Count    int       `bson:"count"`
		LastUsed time.Time `bson:"last_used"`
	}
	if err := cursor.All(ctx, &grouped); err != nil {
		return nil, err
	}

	suggestions := make([]entities.TaskSuggestion, 0, len(grouped))
	for _, row := range grouped {
		suggestions = append(suggestions, entities.TaskSuggestion{
			TaskName: row.TaskName,
			Count:    row.Count,
			LastUsed: row.LastUsed.UTC(),
		})
	}
	return suggestions, nil
}

// ListTaskNames runs the grouped listing as one aggregation pipeline:
// $lookup joins category names, $group collapses (task name, category)
// pairs, and $facet produces the page and the unpaged count in one pass.
func (s *Store) ListTaskNames(ctx context.Context, userID string, params storage.PageParams) (*entities.TaskNamePage, error) {
	if err := params.Normalize(); err != nil {
		return nil, err
	}

	match := bson.M{
		"user_id":   userID,
		"task_name": bson.M{"$nin": bson.A{"", nil}},
	}
	if params.Search != "" {
		match["$and"] = bson.A{bson.M{"task_name": taskNameRegex(params.Search)}}
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "categories"},
			{Key: "localField", Value: "category_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "category"},
		}}},
		bson.D{{Key: "$unwind", Value: "$category"}},
	}
	if params.Category != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"category.name": params.Category}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "task_name", Value: "$task_name"},
				{Key: "category_id", Value: "$category_id"},
			}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total_minutes", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$duration_minutes", 0}}}}}},
			{Key: "last_used", Value: bson.D{{Key: "$max", Value: "$start_time"}}},
			{Key: "category_name", Value: bson.D{{Key: "$first", Value: "$category.name"}}},
			{Key: "category_color", Value: bson.D{{Key: "$first", Value: "$category.color"}}},
		}}},
	)

	var sortStage bson.D
	opts := options.Aggregate()
	switch params.SortBy {
	case storage.SortByAlpha:
		sortStage = bson.D{{Key: "_id.task_name", Value: 1}}
		// Case-insensitive ordering, matching the relational NOCASE collate.
		opts = opts.SetCollation(&options.Collation{Locale: "en", Strength: 2})
	case storage.SortByCount:
		sortStage = bson.D{{Key: "count", Value: -1}}
	case storage.SortByRecent:
		sortStage = bson.D{{Key: "last_used", Value: -1}}
	default: // SortByTime
		sortStage = bson.D{{Key: "total_minutes", Value: -1}}
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: sortStage}},
		bson.D{{Key: "$facet", Value: bson.D{
			{Key: "items", Value: bson.A{
				bson.D{{Key: "$skip", Value: params.Offset()}},
				bson.D{{Key: "$limit", Value: params.PageSize}},
			}},
			{Key: "total", Value: bson.A{bson.D{{Key: "$count", Value: "count"}}}},
		}}},
	)

	cursor, err := s.entries().Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, err
	}
	var results []struct {
		Items []struct {
			ID struct {
				TaskName   string `bson:"task_name"`
				CategoryID string `bson:"category_id"`
			} `bson:"_id"`
			Count         int       `bson:"count"`
			TotalMinutes  int       `bson:"total_minutes"`
			LastUsed      time.Time `bson:"last_used"`
			CategoryName  string    `bson:"category_name"`
			CategoryColor string    `bson:"category_color"`
		} `bson:"items"`
		Total []struct {
			Count int64 `bson:"count"`
		} `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	page := &entities.TaskNamePage{Items: []entities.TaskNameItem{}}
	if len(results) == 0 {
		return page, nil
	}
	if len(results[0].Total) > 0 {
		page.TotalCount = results[0].Total[0].Count
	}
	for _, row := range results[0].Items {
		page.Items = append(page.Items, entities.TaskNameItem{
			TaskName:      row.ID.TaskName,
			CategoryID:    row.ID.CategoryID,
			CategoryName:  row.CategoryName,
			CategoryColor: row.CategoryColor,
			Count:         row.Count,
			TotalMinutes:  row.TotalMinutes,
			LastUsed:      row.LastUsed.UTC(),
		})
	}
	return page, nil
}

func (s *Store) UpdateTimeEntriesByTaskName(ctx context.Context, userID, taskName string, update storage.TaskNameUpdate) (int64, error) {
	return s.bulkUpdateTaskEntries(ctx, userID, update, bson.M{"user_id": userID, "task_name": taskName})
}

func (s *Store) UpdateTimeEntriesByTaskAndCategory(ctx context.Context, userID, taskName, categoryID string, update storage.TaskNameUpdate) (int64, error) {
	return s.bulkUpdateTaskEntries(ctx, userID, update,
		bson.M{"user_id": userID, "task_name": taskName, "category_id": categoryID})
}

func (s *Store) bulkUpdateTaskEntries(ctx context.Context, userID string, update storage.TaskNameUpdate, filter bson.M) (int64, error) {
	set := bson.M{}
	if update.NewName != nil {
		name := strings.TrimSpace(*update.NewName)
		if name == "" {
			return 0, storage.InvalidArgumentf("task name cannot be blank")
		}
		set["task_name"] = name
	}
	if update.NewCategoryID != nil {
		if _, err := s.GetCategory(ctx, userID, *update.NewCategoryID); err != nil {
			return 0, err
		}
		set["category_id"] = *update.NewCategoryID
	}
	if len(set) == 0 {
		return 0, storage.InvalidArgumentf("nothing to update")
	}

	result, err := s.entries().UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (s *Store) MergeTaskNames(ctx context.Context, userID string, sources []string, target, targetCategoryID string) (int64, error) {
	target = strings.TrimSpace(target)
	if len(sources) == 0 {
		return 0, storage.InvalidArgumentf("merge requires at least one source task name")
	}
	if target == "" {
		return 0, storage.InvalidArgumentf("merge target name cannot be blank")
	}

	set := bson.M{"task_name": target}
	if targetCategoryID != "" {
		if _, err := s.GetCategory(ctx, userID, targetCategoryID); err != nil {
			return 0, err
		}
		set["category_id"] = targetCategoryID
	}

	result, err := s.entries().UpdateMany(ctx,
		bson.M{"user_id": userID, "task_name": bson.M{"$in": sources}},
		bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (s *Store) CountTimeEntriesByTaskNames(ctx context.Context, userID string, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	return s.entries().CountDocuments(ctx, bson.M{"user_id": userID, "task_name": bson.M{"$in": names}})
}
