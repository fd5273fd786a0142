package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

func (s *Store) ListCategories(ctx context.Context, userID string) ([]entities.Category, error) {
	cursor, err := s.categories().Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	categories := []entities.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, userID, categoryID string) (*entities.Category, error) {
	var category entities.Category
	err := s.categories().FindOne(ctx, bson.M{"_id": categoryID, "user_id": userID}).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFoundf("category %s", categoryID)
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) CreateCategory(ctx context.Context, category *entities.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.UserID == "" || category.Name == "" {
		return storage.InvalidArgumentf("category user id and name are required")
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	// Pre-check then insert under the unique (user_id, name) index.
	count, err := s.categories().CountDocuments(ctx, bson.M{"user_id": category.UserID, "name": category.Name})
	if err != nil {
		return err
	}
	if count > 0 {
		return storage.Conflictf("category %q already exists", category.Name)
	}
	if _, err := s.categories().InsertOne(ctx, category); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.Conflictf("category %q already exists", category.Name)
		}
		return err
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, userID, categoryID string, update storage.CategoryUpdate) (*entities.Category, error) {
	set := bson.M{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, storage.InvalidArgumentf("category name cannot be blank")
		}
		set["name"] = name
	}
	if update.Color != nil {
		set["color"] = *update.Color
	}
	if len(set) == 0 {
		return nil, storage.InvalidArgumentf("no category fields to update")
	}

	after := options.After
	var category entities.Category
	err := s.categories().FindOneAndUpdate(ctx,
		bson.M{"_id": categoryID, "user_id": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(after)).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFoundf("category %s", categoryID)
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, storage.Conflictf("category %q already exists", set["name"])
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory mirrors the relational reassignment algorithm. The
// reassignment runs before the delete, so no entry ever references a missing
// category even though the two writes are not one transaction.
func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID, replacementID string) error {
	if _, err := s.GetCategory(ctx, userID, categoryID); err != nil {
		return err
	}

	linked, err := s.entries().CountDocuments(ctx, bson.M{"user_id": userID, "category_id": categoryID})
	if err != nil {
		return err
	}

	if linked > 0 {
		if replacementID == "" {
			return storage.Conflictf("category has %d linked entries and no replacement was given", linked)
		}
		if replacementID == categoryID {
			return storage.InvalidArgumentf("replacement category must differ from the deleted one")
		}
		if _, err := s.GetCategory(ctx, userID, replacementID); err != nil {
			return err
		}
		_, err = s.entries().UpdateMany(ctx,
			bson.M{"user_id": userID, "category_id": categoryID},
			bson.M{"$set": bson.M{"category_id": replacementID}})
		if err != nil {
			return err
		}
	}

	_, err = s.categories().DeleteOne(ctx, bson.M{"_id": categoryID, "user_id": userID})
	return err
}

func (s *Store) CountCategories(ctx context.Context, userID string) (int64, error) {
	return s.categories().CountDocuments(ctx, bson.M{"user_id": userID})
}

func (s *Store) CreateDefaultCategories(ctx context.Context, userID string) ([]entities.Category, error) {
	if userID == "" {
		return nil, storage.InvalidArgumentf("user id is required")
	}
	existing, err := s.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[c.Name] = true
	}

	for _, seed := range storage.DefaultCategories {
		if present[seed.Name] {
			continue
		}
		category := entities.Category{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      seed.Name,
			Color:     seed.Color,
			CreatedAt: time.Now().UTC(),
		}
		if _, err := s.categories().InsertOne(ctx, category); err != nil {
			// A concurrent seeding beat us to this name; fine either way.
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return nil, err
		}
	}
	return s.ListCategories(ctx, userID)
}

func (s *Store) ReassignTimeEntriesCategory(ctx context.Context, userID, fromCategoryID, toCategoryID string) (int64, error) {
	if fromCategoryID == toCategoryID {
		return 0, storage.InvalidArgumentf("source and target category are the same")
	}
	if _, err := s.GetCategory(ctx, userID, fromCategoryID); err != nil {
		return 0, err
	}
	if _, err := s.GetCategory(ctx, userID, toCategoryID); err != nil {
		return 0, err
	}
	result, err := s.entries().UpdateMany(ctx,
		bson.M{"user_id": userID, "category_id": fromCategoryID},
		bson.M{"$set": bson.M{"category_id": toCategoryID}})
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}
