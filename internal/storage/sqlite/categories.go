package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

func (s *Store) ListCategories(ctx context.Context, userID string) ([]entities.Category, error) {
	var categories []entities.Category
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *Store) GetCategory(ctx context.Context, userID, categoryID string) (*entities.Category, error) {
	return getCategory(s.db.WithContext(ctx), userID, categoryID)
}

func getCategory(db *gorm.DB, userID, categoryID string) (*entities.Category, error) {
	var category entities.Category
	err := db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
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
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.Conflictf("category %q already exists", category.Name)
		}
		return err
	}
	s.markDirty()
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, userID, categoryID string, update storage.CategoryUpdate) (*entities.Category, error) {
	updates := map[string]any{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, storage.InvalidArgumentf("category name cannot be blank")
		}
		updates["name"] = name
	}
	if update.Color != nil {
		updates["color"] = *update.Color
	}
	if len(updates) == 0 {
		return nil, storage.InvalidArgumentf("no category fields to update")
	}

	var category *entities.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if category, err = getCategory(tx, userID, categoryID); err != nil {
			return err
		}
		if err := tx.Model(category).Updates(updates).Error; err != nil {
			if isUniqueViolation(err) {
				return storage.Conflictf("category %q already exists", updates["name"])
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.markDirty()
	return category, nil
}

// DeleteCategory implements the reassignment algorithm: a category with
// linked entries needs a replacement owned by the same user; the reassignment
// and the delete happen in one transaction so entries never point at a
// deleted category.
func (s *Store) DeleteCategory(ctx context.Context, userID, categoryID, replacementID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getCategory(tx, userID, categoryID); err != nil {
			return err
		}

		var linked int64
		err := tx.Model(&entities.TimeEntry{}).
			Where("user_id = ? AND category_id = ?", userID, categoryID).
			Count(&linked).Error
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
			if _, err := getCategory(tx, userID, replacementID); err != nil {
				return err
			}
			err = tx.Model(&entities.TimeEntry{}).
				Where("user_id = ? AND category_id = ?", userID, categoryID).
				Update("category_id", replacementID).Error
			if err != nil {
				return err
			}
		}

		return tx.Where("id = ? AND user_id = ?", categoryID, userID).Delete(&entities.Category{}).Error
	})
	if err != nil {
		return err
	}
	s.markDirty()
	return nil
}

func (s *Store) CountCategories(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.Category{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CreateDefaultCategories seeds the default set, skipping names the user
// already has, and returns the user's full category list.
func (s *Store) CreateDefaultCategories(ctx context.Context, userID string) ([]entities.Category, error) {
	if userID == "" {
		return nil, storage.InvalidArgumentf("user id is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seed := range storage.DefaultCategories {
			var existing entities.Category
			result := tx.Where("user_id = ? AND name = ?", userID, seed.Name).First(&existing)
			if result.Error == nil {
				continue
			}
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			category := entities.Category{
				ID:        uuid.NewString(),
				UserID:    userID,
				Name:      seed.Name,
				Color:     seed.Color,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.markDirty()
	return s.ListCategories(ctx, userID)
}

func (s *Store) ReassignTimeEntriesCategory(ctx context.Context, userID, fromCategoryID, toCategoryID string) (int64, error) {
	if fromCategoryID == toCategoryID {
		return 0, storage.InvalidArgumentf("source and target category are the same")
	}
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getCategory(tx, userID, fromCategoryID); err != nil {
			return err
		}
		if _, err := getCategory(tx, userID, toCategoryID); err != nil {
			return err
		}
		result := tx.Model(&entities.TimeEntry{}).
			Where("user_id = ? AND category_id = ?", userID, fromCategoryID).
			Update("category_id", toCategoryID)
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
