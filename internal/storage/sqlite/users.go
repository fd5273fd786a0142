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

func (s *Store) CreateUser(ctx context.Context, user *entities.User) error {
	if user.Email == "" || user.Username == "" {
		return storage.InvalidArgumentf("user email and username are required")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.Conflictf("user with this email or username already exists")
		}
		return err
	}
	s.markDirty()
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*entities.User, error) {
	return s.getUser(ctx, "id = ?", userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*entities.User, error) {
	var user entities.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFoundf("user %s", arg)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result := s.db.WithContext(ctx).Model(&entities.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.NotFoundf("user %s", userID)
	}
	s.markDirty()
	return nil
}

// DeleteUser removes the user and everything they own in one transaction.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", userID).Delete(&entities.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.NotFoundf("user %s", userID)
		}
		for _, model := range []any{
			&entities.TimeEntry{},
			&entities.Category{},
			&entities.RefreshToken{},
			&entities.UserSettings{},
		} {
			if err := tx.Where("user_id = ?", userID).Delete(model).Error; err != nil {
				return err
			}
		}
		// Reset tokens are keyed by user id directly.
		return tx.Delete(&entities.PasswordResetToken{}, "user_id = ?", userID).Error
	})
	if err != nil {
		return err
	}
	s.markDirty()
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]entities.User, error) {
	var users []entities.User
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error
	return users, err
}

func (s *Store) CreateRefreshToken(ctx context.Context, token *entities.RefreshToken) error {
	if token.Token == "" || token.UserID == "" {
		return storage.InvalidArgumentf("refresh token and user id are required")
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.Conflictf("refresh token already exists")
		}
		return err
	}
	s.markDirty()
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, token string) (*entities.RefreshToken, error) {
	var row entities.RefreshToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFoundf("refresh token")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	result := s.db.WithContext(ctx).Where("token = ?", token).Delete(&entities.RefreshToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.NotFoundf("refresh token")
	}
	s.markDirty()
	return nil
}

// DeleteExpiredTokens purges expired refresh and password-reset tokens and
// returns how many rows were removed.
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("expires_at < ?", now).Delete(&entities.RefreshToken{})
		if result.Error != nil {
			return result.Error
		}
		purged += result.RowsAffected

		result = tx.Where("expires_at < ?", now).Delete(&entities.PasswordResetToken{})
		if result.Error != nil {
			return result.Error
		}
		purged += result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.markDirty()
	}
	return purged, nil
}

// UpsertPasswordResetToken replaces any prior reset token for the user.
func (s *Store) UpsertPasswordResetToken(ctx context.Context, token *entities.PasswordResetToken) error {
	if token.UserID == "" || token.Token == "" {
		return storage.InvalidArgumentf("reset token and user id are required")
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.PasswordResetToken
		result := tx.Where("user_id = ?", token.UserID).First(&existing)
		if result.Error == nil {
			return tx.Model(&entities.PasswordResetToken{}).
				Where("user_id = ?", token.UserID).
				Updates(map[string]any{
					"token":      token.Token,
					"expires_at": token.ExpiresAt,
					"created_at": token.CreatedAt,
				}).Error
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		return tx.Create(token).Error
	})
	if err != nil {
		return err
	}
	s.markDirty()
	return nil
}

func (s *Store) GetPasswordResetToken(ctx context.Context, token string) (*entities.PasswordResetToken, error) {
	var row entities.PasswordResetToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFoundf("password reset token")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) DeletePasswordResetToken(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entities.PasswordResetToken{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.NotFoundf("password reset token for user %s", userID)
	}
	s.markDirty()
	return nil
}

func (s *Store) GetUserSettings(ctx context.Context, userID string) (*entities.UserSettings, error) {
	var settings entities.UserSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.NotFoundf("settings for user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpsertUserSettings(ctx context.Context, settings *entities.UserSettings) error {
	if settings.UserID == "" {
		return storage.InvalidArgumentf("user id is required")
	}
	settings.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entities.UserSettings
		result := tx.Where("user_id = ?", settings.UserID).First(&existing)
		if result.Error == nil {
			return tx.Model(&entities.UserSettings{}).
				Where("user_id = ?", settings.UserID).
				Updates(map[string]any{"timezone": settings.Timezone, "updated_at": settings.UpdatedAt}).Error
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}
		return tx.Create(settings).Error
	})
	if err != nil {
		return err
	}
	s.markDirty()
	return nil
}
