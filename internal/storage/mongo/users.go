package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// CreateUser pre-checks the natural keys before inserting under the unique
// indexes. A concurrent insert between check and insert still surfaces as a
// duplicate-key conflict; the race window is a documented limitation.
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

	count, err := s.users().CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"email": user.Email},
		bson.M{"username": user.Username},
	}})
	if err != nil {
		return err
	}
	if count > 0 {
		return storage.Conflictf("user with this email or username already exists")
	}

	if _, err := s.users().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.Conflictf("user with this email or username already exists")
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*entities.User, error) {
	return s.getUser(ctx, bson.M{"_id": userID}, userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return s.getUser(ctx, bson.M{"email": email}, email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	return s.getUser(ctx, bson.M{"username": username}, username)
}

func (s *Store) getUser(ctx context.Context, filter bson.M, key string) (*entities.User, error) {
	var user entities.User
	err := s.users().FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFoundf("user %s", key)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.users().UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"password_hash": passwordHash}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return storage.NotFoundf("user %s", userID)
	}
	return nil
}

// DeleteUser removes the user and everything they own. Without multi-document
// transactions the owned data goes first and the user row last, so a failure
// part-way never leaves orphans pointing at a missing user.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	count, err := s.users().CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if count == 0 {
		return storage.NotFoundf("user %s", userID)
	}

	owned := bson.M{"user_id": userID}
	for _, col := range []*mongo.Collection{s.entries(), s.categories(), s.refreshTokens(), s.settings()} {
		if _, err := col.DeleteMany(ctx, owned); err != nil {
			return err
		}
	}
	if _, err := s.resetTokens().DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return err
	}
	_, err = s.users().DeleteOne(ctx, bson.M{"_id": userID})
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]entities.User, error) {
	cursor, err := s.users().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var users []entities.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) CreateRefreshToken(ctx context.Context, token *entities.RefreshToken) error {
	if token.Token == "" || token.UserID == "" {
		return storage.InvalidArgumentf("refresh token and user id are required")
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := s.refreshTokens().InsertOne(ctx, token); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.Conflictf("refresh token already exists")
		}
		return err
	}
	return nil
}

func (s *Store) GetRefreshToken(ctx context.Context, token string) (*entities.RefreshToken, error) {
	var row entities.RefreshToken
	err := s.refreshTokens().FindOne(ctx, bson.M{"_id": token}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFoundf("refresh token")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	result, err := s.refreshTokens().DeleteOne(ctx, bson.M{"_id": token})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return storage.NotFoundf("refresh token")
	}
	return nil
}

func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	expired := bson.M{"expires_at": bson.M{"$lt": now}}
	var purged int64
	for _, col := range []*mongo.Collection{s.refreshTokens(), s.resetTokens()} {
		result, err := col.DeleteMany(ctx, expired)
		if err != nil {
			return 0, err
		}
		purged += result.DeletedCount
	}
	return purged, nil
}

// UpsertPasswordResetToken replaces any prior reset token; the document is
// keyed by user id, so the upsert is a single replace.
func (s *Store) UpsertPasswordResetToken(ctx context.Context, token *entities.PasswordResetToken) error {
	if token.UserID == "" || token.Token == "" {
		return storage.InvalidArgumentf("reset token and user id are required")
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	_, err := s.resetTokens().ReplaceOne(ctx,
		bson.M{"_id": token.UserID},
		token,
		options.Replace().SetUpsert(true))
	return err
}

func (s *Store) GetPasswordResetToken(ctx context.Context, token string) (*entities.PasswordResetToken, error) {
	var row entities.PasswordResetToken
	err := s.resetTokens().FindOne(ctx, bson.M{"token": token}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFoundf("password reset token")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) DeletePasswordResetToken(ctx context.Context, userID string) error {
	result, err := s.resetTokens().DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return storage.NotFoundf("password reset token for user %s", userID)
	}
	return nil
}

func (s *Store) GetUserSettings(ctx context.Context, userID string) (*entities.UserSettings, error) {
	var row entities.UserSettings
	err := s.settings().FindOne(ctx, bson.M{"_id": userID}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.NotFoundf("settings for user %s", userID)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) UpsertUserSettings(ctx context.Context, settings *entities.UserSettings) error {
	if settings.UserID == "" {
		return storage.InvalidArgumentf("user id is required")
	}
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.settings().ReplaceOne(ctx,
		bson.M{"_id": settings.UserID},
		settings,
		options.Replace().SetUpsert(true))
	return err
}
