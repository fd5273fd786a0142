// Package accounts implements account lifecycle on top of the storage
// contract: registration, anonymous sessions, password resets and refresh
// token storage. Token issuance/verification (JWT and friends) belongs to
// the transport layer and is not handled here.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// MinPasswordLength is the minimum required password length.
const MinPasswordLength = 8

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = errors.New("password exceeds maximum length of 72 bytes")
	ErrTokenExpired     = errors.New("token expired")
)

type Config struct {
	BcryptCost      int
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
}

type Service struct {
	store storage.Provider
	cfg   Config
}

func NewService(store storage.Provider, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if cfg.ResetTokenTTL == 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &Service{store: store, cfg: cfg}
}

// Register creates a user with a hashed password and seeds their default
// categories.
func (s *Service) Register(ctx context.Context, email, username, password string) (*entities.User, error) {
	hash, err := hashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	user := &entities.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if _, err := s.store.CreateDefaultCategories(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAnonymousSession creates (or returns) the user bound to an
// unauthenticated session id. The synthetic email is the natural key, so
// repeated calls with the same session id find the same user.
func (s *Service) CreateAnonymousSession(ctx context.Context, sessionID string) (*entities.User, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, storage.InvalidArgumentf("session id is required")
	}
	email := entities.AnonymousEmail(sessionID)

	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	user = &entities.User{
		Email:    email,
		Username: "anon-" + sessionID,
		// Anonymous users cannot log in with a password; the marker is
		// not a valid bcrypt hash so comparison always fails.
		PasswordHash: "!anonymous",
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if _, err := s.store.CreateDefaultCategories(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials and returns the user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entities.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}
	return user, nil
}

// IssueRefreshToken stores a fresh random token for the user.
func (s *Service) IssueRefreshToken(ctx context.Context, userID string) (*entities.RefreshToken, error) {
	value, err := randomToken()
	if err != nil {
		return nil, err
	}
	token := &entities.RefreshToken{
		Token:     value,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.store.CreateRefreshToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// RotateRefreshToken invalidates the presented token and issues a new one.
func (s *Service) RotateRefreshToken(ctx context.Context, token string) (*entities.RefreshToken, error) {
	existing, err := s.store.GetRefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(existing.ExpiresAt) {
		_ = s.store.DeleteRefreshToken(ctx, token)
		return nil, ErrTokenExpired
	}
	if err := s.store.DeleteRefreshToken(ctx, token); err != nil {
		return nil, err
	}
	return s.IssueRefreshToken(ctx, existing.UserID)
}

// IssuePasswordResetToken creates the user's single current reset token,
// replacing any prior one.
func (s *Service) IssuePasswordResetToken(ctx context.Context, email string) (*entities.PasswordResetToken, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	value, err := randomToken()
	if err != nil {
		return nil, err
	}
	token := &entities.PasswordResetToken{
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: time.Now().UTC().Add(s.cfg.ResetTokenTTL),
	}
	if err := s.store.UpsertPasswordResetToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ConsumePasswordResetToken validates the token, sets the new password and
// deletes the token so it cannot be replayed.
func (s *Service) ConsumePasswordResetToken(ctx context.Context, token, newPassword string) error {
	row, err := s.store.GetPasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	if time.Now().UTC().After(row.ExpiresAt) {
		_ = s.store.DeletePasswordResetToken(ctx, row.UserID)
		return ErrTokenExpired
	}
	hash, err := hashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, row.UserID, hash); err != nil {
		return err
	}
	return s.store.DeletePasswordResetToken(ctx, row.UserID)
}

// DeleteAccount removes the user and everything they own.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	return s.store.DeleteUser(ctx, userID)
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	// bcrypt has a 72-byte limit
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func randomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
