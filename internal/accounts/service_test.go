package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
	"github.com/mrlokans/tempo/internal/storage/sqlite"
)

func setupService(t *testing.T, cfg Config) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(sqlite.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(context.Background()) })
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 4 // MinCost, keeps the tests fast
	}
	return NewService(store, cfg), store
}

func TestRegister(t *testing.T) {
	service, store := setupService(t, Config{})
	ctx := context.Background()

	t.Run("creates the user with default categories", func(t *testing.T) {
		user, err := service.Register(ctx, " Alice@Example.com ", "alice", "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

		categories, err := store.ListCategories(ctx, user.ID)
		require.NoError(t, err)
		names := make([]string, 0, len(categories))
		for _, c := range categories {
			names = append(names, c.Name)
		}
		assert.ElementsMatch(t, []string{"Work", "Personal", "Health", "Learning"}, names)
	})

	t.Run("short password is rejected", func(t *testing.T) {
		_, err := service.Register(ctx, "bob@example.com", "bob", "short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		_, err := service.Register(ctx, "alice@example.com", "alice2", "s3cret-pass")
		assert.ErrorIs(t, err, storage.ErrConflict)
	})
}

func TestAuthenticate(t *testing.T) {
	service, _ := setupService(t, Config{})
	ctx := context.Background()

	_, err := service.Register(ctx, "alice@example.com", "alice", "s3cret-pass")
	require.NoError(t, err)

	t.Run("correct credentials", func(t *testing.T) {
		user, err := service.Authenticate(ctx, "alice@example.com", "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "alice@example.com", "wrong-pass")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "nobody@example.com", "whatever1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestAnonymousSessions(t *testing.T) {
	service, store := setupService(t, Config{})
	ctx := context.Background()

	t.Run("same session id maps to the same user", func(t *testing.T) {
		first, err := service.CreateAnonymousSession(ctx, "sess-123")
		require.NoError(t, err)
		assert.True(t, first.IsAnonymous())

		again, err := service.CreateAnonymousSession(ctx, "sess-123")
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		categories, err := store.ListCategories(ctx, first.ID)
		require.NoError(t, err)
		assert.Len(t, categories, 4)
	})

	t.Run("anonymous users cannot authenticate", func(t *testing.T) {
		user, err := service.CreateAnonymousSession(ctx, "sess-456")
		require.NoError(t, err)
		_, err = service.Authenticate(ctx, user.Email, "anything1")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("blank session id is invalid", func(t *testing.T) {
		_, err := service.CreateAnonymousSession(ctx, "  ")
		assert.ErrorIs(t, err, storage.ErrInvalidArgument)
	})
}

func TestRefreshTokens(t *testing.T) {
	service, store := setupService(t, Config{RefreshTokenTTL: time.Hour})
	ctx := context.Background()

	user, err := service.Register(ctx, "alice@example.com", "alice", "s3cret-pass")
	require.NoError(t, err)

	t.Run("rotation invalidates the old token", func(t *testing.T) {
		token, err := service.IssueRefreshToken(ctx, user.ID)
		require.NoError(t, err)

		rotated, err := service.RotateRefreshToken(ctx, token.Token)
		require.NoError(t, err)
		assert.NotEqual(t, token.Token, rotated.Token)
		assert.Equal(t, user.ID, rotated.UserID)

		_, err = service.RotateRefreshToken(ctx, token.Token)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("expired tokens are rejected and removed", func(t *testing.T) {
		expired := &entities.RefreshToken{
			Token:     "stale",
			UserID:    user.ID,
			ExpiresAt: time.Now().UTC().Add(-time.Minute),
		}
		require.NoError(t, store.CreateRefreshToken(ctx, expired))

		_, err := service.RotateRefreshToken(ctx, "stale")
		assert.ErrorIs(t, err, ErrTokenExpired)

		_, err = store.GetRefreshToken(ctx, "stale")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestPasswordReset(t *testing.T) {
	service, store := setupService(t, Config{ResetTokenTTL: time.Hour})
	ctx := context.Background()

	_, err := service.Register(ctx, "alice@example.com", "alice", "s3cret-pass")
	require.NoError(t, err)

	t.Run("full flow changes the password once", func(t *testing.T) {
		token, err := service.IssuePasswordResetToken(ctx, "alice@example.com")
		require.NoError(t, err)

		require.NoError(t, service.ConsumePasswordResetToken(ctx, token.Token, "brand-new-pass"))

		_, err = service.Authenticate(ctx, "alice@example.com", "brand-new-pass")
		assert.NoError(t, err)
		_, err = service.Authenticate(ctx, "alice@example.com", "s3cret-pass")
		assert.ErrorIs(t, err, ErrInvalidPassword)

		// single use
		err = service.ConsumePasswordResetToken(ctx, token.Token, "another-pass1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("issuing again replaces the previous token", func(t *testing.T) {
		first, err := service.IssuePasswordResetToken(ctx, "alice@example.com")
		require.NoError(t, err)
		second, err := service.IssuePasswordResetToken(ctx, "alice@example.com")
		require.NoError(t, err)

		err = service.ConsumePasswordResetToken(ctx, first.Token, "whatever-pass")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.NoError(t, service.ConsumePasswordResetToken(ctx, second.Token, "whatever-pass"))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		user, err := store.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		require.NoError(t, store.UpsertPasswordResetToken(ctx, &entities.PasswordResetToken{
			UserID:    user.ID,
			Token:     "old",
			ExpiresAt: time.Now().UTC().Add(-time.Minute),
		}))
		err = service.ConsumePasswordResetToken(ctx, "old", "whatever-pass")
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}
