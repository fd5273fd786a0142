package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage"
)

// setupTestStore creates a fresh in-memory store without persistence
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	store, err := Open(Config{})
	require.NoError(t, err)

	cleanup := func() {
		store.Close(context.Background())
	}
	return store, cleanup
}

func createTestUser(t *testing.T, store *Store, email, username string) *entities.User {
	t.Helper()
	user := &entities.User{Email: email, Username: username, PasswordHash: "hash"}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func createTestCategory(t *testing.T, store *Store, userID, name string) *entities.Category {
	t.Helper()
	category := &entities.Category{UserID: userID, Name: name, Color: "#123456"}
	require.NoError(t, store.CreateCategory(context.Background(), category))
	return category
}

func TestParseSQLiteTime(t *testing.T) {
	t.Run("driver text layouts", func(t *testing.T) {
		want := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
		for _, value := range []string{
			"2026-03-02 09:30:00+00:00",
			"2026-03-02 10:30:00.000000000+01:00",
			"2026-03-02T09:30:00Z",
		} {
			got, err := parseSQLiteTime(value)
			require.NoError(t, err, value)
			assert.True(t, got.Equal(want), value)
		}
	})

	t.Run("unknown layout is an error, not a zero time", func(t *testing.T) {
		_, err := parseSQLiteTime("02/03/2026 09:30")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "02/03/2026 09:30")
	})
}

func TestUsers(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("CreateUser assigns an id and is retrievable", func(t *testing.T) {
		user := createTestUser(t, store, "alice@example.com", "alice")
		assert.NotEmpty(t, user.ID)

		byID, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", byID.Email)

		byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		byUsername, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byUsername.ID)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		err := store.CreateUser(ctx, &entities.User{Email: "alice@example.com", Username: "alice2"})
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		_, err := store.GetUserByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateUserPassword", func(t *testing.T) {
		user := createTestUser(t, store, "bob@example.com", "bob")
		require.NoError(t, store.UpdateUserPassword(ctx, user.ID, "newhash"))

		reloaded, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "newhash", reloaded.PasswordHash)

		err = store.UpdateUserPassword(ctx, "missing", "x")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteUser cascades to owned data", func(t *testing.T) {
		user := createTestUser(t, store, "carol@example.com", "carol")
		category := createTestCategory(t, store, user.ID, "Work")
		_, err := store.StartTimeEntry(ctx, user.ID, category.ID, "write", time.Now().UTC(), nil)
		require.NoError(t, err)

		require.NoError(t, store.DeleteUser(ctx, user.ID))

		_, err = store.GetUserByID(ctx, user.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		categories, err := store.ListCategories(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, categories)

		entries, err := store.ListAllTimeEntries(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestRefreshTokens(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice@example.com", "alice")

	t.Run("create and fetch", func(t *testing.T) {
		token := &entities.RefreshToken{
			Token:     "tok-1",
			UserID:    user.ID,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}
		require.NoError(t, store.CreateRefreshToken(ctx, token))

		fetched, err := store.GetRefreshToken(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, user.ID, fetched.UserID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteRefreshToken(ctx, "tok-1"))
		_, err := store.GetRefreshToken(ctx, "tok-1")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteExpiredTokens purges both token tables", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, store.CreateRefreshToken(ctx, &entities.RefreshToken{
			Token: "expired", UserID: user.ID, ExpiresAt: now.Add(-time.Hour),
		}))
		require.NoError(t, store.CreateRefreshToken(ctx, &entities.RefreshToken{
			Token: "fresh", UserID: user.ID, ExpiresAt: now.Add(time.Hour),
		}))
		require.NoError(t, store.UpsertPasswordResetToken(ctx, &entities.PasswordResetToken{
			UserID: user.ID, Token: "reset-expired", ExpiresAt: now.Add(-time.Minute),
		}))

		purged, err := store.DeleteExpiredTokens(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), purged)

		_, err = store.GetRefreshToken(ctx, "fresh")
		assert.NoError(t, err)
	})
}

func TestPasswordResetTokens(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice@example.com", "alice")

	t.Run("upsert replaces the previous token", func(t *testing.T) {
		expires := time.Now().UTC().Add(time.Hour)
		require.NoError(t, store.UpsertPasswordResetToken(ctx, &entities.PasswordResetToken{
			UserID: user.ID, Token: "first", ExpiresAt: expires,
		}))
		require.NoError(t, store.UpsertPasswordResetToken(ctx, &entities.PasswordResetToken{
			UserID: user.ID, Token: "second", ExpiresAt: expires,
		}))

		_, err := store.GetPasswordResetToken(ctx, "first")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		fetched, err := store.GetPasswordResetToken(ctx, "second")
		require.NoError(t, err)
		assert.Equal(t, user.ID, fetched.UserID)
	})

	t.Run("delete by user", func(t *testing.T) {
		require.NoError(t, store.DeletePasswordResetToken(ctx, user.ID))
		_, err := store.GetPasswordResetToken(ctx, "second")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestUserSettings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := createTestUser(t, store, "alice@example.com", "alice")

	t.Run("missing settings are not found", func(t *testing.T) {
		_, err := store.GetUserSettings(ctx, user.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("upsert creates then updates", func(t *testing.T) {
		require.NoError(t, store.UpsertUserSettings(ctx, &entities.UserSettings{
			UserID: user.ID, Timezone: "Europe/Berlin",
		}))
		settings, err := store.GetUserSettings(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Europe/Berlin", settings.Timezone)

		require.NoError(t, store.UpsertUserSettings(ctx, &entities.UserSettings{
			UserID: user.ID, Timezone: "Asia/Tokyo",
		}))
		settings, err = store.GetUserSettings(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "Asia/Tokyo", settings.Timezone)
	})
}
