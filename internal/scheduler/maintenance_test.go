package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/tempo/internal/entities"
	"github.com/mrlokans/tempo/internal/storage/sqlite"
)

func TestMaintenanceScheduler(t *testing.T) {
	store, err := sqlite.Open(sqlite.Config{})
	require.NoError(t, err)
	defer store.Close(context.Background())

	t.Run("start and stop are idempotent", func(t *testing.T) {
		s := NewMaintenanceScheduler(store, "0 * * * *")
		require.NoError(t, s.Start())
		require.NoError(t, s.Start())
		s.Stop()
		s.Stop()
	})

	t.Run("invalid schedule fails to start", func(t *testing.T) {
		s := NewMaintenanceScheduler(store, "not a schedule")
		assert.Error(t, s.Start())
	})

	t.Run("purge removes expired tokens", func(t *testing.T) {
		ctx := context.Background()
		user := &entities.User{Email: "alice@example.com", Username: "alice"}
		require.NoError(t, store.CreateUser(ctx, user))
		require.NoError(t, store.CreateRefreshToken(ctx, &entities.RefreshToken{
			Token: "stale", UserID: user.ID, ExpiresAt: time.Now().UTC().Add(-time.Hour),
		}))
		require.NoError(t, store.CreateRefreshToken(ctx, &entities.RefreshToken{
			Token: "fresh", UserID: user.ID, ExpiresAt: time.Now().UTC().Add(time.Hour),
		}))

		s := NewMaintenanceScheduler(store, "* * * * *")
		s.runPurge()

		_, err := store.GetRefreshToken(ctx, "stale")
		assert.Error(t, err)
		_, err = store.GetRefreshToken(ctx, "fresh")
		assert.NoError(t, err)
	})
}
