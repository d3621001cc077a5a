package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffinder-server/models"
	"ffinder-server/utils/errors"
)

func TestUpdateLocation(t *testing.T) {
	for _, withRedis := range []bool{false, true} {
		name := "store"
		if withRedis {
			name = "redis"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t, withRedis)
			user, err := env.users.Register(ctx, "alice@example.com", "secret1")
			require.NoError(t, err)

			// prime the cache before the update
			_, err = env.users.Profile(ctx, user.ID)
			require.NoError(t, err)

			require.NoError(t, env.users.UpdateLocation(ctx, user, 52.37, 4.89))
			assert.Equal(t, models.Location{52.37, 4.89}, user.Location)
			require.NotNil(t, user.LastRequest)

			p, err := env.users.Profile(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, models.Location{52.37, 4.89}, p.Location)

			stored, err := env.users.GetUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, models.Location{52.37, 4.89}, stored.Location)
		})
	}
}

func TestUpdateLocationOutOfRange(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	user, err := env.users.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	require.ErrorIs(t, env.users.UpdateLocation(ctx, user, 91, 0), errors.ErrBadRequest)
	require.ErrorIs(t, env.users.UpdateLocation(ctx, user, 0, -181), errors.ErrBadRequest)

	ghost := models.NewUser("", "ghost", "ghost@example.com")
	require.ErrorIs(t, env.users.UpdateLocation(ctx, ghost, 1, 1), errors.ErrUserNotExists)
}

func TestProfileCache(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	user, err := env.users.Register(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = env.users.Profile(ctx, user.ID)
	require.NoError(t, err)

	cached, err := env.redis.Get(ctx, profileKey(user.ID)).Result()
	require.NoError(t, err)
	assert.Contains(t, cached, user.ID)
	assert.NotContains(t, cached, user.AccessToken)
	assert.NotContains(t, cached, "password")
}
