package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "calendar:", nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "summary:admin", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "summary:admin", map[string]int{"total": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "summary:*"))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	repo := NewCacheRepository(client, "calendar:", nil)
	defer repo.Close() //nolint:errcheck
	ctx := context.Background()

	var dest int
	err := repo.Get(ctx, "summary:admin", &dest)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.Contains(t, err.Error(), "redis get summary:admin")

	err = repo.Set(ctx, "summary:admin", 1, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set summary:admin")
}
