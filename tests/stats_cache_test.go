// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/wahelp/mailing-engine/app/services"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := services.NewStatsCache(client, time.Hour)
	ctx := context.Background()

	t.Run("MissReturnsNil", func(t *testing.T) {
		stats, err := cache.Get(ctx, 42)
		require.NoError(t, err)
		assert.Nil(t, stats)
	})

	t.Run("StoreThenGet", func(t *testing.T) {
		original := services.MailingStats{
			MailingID:       7,
			Status:          "completed",
			TotalSent:       3,
			RemainingToSend: 0,
			TotalRecipients: 3,
		}
		require.NoError(t, cache.Store(ctx, original))

		stats, err := cache.Get(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, stats)
		assert.Equal(t, original, *stats)
	})

	t.Run("EntriesExpire", func(t *testing.T) {
		short := services.NewStatsCache(client, time.Minute)
		require.NoError(t, short.Store(ctx, services.MailingStats{MailingID: 9, Status: "completed"}))

		mr.FastForward(2 * time.Minute)

		stats, err := short.Get(ctx, 9)
		require.NoError(t, err)
		assert.Nil(t, stats)
	})

	t.Run("NilCacheIsNoop", func(t *testing.T) {
		var nilCache *services.StatsCache

		require.NoError(t, nilCache.Store(ctx, services.MailingStats{MailingID: 1}))
		stats, err := nilCache.Get(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, stats)

		assert.Nil(t, services.NewStatsCache(nil, time.Hour))
	})
}
