package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MailingStats is the aggregate snapshot of a mailing's delivery state
type MailingStats struct {
	MailingID       uint   `json:"mailing_id"`
	Status          string `json:"status"`
	TotalSent       int64  `json:"total_sent"`
	RemainingToSend int64  `json:"remaining_to_send"`
	TotalRecipients int64  `json:"total_recipients"`
}

// StatsCache caches aggregate stats of completed mailings. Once a mailing
// is completed its counts can never change, so cached entries never go
// stale. A nil *StatsCache is a no-op, which keeps Redis optional.
type StatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatsCache creates a stats cache; returns nil when no client is configured
func NewStatsCache(rdb *redis.Client, ttl time.Duration) *StatsCache {
	if rdb == nil {
		return nil
	}
	return &StatsCache{rdb: rdb, ttl: ttl}
}

func statsKey(mailingID uint) string {
	return fmt.Sprintf("mailing:stats:%d", mailingID)
}

// Get returns the cached snapshot, or nil on miss or unavailable cache
func (c *StatsCache) Get(ctx context.Context, mailingID uint) (*MailingStats, error) {
	if c == nil {
		return nil, nil
	}

	b, err := c.rdb.Get(ctx, statsKey(mailingID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stats cache for mailing %d: %w", mailingID, err)
	}

	var stats MailingStats
	if err := json.Unmarshal(b, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats for mailing %d: %w", mailingID, err)
	}
	return &stats, nil
}

// Store caches the snapshot of a completed mailing
func (c *StatsCache) Store(ctx context.Context, stats MailingStats) error {
	if c == nil {
		return nil
	}

	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats for mailing %d: %w", stats.MailingID, err)
	}

	return c.rdb.Set(ctx, statsKey(stats.MailingID), b, c.ttl).Err()
}
