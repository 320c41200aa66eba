package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cleanupScanCount = 100
	cleanupTimeout   = 30 * time.Second
)

// Cleaner removes idle rate-limit state from Redis and from the in-memory limiter.
// Clean is meant to run on a schedule.
type Cleaner struct {
	redisClient *redis.Client
	memory      *MemoryLimiter
	maxAge      time.Duration
	log         *slog.Logger
}

// NewCleaner constructs a Cleaner. Either backend may be nil.
func NewCleaner(client *redis.Client, memory *MemoryLimiter, maxAge time.Duration, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		redisClient: client,
		memory:      memory,
		maxAge:      maxAge,
		log:         log,
	}
}

// Clean runs one cleanup pass over both backends.
func (c *Cleaner) Clean() {
	if c.maxAge <= 0 {
		return
	}

	if c.memory != nil {
		if removed := c.memory.Cleanup(c.maxAge); removed > 0 {
			c.log.Debug("in-memory rate limit buckets cleaned", slog.Int("keys_removed", removed))
		}
	}

	if c.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		c.cleanRedis(ctx)
	}
}

func (c *Cleaner) cleanRedis(ctx context.Context) {
	cutoff := float64(time.Now().Add(-c.maxAge).UnixNano()) / float64(time.Millisecond)
	var cursor uint64
	cleaned := 0

	for {
		keys, nextCursor, err := c.redisClient.Scan(ctx, cursor, KeyPrefix+"*", cleanupScanCount).Result()
		if err != nil {
			c.log.Error("rate limit scan failed", slog.Any("error", err))
			return
		}

		for _, key := range keys {
			pipe := c.redisClient.TxPipeline()
			pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%f", cutoff))
			cardCmd := pipe.ZCard(ctx, key)
			if _, err := pipe.Exec(ctx); err != nil {
				c.log.Warn("cleanup pipeline failed", slog.String("key", key), slog.Any("error", err))
				continue
			}

			if cardCmd.Val() == 0 {
				if err := c.redisClient.Del(ctx, key).Err(); err != nil {
					c.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
					continue
				}
				cleaned++
			}
		}

		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}

	if cleaned > 0 {
		c.log.Info("rate limit keys cleaned", slog.Int("keys_removed", cleaned))
	}
}
