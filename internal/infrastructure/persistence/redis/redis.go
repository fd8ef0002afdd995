// Package redis implements optional Redis-backed helpers for the AI
// dialog: a per-user daily question quota and a reply cache for opening
// questions. The bot runs fine without Redis; both helpers are skipped
// when it is not configured.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surimil/mediabot/internal/domain/user"
)

// Config holds Redis connection settings.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewClient creates a Redis client from a URL and verifies connectivity.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to parse URL: %w", err)
	}

	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

// ChatQuota limits AI questions per user per calendar day (UTC).
type ChatQuota struct {
	client *redis.Client
	limit  int
}

// NewChatQuota creates the quota with a daily question limit.
func NewChatQuota(client *redis.Client, limit int) *ChatQuota {
	return &ChatQuota{client: client, limit: limit}
}

// Allow counts one question against today's quota and reports whether the
// user is still within it.
func (q *ChatQuota) Allow(ctx context.Context, telegramID int64) (bool, error) {
	if q.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("ai:quota:%d:%s", telegramID, time.Now().UTC().Format("2006-01-02"))

	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: quota incr: %w", err)
	}
	if count == 1 {
		// First question today; the key expires with the day, plus slack.
		q.client.Expire(ctx, key, 25*time.Hour)
	}
	return count <= int64(q.limit), nil
}

// ReplyCache caches AI replies to opening questions (empty history), so
// identical first questions are answered without another API round trip.
type ReplyCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplyCache creates a reply cache with the given TTL.
func NewReplyCache(client *redis.Client, ttl time.Duration) *ReplyCache {
	return &ReplyCache{client: client, ttl: ttl}
}

// Get returns a cached reply, if any.
func (c *ReplyCache) Get(ctx context.Context, lang user.Language, question string) (string, bool, error) {
	reply, err := c.client.Get(ctx, replyKey(lang, question)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: reply get: %w", err)
	}
	return reply, true, nil
}

// Put stores a reply.
func (c *ReplyCache) Put(ctx context.Context, lang user.Language, question, reply string) error {
	if err := c.client.Set(ctx, replyKey(lang, question), reply, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: reply set: %w", err)
	}
	return nil
}

func replyKey(lang user.Language, question string) string {
	sum := sha256.Sum256([]byte(question))
	return fmt.Sprintf("ai:reply:%s:%s", lang, hex.EncodeToString(sum[:16]))
}
