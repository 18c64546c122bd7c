package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const postCommentsKey = "post-comments:%s" // <postID>

func PostCommentsKey(postID string) string {
	return fmt.Sprintf(postCommentsKey, postID)
}

// Redis хранит записи как JSON со сроком жизни ttl.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

var _ Manager = (*Redis)(nil)

func (r *Redis) Get(ctx context.Context, postID string) (Entry, bool, error) {
	value, err := r.rdb.Get(ctx, PostCommentsKey(postID)).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get cached comments: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cached comments: %w", err)
	}
	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, entry Entry) error {
	valueJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, PostCommentsKey(entry.PostID), valueJSON, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, postID string) error {
	return r.rdb.Del(ctx, PostCommentsKey(postID)).Err()
}
