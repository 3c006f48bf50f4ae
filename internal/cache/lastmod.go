package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lastModifiedPrefix = "posts:lastmod:"

func lastModifiedKey(username string) string {
	return lastModifiedPrefix + username
}

// raiseScript stores ARGV[1] only if it is newer than the cached value, so a
// slow backfill cannot overwrite a stamp written by a later mutation.
// Values are Unix milliseconds, which Lua numbers hold exactly.
var raiseScript = redis.NewScript(`
	local key = KEYS[1]
	local at = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key))
	if current and current >= at then
		return 0
	end

	if ttl > 0 then
		redis.call('SET', key, ARGV[1], 'PX', ttl)
	else
		redis.call('SET', key, ARGV[1])
	end
	return 1
`)

// GetPostsModifiedAt returns the cached collection timestamp for username.
// Returns ErrCacheMiss if nothing is cached.
func (c *Cache) GetPostsModifiedAt(ctx context.Context, username string) (time.Time, error) {
	millis, err := c.client.Get(ctx, lastModifiedKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrCacheMiss
		}
		return time.Time{}, fmt.Errorf("redis get failed: %w", err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

// SetPostsModifiedAt caches the collection timestamp for username unless a
// newer one is already cached. A non-positive ttl keeps the key forever.
func (c *Cache) SetPostsModifiedAt(ctx context.Context, username string, at time.Time, ttl time.Duration) error {
	err := raiseScript.Run(ctx, c.client,
		[]string{lastModifiedKey(username)},
		at.UnixMilli(), ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to cache posts modified time: %w", err)
	}
	return nil
}
