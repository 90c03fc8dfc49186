package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvatarCache keeps normalized avatar bytes in redis so the public
// retrieval endpoint can skip the document store on hot profiles. Every
// method is nil-receiver safe: with no redis configured the cache simply
// never hits.
type AvatarCache struct {
	rdb *redis.Client
	ttl time.Duration
}

type AvatarCacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewAvatarCache(cfg AvatarCacheConfig) *AvatarCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &AvatarCache{rdb: rdb, ttl: cfg.TTL}
}

func (c *AvatarCache) key(userID string) string {
	return "avatar:" + userID
}

func (c *AvatarCache) Get(ctx context.Context, userID string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	b, err := c.rdb.Get(ctx, c.key(userID)).Bytes()

	if err != nil || len(b) == 0 {
		return nil, false
	}

	return b, true
}

// Set is best-effort; a write failure only costs a later cache miss.
func (c *AvatarCache) Set(ctx context.Context, userID string, png []byte) {
	if c == nil {
		return
	}

	_ = c.rdb.Set(ctx, c.key(userID), png, c.ttl).Err()
}

func (c *AvatarCache) Delete(ctx context.Context, userID string) {
	if c == nil {
		return
	}

	_ = c.rdb.Del(ctx, c.key(userID)).Err()
}

func (c *AvatarCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}

	return c.rdb.Ping(ctx).Err()
}

func (c *AvatarCache) Close() error {
	if c == nil {
		return nil
	}

	return c.rdb.Close()
}
