package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/solfeed/core"
)

// RedisFeedCache 是 Redis 实现的 FeedCache（生产环境）。
// 每个钱包一个 key，SET 覆盖写入并带 TTL，天然幂等。
type RedisFeedCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisFeedCache 连接 Redis 并 Ping 校验
func NewRedisFeedCache(addr, password string, db int, ttl time.Duration) (*RedisFeedCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, core.WrapDomainError(core.ModuleCache, core.ErrorCodeUnavailable, "redis ping failed", err)
	}
	return NewRedisFeedCacheFromClient(client, ttl), nil
}

// NewRedisFeedCacheFromClient 复用已有的客户端
func NewRedisFeedCacheFromClient(client redis.UniversalClient, ttl time.Duration) *RedisFeedCache {
	if ttl <= 0 {
		ttl = DefaultFeedTTL
	}
	return &RedisFeedCache{client: client, ttl: ttl}
}

func (r *RedisFeedCache) Name() string { return "redis" }

func (r *RedisFeedCache) SetFeed(ctx context.Context, wallet string, feed *core.CachedFeed) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, feedKey(wallet), data, r.ttl).Err()
}

func (r *RedisFeedCache) GetFeed(ctx context.Context, wallet string) (*core.CachedFeed, error) {
	val, err := r.client.Get(ctx, feedKey(wallet)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var feed core.CachedFeed
	if err := json.Unmarshal(val, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// Ping 健康检查
func (r *RedisFeedCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisFeedCache) Close() error {
	return r.client.Close()
}

var _ core.FeedCache = (*RedisFeedCache)(nil)
