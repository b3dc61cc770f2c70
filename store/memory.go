package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rushteam/solfeed/core"
)

// DefaultFeedTTL 首页缓存默认过期时间
const DefaultFeedTTL = 60 * time.Second

// MemoryFeedCache 是内存实现的 FeedCache，用于测试/开发。
// 支持 TTL，但进程重启后数据丢失。
type MemoryFeedCache struct {
	mu    sync.RWMutex
	data  map[string]*entry
	ttl   time.Duration
	clean *time.Ticker
	done  chan struct{}
	once  sync.Once
}

type entry struct {
	value  []byte
	expire time.Time
}

// NewMemoryFeedCache ttl <= 0 时使用 DefaultFeedTTL
func NewMemoryFeedCache(ttl time.Duration) *MemoryFeedCache {
	if ttl <= 0 {
		ttl = DefaultFeedTTL
	}
	m := &MemoryFeedCache{
		data:  make(map[string]*entry),
		ttl:   ttl,
		clean: time.NewTicker(10 * time.Second),
		done:  make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *MemoryFeedCache) Name() string { return "memory" }

// SetFeed 覆盖写入，与 Redis 实现一致按 JSON 存储
func (m *MemoryFeedCache) SetFeed(ctx context.Context, wallet string, feed *core.CachedFeed) error {
	data, err := json.Marshal(feed)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[feedKey(wallet)] = &entry{value: data, expire: time.Now().Add(m.ttl)}
	return nil
}

func (m *MemoryFeedCache) GetFeed(ctx context.Context, wallet string) (*core.CachedFeed, error) {
	m.mu.RLock()
	e, ok := m.data[feedKey(wallet)]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expire) {
		return nil, core.ErrNotFound
	}
	var feed core.CachedFeed
	if err := json.Unmarshal(e.value, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

func (m *MemoryFeedCache) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryFeedCache) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case <-m.clean.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.data {
				if now.After(e.expire) {
					delete(m.data, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// feedKey 首页缓存 key
func feedKey(wallet string) string {
	return "feed:" + wallet
}

var _ core.FeedCache = (*MemoryFeedCache)(nil)
