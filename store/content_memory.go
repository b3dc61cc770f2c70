package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/solfeed/core"
)

// MemoryContentStore 是内存实现的 ContentStore + SignalStore，用于测试/开发。
type MemoryContentStore struct {
	mu      sync.RWMutex
	posts   []core.PostRow
	signals map[string]*core.UserSignals
}

func NewMemoryContentStore(posts ...core.PostRow) *MemoryContentStore {
	return &MemoryContentStore{
		posts:   append([]core.PostRow(nil), posts...),
		signals: make(map[string]*core.UserSignals),
	}
}

func (m *MemoryContentStore) Name() string { return "memory" }

// AddPosts 追加帖子
func (m *MemoryContentStore) AddPosts(posts ...core.PostRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, posts...)
}

// SetUserSignals 设置用户信号
func (m *MemoryContentStore) SetUserSignals(wallet string, s core.UserSignals) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[wallet] = &s
}

func (m *MemoryContentStore) QueryPosts(ctx context.Context, q core.PostQuery) ([]core.PostRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var creators map[string]struct{}
	if len(q.Creators) > 0 {
		creators = core.StringSet(q.Creators)
	}

	out := make([]core.PostRow, 0)
	for _, p := range m.posts {
		if creators != nil {
			if _, ok := creators[p.CreatorWallet]; !ok {
				continue
			}
		}
		if !q.Before.IsZero() && !p.Timestamp.Before(q.Before) {
			continue
		}
		if !q.Since.IsZero() && p.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy == core.OrderByLikes && out[i].Likes != out[j].Likes {
			return out[i].Likes > out[j].Likes
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// UserSignals 未知用户返回空信号
func (m *MemoryContentStore) UserSignals(ctx context.Context, wallet string) (*core.UserSignals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.signals[wallet]
	if !ok {
		return &core.UserSignals{}, nil
	}
	cp := core.UserSignals{
		FollowingWallets: append([]string(nil), s.FollowingWallets...),
		LikedPostIDs:     append([]string(nil), s.LikedPostIDs...),
		BlockedWallets:   append([]string(nil), s.BlockedWallets...),
	}
	return &cp, nil
}

var (
	_ core.ContentStore = (*MemoryContentStore)(nil)
	_ core.SignalStore  = (*MemoryContentStore)(nil)
)
