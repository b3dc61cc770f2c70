package filter

import (
	"context"
	"strings"
	"time"

	"github.com/rushteam/solfeed/core"
)

// DefaultStaleAfter 超过该时长的帖子视为过期
const DefaultStaleAfter = 30 * 24 * time.Hour

// Seen 过滤用户已经看过的帖子（FeedQuery.SeenPostIDs）。
type Seen struct{}

func (Seen) Name() string { return "filter.seen" }

func (f Seen) Bind(q *core.FeedQuery) Filter {
	return setFilter{name: f.Name(), set: core.StringSet(q.SeenPostIDs), key: postID}
}

func (f Seen) ShouldFilter(ctx context.Context, q *core.FeedQuery, c *core.FeedCandidate) (bool, error) {
	return f.Bind(q).ShouldFilter(ctx, q, c)
}

// BlockedAuthor 过滤被用户拉黑的作者。
type BlockedAuthor struct{}

func (BlockedAuthor) Name() string { return "filter.blocked_author" }

func (f BlockedAuthor) Bind(q *core.FeedQuery) Filter {
	return setFilter{name: f.Name(), set: core.StringSet(q.BlockedWallets), key: creator}
}

func (f BlockedAuthor) ShouldFilter(ctx context.Context, q *core.FeedQuery, c *core.FeedCandidate) (bool, error) {
	return f.Bind(q).ShouldFilter(ctx, q, c)
}

type setFilter struct {
	name string
	set  map[string]struct{}
	key  func(*core.FeedCandidate) string
}

func (f setFilter) Name() string { return f.name }

func (f setFilter) ShouldFilter(_ context.Context, _ *core.FeedQuery, c *core.FeedCandidate) (bool, error) {
	if len(f.set) == 0 {
		return false, nil
	}
	_, ok := f.set[f.key(c)]
	return ok, nil
}

func postID(c *core.FeedCandidate) string  { return c.PostID }
func creator(c *core.FeedCandidate) string { return c.CreatorWallet }

// MutedKeyword 过滤 caption / description / tags 中包含屏蔽词的帖子（不区分大小写的子串匹配）。
// 屏蔽词为请求中的 MutedKeywords 加上运营配置的 Global。
type MutedKeyword struct {
	Global []string
}

func (MutedKeyword) Name() string { return "filter.muted_keyword" }

func (f MutedKeyword) Bind(q *core.FeedQuery) Filter {
	words := make([]string, 0, len(q.MutedKeywords)+len(f.Global))
	for _, list := range [][]string{f.Global, q.MutedKeywords} {
		for _, w := range list {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				words = append(words, w)
			}
		}
	}
	return mutedWords(words)
}

func (f MutedKeyword) ShouldFilter(ctx context.Context, q *core.FeedQuery, c *core.FeedCandidate) (bool, error) {
	return f.Bind(q).ShouldFilter(ctx, q, c)
}

type mutedWords []string

func (mutedWords) Name() string { return "filter.muted_keyword" }

func (m mutedWords) ShouldFilter(_ context.Context, _ *core.FeedQuery, c *core.FeedCandidate) (bool, error) {
	if len(m) == 0 {
		return false, nil
	}
	fields := make([]string, 0, 2+len(c.AutoTags))
	fields = append(fields, strings.ToLower(c.Caption), strings.ToLower(c.Description))
	for _, t := range c.AutoTags {
		fields = append(fields, strings.ToLower(t))
	}
	for _, w := range m {
		for _, f := range fields {
			if strings.Contains(f, w) {
				return true, nil
			}
		}
	}
	return false, nil
}

// Stale 过滤发布时间早于 MaxAge 的帖子。时间戳未知（远程召回）的候选保留。
type Stale struct {
	// MaxAge <= 0 时不过滤
	MaxAge time.Duration
	Now    func() time.Time
}

func (*Stale) Name() string { return "filter.stale" }

func (f *Stale) ShouldFilter(_ context.Context, _ *core.FeedQuery, c *core.FeedCandidate) (bool, error) {
	if f.MaxAge <= 0 || c.Timestamp.IsZero() {
		return false, nil
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return now().Sub(c.Timestamp) > f.MaxAge, nil
}
