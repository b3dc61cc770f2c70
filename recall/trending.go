package recall

import (
	"context"
	"time"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
)

// DefaultColdStartLikes 点赞数少于该值的用户视为冷启动
const DefaultColdStartLikes = 5

// Trending 是全局热门召回源（按点赞数倒序），给冷启动用户补充内容。
type Trending struct {
	Store core.ContentStore

	// ColdStartLikes 冷启动阈值，<= 0 时使用 DefaultColdStartLikes
	ColdStartLikes int
	// Window 只统计最近 Window 内发布的帖子，0 表示不限制
	Window time.Duration
	// AlwaysOn 忽略冷启动判断（热门 Feed）
	AlwaysOn bool

	Logger logging.Logger

	now func() time.Time
}

func (r *Trending) Name() string        { return "recall.trending" }
func (r *Trending) Kind() pipeline.Kind { return pipeline.KindSource }

// Enable 只对冷启动用户启用（没有点赞记录的用户同样属于冷启动）
func (r *Trending) Enable(q *core.FeedQuery) bool {
	if r.AlwaysOn {
		return true
	}
	return q.IsColdStart(r.threshold())
}

func (r *Trending) GetCandidates(ctx context.Context, q *core.FeedQuery) ([]*core.FeedCandidate, error) {
	if r.Store == nil {
		return nil, nil
	}
	pq := core.PostQuery{
		OrderBy: core.OrderByLikes,
		Limit:   q.Limit,
	}
	if t, ok := q.CursorTime(); ok {
		pq.Before = t
	}
	if r.Window > 0 {
		now := time.Now
		if r.now != nil {
			now = r.now
		}
		pq.Since = now().Add(-r.Window)
	}

	rows, err := r.Store.QueryPosts(ctx, pq)
	if err != nil {
		warnSource(r.Logger, r, q, err)
		return nil, nil
	}
	return rowsToCandidates(rows, core.SourceTrending), nil
}

func (r *Trending) threshold() int {
	if r.ColdStartLikes <= 0 {
		return DefaultColdStartLikes
	}
	return r.ColdStartLikes
}
