package recall

import (
	"context"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
)

// InNetwork 召回关注的创作者最近发布的帖子，按时间倒序。
// 游标作为时间戳的开区间上界，用于翻页。
//
// 使用示例：
//
//	src := &recall.InNetwork{Store: pgStore, Logger: logger}
type InNetwork struct {
	Store  core.ContentStore
	Logger logging.Logger
}

func (r *InNetwork) Name() string        { return "recall.in_network" }
func (r *InNetwork) Kind() pipeline.Kind { return pipeline.KindSource }

// Enable 只有关注列表非空时启用
func (r *InNetwork) Enable(q *core.FeedQuery) bool {
	return len(q.FollowingWallets) > 0
}

// GetCandidates 查询失败时返回空列表
func (r *InNetwork) GetCandidates(ctx context.Context, q *core.FeedQuery) ([]*core.FeedCandidate, error) {
	if r.Store == nil || len(q.FollowingWallets) == 0 {
		return nil, nil
	}
	pq := core.PostQuery{
		Creators: q.FollowingWallets,
		OrderBy:  core.OrderByTimestamp,
		Limit:    q.Limit,
	}
	if t, ok := q.CursorTime(); ok {
		pq.Before = t
	}

	rows, err := r.Store.QueryPosts(ctx, pq)
	if err != nil {
		warnSource(r.Logger, r, q, err)
		return nil, nil
	}
	return rowsToCandidates(rows, core.SourceInNetwork), nil
}

func rowsToCandidates(rows []core.PostRow, source core.CandidateSource) []*core.FeedCandidate {
	out := make([]*core.FeedCandidate, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToCandidate(source))
	}
	return out
}

func warnSource(l logging.Logger, s pipeline.Stage, q *core.FeedQuery, err error) {
	logging.OrDiscard(l).WithFields(logging.Fields{
		"request_id": q.RequestID,
		"stage":      s.Name(),
	}).WithError(err).Warn("source failed, returning empty result")
}
