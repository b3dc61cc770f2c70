package sideeffect

import (
	"context"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
)

// CacheFeed 把首页结果写入 FeedCache（按钱包覆盖写入）。
// 只对首页启用，翻页请求不能覆盖首页快照。写入失败只记录日志。
type CacheFeed struct {
	Cache  core.FeedCache
	Logger logging.Logger
}

func (s *CacheFeed) Name() string        { return "sideeffect.cache_feed" }
func (s *CacheFeed) Kind() pipeline.Kind { return pipeline.KindSideEffect }

// Enable 没有游标（首页）时启用
func (s *CacheFeed) Enable(q *core.FeedQuery) bool {
	return !q.HasCursor()
}

func (s *CacheFeed) Run(ctx context.Context, q *core.FeedQuery, page *core.FeedPage) {
	if s.Cache == nil || q.IsAnonymous() || page == nil {
		return
	}
	if err := s.Cache.SetFeed(ctx, q.UserWallet, ToCachedFeed(page)); err != nil {
		logging.OrDiscard(s.Logger).WithFields(logging.Fields{
			"request_id": q.RequestID,
			"stage":      s.Name(),
		}).WithError(err).Warn("cache feed write failed")
	}
}

// ToCachedFeed 转换为缓存结构
func ToCachedFeed(page *core.FeedPage) *core.CachedFeed {
	posts := make([]core.CachedPost, 0, len(page.Candidates))
	for _, c := range page.Candidates {
		posts = append(posts, core.CachedPost{
			ID:            c.PostID,
			CreatorWallet: c.CreatorWallet,
			Timestamp:     c.Timestamp,
			ContentURI:    c.ContentURI,
			Caption:       c.Caption,
			Description:   c.Description,
			Tags:          c.AutoTags,
			Likes:         c.Likes,
			Comments:      c.Comments,
			TipsReceived:  c.TipsReceived,
			Source:        string(c.Source),
			Score:         c.FinalScore,
			IsTokenGated:  c.IsTokenGated,
			Locked:        c.Locked,
		})
	}
	return &core.CachedFeed{Posts: posts, NextCursor: page.NextCursor}
}
