package hydrator

import (
	"context"
	"strings"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
)

// Content 规范化 AI 生成的字段：标签小写、去空白、去重；描述去首尾空白。
// 远程召回的候选没有 caption 等字段时保持为空，不做补齐。
type Content struct {
	pipeline.Always
}

func (h *Content) Name() string        { return "hydrator.content" }
func (h *Content) Kind() pipeline.Kind { return pipeline.KindHydrator }

func (h *Content) Process(_ context.Context, _ *core.FeedQuery, items []*core.FeedCandidate) ([]*core.FeedCandidate, error) {
	for _, it := range items {
		it.Description = strings.TrimSpace(it.Description)
		it.Caption = strings.TrimSpace(it.Caption)
		it.AutoTags = normalizeTags(it.AutoTags)
		it.SceneType = strings.ToLower(strings.TrimSpace(it.SceneType))
		it.Mood = strings.ToLower(strings.TrimSpace(it.Mood))
	}
	return items, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return tags
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Following 标注候选的作者是否被当前用户关注（打分请求需要该字段）。
type Following struct{}

func (h *Following) Name() string        { return "hydrator.following" }
func (h *Following) Kind() pipeline.Kind { return pipeline.KindHydrator }

// Enable 匿名用户没有关注关系
func (h *Following) Enable(q *core.FeedQuery) bool {
	return !q.IsAnonymous()
}

func (h *Following) Process(_ context.Context, q *core.FeedQuery, items []*core.FeedCandidate) ([]*core.FeedCandidate, error) {
	following := core.StringSet(q.FollowingWallets)
	for _, it := range items {
		_, ok := following[it.CreatorWallet]
		it.IsFollowingCreator = ok || it.Source == core.SourceInNetwork
	}
	return items, nil
}
