package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
)

// DefaultMaxPerCreator 每页同一创作者最多出现的次数
const DefaultMaxPerCreator = 3

// TopScore 是默认的 Selector：按分数截取一页，并限制单个创作者的占比。
//
// 排序：finalScore 降序，timestamp 降序，postId 升序（完全确定）。
// 游标：最后一个被选中的 Store 召回（in_network / trending）候选的时间戳；
// 远程召回的候选不参与游标推导。
type TopScore struct {
	pipeline.Always

	// MaxPerCreator 单个创作者上限，<= 0 表示不限制
	MaxPerCreator int
	// Backfill 为 true 时，如果上限导致不足一页，用被跳过的候选按顺序补齐
	Backfill bool
}

// NewTopScore 使用默认参数
func NewTopScore() *TopScore {
	return &TopScore{MaxPerCreator: DefaultMaxPerCreator, Backfill: true}
}

func (s *TopScore) Name() string        { return "rerank.top_score" }
func (s *TopScore) Kind() pipeline.Kind { return pipeline.KindSelector }

func (s *TopScore) Select(_ context.Context, q *core.FeedQuery, items []*core.FeedCandidate) (*core.FeedPage, error) {
	sorted := make([]*core.FeedCandidate, 0, len(items))
	for _, it := range items {
		if it != nil {
			sorted = append(sorted, it)
		}
	}
	SortByScore(sorted)

	selected := capPerCreator(sorted, q.Limit, s.MaxPerCreator, s.Backfill)
	return &core.FeedPage{
		Candidates: selected,
		NextCursor: NextCursor(selected),
	}, nil
}

// SortByScore 原地排序：finalScore 降序，timestamp 降序，postId 升序。
func SortByScore(items []*core.FeedCandidate) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.PostID < b.PostID
	})
}

// NextCursor 返回最后一个 Store 召回候选的时间戳，没有则返回 nil。
func NextCursor(page []*core.FeedCandidate) *string {
	for i := len(page) - 1; i >= 0; i-- {
		c := page[i]
		if c.Source.StoreBacked() && !c.Timestamp.IsZero() {
			cursor := core.FormatCursor(c.Timestamp)
			return &cursor
		}
	}
	return nil
}
