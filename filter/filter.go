package filter

import (
	"context"

	"github.com/rushteam/solfeed/core"
)

// Filter 是过滤规则的抽象接口，用于判断一个候选是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
//
// 规则之间相互独立，组合结果是各规则保留集合的交集，与规则顺序无关。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 candidate 是否应该被过滤
	ShouldFilter(ctx context.Context, q *core.FeedQuery, c *core.FeedCandidate) (bool, error)
}

// Binder 是可选接口：在每次请求开始时基于 FeedQuery 预计算（如构建集合），
// 返回请求级的 Filter，避免对每个候选重复计算。
type Binder interface {
	Bind(q *core.FeedQuery) Filter
}
