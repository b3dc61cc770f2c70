package pipeline

import (
	"context"

	"github.com/rushteam/solfeed/core"
)

// Kind 用于标记 Stage 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindQueryHydrator Kind = "query_hydrator" // 补齐请求上下文
	KindSource        Kind = "source"         // 召回：生成候选集
	KindHydrator      Kind = "hydrator"       // 补水：补充候选字段
	KindFilter        Kind = "filter"         // 过滤：剔除不符合约束的候选
	KindScorer        Kind = "scorer"         // 打分
	KindSelector      Kind = "selector"       // 截断、排序、多样性
	KindPostFilter    Kind = "post_filter"    // 选中页面后的过滤/标注
	KindSideEffect    Kind = "side_effect"    // 尽力而为的副作用
)

// Stage 是所有 Pipeline 步骤的统一契约。
// Enable 每次调用只评估一次，返回 false 的 Stage 本次被跳过。
type Stage interface {
	Name() string
	Kind() Kind
	Enable(q *core.FeedQuery) bool
}

// QueryHydrator 在召回前补齐 FeedQuery，必须返回新的副本，不得修改入参。
type QueryHydrator interface {
	Stage
	HydrateQuery(ctx context.Context, q *core.FeedQuery) (*core.FeedQuery, error)
}

// Source 是召回源。实现应自行吸收后端错误（返回空列表并记录日志），
// Fanout 会把仍然返回的错误视为空结果。
type Source interface {
	Stage
	GetCandidates(ctx context.Context, q *core.FeedQuery) ([]*core.FeedCandidate, error)
}

// Node 是 Hydrator / Filter / Scorer / PostFilter 共用的"输入候选 -> 输出候选"形态。
//
// 约束：
//   - Hydrator 不得增删候选
//   - Filter 只能删除候选
//   - Scorer 不得改变候选数量与相对顺序
type Node interface {
	Stage
	Process(ctx context.Context, q *core.FeedQuery, items []*core.FeedCandidate) ([]*core.FeedCandidate, error)
}

// Selector 把打分后的候选截断为一页，并给出下一页游标（nil 表示无）。
type Selector interface {
	Stage
	Select(ctx context.Context, q *core.FeedQuery, items []*core.FeedCandidate) (*core.FeedPage, error)
}

// SideEffect 是尽力而为的副作用（缓存首页、打点），不返回错误，也不得 panic 到调用方。
type SideEffect interface {
	Stage
	Run(ctx context.Context, q *core.FeedQuery, page *core.FeedPage)
}

// Always 可嵌入到总是启用的 Stage 中。
type Always struct{}

func (Always) Enable(*core.FeedQuery) bool { return true }
