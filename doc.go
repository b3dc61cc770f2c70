// Package solfeed 是社交内容 Feed 的排序服务（Feed Ranking Pipeline）。
//
// 设计要点：
// - Pipeline-first: 所有排序逻辑通过 Stage 串联（QueryHydrator → Source → Hydrator → Filter → Scorer → Selector → PostFilter → SideEffect）
// - Fail-open: 召回源、补水、打分失败都会降级吸收，只有非法请求与取消会返回错误
// - Labels-first: labels 全链路透传（recall_source / score_source / gated），便于观测与解释
package solfeed

import (
	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
)

// 轻量 facade：便于用户直接 import "solfeed" 使用核心抽象。
type (
	FeedPipeline  = pipeline.FeedPipeline
	Stage         = pipeline.Stage
	Kind          = pipeline.Kind
	FeedQuery     = core.FeedQuery
	FeedCandidate = core.FeedCandidate
	FeedPage      = core.FeedPage
)

const (
	KindQueryHydrator = pipeline.KindQueryHydrator
	KindSource        = pipeline.KindSource
	KindHydrator      = pipeline.KindHydrator
	KindFilter        = pipeline.KindFilter
	KindScorer        = pipeline.KindScorer
	KindSelector      = pipeline.KindSelector
	KindPostFilter    = pipeline.KindPostFilter
	KindSideEffect    = pipeline.KindSideEffect
)

// NewBuilder 创建一个 Pipeline Builder。
func NewBuilder(name string) *pipeline.Builder { return pipeline.NewBuilder(name) }
