package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pkg/logging"
)

// FeedPipeline 是 Feed 排序的核心抽象：把排序逻辑拆成可组合的 Stage 链。
//
// 执行顺序：
//
//	QueryHydrator -> Source(并发) -> Merge -> Hydrator -> Filter -> Scorer
//	-> Selector -> PostFilter -> SideEffect
//
// FeedPipeline 在启动时由 Builder 构建一次，之后只读，可被并发调用。
type FeedPipeline struct {
	name string

	queryHydrators []QueryHydrator
	sources        []Source
	hydrators      []Node
	filters        []Node
	scorers        []Node
	selector       Selector
	postFilters    []Node
	sideEffects    []SideEffect

	sourceTimeout     time.Duration
	maxConcurrent     int
	maxLimit          int
	asyncSideEffects  bool
	sideEffectTimeout time.Duration

	logger   logging.Logger
	observer Observer

	inflight sync.WaitGroup // 异步副作用
}

// Name 返回 Pipeline 名称（for-you / following / explore / trending）
func (p *FeedPipeline) Name() string { return p.name }

// Run 执行一次 Feed 请求。
//
// 只有两类错误会返回给调用方：
//   - 非法请求（core.ErrInvalidQuery），在任何 Stage 执行前返回
//   - 请求 ctx 被取消，此时整个调用中止，不返回部分结果
//
// 其余任何 Stage 的失败都在内部降级吸收。
func (p *FeedPipeline) Run(ctx context.Context, query *core.FeedQuery) (*core.FeedPage, error) {
	if err := query.Validate(p.maxLimit); err != nil {
		return nil, err
	}
	q := query.Clone().Normalize()

	q = p.hydrateQuery(ctx, q)
	if err := ctx.Err(); err != nil {
		return nil, p.aborted(q, err)
	}

	items := Merge(p.fanout(ctx, q, enabledSources(p.sources, q)))
	if err := ctx.Err(); err != nil {
		return nil, p.aborted(q, err)
	}

	steps := []struct {
		kind  Kind
		nodes []Node
	}{
		{KindHydrator, p.hydrators},
		{KindFilter, p.filters},
		{KindScorer, p.scorers},
	}
	for _, step := range steps {
		items = p.runNodes(ctx, q, step.kind, step.nodes, items)
		if err := ctx.Err(); err != nil {
			return nil, p.aborted(q, err)
		}
	}

	page := p.selectPage(ctx, q, items)
	page.Candidates = p.runNodes(ctx, q, KindPostFilter, p.postFilters, page.Candidates)
	if err := ctx.Err(); err != nil {
		return nil, p.aborted(q, err)
	}

	p.runSideEffects(ctx, q, page)
	return page, nil
}

// Wait 等待所有异步副作用完成（优雅退出 / 测试使用）。
func (p *FeedPipeline) Wait() {
	p.inflight.Wait()
}

func (p *FeedPipeline) hydrateQuery(ctx context.Context, q *core.FeedQuery) *core.FeedQuery {
	for _, h := range p.queryHydrators {
		if !h.Enable(q) {
			continue
		}
		start := time.Now()
		next, err := h.HydrateQuery(ctx, q)
		p.observer.StageDone(KindQueryHydrator, h.Name(), time.Since(start))
		if err != nil {
			p.logStage(q, h, err).Warn("query hydrator failed, keeping original query")
			p.observer.StageDegraded(KindQueryHydrator, h.Name())
			continue
		}
		if next != nil {
			q = next
		}
	}
	return q
}

// runNodes 顺序执行同一类 Node。Node 出错或违反其契约时丢弃该 Node 的输出，
// 使用输入继续（fail open）。
func (p *FeedPipeline) runNodes(ctx context.Context, q *core.FeedQuery, kind Kind, nodes []Node, items []*core.FeedCandidate) []*core.FeedCandidate {
	cur := items
	for _, node := range nodes {
		if !node.Enable(q) {
			continue
		}
		start := time.Now()
		next, err := node.Process(ctx, q, cur)
		p.observer.StageDone(kind, node.Name(), time.Since(start))
		if err == nil {
			err = checkContract(kind, len(cur), len(next))
		}
		if err != nil {
			p.logStage(q, node, err).Warn("stage degraded, output discarded")
			p.observer.StageDegraded(kind, node.Name())
			continue
		}
		cur = next
	}
	return cur
}

func checkContract(kind Kind, in, out int) error {
	switch kind {
	case KindHydrator, KindScorer:
		if in != out {
			return fmt.Errorf("%s changed candidate count: %d -> %d", kind, in, out)
		}
	case KindFilter, KindPostFilter:
		if out > in {
			return fmt.Errorf("%s added candidates: %d -> %d", kind, in, out)
		}
	}
	return nil
}

func (p *FeedPipeline) selectPage(ctx context.Context, q *core.FeedQuery, items []*core.FeedCandidate) *core.FeedPage {
	if p.selector != nil && p.selector.Enable(q) {
		start := time.Now()
		page, err := p.selector.Select(ctx, q, items)
		p.observer.StageDone(KindSelector, p.selector.Name(), time.Since(start))
		if err == nil && page != nil {
			return page
		}
		p.logStage(q, p.selector, err).Warn("selector failed, truncating by score")
		p.observer.StageDegraded(KindSelector, p.selector.Name())
	}
	return truncateByScore(items, q.Limit)
}

// truncateByScore 是 Selector 缺失或失败时的兜底：按分数降序截断，不给出游标。
func truncateByScore(items []*core.FeedCandidate, limit int) *core.FeedPage {
	out := append([]*core.FeedCandidate(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return &core.FeedPage{Candidates: out}
}

func (p *FeedPipeline) runSideEffects(ctx context.Context, q *core.FeedQuery, page *core.FeedPage) {
	enabled := make([]SideEffect, 0, len(p.sideEffects))
	for _, se := range p.sideEffects {
		if se.Enable(q) {
			enabled = append(enabled, se)
		}
	}
	if len(enabled) == 0 {
		return
	}

	// 副作用不受请求取消影响，但有自己的超时
	seCtx := context.WithoutCancel(ctx)
	run := func() {
		if p.sideEffectTimeout > 0 {
			var cancel context.CancelFunc
			seCtx, cancel = context.WithTimeout(seCtx, p.sideEffectTimeout)
			defer cancel()
		}
		for _, se := range enabled {
			p.runSideEffect(seCtx, q, page, se)
		}
	}

	if !p.asyncSideEffects {
		run()
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		run()
	}()
}

func (p *FeedPipeline) runSideEffect(ctx context.Context, q *core.FeedQuery, page *core.FeedPage, se SideEffect) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logStage(q, se, fmt.Errorf("panic: %v", r)).Error("side effect panicked")
			p.observer.StageDegraded(KindSideEffect, se.Name())
		}
		p.observer.StageDone(KindSideEffect, se.Name(), time.Since(start))
	}()
	se.Run(ctx, q, page)
}

func (p *FeedPipeline) aborted(q *core.FeedQuery, err error) error {
	p.logger.WithFields(logging.Fields{
		"request_id": q.RequestID,
		"pipeline":   p.name,
	}).WithError(err).Info("feed request canceled")
	return fmt.Errorf("feed pipeline %s aborted: %w", p.name, err)
}

func (p *FeedPipeline) logStage(q *core.FeedQuery, s Stage, err error) *logrus.Entry {
	entry := p.logger.WithFields(logging.Fields{
		"request_id": q.RequestID,
		"pipeline":   p.name,
		"stage":      s.Name(),
		"kind":       string(s.Kind()),
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	return entry
}

func enabledSources(sources []Source, q *core.FeedQuery) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s.Enable(q) {
			out = append(out, s)
		}
	}
	return out
}
