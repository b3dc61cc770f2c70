package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/solfeed/core"
)

// fanout 并发执行所有启用的召回源，每个源独立超时。
// 单个源失败或超时只贡献空结果，不取消兄弟源（fail open）。
// 返回值按 sources 的声明顺序排列，供 Merge 按优先级去重。
func (p *FeedPipeline) fanout(ctx context.Context, q *core.FeedQuery, sources []Source) [][]*core.FeedCandidate {
	results := make([][]*core.FeedCandidate, len(sources))

	// 不使用 errgroup.WithContext：一个源出错不应取消其它源
	var eg errgroup.Group
	if p.maxConcurrent > 0 {
		eg.SetLimit(p.maxConcurrent)
	}

	for i, src := range sources {
		eg.Go(func() error {
			start := time.Now()

			recallCtx := ctx
			if p.sourceTimeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, p.sourceTimeout)
				defer cancel()
			}

			items, err := src.GetCandidates(recallCtx, q)
			if err == nil && recallCtx.Err() != nil && ctx.Err() == nil {
				err = recallCtx.Err()
			}
			if err != nil {
				// 超时或错误时返回空结果，不中断其他召回源
				p.logStage(q, src, err).Warn("source degraded to empty result")
				p.observer.SourceFailed(src.Name())
				items = nil
			}

			for _, it := range items {
				if it == nil {
					continue
				}
				it.PutLabel(core.LabelRecallSource, core.Label{Value: src.Name(), Source: "recall"})
			}
			p.observer.SourceReturned(src.Name(), len(items), time.Since(start))
			results[i] = items
			return nil
		})
	}

	_ = eg.Wait()
	return results
}

// Merge 按优先级顺序拼接各召回源的结果，按 PostID 去重，保留第一次出现的候选。
// 被丢弃的重复候选的 recall_source label 会合并到保留的候选上，便于解释。
func Merge(ordered [][]*core.FeedCandidate) []*core.FeedCandidate {
	total := 0
	for _, items := range ordered {
		total += len(items)
	}
	seen := make(map[string]*core.FeedCandidate, total)
	out := make([]*core.FeedCandidate, 0, total)
	for _, items := range ordered {
		for _, it := range items {
			if it == nil || it.PostID == "" {
				continue
			}
			if kept, ok := seen[it.PostID]; ok {
				if lbl, ok := it.Labels[core.LabelRecallSource]; ok {
					kept.PutLabel(core.LabelRecallSource, lbl)
				}
				continue
			}
			seen[it.PostID] = it
			out = append(out, it)
		}
	}
	return out
}
