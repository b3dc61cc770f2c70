package filter

import (
	"context"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该候选就会被过滤掉。
type FilterNode struct {
	pipeline.Always

	// NodeName 为空时使用 "filter.node"
	NodeName string
	Filters  []Filter
	Logger   logging.Logger
}

// NewNode 组合多个过滤器
func NewNode(filters ...Filter) *FilterNode {
	return &FilterNode{Filters: filters}
}

func (n *FilterNode) Name() string {
	if n.NodeName != "" {
		return n.NodeName
	}
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	q *core.FeedQuery,
	items []*core.FeedCandidate,
) ([]*core.FeedCandidate, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	filters := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		if b, ok := f.(Binder); ok {
			f = b.Bind(q)
		}
		filters = append(filters, f)
	}

	out := make([]*core.FeedCandidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		filterReason := ""
		for _, f := range filters {
			ok, err := f.ShouldFilter(ctx, q, item)
			if err != nil {
				// 过滤器错误时保留该候选（fail open），记录但不中断流程
				logging.OrDiscard(n.Logger).WithFields(logging.Fields{
					"request_id": q.RequestID,
					"stage":      f.Name(),
					"post_id":    item.PostID,
				}).WithError(err).Warn("filter rule failed, keeping candidate")
				continue
			}
			if ok {
				filterReason = f.Name()
				break
			}
		}

		if filterReason != "" {
			item.PutLabel(core.LabelFiltered, core.Label{Value: "true", Source: filterReason})
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
