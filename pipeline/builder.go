package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rushteam/solfeed/pkg/logging"
)

// 默认参数
const (
	DefaultSourceTimeout     = 2 * time.Second
	DefaultSideEffectTimeout = 5 * time.Second
	DefaultMaxLimit          = 100
)

// Builder 在启动时按顺序组装 Stage，构建出只读的 FeedPipeline。
//
// 使用示例：
//
//	p, err := pipeline.NewBuilder("for-you").
//	    WithSources(inNetwork, outOfNetwork, trending).
//	    WithFilters(filter.NewNode(filter.Seen{}, filter.BlockedAuthor{})).
//	    WithScorers(scorer).
//	    WithSelector(selector).
//	    WithSideEffects(cacheFeed, metricsLog).
//	    Build()
type Builder struct {
	p    *FeedPipeline
	errs []error
}

// NewBuilder 创建 Builder
func NewBuilder(name string) *Builder {
	return &Builder{p: &FeedPipeline{
		name:              name,
		sourceTimeout:     DefaultSourceTimeout,
		sideEffectTimeout: DefaultSideEffectTimeout,
		maxLimit:          DefaultMaxLimit,
		asyncSideEffects:  true,
	}}
}

func (b *Builder) WithQueryHydrators(hs ...QueryHydrator) *Builder {
	b.p.queryHydrators = append(b.p.queryHydrators, hs...)
	return b
}

// WithSources 添加召回源。声明顺序即 Merge 去重的优先级顺序。
func (b *Builder) WithSources(srcs ...Source) *Builder {
	b.p.sources = append(b.p.sources, srcs...)
	return b
}

func (b *Builder) WithHydrators(ns ...Node) *Builder {
	return b.addNodes(KindHydrator, &b.p.hydrators, ns)
}

func (b *Builder) WithFilters(ns ...Node) *Builder {
	return b.addNodes(KindFilter, &b.p.filters, ns)
}

func (b *Builder) WithScorers(ns ...Node) *Builder {
	return b.addNodes(KindScorer, &b.p.scorers, ns)
}

func (b *Builder) WithPostFilters(ns ...Node) *Builder {
	return b.addNodes(KindPostFilter, &b.p.postFilters, ns)
}

func (b *Builder) WithSelector(s Selector) *Builder {
	b.p.selector = s
	return b
}

func (b *Builder) WithSideEffects(ses ...SideEffect) *Builder {
	b.p.sideEffects = append(b.p.sideEffects, ses...)
	return b
}

// WithSourceTimeout 每个召回源的独立超时，<= 0 表示只受请求 ctx 控制。
func (b *Builder) WithSourceTimeout(d time.Duration) *Builder {
	b.p.sourceTimeout = d
	return b
}

// WithMaxConcurrent 召回最大并发数（0 表示无限制）
func (b *Builder) WithMaxConcurrent(n int) *Builder {
	b.p.maxConcurrent = n
	return b
}

func (b *Builder) WithMaxLimit(n int) *Builder {
	b.p.maxLimit = n
	return b
}

// WithAsyncSideEffects 为 false 时副作用在返回前同步执行（仍然隔离错误）。
func (b *Builder) WithAsyncSideEffects(async bool) *Builder {
	b.p.asyncSideEffects = async
	return b
}

func (b *Builder) WithSideEffectTimeout(d time.Duration) *Builder {
	b.p.sideEffectTimeout = d
	return b
}

func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.p.logger = l
	return b
}

func (b *Builder) WithObserver(o Observer) *Builder {
	b.p.observer = o
	return b
}

// Build 校验并返回 FeedPipeline。
func (b *Builder) Build() (*FeedPipeline, error) {
	if len(b.p.sources) == 0 {
		b.errs = append(b.errs, errors.New("at least one source is required"))
	}
	if b.p.selector == nil {
		b.errs = append(b.errs, errors.New("selector is required"))
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("build pipeline %s: %w", b.p.name, errors.Join(b.errs...))
	}
	b.p.logger = logging.OrDiscard(b.p.logger)
	if b.p.observer == nil {
		b.p.observer = noopObserver{}
	}
	return b.p, nil
}

func (b *Builder) addNodes(kind Kind, dst *[]Node, ns []Node) *Builder {
	for _, n := range ns {
		if n == nil {
			continue
		}
		if n.Kind() != kind {
			b.errs = append(b.errs, fmt.Errorf("stage %s has kind %s, want %s", n.Name(), n.Kind(), kind))
			continue
		}
		*dst = append(*dst, n)
	}
	return b
}
