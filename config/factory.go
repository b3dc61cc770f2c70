package config

import (
	"fmt"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/filter"
	"github.com/rushteam/solfeed/hydrator"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/conv"
	"github.com/rushteam/solfeed/pkg/logging"
	"github.com/rushteam/solfeed/pkg/metrics"
	"github.com/rushteam/solfeed/rank"
	"github.com/rushteam/solfeed/recall"
	"github.com/rushteam/solfeed/rerank"
	"github.com/rushteam/solfeed/sideeffect"
)

// Deps 是构建 Stage 所需的外部依赖，nil 字段表示未配置。
type Deps struct {
	Content   core.ContentStore
	Signals   core.SignalStore
	Cache     core.FeedCache
	Predictor rank.Predictor
	Retriever recall.Retriever
	Metrics   *metrics.Metrics
	Logger    logging.Logger
}

// Stage 类型
const (
	TypeUserSignals   = "query_hydrator.user_signals"
	TypeInNetwork     = "source.in_network"
	TypeOutOfNetwork  = "source.out_of_network"
	TypeTrending      = "source.trending"
	TypeContent       = "hydrator.content"
	TypeFollowing     = "hydrator.following"
	TypeSeen          = "filter.seen"
	TypeBlockedAuthor = "filter.blocked_author"
	TypeMutedKeyword  = "filter.muted_keyword"
	TypeStale         = "filter.stale"
	TypeExpr          = "filter.expr"
	TypeEngagement    = "scorer.engagement"
	TypeTopScore      = "selector.top_score"
	TypeTokenGate     = "post_filter.token_gate"
	TypeCacheFeed     = "side_effect.cache_feed"
	TypeMetricsLog    = "side_effect.metrics_log"
)

// configPipelineKey 由 BuildPipelines 注入到 side effect 配置中的 Pipeline 名称
const configPipelineKey = "pipeline"

// DefaultFactory 返回注册了全部内置 Stage 的工厂。
// Stage 配置（YAML 中的 config）优先，未设置的字段使用 cfg 中的全局值。
func DefaultFactory(cfg *Config, deps Deps) *pipeline.NodeFactory {
	if cfg == nil {
		cfg = Default()
	}
	b := &stageBuilders{cfg: cfg, deps: deps}
	f := pipeline.NewNodeFactory()

	f.Register(TypeUserSignals, b.userSignals)
	f.Register(TypeInNetwork, b.inNetwork)
	f.Register(TypeOutOfNetwork, b.outOfNetwork)
	f.Register(TypeTrending, b.trending)
	f.Register(TypeContent, func(map[string]interface{}) (pipeline.Stage, error) { return &hydrator.Content{}, nil })
	f.Register(TypeFollowing, func(map[string]interface{}) (pipeline.Stage, error) { return &hydrator.Following{}, nil })
	f.Register(TypeSeen, b.rule(TypeSeen, filter.Seen{}))
	f.Register(TypeBlockedAuthor, b.rule(TypeBlockedAuthor, filter.BlockedAuthor{}))
	f.Register(TypeMutedKeyword, b.mutedKeyword)
	f.Register(TypeStale, b.stale)
	f.Register(TypeExpr, b.expr)
	f.Register(TypeEngagement, b.engagement)
	f.Register(TypeTopScore, b.topScore)
	f.Register(TypeTokenGate, b.tokenGate)
	f.Register(TypeCacheFeed, b.cacheFeed)
	f.Register(TypeMetricsLog, b.metricsLog)
	return f
}

type stageBuilders struct {
	cfg  *Config
	deps Deps
}

func (b *stageBuilders) userSignals(map[string]interface{}) (pipeline.Stage, error) {
	if b.deps.Signals == nil {
		return nil, fmt.Errorf("%s requires a signal store", TypeUserSignals)
	}
	return &hydrator.UserSignals{Store: b.deps.Signals}, nil
}

func (b *stageBuilders) inNetwork(map[string]interface{}) (pipeline.Stage, error) {
	if b.deps.Content == nil {
		return nil, fmt.Errorf("%s requires a content store", TypeInNetwork)
	}
	return &recall.InNetwork{Store: b.deps.Content, Logger: b.deps.Logger}, nil
}

// outOfNetwork 没有配置 AI 服务时仍然构建，召回结果为空
func (b *stageBuilders) outOfNetwork(map[string]interface{}) (pipeline.Stage, error) {
	return &recall.OutOfNetwork{Client: b.deps.Retriever, Logger: b.deps.Logger}, nil
}

func (b *stageBuilders) trending(c map[string]interface{}) (pipeline.Stage, error) {
	if b.deps.Content == nil {
		return nil, fmt.Errorf("%s requires a content store", TypeTrending)
	}
	return &recall.Trending{
		Store:          b.deps.Content,
		ColdStartLikes: conv.ConfigInt(c, "cold_start_likes", b.cfg.Trending.ColdStartLikes),
		Window:         conv.ConfigDuration(c, "window", b.cfg.Trending.Window),
		AlwaysOn:       conv.ConfigBool(c, "always", false),
		Logger:         b.deps.Logger,
	}, nil
}

func (b *stageBuilders) rule(name string, f filter.Filter) pipeline.StageBuilder {
	return func(map[string]interface{}) (pipeline.Stage, error) {
		return b.filterNode(name, f), nil
	}
}

func (b *stageBuilders) filterNode(name string, filters ...filter.Filter) *filter.FilterNode {
	return &filter.FilterNode{NodeName: name, Filters: filters, Logger: b.deps.Logger}
}

// mutedKeyword 的 keywords 对所有请求生效，与请求中的屏蔽词合并
func (b *stageBuilders) mutedKeyword(c map[string]interface{}) (pipeline.Stage, error) {
	global := conv.ConfigStrings(c, "keywords", b.cfg.Filter.MutedKeywords)
	return b.filterNode(TypeMutedKeyword, filter.MutedKeyword{Global: global}), nil
}

func (b *stageBuilders) stale(c map[string]interface{}) (pipeline.Stage, error) {
	maxAge := conv.ConfigDuration(c, "max_age", b.cfg.Filter.StaleAfter)
	return b.filterNode(TypeStale, &filter.Stale{MaxAge: maxAge}), nil
}

// expr 表达式为空时构建一个不过滤任何候选的 Node
func (b *stageBuilders) expr(c map[string]interface{}) (pipeline.Stage, error) {
	src := conv.ConfigString(c, "expr", b.cfg.Filter.ExcludeExpr)
	if src == "" {
		return b.filterNode(TypeExpr), nil
	}
	f, err := filter.NewExpr(src)
	if err != nil {
		return nil, err
	}
	return b.filterNode(TypeExpr, f), nil
}

func (b *stageBuilders) engagement(c map[string]interface{}) (pipeline.Stage, error) {
	s := &rank.EngagementScorer{
		Client:   b.deps.Predictor,
		Timeout:  conv.ConfigDuration(c, "timeout", b.cfg.Scorer.Timeout),
		MaxBatch: conv.ConfigInt(c, "max_batch", b.cfg.Scorer.MaxBatch),
		Logger:   b.deps.Logger,
	}
	if raw, ok := c["weights"].(map[string]interface{}); ok {
		s.Weights = make(map[core.Action]float64, len(raw))
		for action, v := range raw {
			w, ok := conv.ToFloat64(v)
			if !ok {
				return nil, fmt.Errorf("%s: weight %s is not a number", TypeEngagement, action)
			}
			s.Weights[core.Action(action)] = w
		}
	}
	if b.deps.Metrics != nil {
		s.OnFallback = b.deps.Metrics.ScorerFallback
	}
	return s, nil
}

func (b *stageBuilders) topScore(c map[string]interface{}) (pipeline.Stage, error) {
	maxPer := conv.ConfigInt(c, "max_per_creator", b.cfg.Selector.MaxPerCreator)
	if maxPer < 0 {
		return nil, fmt.Errorf("%s: max_per_creator must not be negative", TypeTopScore)
	}
	return &rerank.TopScore{
		MaxPerCreator: maxPer,
		Backfill:      conv.ConfigBool(c, "backfill", b.cfg.Selector.Backfill),
	}, nil
}

func (b *stageBuilders) tokenGate(c map[string]interface{}) (pipeline.Stage, error) {
	mode := rerank.TokenGateMode(conv.ConfigString(c, "mode", b.cfg.TokenGate.Mode))
	switch mode {
	case rerank.TokenGateRedact, rerank.TokenGateDrop:
	default:
		return nil, fmt.Errorf("%s: unknown mode %q", TypeTokenGate, mode)
	}
	return &rerank.TokenGate{Mode: mode}, nil
}

func (b *stageBuilders) cacheFeed(map[string]interface{}) (pipeline.Stage, error) {
	if b.deps.Cache == nil {
		return nil, fmt.Errorf("%s requires a feed cache", TypeCacheFeed)
	}
	return &sideeffect.CacheFeed{Cache: b.deps.Cache, Logger: b.deps.Logger}, nil
}

func (b *stageBuilders) metricsLog(c map[string]interface{}) (pipeline.Stage, error) {
	s := &sideeffect.MetricsLog{
		Pipeline: conv.ConfigString(c, configPipelineKey, ""),
		Logger:   b.deps.Logger,
	}
	if b.deps.Metrics != nil {
		s.Recorder = b.deps.Metrics
	}
	return s, nil
}
