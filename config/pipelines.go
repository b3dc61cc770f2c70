package config

import (
	_ "embed"
	"fmt"

	"github.com/rushteam/solfeed/pipeline"
)

// 内置 Pipeline 名称
const (
	PipelineForYou    = "for-you"
	PipelineFollowing = "following"
	PipelineExplore   = "explore"
	PipelineTrending  = "trending"
)

//go:embed pipelines.yaml
var defaultPipelinesYAML []byte

// DefaultPipelines 返回内置的 Pipeline 编排
func DefaultPipelines() (*pipeline.Config, error) {
	return pipeline.ParseConfig(defaultPipelinesYAML)
}

// LoadPipelines 读取 cfg.PipelinesFile，为空时返回内置编排。
func LoadPipelines(cfg *Config) (*pipeline.Config, error) {
	if cfg.PipelinesFile == "" {
		return DefaultPipelines()
	}
	return pipeline.LoadConfig(cfg.PipelinesFile)
}

// BuildPipelines 按配置构建全部 Pipeline，返回 name -> Pipeline。
func BuildPipelines(cfg *Config, deps Deps) (map[string]*pipeline.FeedPipeline, error) {
	if cfg == nil {
		cfg = Default()
	}
	pcfg, err := LoadPipelines(cfg)
	if err != nil {
		return nil, err
	}
	return BuildPipelinesFrom(pcfg, cfg, deps)
}

// BuildPipelinesFrom 按给定的编排构建 Pipeline。
func BuildPipelinesFrom(pcfg *pipeline.Config, cfg *Config, deps Deps) (map[string]*pipeline.FeedPipeline, error) {
	factory := DefaultFactory(cfg, deps)
	if err := pcfg.Validate(factory); err != nil {
		return nil, err
	}

	out := make(map[string]*pipeline.FeedPipeline, len(pcfg.Pipelines))
	for i := range pcfg.Pipelines {
		pc := pcfg.Pipelines[i]
		pc.SideEffects = withPipelineName(pc.SideEffects, pc.Name)

		b, err := pc.NewBuilderFromConfig(factory)
		if err != nil {
			return nil, err
		}
		if pc.SourceTimeout <= 0 && cfg.Sources.Timeout > 0 {
			b.WithSourceTimeout(cfg.Sources.Timeout)
		}
		if pc.MaxConcurrent <= 0 && cfg.Sources.MaxConcurrent > 0 {
			b.WithMaxConcurrent(cfg.Sources.MaxConcurrent)
		}
		b.WithMaxLimit(cfg.Feed.MaxLimit).
			WithAsyncSideEffects(cfg.SideEffects.Async).
			WithLogger(deps.Logger)
		if cfg.SideEffects.Timeout > 0 {
			b.WithSideEffectTimeout(cfg.SideEffects.Timeout)
		}
		if deps.Metrics != nil {
			b.WithObserver(deps.Metrics)
		}

		p, err := b.Build()
		if err != nil {
			return nil, err
		}
		out[pc.Name] = p
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no pipelines configured")
	}
	return out, nil
}

// withPipelineName 复制 side effect 配置并写入 Pipeline 名称（已设置的保持不变）
func withPipelineName(stages []pipeline.StageConfig, name string) []pipeline.StageConfig {
	out := make([]pipeline.StageConfig, len(stages))
	for i, sc := range stages {
		m := make(map[string]interface{}, len(sc.Config)+1)
		for k, v := range sc.Config {
			m[k] = v
		}
		if _, ok := m[configPipelineKey]; !ok {
			m[configPipelineKey] = name
		}
		out[i] = pipeline.StageConfig{Type: sc.Type, Config: m}
	}
	return out
}
