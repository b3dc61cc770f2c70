package pipeline

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述一组 Pipeline 的组成（YAML）。
//
//	pipelines:
//	  - name: for-you
//	    source_timeout: 2s
//	    sources:
//	      - type: source.in_network
//	      - type: source.out_of_network
//	      - type: source.trending
//	    filters:
//	      - type: filter.seen
//	    selector:
//	      type: selector.top_score
//	      config: {max_per_creator: 3}
type Config struct {
	Pipelines []PipelineConfig `yaml:"pipelines"`
}

// PipelineConfig 是单个 Pipeline 的配置。
type PipelineConfig struct {
	Name           string        `yaml:"name"`
	SourceTimeout  time.Duration `yaml:"source_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	QueryHydrators []StageConfig `yaml:"query_hydrators"`
	Sources        []StageConfig `yaml:"sources"`
	Hydrators      []StageConfig `yaml:"hydrators"`
	Filters        []StageConfig `yaml:"filters"`
	Scorers        []StageConfig `yaml:"scorers"`
	Selector       StageConfig   `yaml:"selector"`
	PostFilters    []StageConfig `yaml:"post_filters"`
	SideEffects    []StageConfig `yaml:"side_effects"`
}

// StageConfig 是单个 Stage 的配置。
type StageConfig struct {
	Type   string                 `yaml:"type"`   // source.in_network / filter.seen / scorer.engagement 等
	Config map[string]interface{} `yaml:"config"` // Stage 特定配置
}

// LoadConfig 从 YAML 文件加载 Pipeline 配置。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig 解析 YAML 内容。
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &cfg, nil
}

// StageBuilder 根据配置构建 Stage。
type StageBuilder func(config map[string]interface{}) (Stage, error)

// NodeFactory 用于根据配置构建 Stage 实例。
type NodeFactory struct {
	builders map[string]StageBuilder
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{
		builders: make(map[string]StageBuilder),
	}
}

// Register 注册 Stage 构建器。
func (f *NodeFactory) Register(stageType string, builder StageBuilder) {
	f.builders[stageType] = builder
}

// Has 是否注册了该类型
func (f *NodeFactory) Has(stageType string) bool {
	_, ok := f.builders[stageType]
	return ok
}

// Types 返回已注册的类型（排序），用于错误提示与校验。
func (f *NodeFactory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate 校验配置中的 Stage 类型均已注册，并且 Pipeline 名称唯一、非空。
func (c *Config) Validate(f *NodeFactory) error {
	seen := make(map[string]struct{}, len(c.Pipelines))
	for i := range c.Pipelines {
		pc := &c.Pipelines[i]
		if pc.Name == "" {
			return fmt.Errorf("pipeline #%d: name is required", i)
		}
		if _, dup := seen[pc.Name]; dup {
			return fmt.Errorf("pipeline %s: duplicate name", pc.Name)
		}
		seen[pc.Name] = struct{}{}
		if len(pc.Sources) == 0 {
			return fmt.Errorf("pipeline %s: at least one source is required", pc.Name)
		}
		for _, sc := range pc.stages() {
			if !f.Has(sc.Type) {
				return fmt.Errorf("pipeline %s: unsupported stage type %q (supported: %v)", pc.Name, sc.Type, f.Types())
			}
		}
	}
	return nil
}

func (c *PipelineConfig) stages() []StageConfig {
	var out []StageConfig
	out = append(out, c.QueryHydrators...)
	out = append(out, c.Sources...)
	out = append(out, c.Hydrators...)
	out = append(out, c.Filters...)
	out = append(out, c.Scorers...)
	if c.Selector.Type != "" {
		out = append(out, c.Selector)
	}
	out = append(out, c.PostFilters...)
	return append(out, c.SideEffects...)
}

// Build 根据类型和配置构建 Stage。
func (f *NodeFactory) Build(stageType string, config map[string]interface{}) (Stage, error) {
	builder, ok := f.builders[stageType]
	if !ok {
		return nil, fmt.Errorf("unknown stage type: %s", stageType)
	}
	return builder(config)
}

// NewBuilderFromConfig 按配置构建各 Stage，返回的 Builder 还可以继续设置 logger/observer 等。
func (c *PipelineConfig) NewBuilderFromConfig(factory *NodeFactory) (*Builder, error) {
	b := NewBuilder(c.Name)
	if c.SourceTimeout > 0 {
		b.WithSourceTimeout(c.SourceTimeout)
	}
	if c.MaxConcurrent > 0 {
		b.WithMaxConcurrent(c.MaxConcurrent)
	}

	build := func(sc StageConfig) (Stage, error) {
		st, err := factory.Build(sc.Type, sc.Config)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: build stage %s: %w", c.Name, sc.Type, err)
		}
		return st, nil
	}

	for _, sc := range c.QueryHydrators {
		st, err := build(sc)
		if err != nil {
			return nil, err
		}
		h, ok := st.(QueryHydrator)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: %s is not a query hydrator", c.Name, sc.Type)
		}
		b.WithQueryHydrators(h)
	}
	for _, sc := range c.Sources {
		st, err := build(sc)
		if err != nil {
			return nil, err
		}
		src, ok := st.(Source)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: %s is not a source", c.Name, sc.Type)
		}
		b.WithSources(src)
	}

	nodeLists := []struct {
		configs []StageConfig
		add     func(...Node) *Builder
	}{
		{c.Hydrators, b.WithHydrators},
		{c.Filters, b.WithFilters},
		{c.Scorers, b.WithScorers},
		{c.PostFilters, b.WithPostFilters},
	}
	for _, nl := range nodeLists {
		for _, sc := range nl.configs {
			st, err := build(sc)
			if err != nil {
				return nil, err
			}
			n, ok := st.(Node)
			if !ok {
				return nil, fmt.Errorf("pipeline %s: %s is not a node", c.Name, sc.Type)
			}
			nl.add(n)
		}
	}

	if c.Selector.Type != "" {
		st, err := build(c.Selector)
		if err != nil {
			return nil, err
		}
		sel, ok := st.(Selector)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: %s is not a selector", c.Name, c.Selector.Type)
		}
		b.WithSelector(sel)
	}

	for _, sc := range c.SideEffects {
		st, err := build(sc)
		if err != nil {
			return nil, err
		}
		se, ok := st.(SideEffect)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: %s is not a side effect", c.Name, sc.Type)
		}
		b.WithSideEffects(se)
	}
	return b, nil
}
