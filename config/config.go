// Package config 加载服务配置（koanf：YAML 文件 + 环境变量），并提供默认的 Stage 工厂。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/rerank"
)

// 默认值
const (
	DefaultPort              = 8080
	DefaultLogLevel          = "info"
	DefaultFeedLimit         = 20
	DefaultMaxLimit          = 100
	DefaultSourceTimeout     = 2 * time.Second
	DefaultScorerTimeout     = 3 * time.Second
	DefaultAITimeout         = 5 * time.Second
	DefaultMaxPerCreator     = 3
	DefaultStaleAfter        = 30 * 24 * time.Hour
	DefaultColdStartLikes    = 5
	DefaultCacheTTL          = 60 * time.Second
	DefaultSideEffectTimeout = 5 * time.Second
	DefaultBreakerWindow     = 10
	DefaultBreakerDelay      = 15 * time.Second
)

// Config 是 feedd 的全部配置。
type Config struct {
	Port     int    `koanf:"port"`
	LogLevel string `koanf:"log_level"`

	DatabaseURL string      `koanf:"database_url"`
	Redis       RedisConfig `koanf:"redis"`
	AI          AIConfig    `koanf:"ai"`

	Feed        FeedConfig       `koanf:"feed"`
	Sources     SourcesConfig    `koanf:"sources"`
	Scorer      ScorerConfig     `koanf:"scorer"`
	Selector    SelectorConfig   `koanf:"selector"`
	Filter      FilterConfig     `koanf:"filter"`
	Trending    TrendingConfig   `koanf:"trending"`
	Cache       CacheConfig      `koanf:"cache"`
	SideEffects SideEffectConfig `koanf:"side_effects"`
	TokenGate   TokenGateConfig  `koanf:"token_gate"`

	// PipelinesFile Pipeline 编排（YAML），为空使用内置的 for-you/following/explore/trending
	PipelinesFile string `koanf:"pipelines_file"`
}

// RedisConfig 首页缓存。Addr 为空时使用进程内缓存。
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// AIConfig 远程打分/召回服务
type AIConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig 熔断器，Window 为 0 时关闭
type BreakerConfig struct {
	Window           uint          `koanf:"window"`
	FailureThreshold uint          `koanf:"failure_threshold"`
	Delay            time.Duration `koanf:"delay"`
}

type FeedConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
}

type SourcesConfig struct {
	Timeout       time.Duration `koanf:"timeout"`
	MaxConcurrent int           `koanf:"max_concurrent"`
}

type ScorerConfig struct {
	Timeout  time.Duration `koanf:"timeout"`
	MaxBatch int           `koanf:"max_batch"`
}

type SelectorConfig struct {
	// MaxPerCreator 0 表示不限制
	MaxPerCreator int  `koanf:"max_per_creator"`
	Backfill      bool `koanf:"backfill"`
}

type FilterConfig struct {
	// StaleAfter 0 表示不过滤
	StaleAfter time.Duration `koanf:"stale_after"`
	// ExcludeExpr CEL 排除表达式，为空不启用
	ExcludeExpr string `koanf:"exclude_expr"`
	// MutedKeywords 对所有请求生效的屏蔽词
	MutedKeywords []string `koanf:"muted_keywords"`
}

type TrendingConfig struct {
	Window         time.Duration `koanf:"window"`
	ColdStartLikes int           `koanf:"cold_start_likes"`
}

type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type SideEffectConfig struct {
	Async   bool          `koanf:"async"`
	Timeout time.Duration `koanf:"timeout"`
}

type TokenGateConfig struct {
	Mode string `koanf:"mode"`
}

// 配置校验错误
var (
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrInvalidLimit     = errors.New("feed.default_limit must be positive and not above feed.max_limit")
	ErrInvalidTokenGate = errors.New("token_gate.mode must be redact or drop")
	ErrInvalidBreaker   = errors.New("ai.breaker.failure_threshold must not exceed ai.breaker.window")
)

// Default 返回全部默认值
func Default() *Config {
	return &Config{
		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,
		AI: AIConfig{
			Timeout: DefaultAITimeout,
			Breaker: BreakerConfig{
				Window:           DefaultBreakerWindow,
				FailureThreshold: DefaultBreakerWindow / 2,
				Delay:            DefaultBreakerDelay,
			},
		},
		Feed:        FeedConfig{DefaultLimit: DefaultFeedLimit, MaxLimit: DefaultMaxLimit},
		Sources:     SourcesConfig{Timeout: DefaultSourceTimeout},
		Scorer:      ScorerConfig{Timeout: DefaultScorerTimeout},
		Selector:    SelectorConfig{MaxPerCreator: DefaultMaxPerCreator, Backfill: true},
		Filter:      FilterConfig{StaleAfter: DefaultStaleAfter},
		Trending:    TrendingConfig{ColdStartLikes: DefaultColdStartLikes},
		Cache:       CacheConfig{TTL: DefaultCacheTTL},
		SideEffects: SideEffectConfig{Async: true, Timeout: DefaultSideEffectTimeout},
		TokenGate:   TokenGateConfig{Mode: string(rerank.TokenGateRedact)},
	}
}

// Load 依次加载默认值、YAML 文件（path 为空时跳过）、环境变量，环境变量优先级最高。
func Load(path string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("AI_SERVICE_URL", &cfg.AI.URL)
	setString("INTERNAL_API_KEY", &cfg.AI.APIKey)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("FEED_PIPELINES_FILE", &cfg.PipelinesFile)

	if v := os.Getenv("FEED_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FEED_PORT must be a valid integer: %w", ErrInvalidPort)
		}
		cfg.Port = port
	}
	if v := os.Getenv("FEED_SIDE_EFFECTS_ASYNC"); v != "" {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			cfg.SideEffects.Async = true
		case "false", "0", "no", "off":
			cfg.SideEffects.Async = false
		}
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.Feed.DefaultLimit <= 0 || c.Feed.MaxLimit < c.Feed.DefaultLimit {
		errs = append(errs, ErrInvalidLimit)
	}
	switch rerank.TokenGateMode(c.TokenGate.Mode) {
	case rerank.TokenGateRedact, rerank.TokenGateDrop:
	default:
		errs = append(errs, ErrInvalidTokenGate)
	}
	if c.AI.Breaker.FailureThreshold > c.AI.Breaker.Window {
		errs = append(errs, ErrInvalidBreaker)
	}
	if len(errs) == 0 {
		return nil
	}
	return core.WrapDomainError("config", core.ErrorCodeInvalidInput, "invalid config", errors.Join(errs...))
}

// LogSummary 返回可以打印的配置摘要，密钥被遮盖。
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":            strconv.Itoa(c.Port),
		"log_level":       c.LogLevel,
		"database_url":    maskDatabaseURL(c.DatabaseURL),
		"redis_addr":      orNotSet(c.Redis.Addr),
		"ai_url":          orNotSet(c.AI.URL),
		"ai_api_key":      maskSecret(c.AI.APIKey),
		"max_limit":       strconv.Itoa(c.Feed.MaxLimit),
		"max_per_creator": strconv.Itoa(c.Selector.MaxPerCreator),
		"stale_after":     c.Filter.StaleAfter.String(),
		"token_gate_mode": c.TokenGate.Mode,
		"pipelines_file":  orNotSet(c.PipelinesFile),
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret 只保留前 4 个字符，短于 8 个字符时全部遮盖
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL 遮盖 user:password@host 中的密码
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}
	rest := s[schemeEnd+3:]
	at := strings.Index(rest, "@")
	if at == -1 {
		return s
	}
	colon := strings.Index(rest[:at], ":")
	if colon == -1 {
		return s
	}
	return s[:schemeEnd+3] + rest[:colon] + ":****" + rest[at:]
}
