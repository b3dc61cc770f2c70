package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pkg/logging"
)

const (
	scorePath    = "/api/pipeline/score"
	retrievePath = "/api/pipeline/retrieve"

	// HeaderInternalAPIKey 服务间调用的认证头
	HeaderInternalAPIKey = "X-Internal-API-Key"

	maxErrorBody = 4 << 10
)

// PipelineClient 是 AI 服务 pipeline 接口的 HTTP 客户端：
//   - Score:    POST {base}/api/pipeline/score
//   - Retrieve: POST {base}/api/pipeline/retrieve
//
// 只做一次请求，不重试；可选的熔断器在服务持续失败时快速失败，
// 调用方（Scorer / OutOfNetworkSource）据此走降级路径。
type PipelineClient struct {
	// BaseURL AI 服务根地址，如 "http://ai-service:8000"
	BaseURL string
	// APIKey 写入 X-Internal-API-Key
	APIKey string
	// Timeout 单次请求超时（http.Client 级别）
	Timeout time.Duration

	httpClient *http.Client
	breaker    circuitbreaker.CircuitBreaker[*http.Response]
	logger     logging.Logger
}

// PipelineClientOption 配置客户端
type PipelineClientOption func(*PipelineClient)

// NewPipelineClient 创建客户端
func NewPipelineClient(baseURL, apiKey string, opts ...PipelineClientOption) *PipelineClient {
	c := &PipelineClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// WithHTTPClient 设置自定义 HTTP 客户端
func WithHTTPClient(client *http.Client) PipelineClientOption {
	return func(c *PipelineClient) {
		c.httpClient = client
	}
}

// WithTimeout 设置超时
func WithTimeout(timeout time.Duration) PipelineClientOption {
	return func(c *PipelineClient) {
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger 设置 logger
func WithLogger(l logging.Logger) PipelineClientOption {
	return func(c *PipelineClient) {
		c.logger = l
	}
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// FailureThreshold / Window：最近 Window 次请求中失败 FailureThreshold 次即熔断
	FailureThreshold uint
	Window           uint
	// Delay 熔断后多久进入半开
	Delay time.Duration
}

// WithCircuitBreaker 开启熔断：网络错误与 5xx 计为失败。
func WithCircuitBreaker(cfg BreakerConfig) PipelineClientOption {
	return func(c *PipelineClient) {
		if cfg.Window == 0 {
			cfg.Window = 10
		}
		if cfg.FailureThreshold == 0 || cfg.FailureThreshold > cfg.Window {
			cfg.FailureThreshold = cfg.Window / 2
		}
		if cfg.Delay <= 0 {
			cfg.Delay = 15 * time.Second
		}
		c.breaker = circuitbreaker.NewBuilder[*http.Response]().
			WithFailureThresholdRatio(cfg.FailureThreshold, cfg.Window).
			WithDelay(cfg.Delay).
			WithSuccessThreshold(1).
			HandleIf(func(resp *http.Response, err error) bool {
				if err != nil {
					return true
				}
				return resp != nil && resp.StatusCode >= http.StatusInternalServerError
			}).
			OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
				c.logger.WithFields(logging.Fields{
					"from_state": event.OldState.String(),
					"to_state":   event.NewState.String(),
				}).Warn("ai service circuit breaker state change")
			}).
			Build()
	}
}

// ScoreCandidate 是打分请求中的单个候选
type ScoreCandidate struct {
	PostID             string   `json:"post_id"`
	CreatorWallet      string   `json:"creator_wallet"`
	Description        string   `json:"description,omitempty"`
	Tags               []string `json:"tags"`
	SceneType          string   `json:"scene_type,omitempty"`
	Mood               string   `json:"mood,omitempty"`
	Likes              int64    `json:"likes"`
	Comments           int64    `json:"comments"`
	TipsReceived       float64  `json:"tips_received"`
	AgeHours           float64  `json:"age_hours"`
	IsFollowingCreator bool     `json:"is_following_creator"`
	Source             string   `json:"source"`
}

// ScoreRequest 打分请求
type ScoreRequest struct {
	UserWallet       string           `json:"user_wallet"`
	LikedPostIDs     []string         `json:"liked_post_ids"`
	FollowingWallets []string         `json:"following_wallets"`
	Candidates       []ScoreCandidate `json:"candidates"`
}

// Prediction 是单个候选的打分结果。FinalScore 缺失时由调用方按权重计算。
type Prediction struct {
	PostID     string             `json:"post_id"`
	Scores     map[string]float64 `json:"scores"`
	FinalScore *float64           `json:"final_score"`
}

// ScoreResponse 打分响应
type ScoreResponse struct {
	Predictions      []Prediction `json:"predictions"`
	ProcessingTimeMs int          `json:"processing_time_ms,omitempty"`
}

// RetrieveRequest 召回请求。ExcludeIDs 与 SeenPostIDs 内容相同，兼容服务端读取的字段名。
type RetrieveRequest struct {
	UserWallet       string   `json:"user_wallet"`
	LikedPostIDs     []string `json:"liked_post_ids"`
	FollowingWallets []string `json:"following_wallets"`
	SeenPostIDs      []string `json:"seen_post_ids"`
	ExcludeIDs       []string `json:"exclude_ids"`
	Limit            int      `json:"limit"`
}

// RetrievedCandidate 是召回结果中的单个候选
type RetrievedCandidate struct {
	PostID        string             `json:"post_id"`
	CreatorWallet string             `json:"creator_wallet"`
	Description   string             `json:"description"`
	Tags          []string           `json:"tags"`
	SceneType     string             `json:"scene_type"`
	Mood          string             `json:"mood"`
	Scores        map[string]float64 `json:"scores"`
	FinalScore    float64            `json:"final_score"`
}

// RetrieveResponse 召回响应
type RetrieveResponse struct {
	Candidates   []RetrievedCandidate `json:"candidates"`
	TasteProfile *string              `json:"taste_profile"`
}

// StatusError 表示 AI 服务返回了非 2xx 状态码
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai service %s: status=%d body=%s", e.Path, e.StatusCode, e.Body)
}

// Score 批量打分
func (c *PipelineClient) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	var out ScoreResponse
	if err := c.post(ctx, scorePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Retrieve 站外召回
func (c *PipelineClient) Retrieve(ctx context.Context, req *RetrieveRequest) (*RetrieveResponse, error) {
	var out RetrieveResponse
	if err := c.post(ctx, retrievePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *PipelineClient) post(ctx context.Context, path string, in, out interface{}) error {
	if c.BaseURL == "" {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, "ai service url is not configured")
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	do := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set(HeaderInternalAPIKey, c.APIKey)
		}
		return c.httpClient.Do(req)
	}

	var resp *http.Response
	if c.breaker != nil {
		resp, err = failsafe.With[*http.Response](c.breaker).WithContext(ctx).Get(do)
	} else {
		resp, err = do()
	}
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "ai service "+path+" call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
