// Package api 把 HTTP 请求转换为 FeedQuery，并把 FeedPage 序列化为 JSON。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
	"github.com/rushteam/solfeed/pkg/metrics"
	"github.com/rushteam/solfeed/sideeffect"
)

// 上游鉴权层设置的请求头
const (
	HeaderWallet        = "X-Wallet-Address"
	HeaderGrantedTokens = "X-Granted-Tokens"
)

// StatusClientClosedRequest 客户端取消请求（nginx 约定）
const StatusClientClosedRequest = 499

const defaultLimit = 20

// FeedRunner 执行一次 Feed 请求，*pipeline.FeedPipeline 实现了该接口。
type FeedRunner interface {
	Run(ctx context.Context, q *core.FeedQuery) (*core.FeedPage, error)
}

// RequestRecorder 记录请求结果，*metrics.Metrics 实现了该接口。
type RequestRecorder interface {
	RequestDone(pipelineName, outcome string, d time.Duration)
}

// Runners 转换 config.BuildPipelines 的结果
func Runners(ps map[string]*pipeline.FeedPipeline) map[string]FeedRunner {
	out := make(map[string]FeedRunner, len(ps))
	for name, p := range ps {
		out[name] = p
	}
	return out
}

// Handler 处理 Feed 请求
type Handler struct {
	pipelines    map[string]FeedRunner
	defaultLimit int
	logger       logging.Logger
	recorder     RequestRecorder
}

// Option 配置 Handler
type Option func(*Handler)

// WithDefaultLimit 请求没有 limit 参数时使用
func WithDefaultLimit(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.defaultLimit = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func WithRecorder(r RequestRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// NewHandler 创建 Handler，pipelines 的 key 即 URL 中的 feed 类型。
func NewHandler(pipelines map[string]FeedRunner, opts ...Option) *Handler {
	h := &Handler{pipelines: pipelines, defaultLimit: defaultLimit}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrDiscard(h.logger)
	return h
}

// GetFeed 处理 GET /v1/feed/:kind
//
// 查询参数：limit、cursor、seen（可重复或逗号分隔）、muted（同上）。
func (h *Handler) GetFeed(c *gin.Context) {
	kind := c.Param("kind")
	p, ok := h.pipelines[kind]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed: " + kind})
		return
	}

	q, err := h.parseQuery(c)
	if err != nil {
		h.record(kind, metrics.OutcomeInvalid, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	page, err := p.Run(c.Request.Context(), q)
	switch {
	case err == nil:
		h.record(kind, metrics.OutcomeOK, time.Since(start))
		c.JSON(http.StatusOK, sideeffect.ToCachedFeed(page))
	case core.IsInvalidQuery(err):
		h.record(kind, metrics.OutcomeInvalid, time.Since(start))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		h.record(kind, metrics.OutcomeCanceled, time.Since(start))
		c.AbortWithStatus(StatusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		h.record(kind, metrics.OutcomeCanceled, time.Since(start))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "feed request timed out"})
	default:
		h.logger.WithFields(logging.Fields{
			"request_id": q.RequestID,
			"pipeline":   kind,
		}).WithError(err).Error("feed pipeline failed")
		h.record(kind, metrics.OutcomeError, time.Since(start))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) parseQuery(c *gin.Context) (*core.FeedQuery, error) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, core.WrapDomainError("api", core.ErrorCodeInvalidInput, "limit must be an integer", err)
		}
		limit = n
	}
	q := &core.FeedQuery{
		RequestID:     c.GetString(ctxRequestID),
		UserWallet:    strings.TrimSpace(c.GetHeader(HeaderWallet)),
		Limit:         limit,
		Cursor:        c.Query("cursor"),
		SeenPostIDs:   splitList(c.QueryArray("seen")),
		MutedKeywords: splitList(c.QueryArray("muted")),
		GrantedTokens: splitList([]string{c.GetHeader(HeaderGrantedTokens)}),
	}
	// limit 范围与 cursor 格式由 Pipeline 校验
	return q, nil
}

// splitList 支持重复参数与逗号分隔，去掉空值
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *Handler) record(kind, outcome string, d time.Duration) {
	if h.recorder != nil {
		h.recorder.RequestDone(kind, outcome, d)
	}
}

// HealthCheck 依次检查依赖，任一失败返回 503
func HealthCheck(checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		state := "healthy"
		if status != http.StatusOK {
			state = "unhealthy"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
