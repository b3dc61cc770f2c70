package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/solfeed/pkg/logging"
)

// ServerOptions 是路由依赖
type ServerOptions struct {
	Logger   logging.Logger
	Gatherer prometheus.Gatherer
	Checks   map[string]func(context.Context) error
}

// NewServer 创建 gin Engine 并注册全部路由
func NewServer(handler *Handler, opts ServerOptions) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(opts.Logger))
	r.Use(RecoveryMiddleware(opts.Logger))

	r.GET("/healthz", HealthCheck(opts.Checks))
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		v1.GET("/feed/:kind", handler.GetFeed)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
