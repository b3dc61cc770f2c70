// feedd 是 Feed 排序服务的进程入口。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rushteam/solfeed/api"
	"github.com/rushteam/solfeed/config"
	"github.com/rushteam/solfeed/pkg/logging"
	"github.com/rushteam/solfeed/pkg/metrics"
	"github.com/rushteam/solfeed/service"
	"github.com/rushteam/solfeed/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("FEED_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "feedd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)
	logger.WithFields(toFields(cfg.LogSummary())).Info("configuration loaded")

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deps := config.Deps{Logger: logger}
	checks := map[string]func(context.Context) error{}

	// 内容存储
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(startCtx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		deps.Content, deps.Signals = pg, pg
		checks["postgres"] = pg.Ping
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory content store")
		mem := store.NewMemoryContentStore()
		deps.Content, deps.Signals = mem, mem
	}

	// 首页缓存
	if cfg.Redis.Addr != "" {
		rc, err := store.NewRedisFeedCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		deps.Cache = rc
		checks["redis"] = rc.Ping
	} else {
		mc := store.NewMemoryFeedCache(cfg.Cache.TTL)
		defer mc.Close()
		deps.Cache = mc
	}

	// AI 服务
	if cfg.AI.URL != "" {
		opts := []service.PipelineClientOption{
			service.WithTimeout(cfg.AI.Timeout),
			service.WithLogger(logger),
		}
		if cfg.AI.Breaker.Window > 0 {
			opts = append(opts, service.WithCircuitBreaker(service.BreakerConfig{
				FailureThreshold: cfg.AI.Breaker.FailureThreshold,
				Window:           cfg.AI.Breaker.Window,
				Delay:            cfg.AI.Breaker.Delay,
			}))
		}
		client := service.NewPipelineClient(cfg.AI.URL, cfg.AI.APIKey, opts...)
		deps.Predictor, deps.Retriever = client, client
	} else {
		logger.Warn("AI_SERVICE_URL not set, scoring uses the local fallback and discovery is empty")
	}

	// 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	deps.Metrics = m

	pipelines, err := config.BuildPipelines(cfg, deps)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Runners(pipelines),
		api.WithDefaultLimit(cfg.Feed.DefaultLimit),
		api.WithLogger(logger),
		api.WithRecorder(m),
	)
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: api.NewServer(handler, api.ServerOptions{
			Logger:   logger,
			Gatherer: reg,
			Checks:   checks,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("feedd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		logger.WithError(err).Error("http server failed")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http server shutdown error")
	}
	// 等待异步副作用（缓存写入）完成
	for _, p := range pipelines {
		p.Wait()
	}
	logger.Info("feedd stopped")
	return nil
}

func toFields(m map[string]string) logging.Fields {
	out := make(logging.Fields, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
