// Package metrics 提供 Feed Pipeline 的 Prometheus 指标，并实现 pipeline.Observer。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/solfeed/pipeline"
)

// 指标名称
const (
	MetricStageDuration    = "feed_stage_duration_seconds"
	MetricStageDegraded    = "feed_stage_degraded_total"
	MetricSourceCandidates = "feed_source_candidates_total"
	MetricSourceFailures   = "feed_source_failures_total"
	MetricScorerFallbacks  = "feed_scorer_fallback_candidates_total"
	MetricServedCandidates = "feed_served_candidates_total"
	MetricServedFinalScore = "feed_served_final_score"
	MetricRequestsTotal    = "feed_requests_total"
	MetricRequestDuration  = "feed_request_duration_seconds"
)

// 请求结果
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)

// Metrics 包含 Feed 的全部 Prometheus 指标，所有方法并发安全。
type Metrics struct {
	stageDuration    *prometheus.HistogramVec
	stageDegraded    *prometheus.CounterVec
	sourceCandidates *prometheus.CounterVec
	sourceFailures   *prometheus.CounterVec
	scorerFallbacks  *prometheus.CounterVec
	servedCandidates *prometheus.CounterVec
	servedFinalScore prometheus.Histogram
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// NewMetrics 创建指标，需要调用 Register 注册。
func NewMetrics() *Metrics {
	return &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricStageDuration,
				Help:    "Duration of each pipeline stage by kind and name",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"kind", "stage"},
		),
		stageDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStageDegraded,
				Help: "Number of times a stage failed and was absorbed",
			},
			[]string{"kind", "stage"},
		),
		sourceCandidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSourceCandidates,
				Help: "Number of candidates returned by each source",
			},
			[]string{"source"},
		),
		sourceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSourceFailures,
				Help: "Number of source calls that failed or timed out",
			},
			[]string{"source"},
		),
		scorerFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricScorerFallbacks,
				Help: "Number of candidates scored by the local fallback, by reason",
			},
			[]string{"reason"},
		),
		servedCandidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricServedCandidates,
				Help: "Number of candidates served, by pipeline and candidate source",
			},
			[]string{"pipeline", "source"},
		),
		servedFinalScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricServedFinalScore,
				Help:    "Final score distribution of served candidates",
				Buckets: []float64{-5, -1, 0, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRequestsTotal,
				Help: "Number of feed requests by pipeline and outcome",
			},
			[]string{"pipeline", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRequestDuration,
				Help:    "End to end feed request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),
	}
}

// Register 注册全部指标
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors 返回全部 collector
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.stageDuration,
		m.stageDegraded,
		m.sourceCandidates,
		m.sourceFailures,
		m.scorerFallbacks,
		m.servedCandidates,
		m.servedFinalScore,
		m.requestsTotal,
		m.requestDuration,
	}
}

func (m *Metrics) StageDone(kind pipeline.Kind, name string, d time.Duration) {
	m.stageDuration.WithLabelValues(string(kind), name).Observe(d.Seconds())
}

func (m *Metrics) StageDegraded(kind pipeline.Kind, name string) {
	m.stageDegraded.WithLabelValues(string(kind), name).Inc()
}

func (m *Metrics) SourceReturned(name string, n int, d time.Duration) {
	m.sourceCandidates.WithLabelValues(name).Add(float64(n))
	m.stageDuration.WithLabelValues(string(pipeline.KindSource), name).Observe(d.Seconds())
}

func (m *Metrics) SourceFailed(name string) {
	m.sourceFailures.WithLabelValues(name).Inc()
}

// ScorerFallback 记录走本地兜底的候选数，可直接作为 rank.EngagementScorer.OnFallback
func (m *Metrics) ScorerFallback(reason string, n int) {
	m.scorerFallbacks.WithLabelValues(reason).Add(float64(n))
}

// CandidateServed 记录一个被返回的候选
func (m *Metrics) CandidateServed(pipelineName, source string, finalScore float64) {
	m.servedCandidates.WithLabelValues(pipelineName, source).Inc()
	m.servedFinalScore.Observe(finalScore)
}

// RequestDone 记录一次请求
func (m *Metrics) RequestDone(pipelineName, outcome string, d time.Duration) {
	m.requestsTotal.WithLabelValues(pipelineName, outcome).Inc()
	m.requestDuration.WithLabelValues(pipelineName).Observe(d.Seconds())
}

var _ pipeline.Observer = (*Metrics)(nil)
