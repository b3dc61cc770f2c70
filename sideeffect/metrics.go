package sideeffect

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
)

// ServedRecorder 记录返回的候选，metrics.Metrics 实现了该接口。
type ServedRecorder interface {
	CandidateServed(pipelineName, source string, finalScore float64)
}

// MetricsLog 按召回源统计数量、汇总分数分布并记录日志，可选上报 Prometheus。
// 空页面同样记录。
type MetricsLog struct {
	pipeline.Always

	Pipeline string
	Logger   logging.Logger
	Recorder ServedRecorder
}

func (s *MetricsLog) Name() string        { return "sideeffect.metrics_log" }
func (s *MetricsLog) Kind() pipeline.Kind { return pipeline.KindSideEffect }

// PageStats 是一页结果的统计
type PageStats struct {
	Total     int
	BySource  map[string]int
	MinScore  float64
	MaxScore  float64
	MeanScore float64
}

// Stats 统计一页结果，空页面的分数统计为 0。
func Stats(items []*core.FeedCandidate) PageStats {
	st := PageStats{BySource: make(map[string]int)}
	if len(items) == 0 {
		return st
	}
	st.MinScore, st.MaxScore = math.Inf(1), math.Inf(-1)
	sum := 0.0
	for _, c := range items {
		st.Total++
		st.BySource[string(c.Source)]++
		st.MinScore = math.Min(st.MinScore, c.FinalScore)
		st.MaxScore = math.Max(st.MaxScore, c.FinalScore)
		sum += c.FinalScore
	}
	st.MeanScore = sum / float64(st.Total)
	return st
}

func (s *MetricsLog) Run(_ context.Context, q *core.FeedQuery, page *core.FeedPage) {
	var items []*core.FeedCandidate
	if page != nil {
		items = page.Candidates
	}
	st := Stats(items)

	fields := logging.Fields{
		"request_id": q.RequestID,
		"pipeline":   s.Pipeline,
		"total":      st.Total,
		"score_min":  st.MinScore,
		"score_max":  st.MaxScore,
		"score_mean": st.MeanScore,
	}
	sources := make([]string, 0, len(st.BySource))
	for src := range st.BySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		fields["source_"+src] = st.BySource[src]
	}
	logging.OrDiscard(s.Logger).WithFields(fields).Info("feed served")

	if s.Recorder != nil {
		for _, c := range items {
			s.Recorder.CandidateServed(s.Pipeline, string(c.Source), c.FinalScore)
		}
	}
}
