package rank

import (
	"context"
	"time"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
	"github.com/rushteam/solfeed/service"
)

const (
	// DefaultMaxBatch 单次打分请求的候选上限（与 AI 服务的校验一致）
	DefaultMaxBatch = 500

	// 本地兜底公式的系数
	fallbackLikeWeight    = 0.5
	fallbackCommentWeight = 0.3
)

// 打分来源，写入 score_source label
const (
	ScoreSourceRemote    = "remote"
	ScoreSourceFallback  = "fallback"
	ScoreSourcePrescored = "prescored"
)

// Predictor 是远程打分服务，service.PipelineClient 实现了该接口。
type Predictor interface {
	Score(ctx context.Context, req *service.ScoreRequest) (*service.ScoreResponse, error)
}

// EngagementScorer 调用远程互动模型为候选打分，失败时使用本地确定性公式兜底：
//
//	finalScore = likes*0.5 + comments*0.3
//
// 已经带有 EngagementScores 的候选不会再发送，原样返回（幂等）。
// 输出与输入的候选数量、相对顺序一致。Process 不返回错误。
type EngagementScorer struct {
	pipeline.Always

	Client Predictor
	// Timeout 远程调用超时，<= 0 表示只受请求 ctx 控制
	Timeout time.Duration
	// Weights 缺少 final_score 时按权重计算，nil 使用 core.DefaultWeights
	Weights map[core.Action]float64
	// MaxBatch <= 0 时使用 DefaultMaxBatch，超出部分直接走兜底
	MaxBatch int

	Logger logging.Logger
	// OnFallback 每次走兜底时回调（打点），reason 为 error / overflow / no_client
	OnFallback func(reason string, n int)

	now func() time.Time
}

func (s *EngagementScorer) Name() string        { return "rank.engagement" }
func (s *EngagementScorer) Kind() pipeline.Kind { return pipeline.KindScorer }

func (s *EngagementScorer) Process(
	ctx context.Context,
	q *core.FeedQuery,
	items []*core.FeedCandidate,
) ([]*core.FeedCandidate, error) {
	pending := make([]*core.FeedCandidate, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.IsScored() {
			it.PutLabel(core.LabelScoreSource, core.Label{Value: ScoreSourcePrescored, Source: "rank"})
			continue
		}
		pending = append(pending, it)
	}
	// 没有需要打分的候选时不发起请求
	if len(pending) == 0 {
		return items, nil
	}

	batch, overflow := split(pending, s.maxBatch())
	if len(overflow) > 0 {
		s.fallback(overflow, "overflow")
	}

	if s.Client == nil {
		s.fallback(batch, "no_client")
		return items, nil
	}

	preds, err := s.predict(ctx, q, batch)
	if err != nil {
		logging.OrDiscard(s.Logger).WithFields(logging.Fields{
			"request_id": q.RequestID,
			"stage":      s.Name(),
			"candidates": len(batch),
		}).WithError(err).Warn("remote scoring failed, using local fallback")
		s.fallback(batch, "error")
		return items, nil
	}
	s.merge(batch, preds)
	return items, nil
}

func (s *EngagementScorer) predict(
	ctx context.Context,
	q *core.FeedQuery,
	batch []*core.FeedCandidate,
) (map[string]service.Prediction, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	req := &service.ScoreRequest{
		UserWallet:       q.UserWallet,
		LikedPostIDs:     orEmpty(q.LikedPostIDs),
		FollowingWallets: orEmpty(q.FollowingWallets),
		Candidates:       make([]service.ScoreCandidate, 0, len(batch)),
	}
	for _, c := range batch {
		sc := service.ScoreCandidate{
			PostID:             c.PostID,
			CreatorWallet:      c.CreatorWallet,
			Description:        c.Description,
			Tags:               orEmpty(c.AutoTags),
			SceneType:          c.SceneType,
			Mood:               c.Mood,
			Likes:              c.Likes,
			Comments:           c.Comments,
			TipsReceived:       c.TipsReceived,
			IsFollowingCreator: c.IsFollowingCreator,
			Source:             string(c.Source),
		}
		if !c.Timestamp.IsZero() {
			sc.AgeHours = now().Sub(c.Timestamp).Hours()
		}
		req.Candidates = append(req.Candidates, sc)
	}

	resp, err := s.Client.Score(ctx, req)
	if err != nil {
		return nil, err
	}
	preds := make(map[string]service.Prediction, len(resp.Predictions))
	for _, p := range resp.Predictions {
		preds[p.PostID] = p
	}
	return preds, nil
}

// merge 按 post_id 写回打分结果，没有对应预测的候选保持原状态。
func (s *EngagementScorer) merge(batch []*core.FeedCandidate, preds map[string]service.Prediction) {
	for _, c := range batch {
		p, ok := preds[c.PostID]
		if !ok {
			continue
		}
		scores := core.ScoresFromMap(p.Scores)
		if scores == nil {
			scores = &core.EngagementScores{}
		}
		c.EngagementScores = scores
		if p.FinalScore != nil {
			c.FinalScore = *p.FinalScore
		} else {
			c.FinalScore = scores.Weighted(s.Weights)
		}
		c.PutLabel(core.LabelScoreSource, core.Label{Value: ScoreSourceRemote, Source: "rank"})
	}
}

func (s *EngagementScorer) fallback(batch []*core.FeedCandidate, reason string) {
	for _, c := range batch {
		c.FinalScore = HeuristicScore(c)
		c.PutLabel(core.LabelScoreSource, core.Label{Value: ScoreSourceFallback, Source: "rank"})
	}
	if s.OnFallback != nil {
		s.OnFallback(reason, len(batch))
	}
}

func (s *EngagementScorer) maxBatch() int {
	if s.MaxBatch <= 0 {
		return DefaultMaxBatch
	}
	return s.MaxBatch
}

// HeuristicScore 是本地兜底分：likes*0.5 + comments*0.3（不包含打赏等其它信号）。
func HeuristicScore(c *core.FeedCandidate) float64 {
	return float64(c.Likes)*fallbackLikeWeight + float64(c.Comments)*fallbackCommentWeight
}

func split(items []*core.FeedCandidate, n int) ([]*core.FeedCandidate, []*core.FeedCandidate) {
	if len(items) <= n {
		return items, nil
	}
	return items[:n], items[n:]
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
