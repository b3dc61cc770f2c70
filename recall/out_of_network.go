package recall

import (
	"context"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/pkg/logging"
	"github.com/rushteam/solfeed/service"
)

// Retriever 是远程召回服务，service.PipelineClient 实现了该接口。
type Retriever interface {
	Retrieve(ctx context.Context, req *service.RetrieveRequest) (*service.RetrieveResponse, error)
}

// OutOfNetwork 通过 AI 服务召回关注图之外的内容（发现）。
// 远程服务自己管理分页，这里不传游标。
//
// 返回中带有 scores 的候选视为已打分，Scorer 不会重复打分。
type OutOfNetwork struct {
	Client Retriever
	Logger logging.Logger
}

func (r *OutOfNetwork) Name() string        { return "recall.out_of_network" }
func (r *OutOfNetwork) Kind() pipeline.Kind { return pipeline.KindSource }

// Enable 总是启用
func (r *OutOfNetwork) Enable(*core.FeedQuery) bool { return true }

// GetCandidates 远程返回非 2xx 或网络错误时返回空列表
func (r *OutOfNetwork) GetCandidates(ctx context.Context, q *core.FeedQuery) ([]*core.FeedCandidate, error) {
	if r.Client == nil {
		return nil, nil
	}
	seen := nonNil(q.SeenPostIDs)
	resp, err := r.Client.Retrieve(ctx, &service.RetrieveRequest{
		UserWallet:       q.UserWallet,
		LikedPostIDs:     nonNil(q.LikedPostIDs),
		FollowingWallets: nonNil(q.FollowingWallets),
		SeenPostIDs:      seen,
		ExcludeIDs:       seen,
		Limit:            q.Limit,
	})
	if err != nil {
		warnSource(r.Logger, r, q, err)
		return nil, nil
	}

	out := make([]*core.FeedCandidate, 0, len(resp.Candidates))
	for _, rc := range resp.Candidates {
		if rc.PostID == "" {
			continue
		}
		c := &core.FeedCandidate{
			PostID:        rc.PostID,
			CreatorWallet: rc.CreatorWallet,
			Description:   rc.Description,
			AutoTags:      rc.Tags,
			SceneType:     rc.SceneType,
			Mood:          rc.Mood,
			Source:        core.SourceOutOfNetwork,
			FinalScore:    rc.FinalScore,
		}
		if len(rc.Scores) > 0 {
			c.EngagementScores = core.ScoresFromMap(rc.Scores)
		}
		out = append(out, c)
	}
	return out, nil
}

// nonNil 保证 JSON 编码为 [] 而不是 null
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
