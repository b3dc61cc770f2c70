package hydrator

import (
	"context"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
)

// UserSignals 在召回前从 SignalStore 补齐关注、点赞、拉黑列表。
// 只补齐调用方没有提供的字段（nil），调用方给出的值（包括空切片）保持不变。
type UserSignals struct {
	Store core.SignalStore
}

func (h *UserSignals) Name() string        { return "hydrator.user_signals" }
func (h *UserSignals) Kind() pipeline.Kind { return pipeline.KindQueryHydrator }

// Enable 匿名用户或所有字段都已提供时跳过
func (h *UserSignals) Enable(q *core.FeedQuery) bool {
	if h.Store == nil || q.IsAnonymous() {
		return false
	}
	return q.FollowingWallets == nil || q.LikedPostIDs == nil || q.BlockedWallets == nil
}

func (h *UserSignals) HydrateQuery(ctx context.Context, q *core.FeedQuery) (*core.FeedQuery, error) {
	sig, err := h.Store.UserSignals(ctx, q.UserWallet)
	if err != nil {
		return nil, err
	}
	out := q.Clone()
	if out.FollowingWallets == nil {
		out.FollowingWallets = known(sig.FollowingWallets)
	}
	if out.LikedPostIDs == nil {
		out.LikedPostIDs = known(sig.LikedPostIDs)
	}
	if out.BlockedWallets == nil {
		out.BlockedWallets = known(sig.BlockedWallets)
	}
	return out.Normalize(), nil
}

// known 把 Store 返回的 nil 视为"已知为空"
func known(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string{}, values...)
}
