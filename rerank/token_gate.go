package rerank

import (
	"context"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/pipeline"
)

// TokenGateMode 决定对无权访问的 token-gated 内容如何处理
type TokenGateMode string

const (
	// TokenGateRedact 保留帖子但隐藏内容地址，标记为 Locked
	TokenGateRedact TokenGateMode = "redact"
	// TokenGateDrop 从页面中移除
	TokenGateDrop TokenGateMode = "drop"
)

// TokenGate 是选页后的过滤器：根据调用方已验证的 GrantedTokens 决定 token-gated 内容的展示。
// 本身不做链上校验。创作者总是可以看到自己的内容。
type TokenGate struct {
	pipeline.Always

	Mode TokenGateMode
}

func (f *TokenGate) Name() string        { return "rerank.token_gate" }
func (f *TokenGate) Kind() pipeline.Kind { return pipeline.KindPostFilter }

func (f *TokenGate) Process(_ context.Context, q *core.FeedQuery, items []*core.FeedCandidate) ([]*core.FeedCandidate, error) {
	granted := core.StringSet(q.GrantedTokens)
	out := make([]*core.FeedCandidate, 0, len(items))
	for _, it := range items {
		if !it.IsTokenGated {
			out = append(out, it)
			continue
		}
		if hasAccess(q, granted, it) {
			it.PutLabel(core.LabelGated, core.Label{Value: "unlocked", Source: "rerank"})
			out = append(out, it)
			continue
		}
		if f.Mode == TokenGateDrop {
			continue
		}
		it.Locked = true
		it.ContentURI = ""
		it.PutLabel(core.LabelGated, core.Label{Value: "locked", Source: "rerank"})
		out = append(out, it)
	}
	return out, nil
}

func hasAccess(q *core.FeedQuery, granted map[string]struct{}, c *core.FeedCandidate) bool {
	if q.UserWallet != "" && q.UserWallet == c.CreatorWallet {
		return true
	}
	if c.RequiredToken == "" {
		return false
	}
	_, ok := granted[c.RequiredToken]
	return ok
}
