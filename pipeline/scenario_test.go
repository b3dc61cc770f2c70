package pipeline_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/filter"
	"github.com/rushteam/solfeed/hydrator"
	"github.com/rushteam/solfeed/pipeline"
	"github.com/rushteam/solfeed/rank"
	"github.com/rushteam/solfeed/recall"
	"github.com/rushteam/solfeed/rerank"
	"github.com/rushteam/solfeed/service"
	"github.com/rushteam/solfeed/sideeffect"
	"github.com/rushteam/solfeed/store"
)

type stubRetriever struct {
	resp *service.RetrieveResponse
	err  error
}

func (s *stubRetriever) Retrieve(context.Context, *service.RetrieveRequest) (*service.RetrieveResponse, error) {
	return s.resp, s.err
}

type stubPredictor struct {
	sent []string
	err  error
}

func (s *stubPredictor) Score(_ context.Context, req *service.ScoreRequest) (*service.ScoreResponse, error) {
	for _, c := range req.Candidates {
		s.sent = append(s.sent, c.PostID)
	}
	return nil, s.err
}

var now = time.Now().UTC().Truncate(time.Second)

func newFeed(t *testing.T, content *store.MemoryContentStore, retr recall.Retriever, pred rank.Predictor, cache core.FeedCache) *pipeline.FeedPipeline {
	t.Helper()
	p, err := pipeline.NewBuilder("for-you").
		WithQueryHydrators(&hydrator.UserSignals{Store: content}).
		WithSources(
			&recall.InNetwork{Store: content},
			&recall.OutOfNetwork{Client: retr},
			&recall.Trending{Store: content},
		).
		WithHydrators(&hydrator.Content{}, &hydrator.Following{}).
		WithFilters(filter.NewNode(filter.Seen{}, filter.BlockedAuthor{}, filter.MutedKeyword{}, &filter.Stale{MaxAge: 30 * 24 * time.Hour})).
		WithScorers(&rank.EngagementScorer{Client: pred}).
		WithSelector(rerank.NewTopScore()).
		WithPostFilters(&rerank.TokenGate{Mode: rerank.TokenGateRedact}).
		WithSideEffects(&sideeffect.CacheFeed{Cache: cache}, &sideeffect.MetricsLog{Pipeline: "for-you"}).
		WithAsyncSideEffects(false).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func seed() *store.MemoryContentStore {
	return store.NewMemoryContentStore(
		core.PostRow{ID: "in1", CreatorWallet: "alice", Timestamp: now.Add(-time.Hour), Likes: 4, Comments: 10, Caption: "Sunset"},
		core.PostRow{ID: "in2", CreatorWallet: "alice", Timestamp: now.Add(-2 * time.Hour), Likes: 8, AutoTags: []string{"SPAM"}},
		core.PostRow{ID: "hot", CreatorWallet: "zed", Timestamp: now.Add(-3 * time.Hour), Likes: 100},
		core.PostRow{ID: "old", CreatorWallet: "zed", Timestamp: now.Add(-90 * 24 * time.Hour), Likes: 500},
	)
}

func likes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "liked-" + string(rune('a'+i))
	}
	return out
}

func pageIDs(p *core.FeedPage) []string {
	out := make([]string, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		out = append(out, c.PostID)
	}
	return out
}

// 没有关注时 in-network 不贡献候选
func TestScenarioD_NoFollowing(t *testing.T) {
	content := seed()
	cache := store.NewMemoryFeedCache(time.Minute)
	defer cache.Close()
	p := newFeed(t, content, nil, nil, cache)

	page, err := p.Run(context.Background(), &core.FeedQuery{
		UserWallet:       "viewer",
		Limit:            10,
		FollowingWallets: []string{},
		LikedPostIDs:     likes(5),
		BlockedWallets:   []string{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(page.Candidates) != 0 {
		t.Errorf("page = %v, want empty", pageIDs(page))
	}
}

func TestScenarioE_TrendingOnlyForColdStart(t *testing.T) {
	content := seed()
	cache := store.NewMemoryFeedCache(time.Minute)
	defer cache.Close()
	p := newFeed(t, content, nil, nil, cache)

	for _, tt := range []struct {
		likes int
		want  bool
	}{{4, true}, {5, false}} {
		page, err := p.Run(context.Background(), &core.FeedQuery{
			UserWallet:       "viewer",
			Limit:            10,
			FollowingWallets: []string{},
			LikedPostIDs:     likes(tt.likes),
			BlockedWallets:   []string{},
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := strings.Contains(strings.Join(pageIDs(page), ","), "hot")
		if got != tt.want {
			t.Errorf("likes=%d trending present = %v, want %v", tt.likes, got, tt.want)
		}
	}
}

func TestForYou_EndToEnd(t *testing.T) {
	content := seed()
	content.SetUserSignals("viewer", core.UserSignals{FollowingWallets: []string{"alice"}})
	cache := store.NewMemoryFeedCache(time.Minute)
	defer cache.Close()

	retr := &stubRetriever{resp: &service.RetrieveResponse{Candidates: []service.RetrievedCandidate{
		// 与 in-network 重复，应保留 in-network 版本
		{PostID: "in1", CreatorWallet: "alice", FinalScore: 99, Scores: map[string]float64{"like": 1}},
		{PostID: "disc", CreatorWallet: "bob", FinalScore: 4, Scores: map[string]float64{"like": 0.5}},
	}}}
	pred := &stubPredictor{err: &service.StatusError{StatusCode: 503}}
	p := newFeed(t, content, retr, pred, cache)

	page, err := p.Run(context.Background(), &core.FeedQuery{
		UserWallet:    "viewer",
		Limit:         10,
		MutedKeywords: []string{"spam"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// in1: 4*0.5 + 10*0.3 = 5；disc 预打分 4；hot: 100*0.5 = 50；in2 命中屏蔽词；old 过期
	if got := strings.Join(pageIDs(page), ","); got != "hot,in1,disc" {
		t.Fatalf("page = %s", got)
	}
	in1 := page.Candidates[1]
	if in1.Source != core.SourceInNetwork || !in1.IsFollowingCreator || in1.FinalScore != 5 {
		t.Errorf("in1 = %+v", in1)
	}
	sort.Strings(pred.sent)
	if strings.Join(pred.sent, ",") != "hot,in1" {
		t.Errorf("scored remotely = %v, prescored candidates must not be sent", pred.sent)
	}
	if page.NextCursor == nil {
		t.Fatal("cursor missing")
	}
	if ts, ok := core.ParseCursor(*page.NextCursor); !ok || !ts.Equal(now.Add(-time.Hour)) {
		t.Errorf("cursor = %s, want timestamp of in1", *page.NextCursor)
	}

	cached, err := cache.GetFeed(context.Background(), "viewer")
	if err != nil || len(cached.Posts) != 3 || cached.Posts[0].ID != "hot" {
		t.Errorf("cached = %+v err = %v", cached, err)
	}
}

func TestForYou_BackendsDown(t *testing.T) {
	content := seed()
	cache := store.NewMemoryFeedCache(time.Minute)
	defer cache.Close()
	p := newFeed(t, content, &stubRetriever{err: errors.New("connection refused")}, &stubPredictor{err: errors.New("connection refused")}, cache)

	page, err := p.Run(context.Background(), &core.FeedQuery{Limit: 10})
	if err != nil {
		t.Fatalf("Run must not fail when backends are down: %v", err)
	}
	// 匿名用户：只有热门（冷启动）
	if got := strings.Join(pageIDs(page), ","); got != "hot,in1,in2" {
		t.Errorf("page = %s", got)
	}
	if _, err := cache.GetFeed(context.Background(), ""); !core.IsNotFound(err) {
		t.Error("anonymous feed should not be cached")
	}
}
