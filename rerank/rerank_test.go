package rerank

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/solfeed/core"
)

var t0 = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func cand(id, creator string, score float64, age time.Duration, src core.CandidateSource) *core.FeedCandidate {
	return &core.FeedCandidate{
		PostID:        id,
		CreatorWallet: creator,
		FinalScore:    score,
		Timestamp:     t0.Add(-age),
		Source:        src,
	}
}

func pageIDs(p *core.FeedPage) []string {
	out := make([]string, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		out = append(out, c.PostID)
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTopScore_Ordering(t *testing.T) {
	items := []*core.FeedCandidate{
		cand("b", "c1", 1, time.Hour, core.SourceInNetwork),
		cand("a", "c2", 1, time.Hour, core.SourceInNetwork),
		cand("newer", "c3", 1, 0, core.SourceInNetwork),
		cand("top", "c4", 9, 5*time.Hour, core.SourceTrending),
	}
	// 分数相同时按时间倒序，再按 postId
	page, err := (&TopScore{}).Select(context.Background(), &core.FeedQuery{Limit: 10}, items)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got, want := pageIDs(page), []string{"top", "newer", "a", "b"}; !sameIDs(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestTopScore_CreatorCap(t *testing.T) {
	items := []*core.FeedCandidate{
		cand("x1", "x", 10, 0, core.SourceInNetwork),
		cand("x2", "x", 9, 0, core.SourceInNetwork),
		cand("x3", "x", 8, 0, core.SourceInNetwork),
		cand("y1", "y", 7, 0, core.SourceInNetwork),
		cand("x4", "x", 6, 0, core.SourceInNetwork),
	}

	tests := []struct {
		name string
		sel  *TopScore
		lim  int
		want []string
	}{
		{name: "no cap", sel: &TopScore{}, lim: 3, want: []string{"x1", "x2", "x3"}},
		{name: "cap 2 no backfill", sel: &TopScore{MaxPerCreator: 2}, lim: 4, want: []string{"x1", "x2", "y1"}},
		{name: "cap 2 backfill", sel: &TopScore{MaxPerCreator: 2, Backfill: true}, lim: 4, want: []string{"x1", "x2", "x3", "y1"}},
		{name: "cap 1 limit 2", sel: &TopScore{MaxPerCreator: 1, Backfill: true}, lim: 2, want: []string{"x1", "y1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, _ := tt.sel.Select(context.Background(), &core.FeedQuery{Limit: tt.lim}, items)
			if got := pageIDs(page); !sameIDs(got, tt.want) {
				t.Errorf("page = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTopScore_NextCursor(t *testing.T) {
	tests := []struct {
		name  string
		items []*core.FeedCandidate
		want  *time.Time
	}{
		{
			name: "last store-backed candidate",
			items: []*core.FeedCandidate{
				cand("in", "a", 3, time.Hour, core.SourceInNetwork),
				cand("tr", "b", 2, 2*time.Hour, core.SourceTrending),
				{PostID: "remote", CreatorWallet: "c", FinalScore: 1, Source: core.SourceOutOfNetwork},
			},
			want: func() *time.Time { v := t0.Add(-2 * time.Hour); return &v }(),
		},
		{
			name: "only remote candidates",
			items: []*core.FeedCandidate{
				{PostID: "r1", FinalScore: 2, Source: core.SourceOutOfNetwork},
				{PostID: "r2", FinalScore: 1, Source: core.SourceOutOfNetwork},
			},
		},
		{name: "empty", items: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, _ := NewTopScore().Select(context.Background(), &core.FeedQuery{Limit: 10}, tt.items)
			if tt.want == nil {
				if page.NextCursor != nil {
					t.Errorf("cursor = %v, want nil", *page.NextCursor)
				}
				return
			}
			if page.NextCursor == nil {
				t.Fatal("cursor is nil")
			}
			got, ok := core.ParseCursor(*page.NextCursor)
			if !ok || !got.Equal(*tt.want) {
				t.Errorf("cursor = %s, want %s", *page.NextCursor, tt.want)
			}
		})
	}
}

func TestTokenGate(t *testing.T) {
	items := func() []*core.FeedCandidate {
		return []*core.FeedCandidate{
			{PostID: "open", ContentURI: "ipfs://open"},
			{PostID: "granted", IsTokenGated: true, RequiredToken: "MINT_A", ContentURI: "ipfs://a"},
			{PostID: "locked", IsTokenGated: true, RequiredToken: "MINT_B", ContentURI: "ipfs://b"},
			{PostID: "own", CreatorWallet: "me", IsTokenGated: true, RequiredToken: "MINT_C", ContentURI: "ipfs://c"},
		}
	}
	q := &core.FeedQuery{UserWallet: "me", GrantedTokens: []string{"MINT_A"}}

	got, _ := (&TokenGate{Mode: TokenGateRedact}).Process(context.Background(), q, items())
	if len(got) != 4 {
		t.Fatalf("redact kept %d, want 4", len(got))
	}
	if !got[2].Locked || got[2].ContentURI != "" || got[2].Label(core.LabelGated) != "locked" {
		t.Errorf("locked candidate = %+v", got[2])
	}
	if got[1].Locked || got[1].ContentURI == "" || got[3].Locked {
		t.Error("granted or own content should stay visible")
	}

	got, _ = (&TokenGate{Mode: TokenGateDrop}).Process(context.Background(), q, items())
	if len(got) != 3 {
		t.Fatalf("drop kept %d, want 3", len(got))
	}
	for _, c := range got {
		if c.PostID == "locked" {
			t.Error("locked candidate should be dropped")
		}
	}
}
