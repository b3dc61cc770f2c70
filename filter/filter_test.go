package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/solfeed/core"
)

func candidates() []*core.FeedCandidate {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return []*core.FeedCandidate{
		{PostID: "seen", CreatorWallet: "a", Timestamp: now},
		{PostID: "blocked", CreatorWallet: "spammer", Timestamp: now},
		{PostID: "muted-caption", CreatorWallet: "a", Caption: "Buy CRYPTO now", Timestamp: now},
		{PostID: "muted-tag", CreatorWallet: "a", AutoTags: []string{"politics"}, Timestamp: now},
		{PostID: "old", CreatorWallet: "b", Timestamp: now.Add(-40 * 24 * time.Hour)},
		{PostID: "remote", CreatorWallet: "c"},
		{PostID: "ok", CreatorWallet: "b", Description: "a sunny beach", Timestamp: now},
	}
}

func ids(items []*core.FeedCandidate) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.PostID)
	}
	return out
}

func TestRules(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	q := &core.FeedQuery{
		SeenPostIDs:    []string{"seen"},
		BlockedWallets: []string{"spammer"},
		MutedKeywords:  []string{"crypto", " Politic "},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "seen", filter: Seen{}, want: []string{"blocked", "muted-caption", "muted-tag", "old", "remote", "ok"}},
		{name: "blocked author", filter: BlockedAuthor{}, want: []string{"seen", "muted-caption", "muted-tag", "old", "remote", "ok"}},
		{name: "muted keyword", filter: MutedKeyword{}, want: []string{"seen", "blocked", "old", "remote", "ok"}},
		{name: "global muted keyword", filter: MutedKeyword{Global: []string{"BEACH"}}, want: []string{"seen", "blocked", "old", "remote"}},
		{
			name:   "stale",
			filter: &Stale{MaxAge: DefaultStaleAfter, Now: func() time.Time { return now }},
			want:   []string{"seen", "blocked", "muted-caption", "muted-tag", "remote", "ok"},
		},
		{name: "stale disabled", filter: &Stale{}, want: ids(candidates())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewNode(tt.filter).Process(context.Background(), q, candidates())
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if g := ids(got); !equal(g, tt.want) {
				t.Errorf("kept = %v, want %v", g, tt.want)
			}
		})
	}
}

func TestNode_OrderIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	q := &core.FeedQuery{
		SeenPostIDs:    []string{"seen"},
		BlockedWallets: []string{"spammer"},
		MutedKeywords:  []string{"crypto", "politics"},
	}
	stale := &Stale{MaxAge: DefaultStaleAfter, Now: func() time.Time { return now }}

	orders := [][]Filter{
		{Seen{}, BlockedAuthor{}, MutedKeyword{}, stale},
		{stale, MutedKeyword{}, BlockedAuthor{}, Seen{}},
		{MutedKeyword{}, Seen{}, stale, BlockedAuthor{}},
	}
	want := []string{"remote", "ok"}
	for i, fs := range orders {
		got, _ := NewNode(fs...).Process(context.Background(), q, candidates())
		if g := ids(got); !equal(g, want) {
			t.Errorf("order %d kept = %v, want %v", i, g, want)
		}
	}
}

func TestNode_FilteredLabel(t *testing.T) {
	items := candidates()
	_, _ = NewNode(Seen{}).Process(context.Background(), &core.FeedQuery{SeenPostIDs: []string{"seen"}}, items)
	if lbl := items[0].Labels[core.LabelFiltered]; lbl.Source != "filter.seen" {
		t.Errorf("filtered label = %+v", lbl)
	}
}

type errFilter struct{}

func (errFilter) Name() string { return "filter.err" }
func (errFilter) ShouldFilter(context.Context, *core.FeedQuery, *core.FeedCandidate) (bool, error) {
	return true, errors.New("boom")
}

func TestNode_RuleErrorKeepsCandidate(t *testing.T) {
	got, err := NewNode(errFilter{}).Process(context.Background(), &core.FeedQuery{}, candidates())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != len(candidates()) {
		t.Errorf("kept %d, want all", len(got))
	}
}

func TestExpr(t *testing.T) {
	f, err := NewExpr(`candidate.source == "trending" && candidate.likes < 3`)
	if err != nil {
		t.Fatalf("NewExpr: %v", err)
	}
	items := []*core.FeedCandidate{
		{PostID: "t-low", Source: core.SourceTrending, Likes: 1},
		{PostID: "t-high", Source: core.SourceTrending, Likes: 10},
		{PostID: "in", Source: core.SourceInNetwork, Likes: 0},
	}
	got, _ := NewNode(f).Process(context.Background(), &core.FeedQuery{}, items)
	if g := ids(got); !equal(g, []string{"t-high", "in"}) {
		t.Errorf("kept = %v", g)
	}

	if _, err := NewExpr(`candidate.likes <`); err == nil {
		t.Error("invalid expression should fail")
	}
}

func equal(a, b []string) bool {
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
