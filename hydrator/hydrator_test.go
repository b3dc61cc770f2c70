package hydrator

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rushteam/solfeed/core"
	"github.com/rushteam/solfeed/store"
)

type brokenSignals struct{}

func (brokenSignals) UserSignals(context.Context, string) (*core.UserSignals, error) {
	return nil, errors.New("db down")
}

func TestUserSignals(t *testing.T) {
	s := store.NewMemoryContentStore()
	s.SetUserSignals("w", core.UserSignals{
		FollowingWallets: []string{"c1", "c2", "c1"},
		LikedPostIDs:     []string{"p1"},
	})
	h := &UserSignals{Store: s}

	tests := []struct {
		name          string
		query         *core.FeedQuery
		wantEnable    bool
		wantFollowing []string
		wantLiked     []string
		wantBlocked   []string
	}{
		{
			name:       "anonymous skipped",
			query:      &core.FeedQuery{Limit: 1},
			wantEnable: false,
		},
		{
			name:       "all provided skipped",
			query:      &core.FeedQuery{UserWallet: "w", FollowingWallets: []string{}, LikedPostIDs: []string{}, BlockedWallets: []string{}},
			wantEnable: false,
		},
		{
			name:          "fill missing only",
			query:         &core.FeedQuery{UserWallet: "w", LikedPostIDs: []string{"mine"}},
			wantEnable:    true,
			wantFollowing: []string{"c1", "c2"},
			wantLiked:     []string{"mine"},
			wantBlocked:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Enable(tt.query); got != tt.wantEnable {
				t.Fatalf("Enable = %v, want %v", got, tt.wantEnable)
			}
			if !tt.wantEnable {
				return
			}
			before := tt.query.Clone()
			got, err := h.HydrateQuery(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("HydrateQuery: %v", err)
			}
			if !reflect.DeepEqual(tt.query, before) {
				t.Error("input query was mutated")
			}
			if !reflect.DeepEqual(got.FollowingWallets, tt.wantFollowing) {
				t.Errorf("following = %#v, want %#v", got.FollowingWallets, tt.wantFollowing)
			}
			if !reflect.DeepEqual(got.LikedPostIDs, tt.wantLiked) {
				t.Errorf("liked = %#v, want %#v", got.LikedPostIDs, tt.wantLiked)
			}
			if !reflect.DeepEqual(got.BlockedWallets, tt.wantBlocked) {
				t.Errorf("blocked = %#v, want %#v", got.BlockedWallets, tt.wantBlocked)
			}
		})
	}
}

func TestUserSignals_Error(t *testing.T) {
	h := &UserSignals{Store: brokenSignals{}}
	if _, err := h.HydrateQuery(context.Background(), &core.FeedQuery{UserWallet: "w"}); err == nil {
		t.Error("expected error")
	}
}

func TestContent(t *testing.T) {
	items := []*core.FeedCandidate{
		{PostID: "a", Description: "  A cat  ", AutoTags: []string{" Cat", "cat", "", "Cute"}, Mood: "Happy"},
		{PostID: "b"},
	}
	got, err := (&Content{}).Process(context.Background(), &core.FeedQuery{}, items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("hydrator must keep candidates, got %d", len(got))
	}
	if got[0].Description != "A cat" || got[0].Mood != "happy" {
		t.Errorf("a = %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].AutoTags, []string{"cat", "cute"}) {
		t.Errorf("tags = %v", got[0].AutoTags)
	}
}

func TestFollowing(t *testing.T) {
	q := &core.FeedQuery{UserWallet: "w", FollowingWallets: []string{"c1"}}
	items := []*core.FeedCandidate{
		{PostID: "a", CreatorWallet: "c1", Source: core.SourceOutOfNetwork},
		{PostID: "b", CreatorWallet: "c2", Source: core.SourceTrending},
	}
	h := &Following{}
	if h.Enable(&core.FeedQuery{}) {
		t.Error("anonymous viewer should skip")
	}
	got, _ := h.Process(context.Background(), q, items)
	if !got[0].IsFollowingCreator || got[1].IsFollowingCreator {
		t.Errorf("following flags = %v, %v", got[0].IsFollowingCreator, got[1].IsFollowingCreator)
	}
}
