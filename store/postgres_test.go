package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rushteam/solfeed/core"
)

var postCols = []string{
	"id", "creator_wallet", "timestamp", "content_uri", "caption", "likes", "comments", "tips_received",
	"llm_description", "auto_tags", "scene_type", "mood", "is_token_gated", "required_token",
}

func TestPostgresStore_QueryPosts(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cursor := ts.Add(time.Hour)

	tests := []struct {
		name      string
		query     core.PostQuery
		setupMock func(sqlmock.Sqlmock)
		wantLen   int
		wantErr   bool
	}{
		{
			name:  "recent by creators with cursor",
			query: core.PostQuery{Creators: []string{"a", "b"}, Before: cursor, OrderBy: core.OrderByTimestamp, Limit: 10},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM posts WHERE creator_wallet = ANY\(\$1\) AND timestamp < \$2 ORDER BY timestamp DESC LIMIT \$3`).
					WithArgs(sqlmock.AnyArg(), cursor, 10).
					WillReturnRows(sqlmock.NewRows(postCols).
						AddRow("p1", "a", ts, "ipfs://1", "hello", 6, 2, 0.5, "a cat", "{cat,cute}", "indoor", "happy", false, nil).
						AddRow("p2", "b", ts.Add(-time.Minute), nil, nil, 0, 0, 0.0, nil, "{}", nil, nil, true, "TOKEN"))
			},
			wantLen: 2,
		},
		{
			name:  "trending ordered by likes",
			query: core.PostQuery{OrderBy: core.OrderByLikes, Limit: 5},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM posts ORDER BY likes DESC, timestamp DESC LIMIT \$1`).
					WithArgs(5).
					WillReturnRows(sqlmock.NewRows(postCols))
			},
			wantLen: 0,
		},
		{
			name:  "database error",
			query: core.PostQuery{Limit: 5},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM posts`).WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create sqlmock: %v", err)
			}
			defer db.Close()
			tt.setupMock(mock)

			rows, err := NewPostgresStore(db).QueryPosts(context.Background(), tt.query)
			if tt.wantErr {
				if !core.IsUnavailable(err) {
					t.Errorf("err = %v, want unavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("QueryPosts: %v", err)
			}
			if len(rows) != tt.wantLen {
				t.Fatalf("rows = %d, want %d", len(rows), tt.wantLen)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestPostgresStore_QueryPosts_ScanFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT (.+) FROM posts`).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow("p1", "a", ts, "ipfs://1", "hello", 6, 2, 0.5, "a cat", "{cat,cute}", "indoor", "happy", true, "MINT"))

	rows, err := NewPostgresStore(db).QueryPosts(context.Background(), core.PostQuery{})
	if err != nil {
		t.Fatalf("QueryPosts: %v", err)
	}
	r := rows[0]
	if r.ID != "p1" || r.Likes != 6 || r.Comments != 2 || r.LLMDescription != "a cat" {
		t.Errorf("unexpected row %+v", r)
	}
	if len(r.AutoTags) != 2 || r.AutoTags[0] != "cat" {
		t.Errorf("auto_tags = %v", r.AutoTags)
	}
	if !r.IsTokenGated || r.RequiredToken != "MINT" {
		t.Errorf("gating fields not scanned: %+v", r)
	}
}

func TestPostgresStore_UserSignals(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT following_wallet FROM follows`).WithArgs("w").
		WillReturnRows(sqlmock.NewRows([]string{"following_wallet"}).AddRow("c1").AddRow("c2"))
	mock.ExpectQuery(`SELECT post_id FROM likes`).WithArgs("w").
		WillReturnRows(sqlmock.NewRows([]string{"post_id"}))
	mock.ExpectQuery(`SELECT blocked_wallet FROM blocks`).WithArgs("w").
		WillReturnRows(sqlmock.NewRows([]string{"blocked_wallet"}).AddRow("spam"))

	sig, err := NewPostgresStore(db).UserSignals(context.Background(), "w")
	if err != nil {
		t.Fatalf("UserSignals: %v", err)
	}
	if len(sig.FollowingWallets) != 2 || len(sig.BlockedWallets) != 1 {
		t.Errorf("signals = %+v", sig)
	}
	// 查询成功但为空，应为空切片而不是 nil
	if sig.LikedPostIDs == nil || len(sig.LikedPostIDs) != 0 {
		t.Errorf("liked = %#v, want empty slice", sig.LikedPostIDs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
