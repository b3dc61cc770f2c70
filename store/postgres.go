package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/rushteam/solfeed/core"
)

const postColumns = "id, creator_wallet, timestamp, content_uri, caption, likes, comments, tips_received, " +
	"llm_description, auto_tags, scene_type, mood, is_token_gated, required_token"

// PostgresStore 是 PostgreSQL 实现的 ContentStore + SignalStore（只读）。
//
// 表结构：
//   - posts(id, creator_wallet, timestamp, ..., auto_tags text[])
//   - follows(follower_wallet, following_wallet)
//   - likes(user_wallet, post_id)
//   - blocks(blocker_wallet, blocked_wallet)
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres 使用 lib/pq 打开连接并 Ping 校验
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "postgres ping failed", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore 复用已有的 *sql.DB（测试中传入 sqlmock）
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string { return "postgres" }

// QueryPosts 按作者集合 / 时间游标 / 时间窗口查询，按 OrderBy 降序。
func (s *PostgresStore) QueryPosts(ctx context.Context, q core.PostQuery) ([]core.PostRow, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(q.Creators) > 0 {
		where = append(where, "creator_wallet = ANY("+arg(pq.Array(q.Creators))+")")
	}
	if !q.Before.IsZero() {
		where = append(where, "timestamp < "+arg(q.Before))
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= "+arg(q.Since))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(postColumns)
	b.WriteString(" FROM posts")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	switch q.OrderBy {
	case core.OrderByLikes:
		b.WriteString(" ORDER BY likes DESC, timestamp DESC")
	default:
		b.WriteString(" ORDER BY timestamp DESC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Limit))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "query posts", err)
	}
	defer rows.Close()

	var out []core.PostRow
	for rows.Next() {
		var (
			r                                          core.PostRow
			contentURI, caption, desc, scene, mood, rt sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.CreatorWallet, &r.Timestamp, &contentURI, &caption,
			&r.Likes, &r.Comments, &r.TipsReceived,
			&desc, pq.Array(&r.AutoTags), &scene, &mood, &r.IsTokenGated, &rt,
		); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		r.ContentURI = contentURI.String
		r.Caption = caption.String
		r.LLMDescription = desc.String
		r.SceneType = scene.String
		r.Mood = mood.String
		r.RequiredToken = rt.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// UserSignals 读取关注、点赞、拉黑列表。查询成功但为空时返回空切片（已知为空）。
func (s *PostgresStore) UserSignals(ctx context.Context, wallet string) (*core.UserSignals, error) {
	following, err := s.column(ctx, `SELECT following_wallet FROM follows WHERE follower_wallet = $1`, wallet)
	if err != nil {
		return nil, err
	}
	liked, err := s.column(ctx, `SELECT post_id FROM likes WHERE user_wallet = $1`, wallet)
	if err != nil {
		return nil, err
	}
	blocked, err := s.column(ctx, `SELECT blocked_wallet FROM blocks WHERE blocker_wallet = $1`, wallet)
	if err != nil {
		return nil, err
	}
	return &core.UserSignals{
		FollowingWallets: following,
		LikedPostIDs:     liked,
		BlockedWallets:   blocked,
	}, nil
}

func (s *PostgresStore) column(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "query user signals", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan user signal: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Ping 健康检查
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var (
	_ core.ContentStore = (*PostgresStore)(nil)
	_ core.SignalStore  = (*PostgresStore)(nil)
)
