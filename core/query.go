package core

import (
	"strconv"
	"strings"
	"time"
)

// FeedQuery 承载一次 Feed 请求的用户上下文，贯穿整个 Pipeline 透传。
//
// FeedQuery 在一次 Pipeline 调用中视为不可变：QueryHydrator 返回新的副本，
// 其它 Stage 只读。集合字段不含重复元素（见 Normalize）。
//
// 集合字段为 nil 表示"调用方未提供"，QueryHydrator 会尝试从 SignalStore 补齐；
// 空切片表示"已知为空"，不会被补齐。
type FeedQuery struct {
	RequestID string
	// UserWallet 为空表示匿名（explore）
	UserWallet string
	Limit      int
	// Cursor 是不透明的分页游标，通常为上一页最后一个时间戳
	Cursor string

	FollowingWallets []string
	LikedPostIDs     []string
	SeenPostIDs      []string
	BlockedWallets   []string
	MutedKeywords    []string

	// GrantedTokens 是调用方已验证持有的 token（token-gate 访问状态由外部确定）
	GrantedTokens []string

	// TasteProfile / TasteEmbedding 对 Pipeline 不透明，只透传给远程服务
	TasteProfile   string
	TasteEmbedding []float64
}

// Validate 校验请求，返回 ErrInvalidQuery 包装的错误。
// maxLimit <= 0 表示不限制上限。
func (q *FeedQuery) Validate(maxLimit int) error {
	if q == nil {
		return invalidQuery("query is nil")
	}
	if q.Limit <= 0 {
		return invalidQuery("limit must be positive, got " + strconv.Itoa(q.Limit))
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		return invalidQuery("limit exceeds max " + strconv.Itoa(maxLimit))
	}
	if q.Cursor != "" {
		if _, ok := q.CursorTime(); !ok {
			return invalidQuery("unparseable cursor " + strconv.Quote(q.Cursor))
		}
	}
	return nil
}

// HasCursor 是否为非首页请求
func (q *FeedQuery) HasCursor() bool {
	return strings.TrimSpace(q.Cursor) != ""
}

// CursorTime 解析游标。支持 RFC3339（含纳秒）与 Unix 毫秒两种格式。
func (q *FeedQuery) CursorTime() (time.Time, bool) {
	return ParseCursor(q.Cursor)
}

// IsColdStart 点赞数少于 threshold 的用户视为冷启动用户。
func (q *FeedQuery) IsColdStart(threshold int) bool {
	return len(q.LikedPostIDs) < threshold
}

// IsAnonymous 未登录用户
func (q *FeedQuery) IsAnonymous() bool {
	return q.UserWallet == ""
}

// Normalize 对所有集合字段去重（保持首次出现的顺序），并返回自身。
func (q *FeedQuery) Normalize() *FeedQuery {
	q.FollowingWallets = dedupStrings(q.FollowingWallets)
	q.LikedPostIDs = dedupStrings(q.LikedPostIDs)
	q.SeenPostIDs = dedupStrings(q.SeenPostIDs)
	q.BlockedWallets = dedupStrings(q.BlockedWallets)
	q.MutedKeywords = dedupStrings(q.MutedKeywords)
	q.GrantedTokens = dedupStrings(q.GrantedTokens)
	return q
}

// Clone 深拷贝，QueryHydrator 在副本上修改。
func (q *FeedQuery) Clone() *FeedQuery {
	if q == nil {
		return nil
	}
	c := *q
	c.FollowingWallets = cloneStrings(q.FollowingWallets)
	c.LikedPostIDs = cloneStrings(q.LikedPostIDs)
	c.SeenPostIDs = cloneStrings(q.SeenPostIDs)
	c.BlockedWallets = cloneStrings(q.BlockedWallets)
	c.MutedKeywords = cloneStrings(q.MutedKeywords)
	c.GrantedTokens = cloneStrings(q.GrantedTokens)
	if q.TasteEmbedding != nil {
		c.TasteEmbedding = append([]float64(nil), q.TasteEmbedding...)
	}
	return &c
}

// FormatCursor 把时间戳编码为游标
func FormatCursor(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseCursor 解析游标
func ParseCursor(cursor string) (time.Time, bool) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, cursor); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(cursor, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// StringSet 把切片转换为集合，供 Filter 等做 O(1) 查找。
func StringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func dedupStrings(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string{}, values...)
}
