package core

import (
	"context"
	"time"
)

// PostRow 是内容存储返回的一行帖子数据。
type PostRow struct {
	ID             string
	CreatorWallet  string
	Timestamp      time.Time
	ContentURI     string
	Caption        string
	Likes          int64
	Comments       int64
	TipsReceived   float64
	LLMDescription string
	AutoTags       []string
	SceneType      string
	Mood           string
	IsTokenGated   bool
	RequiredToken  string
}

// ToCandidate 把存储行映射为候选，EngagementScores 为 nil，FinalScore 为 0。
func (r *PostRow) ToCandidate(source CandidateSource) *FeedCandidate {
	return &FeedCandidate{
		PostID:        r.ID,
		CreatorWallet: r.CreatorWallet,
		Timestamp:     r.Timestamp,
		ContentURI:    r.ContentURI,
		Caption:       r.Caption,
		Description:   r.LLMDescription,
		AutoTags:      append([]string(nil), r.AutoTags...),
		SceneType:     r.SceneType,
		Mood:          r.Mood,
		Likes:         r.Likes,
		Comments:      r.Comments,
		TipsReceived:  r.TipsReceived,
		Source:        source,
		IsTokenGated:  r.IsTokenGated,
		RequiredToken: r.RequiredToken,
	}
}

// PostQuery 是内容存储的只读查询条件。
type PostQuery struct {
	// Creators 非空时只查询这些作者的帖子
	Creators []string
	// Before 非零时作为时间戳的开区间上界（分页）
	Before time.Time
	// Since 非零时只返回该时间之后的帖子（热门窗口）
	Since time.Time
	// OrderBy 排序字段，降序
	OrderBy PostOrder
	Limit   int
}

// PostOrder 排序字段
type PostOrder string

const (
	OrderByTimestamp PostOrder = "timestamp"
	OrderByLikes     PostOrder = "likes"
)

// ContentStore 是内容存储的领域接口（只读）。
//
// 实现：
//   - store.PostgresStore（生产）
//   - store.MemoryContentStore（测试/开发）
type ContentStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// QueryPosts 按条件查询帖子
	QueryPosts(ctx context.Context, q PostQuery) ([]PostRow, error)
}

// UserSignals 是从存储中读取的用户行为信号，用于补齐 FeedQuery。
type UserSignals struct {
	FollowingWallets []string
	LikedPostIDs     []string
	BlockedWallets   []string
}

// SignalStore 读取用户的关注、点赞、拉黑数据。
type SignalStore interface {
	UserSignals(ctx context.Context, wallet string) (*UserSignals, error)
}

// CachedPost 是首页缓存中的一条帖子。
type CachedPost struct {
	ID            string    `json:"id"`
	CreatorWallet string    `json:"creator_wallet"`
	Timestamp     time.Time `json:"timestamp"`
	ContentURI    string    `json:"content_uri,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	Description   string    `json:"description,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Likes         int64     `json:"likes"`
	Comments      int64     `json:"comments"`
	TipsReceived  float64   `json:"tips_received"`
	Source        string    `json:"source"`
	Score         float64   `json:"score"`
	IsTokenGated  bool      `json:"is_token_gated"`
	Locked        bool      `json:"locked,omitempty"`
}

// CachedFeed 是首页缓存的结构。
type CachedFeed struct {
	Posts      []CachedPost `json:"posts"`
	NextCursor *string      `json:"nextCursor"`
}

// FeedCache 是首页 Feed 快照缓存，按钱包地址覆盖写入，TTL 由实现决定。
//
// 实现：
//   - store.RedisFeedCache
//   - store.MemoryFeedCache
type FeedCache interface {
	SetFeed(ctx context.Context, wallet string, feed *CachedFeed) error
	GetFeed(ctx context.Context, wallet string) (*CachedFeed, error)
}
