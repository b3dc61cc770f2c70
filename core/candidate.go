package core

import "time"

// CandidateSource 标记候选来自哪个召回源。
type CandidateSource string

const (
	SourceInNetwork    CandidateSource = "in_network"     // 关注的创作者
	SourceOutOfNetwork CandidateSource = "out_of_network" // 远程召回（发现）
	SourceTrending     CandidateSource = "trending"       // 全局热门（冷启动）
)

// StoreBacked 是否为 Store 召回（使用时间戳游标分页）。
// 远程召回由召回服务自己管理分页，不参与游标推导。
func (s CandidateSource) StoreBacked() bool {
	return s == SourceInNetwork || s == SourceTrending
}

// FeedCandidate 是 Pipeline 中的统一承载结构：一条待排序的帖子。
//
// PostID 在一次 Pipeline 调用内唯一（Merge 之后）。
// EngagementScores 为 nil 表示"尚未打分"；FinalScore 只有在 Scorer 之后才有意义。
type FeedCandidate struct {
	PostID        string
	CreatorWallet string
	Timestamp     time.Time

	ContentURI  string
	Caption     string
	Description string // AI 生成的描述
	AutoTags    []string
	SceneType   string
	Mood        string

	Likes        int64
	Comments     int64
	TipsReceived float64

	Source             CandidateSource
	IsFollowingCreator bool

	EngagementScores *EngagementScores
	FinalScore       float64

	IsTokenGated  bool
	RequiredToken string
	// Locked 表示 token-gated 内容对当前用户不可见（PostSelectionFilter 标注）
	Locked bool

	Labels map[string]Label
}

// IsScored 是否已经带有打分向量
func (c *FeedCandidate) IsScored() bool {
	return c.EngagementScores != nil
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *FeedCandidate) PutLabel(key string, lbl Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}

// Label 返回 key 对应的 Label 值
func (c *FeedCandidate) Label(key string) string {
	if c.Labels == nil {
		return ""
	}
	return c.Labels[key].Value
}

// FeedPage 是 Pipeline 的最终输出。
type FeedPage struct {
	Candidates []*FeedCandidate
	// NextCursor 为 nil 表示没有 Store 召回的候选可以推导下一页
	NextCursor *string
}
