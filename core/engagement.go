package core

// Action 是一种用户互动行为。远程模型对每个 Action 预测一个 [0,1] 的概率。
type Action string

const (
	ActionLike          Action = "like"
	ActionComment       Action = "comment"
	ActionShare         Action = "share"
	ActionSave          Action = "save"
	ActionTip           Action = "tip"
	ActionSubscribe     Action = "subscribe"
	ActionFollowCreator Action = "follow_creator"
	ActionDwell         Action = "dwell"
	ActionProfileClick  Action = "profile_click"
	ActionNotInterested Action = "not_interested"
	ActionMuteCreator   Action = "mute_creator"
	ActionReport        Action = "report"
)

// Actions 是封闭的 Action 集合（顺序固定）。
var Actions = []Action{
	ActionLike, ActionComment, ActionShare, ActionSave, ActionTip, ActionSubscribe,
	ActionFollowCreator, ActionDwell, ActionProfileClick,
	ActionNotInterested, ActionMuteCreator, ActionReport,
}

// DefaultWeights 是默认的 Action 权重：Score = Σ(weight × P(action))。
// 负向行为权重为负，report 最负；tip 高于 like（变现优先于被动互动）。
var DefaultWeights = map[Action]float64{
	ActionLike:          1.0,
	ActionComment:       1.5,
	ActionShare:         2.0,
	ActionSave:          1.5,
	ActionTip:           3.0,
	ActionSubscribe:     4.0,
	ActionFollowCreator: 2.5,
	ActionDwell:         0.5,
	ActionProfileClick:  0.5,
	ActionNotInterested: -3.0,
	ActionMuteCreator:   -5.0,
	ActionReport:        -10.0,
}

// EngagementScores 是远程模型返回的多目标概率向量。
type EngagementScores struct {
	Like          float64 `json:"like"`
	Comment       float64 `json:"comment"`
	Share         float64 `json:"share"`
	Save          float64 `json:"save"`
	Tip           float64 `json:"tip"`
	Subscribe     float64 `json:"subscribe"`
	FollowCreator float64 `json:"follow_creator"`
	Dwell         float64 `json:"dwell"`
	ProfileClick  float64 `json:"profile_click"`
	NotInterested float64 `json:"not_interested"`
	MuteCreator   float64 `json:"mute_creator"`
	Report        float64 `json:"report"`
}

// Get 返回某个 Action 的概率，未知 Action 返回 0。
func (s *EngagementScores) Get(a Action) float64 {
	if s == nil {
		return 0
	}
	switch a {
	case ActionLike:
		return s.Like
	case ActionComment:
		return s.Comment
	case ActionShare:
		return s.Share
	case ActionSave:
		return s.Save
	case ActionTip:
		return s.Tip
	case ActionSubscribe:
		return s.Subscribe
	case ActionFollowCreator:
		return s.FollowCreator
	case ActionDwell:
		return s.Dwell
	case ActionProfileClick:
		return s.ProfileClick
	case ActionNotInterested:
		return s.NotInterested
	case ActionMuteCreator:
		return s.MuteCreator
	case ActionReport:
		return s.Report
	}
	return 0
}

// Weighted 计算加权分。weights 为 nil 时使用 DefaultWeights。
func (s *EngagementScores) Weighted(weights map[Action]float64) float64 {
	if s == nil {
		return 0
	}
	if weights == nil {
		weights = DefaultWeights
	}
	total := 0.0
	for _, a := range Actions {
		total += weights[a] * s.Get(a)
	}
	return total
}

// ScoresFromMap 把 action -> 概率 的 map 转为 EngagementScores，概率被截断到 [0,1]。
// 远程服务以 map 形式返回打分向量。
func ScoresFromMap(m map[string]float64) *EngagementScores {
	if m == nil {
		return nil
	}
	get := func(a Action) float64 { return clamp01(m[string(a)]) }
	return &EngagementScores{
		Like:          get(ActionLike),
		Comment:       get(ActionComment),
		Share:         get(ActionShare),
		Save:          get(ActionSave),
		Tip:           get(ActionTip),
		Subscribe:     get(ActionSubscribe),
		FollowCreator: get(ActionFollowCreator),
		Dwell:         get(ActionDwell),
		ProfileClick:  get(ActionProfileClick),
		NotInterested: get(ActionNotInterested),
		MuteCreator:   get(ActionMuteCreator),
		Report:        get(ActionReport),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
