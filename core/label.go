package core

// Label 用于解释与观测：记录候选在链路中经历了什么（召回源、打分方式、过滤原因）。
// Value 与 Source 的语义由各 Stage 自定义。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / hydrate / filter / rank / rerank
}

// 常用 Label key
const (
	LabelRecallSource = "recall_source"
	LabelScoreSource  = "score_source"
	LabelFiltered     = "filtered"
	LabelGated        = "gated"
)

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积，相同值不重复追加。
func MergeLabel(existing, incoming Label) Label {
	switch {
	case existing.Value == "":
		return incoming
	case incoming.Value == "", incoming.Value == existing.Value:
		return existing
	}
	merged := Label{Value: existing.Value + "|" + incoming.Value, Source: existing.Source}
	if incoming.Source != "" && incoming.Source != existing.Source {
		if merged.Source == "" {
			merged.Source = incoming.Source
		} else {
			merged.Source += "," + incoming.Source
		}
	}
	return merged
}
