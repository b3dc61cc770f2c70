package rerank

import "github.com/rushteam/solfeed/core"

// capPerCreator 从已排序的候选中选出最多 limit 个，每个创作者最多 maxPer 个。
// backfill 时用被跳过的候选补齐，补齐后重新排序以保持整体顺序。
func capPerCreator(sorted []*core.FeedCandidate, limit, maxPer int, backfill bool) []*core.FeedCandidate {
	if limit <= 0 {
		return []*core.FeedCandidate{}
	}
	if maxPer <= 0 {
		if len(sorted) > limit {
			sorted = sorted[:limit]
		}
		return sorted
	}

	counts := make(map[string]int, 32)
	out := make([]*core.FeedCandidate, 0, limit)
	var skipped []*core.FeedCandidate

	for _, it := range sorted {
		if len(out) >= limit {
			break
		}
		if counts[it.CreatorWallet] >= maxPer {
			skipped = append(skipped, it)
			continue
		}
		counts[it.CreatorWallet]++
		out = append(out, it)
	}

	if !backfill || len(out) >= limit || len(skipped) == 0 {
		return out
	}
	for _, it := range skipped {
		if len(out) >= limit {
			break
		}
		out = append(out, it)
	}
	SortByScore(out)
	return out
}
