package fusion

import (
	"slices"

	"github.com/poiesic/recall/core"
)

// DefaultK is the RRF smoothing constant.
const DefaultK = 60.0

// Fuse combines the three ranked lists with weighted RRF and returns one
// result per distinct message ID sorted by fused score, highest first.
//
// Ties keep first-seen order across semantic, then lexical, then graph.
// The payload of each result comes from the first list that supplied its ID.
// A repeated ID within one list only contributes at its first position.
// A k of zero or less uses DefaultK.
func Fuse(semantic, lexical, graph []*core.Message, k float64, weights core.Weights) []core.RankedResult {
	if k <= 0 {
		k = DefaultK
	}

	var results []core.RankedResult
	index := make(map[core.MessageID]int)

	accumulate := func(list []*core.Message, weight float64, record func(*core.SourceRanks, int)) {
		seen := make(map[core.MessageID]bool, len(list))
		for i, msg := range list {
			if msg == nil || seen[msg.ID] {
				continue
			}
			seen[msg.ID] = true

			rank := i + 1
			pos, ok := index[msg.ID]
			if !ok {
				pos = len(results)
				index[msg.ID] = pos
				results = append(results, core.RankedResult{Message: msg})
			}
			results[pos].Score += weight / (k + float64(rank))
			record(&results[pos].Sources, rank)
		}
	}

	accumulate(semantic, weights.Semantic, func(s *core.SourceRanks, r int) { s.Semantic = r })
	accumulate(lexical, weights.Lexical, func(s *core.SourceRanks, r int) { s.Lexical = r })
	accumulate(graph, weights.Graph, func(s *core.SourceRanks, r int) { s.Graph = r })

	slices.SortStableFunc(results, func(a, b core.RankedResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return results
}

// Messages strips scores from a single-signal result list, keeping order.
func Messages(scored []core.ScoredMessage) []*core.Message {
	if len(scored) == 0 {
		return nil
	}
	out := make([]*core.Message, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Message)
	}
	return out
}

// Truncate returns at most topK results. A topK of zero or less keeps all.
func Truncate(results []core.RankedResult, topK int) []core.RankedResult {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
