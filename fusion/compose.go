package fusion

import "github.com/poiesic/recall/core"

// Compose merges the rankings of several sub-queries into one list of at most
// topK results. A single ranking passes through. Several rankings are
// interleaved one result per ranking per round, so every sub-query is
// represented near the top. A message already taken is skipped.
func Compose(rankings [][]core.RankedResult, topK int) []core.RankedResult {
	var out []core.RankedResult
	seen := make(map[core.MessageID]bool)
	full := func() bool { return topK > 0 && len(out) >= topK }

	take := func(r core.RankedResult) {
		if r.Message == nil || seen[r.Message.ID] {
			return
		}
		seen[r.Message.ID] = true
		out = append(out, r)
	}

	if len(rankings) == 1 {
		for _, r := range rankings[0] {
			if full() {
				break
			}
			take(r)
		}
		return out
	}

	for round := 0; !full(); round++ {
		remaining := false
		for _, ranking := range rankings {
			if round >= len(ranking) {
				continue
			}
			remaining = true
			take(ranking[round])
			if full() {
				break
			}
		}
		if !remaining {
			break
		}
	}
	return out
}
