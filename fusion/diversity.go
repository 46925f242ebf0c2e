package fusion

import (
	"slices"

	"github.com/poiesic/recall/core"
)

// Diversify selects up to topK results with at most maxPerUser per user.
//
// Users are visited in order of their best position and each round takes one
// result per user, for at most maxPerUser rounds. The selection is returned in
// original order, so the output is always a subsequence of the input.
// Only Message.UserID and position are consulted. A maxPerUser of zero or
// less disables the cap; a topK of zero or less keeps every selected result.
func Diversify(results []core.RankedResult, maxPerUser, topK int) []core.RankedResult {
	if topK <= 0 || topK > len(results) {
		topK = len(results)
	}
	if maxPerUser <= 0 {
		return Truncate(results, topK)
	}

	groups := make(map[core.UserID][]int)
	var users []core.UserID
	for pos, r := range results {
		user := userOf(r)
		if _, ok := groups[user]; !ok {
			users = append(users, user)
		}
		groups[user] = append(groups[user], pos)
	}

	selected := make([]int, 0, topK)
	for round := 0; round < maxPerUser && len(selected) < topK; round++ {
		progressed := false
		for _, user := range users {
			positions := groups[user]
			if round >= len(positions) {
				continue
			}
			selected = append(selected, positions[round])
			progressed = true
			if len(selected) == topK {
				break
			}
		}
		if !progressed {
			break
		}
	}

	slices.Sort(selected)
	out := make([]core.RankedResult, len(selected))
	for i, pos := range selected {
		out[i] = results[pos]
	}
	return out
}

func userOf(r core.RankedResult) core.UserID {
	if r.Message == nil {
		return ""
	}
	return r.Message.UserID
}
