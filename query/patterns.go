package query

import (
	"strings"

	"github.com/poiesic/recall/textutil"
)

// aggregationPhrases mark queries about a set of users.
var aggregationPhrases = []string{
	"which members", "which clients", "which users", "which people",
	"what clients", "what members", "what users",
	"who has", "who have", "who had",
	"how many people", "how many members", "how many clients", "how many users",
	"list all", "all members who", "all clients who", "all users who",
	"who requested", "who booked", "who visited", "who complained",
	"clients who", "members who", "users who",
}

// guardrailPhrases widen aggregation detection for decomposition. A query
// matching either list is never split.
var guardrailPhrases = []string{
	"who reported", "who expressed", "who mentioned", "who needed", "who wanted",
	"all people who", "count of clients", "count of members",
	"have both", "with both", "both", "and also",
}

var specificAttributes = []string{
	"dining", "restaurant", "food", "meal", "cuisine",
	"service", "reservation", "booking", "rental",
	"travel", "trip", "flight", "hotel", "accommodation",
	"event", "ticket", "concert", "show",
}

var conceptualKeywords = []string{
	"ideas", "suggestions", "recommendations", "recommend",
	"relaxing", "luxury", "best", "top", "favorite",
	"getaway", "experience", "activities", "what to do",
	"where to go", "places to visit",
}

var comparisonKeywords = []string{
	"compare", "versus", "vs", "difference between",
	"conflict", "conflicting", "differ", "between",
}

// normalized is a query reduced to folded words for phrase matching.
type normalized struct {
	padded string
	tokens []string
}

func normalize(text string) normalized {
	words := textutil.Words(textutil.Fold(textutil.NormalizeQuery(text)))
	n := normalized{
		padded: " " + strings.Join(words, " ") + " ",
		tokens: make([]string, 0, len(words)),
	}
	for _, w := range words {
		n.tokens = append(n.tokens, textutil.SingularVariants(w)...)
	}
	return n
}

// match returns the first term present. A single word matches any query
// word it starts, so "compare" finds "compared" and "travel" finds
// "travelling". Multi-word phrases match on word boundaries.
func (n normalized) match(terms []string) (string, bool) {
	for _, term := range terms {
		if strings.Contains(term, " ") {
			if strings.Contains(n.padded, " "+term+" ") {
				return term, true
			}
			continue
		}
		for _, tok := range n.tokens {
			if strings.HasPrefix(tok, term) {
				return term, true
			}
		}
	}
	return "", false
}

// dualCondition reports a "both ... and ..." construction.
func (n normalized) dualCondition() bool {
	both := strings.Index(n.padded, " both ")
	return both >= 0 && strings.Contains(n.padded[both+len(" both"):], " and ")
}

// aggregationMarker returns the phrase that makes text an aggregation query.
func aggregationMarker(n normalized) (string, bool) {
	if phrase, ok := n.match(aggregationPhrases); ok {
		return phrase, true
	}
	if n.dualCondition() {
		return "both ... and", true
	}
	return "", false
}

// IsAggregation reports whether text asks about a set of users rather than
// a named one. Aggregation queries are never decomposed.
func IsAggregation(text string) bool {
	n := normalize(text)
	if _, ok := aggregationMarker(n); ok {
		return true
	}
	_, ok := n.match(guardrailPhrases)
	return ok
}
