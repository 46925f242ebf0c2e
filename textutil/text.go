package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var possessiveSuffix = regexp.MustCompile(`(?i)['’]s\b`)

// Fold lower-cases s and strips combining marks after compatibility
// decomposition, so "Müller" and "Muller" fold to the same string.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// StripPossessive removes a trailing possessive marker from a single token:
// "Hans's", "Hans’s" and "Hans'" all become "Hans".
func StripPossessive(token string) string {
	for _, suffix := range []string{"'s", "’s", "'S", "’S"} {
		if trimmed, ok := strings.CutSuffix(token, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	for _, suffix := range []string{"'", "’"} {
		if trimmed, ok := strings.CutSuffix(token, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return token
}

// TrimPunct strips leading and trailing punctuation and symbols.
func TrimPunct(token string) string {
	return strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// CleanToken trims punctuation and possessive markers from a single token.
func CleanToken(token string) string {
	return TrimPunct(StripPossessive(TrimPunct(token)))
}

// NormalizeQuery lower-cases text, removes possessive markers and replaces
// punctuation with spaces.
func NormalizeQuery(text string) string {
	lowered := strings.ToLower(norm.NFKC.String(text))
	lowered = possessiveSuffix.ReplaceAllString(lowered, "")
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, lowered)
}

// Words segments text into words per UAX #29, dropping whitespace and
// punctuation-only segments.
func Words(text string) []string {
	seg := words.FromString(text)
	var out []string
	for seg.Next() {
		w := seg.Value()
		if isWord(w) {
			out = append(out, w)
		}
	}
	return out
}

// Fields splits text on whitespace and cleans each token, keeping original case.
func Fields(text string) []string {
	raw := strings.Fields(text)
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if cleaned := CleanToken(f); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// SingularVariants returns word followed by its singular forms, deduplicated:
// "ies" becomes "y", "es" is dropped unless the word ends in "sses", and a
// trailing "s" is dropped unless the word ends in "ss".
func SingularVariants(word string) []string {
	out := []string{word}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, existing := range out {
			if existing == v {
				return
			}
		}
		out = append(out, v)
	}

	if base, ok := strings.CutSuffix(word, "ies"); ok {
		add(base + "y")
	}
	if strings.HasSuffix(word, "es") && !strings.HasSuffix(word, "sses") {
		add(word[:len(word)-2])
	}
	if strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") {
		add(word[:len(word)-1])
	}
	return out
}

// ContainsAny reports whether text contains any of the given substrings.
func ContainsAny(text string, substrings ...string) bool {
	for _, s := range substrings {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func isWord(segment string) bool {
	for _, r := range segment {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
