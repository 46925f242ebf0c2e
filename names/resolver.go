package names

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/textutil"
	"github.com/xrash/smetrics"
)

const (
	// DefaultFuzzyThreshold is the minimum similarity accepted for a fuzzy match.
	DefaultFuzzyThreshold = 0.85

	minFuzzyRunes = 4
	maxPhraseLen  = 3
)

// Resolver maps name tokens to user identities.
type Resolver struct {
	mu         sync.RWMutex
	identities []core.UserIdentity
	byFullName map[string]int
	byID       map[core.UserID]int
	byPart     map[string][]int
	keys       [][]string // per identity: folded full name followed by its parts
	threshold  float64
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithFuzzyThreshold sets the threshold used by Match and FindAll.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Resolver) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
		}
		r.threshold = threshold
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewResolver creates an empty Resolver.
func NewResolver(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		byFullName: make(map[string]int),
		byID:       make(map[core.UserID]int),
		byPart:     make(map[string][]int),
		threshold:  DefaultFuzzyThreshold,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Threshold returns the configured fuzzy threshold.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Add indexes an identity. An empty ID is derived from the display name.
// Adding a display name that is already indexed returns the existing identity.
func (r *Resolver) Add(identity core.UserIdentity) core.UserIdentity {
	full := nameKey(identity.DisplayName)
	if identity.ID == "" {
		identity.ID = core.UserID(fmt.Sprintf("%016x", uint64(core.IDFromContent(full))))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byFullName[full]; ok {
		return r.identities[idx]
	}
	if idx, ok := r.byID[identity.ID]; ok {
		return r.identities[idx]
	}

	idx := len(r.identities)
	r.identities = append(r.identities, identity)
	r.byFullName[full] = idx
	r.byID[identity.ID] = idx

	keys := []string{full}
	for _, part := range nameParts(identity.DisplayName) {
		if !containsIndex(r.byPart[part], idx) {
			r.byPart[part] = append(r.byPart[part], idx)
		}
		keys = append(keys, part)
	}
	r.keys = append(r.keys, keys)

	r.logger.Debug("indexed identity", "id", identity.ID, "name", identity.DisplayName)
	return identity
}

// Match resolves token with the configured threshold.
func (r *Resolver) Match(token string) (core.UserIdentity, bool) {
	return r.Resolve(token, r.threshold)
}

// Resolve returns the unique identity token refers to. Ambiguous and unknown
// tokens both return false.
func (r *Resolver) Resolve(token string, threshold float64) (core.UserIdentity, bool) {
	key := nameKey(cleanPhrase(token))
	if key == "" {
		return core.UserIdentity{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	multiWord := strings.Contains(key, " ")
	var matches []int
	if idx, ok := r.byFullName[key]; ok {
		matches = append(matches, idx)
	}
	if !multiWord {
		for _, idx := range r.byPart[key] {
			if !containsIndex(matches, idx) {
				matches = append(matches, idx)
			}
		}
	}
	switch len(matches) {
	case 0:
	case 1:
		return r.identities[matches[0]], true
	default:
		r.logger.Debug("ambiguous name", "token", token, "candidates", len(matches))
		return core.UserIdentity{}, false
	}

	return r.fuzzy(key, threshold, multiWord)
}

// GetID returns the id of the identity with the exact display name.
func (r *Resolver) GetID(displayName string) (core.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byFullName[nameKey(displayName)]
	if !ok {
		return "", false
	}
	return r.identities[idx].ID, true
}

// Identity returns the identity with the given id.
func (r *Resolver) Identity(id core.UserID) (core.UserIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return core.UserIdentity{}, false
	}
	return r.identities[idx], true
}

// ListAll returns every indexed display name in insertion order.
func (r *Resolver) ListAll() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.identities))
	for i, id := range r.identities {
		out[i] = id.DisplayName
	}
	return out
}

// Len returns the number of indexed identities.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}

// FindAll scans text for names, preferring three-word phrases over two- and
// one-word phrases at each position, and skips past each match. Identities
// are returned in order of first appearance without duplicates.
func (r *Resolver) FindAll(text string) []core.UserIdentity {
	words := textutil.Fields(text)
	var found []core.UserIdentity
	seen := make(map[core.UserID]bool)

	for i := 0; i < len(words); {
		advanced := false
		for size := maxPhraseLen; size >= 1; size-- {
			if i+size > len(words) {
				continue
			}
			phrase := strings.Join(words[i:i+size], " ")
			identity, ok := r.Match(phrase)
			if !ok {
				continue
			}
			if !seen[identity.ID] {
				seen[identity.ID] = true
				found = append(found, identity)
			}
			i += size
			advanced = true
			break
		}
		if !advanced {
			i++
		}
	}
	return found
}

// fuzzy must be called with r.mu held for reading. Multi-word keys are only
// compared against full names.
func (r *Resolver) fuzzy(key string, threshold float64, multiWord bool) (core.UserIdentity, bool) {
	if threshold <= 0 {
		threshold = r.threshold
	}
	if len([]rune(key)) < minFuzzyRunes {
		return core.UserIdentity{}, false
	}

	match := -1
	for idx, keys := range r.keys {
		candidates := keys[1:]
		if multiWord {
			candidates = keys[:1]
		}
		for _, candidate := range candidates {
			if similarity(key, candidate) < threshold {
				continue
			}
			if match >= 0 && match != idx {
				r.logger.Debug("ambiguous fuzzy name", "token", key)
				return core.UserIdentity{}, false
			}
			match = idx
			break
		}
	}
	if match < 0 {
		return core.UserIdentity{}, false
	}
	return r.identities[match], true
}

// similarity is the normalized indel similarity of a and b in [0, 1].
func similarity(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	distance := smetrics.WagnerFischer(a, b, 1, 1, 2)
	return 1 - float64(distance)/float64(total)
}

func nameKey(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return strings.Join(strings.Fields(textutil.Fold(s)), " ")
}

func cleanPhrase(s string) string {
	return strings.Join(textutil.Fields(s), " ")
}

// nameParts returns the folded words of a display name plus the pieces of
// hyphenated words and apostrophe-free spellings.
func nameParts(displayName string) []string {
	var parts []string
	add := func(p string) {
		if p == "" {
			return
		}
		for _, existing := range parts {
			if existing == p {
				return
			}
		}
		parts = append(parts, p)
	}

	for _, word := range strings.Fields(nameKey(displayName)) {
		word = textutil.TrimPunct(word)
		add(word)
		if strings.Contains(word, "-") {
			for _, piece := range strings.Split(word, "-") {
				add(piece)
			}
		}
		if strings.Contains(word, "'") {
			add(strings.ReplaceAll(word, "'", ""))
		}
	}
	return parts
}

func containsIndex(indices []int, idx int) bool {
	for _, i := range indices {
		if i == idx {
			return true
		}
	}
	return false
}
