package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/textutil"
)

// BM25 parameters.
const (
	K1 = 1.2
	B  = 0.75
)

// Stop words carry no signal for keyword matching
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "what": true, "who": true, "which": true,
	"does": true, "did": true, "has": true, "my": true, "i": true,
}

// Index is a BM25 inverted index over message text.
type Index struct {
	mu sync.RWMutex

	postings    map[string]*roaring.Bitmap
	tf          map[string]map[uint32]int
	docLengths  map[uint32]int
	docTokens   map[uint32][]string
	docs        map[uint32]*core.Message
	docIDs      map[core.MessageID]uint32
	users       map[core.UserID]*roaring.Bitmap
	nextDoc     uint32
	totalTokens int
	avgDocLen   float64

	logger *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
	}
}

// NewIndex creates an empty index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{
		postings:   make(map[string]*roaring.Bitmap),
		tf:         make(map[string]map[uint32]int),
		docLengths: make(map[uint32]int),
		docTokens:  make(map[uint32][]string),
		docs:       make(map[uint32]*core.Message),
		docIDs:     make(map[core.MessageID]uint32),
		users:      make(map[core.UserID]*roaring.Bitmap),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build creates an index holding every message in repo.
func Build(ctx context.Context, repo storage.MessageRepository, opts ...Option) (*Index, error) {
	ix := NewIndex(opts...)
	err := repo.ForEachMessage(ctx, func(msg *core.Message) error {
		ix.Add(msg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build lexical index: %w", err)
	}
	ix.logger.Debug("lexical index built", "documents", ix.Len(), "terms", ix.Terms())
	return ix, nil
}

// Add indexes messages. A message whose ID is already indexed is replaced.
func (ix *Index) Add(msgs ...*core.Message) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if old, ok := ix.docIDs[msg.ID]; ok {
			ix.removeInternal(old)
		}

		docID := ix.nextDoc
		ix.nextDoc++

		tokens := analyze(msg.Text)
		ix.docs[docID] = msg
		ix.docIDs[msg.ID] = docID
		ix.docTokens[docID] = tokens
		ix.docLengths[docID] = len(tokens)
		ix.totalTokens += len(tokens)

		if ix.users[msg.UserID] == nil {
			ix.users[msg.UserID] = roaring.New()
		}
		ix.users[msg.UserID].Add(docID)

		for _, t := range tokens {
			if ix.postings[t] == nil {
				ix.postings[t] = roaring.New()
			}
			ix.postings[t].Add(docID)
			if ix.tf[t] == nil {
				ix.tf[t] = make(map[uint32]int)
			}
			ix.tf[t][docID]++
		}
	}
	ix.updateAvgDocLen()
}

// Remove drops a message from the index. Unknown IDs are ignored.
func (ix *Index) Remove(id core.MessageID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if docID, ok := ix.docIDs[id]; ok {
		ix.removeInternal(docID)
		ix.updateAvgDocLen()
	}
}

// Len returns the number of indexed messages.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Terms returns the number of distinct indexed terms.
func (ix *Index) Terms() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings)
}

// Search returns up to topK messages ranked by BM25 score, highest first.
// Ties are broken by indexing order. A non-nil userFilter restricts results
// to that user's messages.
func (ix *Index) Search(ctx context.Context, query string, topK int, userFilter *core.UserID) ([]core.ScoredMessage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", ErrInvalidQuery)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qtokens := uniqueTokens(analyze(query))
	if len(qtokens) == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := float64(len(ix.docs))
	if n == 0 {
		return nil, nil
	}

	var allowed *roaring.Bitmap
	if userFilter != nil {
		allowed = ix.users[*userFilter]
		if allowed == nil {
			return nil, nil
		}
	}

	scores := make(map[uint32]float64)
	for _, t := range qtokens {
		posting := ix.postings[t]
		if posting == nil {
			continue
		}
		df := float64(posting.GetCardinality())
		idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)

		candidates := posting
		if allowed != nil {
			candidates = roaring.And(posting, allowed)
		}
		for iter := candidates.Iterator(); iter.HasNext(); {
			docID := iter.Next()
			tfVal := float64(ix.tf[t][docID])
			docLen := float64(ix.docLengths[docID])
			scores[docID] += idf * (tfVal * (K1 + 1)) / (tfVal + K1*(1-B+B*(docLen/ix.avgDocLen)))
		}
	}

	type hit struct {
		docID uint32
		score float64
	}
	hits := make([]hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, hit{docID: docID, score: score})
	}
	slices.SortFunc(hits, func(a, b hit) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		case a.docID < b.docID:
			return -1
		case a.docID > b.docID:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]core.ScoredMessage, len(hits))
	for i, h := range hits {
		results[i] = core.ScoredMessage{Message: ix.docs[h.docID], Score: h.score}
	}
	return results, nil
}

func (ix *Index) removeInternal(docID uint32) {
	for _, t := range ix.docTokens[docID] {
		if bitmap := ix.postings[t]; bitmap != nil {
			bitmap.Remove(docID)
			if bitmap.IsEmpty() {
				delete(ix.postings, t)
			}
		}
		if tfMap := ix.tf[t]; tfMap != nil {
			delete(tfMap, docID)
			if len(tfMap) == 0 {
				delete(ix.tf, t)
			}
		}
	}

	msg := ix.docs[docID]
	if bitmap := ix.users[msg.UserID]; bitmap != nil {
		bitmap.Remove(docID)
		if bitmap.IsEmpty() {
			delete(ix.users, msg.UserID)
		}
	}

	ix.totalTokens -= ix.docLengths[docID]
	delete(ix.docIDs, msg.ID)
	delete(ix.docs, docID)
	delete(ix.docTokens, docID)
	delete(ix.docLengths, docID)
}

func (ix *Index) updateAvgDocLen() {
	if len(ix.docs) == 0 {
		ix.avgDocLen = 0
		ix.totalTokens = 0
		return
	}
	ix.avgDocLen = float64(ix.totalTokens) / float64(len(ix.docs))
}

// analyze folds and segments text, dropping stop words.
func analyze(text string) []string {
	words := textutil.Words(textutil.Fold(text))
	tokens := words[:0]
	for _, w := range words {
		w = textutil.StripPossessive(w)
		if !stopWords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
