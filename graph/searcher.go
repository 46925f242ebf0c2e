package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/names"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/textutil"
)

const minTokenLen = 3

// Analysis is what the searcher extracted from a query.
type Analysis struct {
	// Users resolved from the query, in order of first appearance.
	Users []core.UserIdentity
	// Keywords are the non-name tokens plus their singular variants.
	Keywords []string
	// Relationship is the detected intent, if any.
	Relationship *core.RelationshipType
}

// Searcher finds messages through user relationships.
type Searcher struct {
	graph    storage.GraphRepository
	messages storage.MessageRepository
	resolver *names.Resolver
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a graph Searcher.
func NewSearcher(graph storage.GraphRepository, messages storage.MessageRepository, resolver *names.Resolver, opts ...Option) (*Searcher, error) {
	if graph == nil {
		return nil, ErrGraphRepositoryRequired
	}
	if messages == nil {
		return nil, ErrMessageRepositoryRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	s := &Searcher{
		graph:    graph,
		messages: messages,
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Analyze extracts users, keywords and relationship intent from query.
func (s *Searcher) Analyze(query string) Analysis {
	var analysis Analysis
	seenUsers := make(map[core.UserID]bool)
	seenKeywords := make(map[string]bool)

	for _, token := range textutil.Words(textutil.Fold(textutil.NormalizeQuery(query))) {
		if stopWords[token] || utf8.RuneCountInString(token) < minTokenLen {
			continue
		}
		if identity, ok := s.resolver.Match(token); ok {
			if !seenUsers[identity.ID] {
				seenUsers[identity.ID] = true
				analysis.Users = append(analysis.Users, identity)
			}
			continue
		}
		for _, variant := range textutil.SingularVariants(token) {
			if !seenKeywords[variant] {
				seenKeywords[variant] = true
				analysis.Keywords = append(analysis.Keywords, variant)
			}
		}
	}

	for _, keyword := range analysis.Keywords {
		if rel, ok := RelationshipFor(keyword); ok {
			analysis.Relationship = &rel
			break
		}
	}
	return analysis
}

// Search returns up to topK messages in discovery order without duplicates.
// A query that names no known user and matches no indexed entity yields an
// empty result, not an error.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]*core.Message, error) {
	if topK <= 0 {
		return nil, nil
	}

	analysis := s.Analyze(query)
	c := &collector{topK: topK, seen: make(map[core.MessageID]bool)}

	for _, user := range analysis.Users {
		if c.full() {
			break
		}
		if err := s.collectUser(ctx, c, user.ID, analysis); err != nil {
			return nil, err
		}
	}

	if !c.full() && len(analysis.Keywords) > 0 {
		if err := s.collectEntities(ctx, c, analysis); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("graph search",
		"users", len(analysis.Users),
		"keywords", len(analysis.Keywords),
		"relationship", relationshipName(analysis.Relationship),
		"results", len(c.out))
	return c.out, nil
}

// collectUser walks one user's relationships. Typed matches are admitted
// unconditionally; untyped ones need a keyword in the message text.
func (s *Searcher) collectUser(ctx context.Context, c *collector, userID core.UserID, analysis Analysis) error {
	triples, err := s.graph.GetRelationships(ctx, userID, analysis.Relationship)
	if err != nil {
		return fmt.Errorf("failed to get relationships for %s: %w", userID, err)
	}
	msgs, err := s.sourceMessages(ctx, triples)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		if c.full() {
			break
		}
		if analysis.Relationship != nil || containsKeyword(msg.Text, analysis.Keywords) {
			c.add(msg)
		}
	}
	return nil
}

// collectEntities looks keywords up in the entity index. When the query named
// users, only their relationships are considered.
func (s *Searcher) collectEntities(ctx context.Context, c *collector, analysis Analysis) error {
	allowed := make(map[core.UserID]bool, len(analysis.Users))
	for _, u := range analysis.Users {
		allowed[u.ID] = true
	}

	for _, keyword := range analysis.Keywords {
		if c.full() {
			return nil
		}
		users, err := s.graph.EntityIndexLookup(ctx, keyword)
		if err != nil {
			return fmt.Errorf("failed entity lookup for %q: %w", keyword, err)
		}
		for _, userID := range users {
			if c.full() {
				return nil
			}
			if len(allowed) > 0 && !allowed[userID] {
				continue
			}
			triples, err := s.graph.GetRelationships(ctx, userID, nil)
			if err != nil {
				return fmt.Errorf("failed to get relationships for %s: %w", userID, err)
			}
			msgs, err := s.sourceMessages(ctx, triples)
			if err != nil {
				return err
			}
			for _, msg := range msgs {
				if c.full() {
					return nil
				}
				if containsKeyword(msg.Text, []string{keyword}) {
					c.add(msg)
				}
			}
		}
	}
	return nil
}

// sourceMessages loads the distinct messages behind triples, in triple order.
func (s *Searcher) sourceMessages(ctx context.Context, triples []*core.RelationshipTriple) ([]*core.Message, error) {
	if len(triples) == 0 {
		return nil, nil
	}
	ids := make([]core.MessageID, 0, len(triples))
	seen := make(map[core.MessageID]bool, len(triples))
	for _, t := range triples {
		if !seen[t.MessageID] {
			seen[t.MessageID] = true
			ids = append(ids, t.MessageID)
		}
	}
	msgs, err := s.messages.GetMessages(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load source messages: %w", err)
	}
	if len(msgs) < len(ids) {
		s.logger.Warn("relationships reference missing messages", "missing", len(ids)-len(msgs))
	}
	return msgs, nil
}

type collector struct {
	topK int
	out  []*core.Message
	seen map[core.MessageID]bool
}

func (c *collector) full() bool {
	return len(c.out) >= c.topK
}

func (c *collector) add(msg *core.Message) {
	if msg == nil || c.seen[msg.ID] {
		return
	}
	c.seen[msg.ID] = true
	c.out = append(c.out, msg)
}

func containsKeyword(text string, keywords []string) bool {
	folded := textutil.Fold(text)
	for _, k := range keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}

func relationshipName(rel *core.RelationshipType) string {
	if rel == nil {
		return "none"
	}
	return rel.String()
}
