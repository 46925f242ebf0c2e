package query

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/names"
)

const defaultReason = "Default classification (no clear type detected)"

// Classifier assigns a query type, weights and diversity policy to a query.
type Classifier struct {
	resolver *names.Resolver
	profiles ProfileSet
	logger   *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier) error

// WithProfiles replaces the default profile set.
func WithProfiles(profiles ProfileSet) ClassifierOption {
	return func(c *Classifier) error {
		if err := profiles.Validate(); err != nil {
			return err
		}
		c.profiles = profiles
		return nil
	}
}

// WithClassifierLogger sets the logger.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClassifier creates a classifier using resolver to detect named users.
func NewClassifier(resolver *names.Resolver, opts ...ClassifierOption) (*Classifier, error) {
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	c := &Classifier{
		resolver: resolver,
		profiles: DefaultProfiles(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Profiles returns the profile set in use.
func (c *Classifier) Profiles() ProfileSet {
	return c.profiles
}

// Classify evaluates, in priority order: aggregation, a named user with a
// specific attribute, a named user alone, conceptual vocabulary. Anything
// else is ENTITY_SPECIFIC_BROAD.
func (c *Classifier) Classify(text string) core.QueryPlan {
	qt, reason := c.classify(text)
	profile := c.profiles[qt]
	plan := core.QueryPlan{
		Query:     text,
		Type:      qt,
		Weights:   profile.Weights,
		Reason:    reason,
		Diversity: profile.Diversity,
	}
	c.logger.Debug("classified query", "query", text, "type", qt, "reason", reason)
	return plan
}

func (c *Classifier) classify(text string) (core.QueryType, string) {
	n := normalize(text)

	if marker, ok := aggregationMarker(n); ok {
		return core.Aggregation, fmt.Sprintf("Cross-entity aggregation query detected (%q)", marker)
	}

	if users := c.resolver.FindAll(text); len(users) > 0 {
		name := users[0].DisplayName
		if attr, ok := n.match(specificAttributes); ok {
			return core.EntitySpecificPrecise, fmt.Sprintf("Entity %q with specific attribute %q detected", name, attr)
		}
		return core.EntitySpecificBroad, fmt.Sprintf("Entity %q with broad/vague attribute", name)
	}

	if keyword, ok := n.match(conceptualKeywords); ok {
		return core.Conceptual, fmt.Sprintf("Conceptual query without specific entity (%q)", keyword)
	}

	return core.EntitySpecificBroad, defaultReason
}
