package query

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/metrics"
	"github.com/poiesic/recall/names"
	"github.com/poiesic/recall/textutil"
	"github.com/sony/gobreaker"
)

const (
	// DefaultDecomposeTimeout bounds one LLM decomposition call.
	DefaultDecomposeTimeout = 10 * time.Second

	fallbackAttribute = "information about"

	// breaker trips after this many consecutive LLM failures
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
)

var (
	compareAttribute = regexp.MustCompile(`compare\s+(?:the\s+)?(.+?)\s+of\b`)
	theAttribute     = regexp.MustCompile(`\bthe\s+(.+?)\s+of\b`)
)

// Decomposer splits a query into independently answerable sub-queries.
// A query that needs no splitting comes back as a single element.
type Decomposer interface {
	Decompose(ctx context.Context, text string) ([]string, error)
}

// RuleDecomposer splits comparison queries that name two or more users.
// It never returns an error.
type RuleDecomposer struct {
	resolver *names.Resolver
}

// NewRuleDecomposer creates a rule-based decomposer.
func NewRuleDecomposer(resolver *names.Resolver) (*RuleDecomposer, error) {
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	return &RuleDecomposer{resolver: resolver}, nil
}

// Decompose emits one "What are <user>'s <attribute>?" per named user when
// text uses comparison language and names at least two distinct users.
func (r *RuleDecomposer) Decompose(ctx context.Context, text string) ([]string, error) {
	if _, ok := normalize(text).match(comparisonKeywords); !ok {
		return []string{text}, nil
	}

	users := r.resolver.FindAll(text)
	if len(users) < 2 {
		return []string{text}, nil
	}

	attribute := extractAttribute(text)
	subQueries := make([]string, 0, len(users))
	for _, u := range users {
		subQueries = append(subQueries, fmt.Sprintf("What are %s's %s?", u.DisplayName, attribute))
	}
	return subQueries, nil
}

// extractAttribute finds the compared attribute in "compare [the] X of" or
// "the X of", falling back to a generic phrase.
func extractAttribute(text string) string {
	lower := strings.ToLower(text)
	for _, re := range []*regexp.Regexp{compareAttribute, theAttribute} {
		if m := re.FindStringSubmatch(lower); m != nil {
			attr := m[1]
			// nearest "the" before "of"
			if i := strings.LastIndex(attr, " the "); i >= 0 {
				attr = attr[i+len(" the "):]
			}
			if attr = strings.TrimSpace(textutil.TrimPunct(attr)); attr != "" {
				return attr
			}
		}
	}
	return fallbackAttribute
}

// LLMDecomposer delegates decomposition to a language model, bounded by a
// timeout and guarded by a circuit breaker.
type LLMDecomposer struct {
	llm      ai.QueryDecomposer
	resolver *names.Resolver
	timeout  time.Duration
	settings gobreaker.Settings
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// LLMOption configures an LLMDecomposer.
type LLMOption func(*LLMDecomposer) error

// WithTimeout sets the per-call timeout. Default is DefaultDecomposeTimeout.
func WithTimeout(d time.Duration) LLMOption {
	return func(l *LLMDecomposer) error {
		if d <= 0 {
			return ErrInvalidTimeout
		}
		l.timeout = d
		return nil
	}
}

// WithBreakerSettings replaces the circuit breaker settings. OnStateChange
// is always wired to the logger.
func WithBreakerSettings(settings gobreaker.Settings) LLMOption {
	return func(l *LLMDecomposer) error {
		l.settings = settings
		return nil
	}
}

// WithLLMLogger sets the logger.
func WithLLMLogger(logger *slog.Logger) LLMOption {
	return func(l *LLMDecomposer) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
		return nil
	}
}

// NewLLMDecomposer creates an LLM-backed decomposer. resolver supplies the
// known user names included in the prompt.
func NewLLMDecomposer(llm ai.QueryDecomposer, resolver *names.Resolver, opts ...LLMOption) (*LLMDecomposer, error) {
	if llm == nil {
		return nil, ErrDecomposerRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	l := &LLMDecomposer{
		llm:      llm,
		resolver: resolver,
		timeout:  DefaultDecomposeTimeout,
		settings: gobreaker.Settings{
			Name:        "llm-decomposer",
			MaxRequests: 1,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureThreshold
			},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	logger := l.logger
	l.settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("decomposition circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
	}
	l.breaker = gobreaker.NewCircuitBreaker(l.settings)
	return l, nil
}

// Decompose asks the model for sub-queries. Errors include timeouts, an
// open breaker and empty output.
func (l *LLMDecomposer) Decompose(ctx context.Context, text string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	result, err := l.breaker.Execute(func() (interface{}, error) {
		subQueries, err := l.llm.Decompose(ctx, text, l.resolver.ListAll())
		if err != nil {
			return nil, err
		}
		if len(subQueries) == 0 {
			return nil, ai.ErrMalformedDecomposition
		}
		return subQueries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Chain applies the aggregation guardrail, then the primary decomposer,
// then the fallback when the primary fails or returns nothing.
type Chain struct {
	primary  Decomposer
	fallback Decomposer
	logger   *slog.Logger
}

// NewChain creates a decomposition chain. primary may be nil, in which case
// the fallback decides alone.
func NewChain(primary, fallback Decomposer, logger *slog.Logger) (*Chain, error) {
	if fallback == nil {
		return nil, ErrDecomposerRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{primary: primary, fallback: fallback, logger: logger}, nil
}

// Decompose never returns an error; on total failure it returns text alone.
func (c *Chain) Decompose(ctx context.Context, text string) ([]string, error) {
	if IsAggregation(text) {
		metrics.DecompositionsTotal.WithLabelValues("guardrail").Inc()
		return []string{text}, nil
	}

	if c.primary != nil {
		subQueries, err := c.primary.Decompose(ctx, text)
		if err == nil && len(subQueries) > 0 {
			metrics.DecompositionsTotal.WithLabelValues("llm").Inc()
			return subQueries, nil
		}
		c.logger.Warn("primary decomposition failed, using rules", "query", text, "err", err)
	}

	metrics.DecompositionsTotal.WithLabelValues("rule").Inc()
	subQueries, err := c.fallback.Decompose(ctx, text)
	if err != nil || len(subQueries) == 0 {
		c.logger.Warn("rule decomposition failed", "query", text, "err", err)
		return []string{text}, nil
	}
	return subQueries, nil
}
