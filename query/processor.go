package query

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/metrics"
)

// Processor produces one plan per (sub-)query.
type Processor struct {
	decomposer Decomposer
	classifier *Classifier
	logger     *slog.Logger
}

// NewProcessor creates a processor. logger may be nil.
func NewProcessor(decomposer Decomposer, classifier *Classifier, logger *slog.Logger) (*Processor, error) {
	if decomposer == nil {
		return nil, ErrDecomposerRequired
	}
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{decomposer: decomposer, classifier: classifier, logger: logger}, nil
}

// Plan decomposes text and classifies each sub-query. Blank sub-queries are
// dropped; at least one plan is always returned.
func (p *Processor) Plan(ctx context.Context, text string) []core.QueryPlan {
	subQueries, err := p.decomposer.Decompose(ctx, text)
	if err != nil {
		p.logger.Warn("decomposition failed, planning original query", "query", text, "err", err)
		subQueries = nil
	}

	plans := make([]core.QueryPlan, 0, len(subQueries))
	for _, sq := range subQueries {
		if strings.TrimSpace(sq) == "" {
			continue
		}
		plans = append(plans, p.classifier.Classify(sq))
	}
	if len(plans) == 0 {
		plans = append(plans, p.classifier.Classify(text))
	}

	for _, plan := range plans {
		metrics.QueryPlansTotal.WithLabelValues(plan.Type.String()).Inc()
	}
	p.logger.Debug("planned query", "query", text, "plans", len(plans))
	return plans
}
