// Package triage classifies incoming emails as ignore, notify or
// respond. The primary path is similarity against stored few-shot
// examples; the model is asked only when no example is close enough.
package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailmind/mailmind-go-sdk/core"
	"github.com/mailmind/mailmind-go-sdk/llm"
	"github.com/mailmind/mailmind-go-sdk/memory"
)

// collectionFor maps a category to its few-shot example collection.
func collectionFor(c core.Category) string {
	switch c {
	case core.CategoryIgnore:
		return memory.CollectionTriageIgnore
	case core.CategoryNotify:
		return memory.CollectionTriageNotify
	default:
		return memory.CollectionTriageRespond
	}
}

var categories = []core.Category{
	core.CategoryIgnore,
	core.CategoryNotify,
	core.CategoryRespond,
}

// RuleSource supplies the active rule set for fallback classification.
type RuleSource interface {
	Active(ctx context.Context) core.RuleSet
}

// Classifier decides the triage category for an email.
type Classifier struct {
	vectors   memory.VectorStore
	embedder  memory.Embedder
	service   llm.Service
	rules     RuleSource
	threshold float64
	backoff   time.Duration
	logger    *zap.Logger
}

// New creates a Classifier. threshold is the minimum similarity for a
// match to decide the category without a model call. logger may be nil.
func New(vectors memory.VectorStore, embedder memory.Embedder, service llm.Service, ruleSource RuleSource, threshold float64, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		vectors:   vectors,
		embedder:  embedder,
		service:   service,
		rules:     ruleSource,
		threshold: threshold,
		backoff:   500 * time.Millisecond,
		logger:    logger,
	}
}

// Classify triages one email. The similarity path embeds the email text
// once, probes each category's example collection for its single nearest
// example, and accepts the best category when its score clears the
// threshold. Ties at equal score resolve toward the more active category
// (respond over notify over ignore). Everything else falls back to the
// model, which gets one retry; if that also fails the email stays
// unclassified and the error wraps core.ErrServiceUnavailable.
func (c *Classifier) Classify(ctx context.Context, email core.Email) (core.ClassificationResult, error) {
	best, bestScore, probed, simErr := c.nearestCategory(ctx, email)
	if simErr == nil && probed && bestScore >= c.threshold {
		c.logger.Debug("classified by similarity",
			zap.String("category", string(best)),
			zap.Float64("score", bestScore),
		)
		return core.ClassificationResult{
			Category:   best,
			Confidence: bestScore,
			Source:     core.SourceSimilarity,
		}, nil
	}
	if simErr != nil {
		c.logger.Warn("similarity path unavailable, falling back to model", zap.Error(simErr))
	}

	return c.fallback(ctx, email, bestScore)
}

// nearestCategory returns the category whose single nearest stored
// example scores highest against the email, along with that score.
// probed is false when every collection is empty; the caller must not
// accept a similarity decision then, whatever the threshold.
func (c *Classifier) nearestCategory(ctx context.Context, email core.Email) (best core.Category, bestScore float64, probed bool, err error) {
	embedding, err := c.embedder.Embed(ctx, email.Text())
	if err != nil {
		return "", 0, false, fmt.Errorf("embed email: %w", err)
	}

	best = core.CategoryIgnore
	bestScore = -1.0
	for _, cat := range categories {
		docs, err := c.vectors.Nearest(ctx, collectionFor(cat), embedding, 1)
		if err != nil {
			return "", 0, false, fmt.Errorf("probe %s examples: %w", cat, err)
		}
		if len(docs) == 0 {
			continue
		}
		probed = true
		score := docs[0].Score
		if score > bestScore || (score == bestScore && cat.Priority() > best.Priority()) {
			best = cat
			bestScore = score
		}
	}
	if !probed {
		return "", 0, false, nil
	}
	return best, bestScore, true, nil
}

// fallback asks the model to classify under the active rules.
func (c *Classifier) fallback(ctx context.Context, email core.Email, simScore float64) (core.ClassificationResult, error) {
	ruleSet := c.rules.Active(ctx)

	var category core.Category
	err := llm.RetryOnce(ctx, c.backoff, func(ctx context.Context) error {
		var err error
		category, err = c.service.ClassifyEmail(ctx, email, ruleSet)
		return err
	})
	if err != nil {
		return core.ClassificationResult{}, fmt.Errorf("%w: fallback classification: %v", core.ErrServiceUnavailable, err)
	}

	c.logger.Debug("classified by model fallback",
		zap.String("category", string(category)),
		zap.Float64("similarity_score", simScore),
	)
	return core.ClassificationResult{
		Category:   category,
		Confidence: 0,
		Source:     core.SourceFallback,
	}, nil
}

// AddExample stores an email as a few-shot example for a category, so
// future similar emails classify without a model call.
func (c *Classifier) AddExample(ctx context.Context, category core.Category, email core.Email) error {
	if !category.Valid() {
		return fmt.Errorf("invalid category %q", category)
	}

	text := email.Text()
	embedding, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed example: %w", err)
	}

	doc := memory.Document{
		ID:        uuid.NewString(),
		Text:      text,
		Embedding: embedding,
		Metadata: map[string]string{
			"category": string(category),
			"sender":   email.Sender,
		},
	}
	if err := c.vectors.Add(ctx, collectionFor(category), doc); err != nil {
		return fmt.Errorf("store example: %w", err)
	}
	return nil
}
