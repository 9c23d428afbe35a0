package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mailmind/mailmind-go-sdk/core"
	"github.com/mailmind/mailmind-go-sdk/llm"
	"github.com/mailmind/mailmind-go-sdk/tokens"
)

// Enforcer applies the token budget to a merged memory set. It never
// drops the fixed sections (rules, user profile); the memory region is
// reduced by one summarization pass over the oldest hot content, then by
// monotonic truncation from the tail, so enforcement always terminates.
type Enforcer struct {
	counter    tokens.Counter
	summarizer Summarizer
	backoff    time.Duration
	logger     *zap.Logger
}

// NewEnforcer creates an Enforcer. summarizer may be nil, in which case
// the summarization pass is skipped and only truncation applies.
func NewEnforcer(counter tokens.Counter, summarizer Summarizer, logger *zap.Logger) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{
		counter:    counter,
		summarizer: summarizer,
		backoff:    500 * time.Millisecond,
		logger:     logger,
	}
}

// Enforce trims items until the memory region fits budget.MaxMemory and
// the grand total (fixed sections + memory region) fits budget.MaxPrompt.
// fixedTokens is the cost of the sections that are never dropped; if they
// alone exceed the prompt ceiling, that is a configuration error and
// Enforce aborts with core.ErrBudgetUnsatisfiable.
func (e *Enforcer) Enforce(ctx context.Context, items []*Item, fixedTokens int, budget *tokens.Budget) ([]*Item, error) {
	if !budget.FitsPrompt(fixedTokens) {
		return nil, fmt.Errorf("fixed sections cost %d tokens against a %d ceiling: %w",
			fixedTokens, budget.MaxPrompt, core.ErrBudgetUnsatisfiable)
	}

	total := e.regionTotal(items)

	// One summarization pass over the oldest hot content, then recount.
	if !budget.FitsMemory(total) {
		if folded, ok := e.summarizeOldest(ctx, items); ok {
			items = folded
			before := total
			total = e.regionTotal(items)
			e.logger.Info("memory summarized",
				zap.Int("tokens_before", before),
				zap.Int("tokens_after", total),
			)
		}
	}

	// Truncate from the tail: lowest-similarity warm matches go first,
	// then older hot pairs.
	for len(items) > 0 && !budget.FitsMemory(total) {
		total -= items[len(items)-1].Tokens(e.counter)
		items = items[:len(items)-1]
	}

	// Final check against the full-prompt ceiling.
	for len(items) > 0 && !budget.FitsPrompt(fixedTokens+total) {
		total -= items[len(items)-1].Tokens(e.counter)
		items = items[:len(items)-1]
	}

	budget.Reset()
	budget.Spend(fixedTokens + total)
	return items, nil
}

// regionTotal sums the token cost of the memory region.
func (e *Enforcer) regionTotal(items []*Item) int {
	total := 0
	for _, it := range items {
		total += it.Tokens(e.counter)
	}
	return total
}

// summarizeOldest folds the existing summary item (if any) plus every hot
// exchange except the most recent into a single new summary item. A
// summarizer failure degrades: the items are returned untouched and
// truncation handles the overrun.
func (e *Enforcer) summarizeOldest(ctx context.Context, items []*Item) ([]*Item, bool) {
	if e.summarizer == nil {
		return items, false
	}

	var (
		victims []*Item
		kept    []*Item
		hotSeen int
	)
	// Walk in order: summary and all-but-the-newest hot exchanges are
	// candidates for folding; everything else survives as-is.
	for _, it := range items {
		switch {
		case it.Kind == KindSummary:
			victims = append(victims, it)
		case it.Tier == TierHot && it.Kind == KindExchange:
			hotSeen++
			if hotSeen == 1 {
				kept = append(kept, it) // most recent exchange stays verbatim
			} else {
				victims = append(victims, it)
			}
		default:
			kept = append(kept, it)
		}
	}
	if len(victims) == 0 {
		return items, false
	}

	parts := make([]string, 0, len(victims))
	for _, it := range victims {
		parts = append(parts, it.Text)
	}

	var summary string
	err := llm.RetryOnce(ctx, e.backoff, func(ctx context.Context) error {
		var serr error
		summary, serr = e.summarizer.Summarize(ctx, strings.Join(parts, "\n\n"))
		return serr
	})
	if err != nil {
		e.logger.Warn("summarization failed, falling back to truncation", zap.Error(err))
		return items, false
	}

	folded := &Item{
		Key:  "summary|" + victims[0].Key,
		Tier: TierHot,
		Kind: KindSummary,
		Text: summary,
	}
	return append([]*Item{folded}, kept...), true
}
