// Package tokens estimates the model-input cost of text fragments and
// tracks a per-request budget.
package tokens

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/tiktoken-go/tokenizer"
)

// Counter estimates how many tokens a text fragment costs.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts with a real BPE vocabulary.
type Tiktoken struct {
	codec tokenizer.Codec
}

// NewTiktoken creates a counter on the cl100k_base vocabulary.
func NewTiktoken() (*Tiktoken, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Tiktoken{codec: codec}, nil
}

func (t *Tiktoken) Count(text string) int {
	n, err := t.codec.Count(text)
	if err != nil {
		// Encoding failures are rare (invalid UTF-8); fall back to
		// the character heuristic rather than under-counting.
		return heuristicCount(text)
	}
	return n
}

// Heuristic approximates one token per four characters. Good enough for
// triggering summarization thresholds, not for billing.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	return heuristicCount(text)
}

func heuristicCount(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}

// Cached decorates a Counter with a ristretto cache keyed by the text
// itself. Memory items are re-counted on every enforcement pass, so the
// cache pays for itself within a single request.
type Cached struct {
	inner Counter
	cache *ristretto.Cache
}

// NewCached wraps inner with a count cache.
func NewCached(inner Counter) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24, // bytes of cached text keys
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create count cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Count(text string) int {
	if v, ok := c.cache.Get(text); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	n := c.inner.Count(text)
	c.cache.Set(text, n, int64(len(text)))
	return n
}

// Close releases the cache resources.
func (c *Cached) Close() {
	c.cache.Close()
}
