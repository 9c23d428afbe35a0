// Package llm defines the contract the pipeline requires of the model
// service. Generation, summarization and fallback classification are
// opaque blocking calls bounded by the caller's context.
package llm

import (
	"context"
	"time"

	"github.com/mailmind/mailmind-go-sdk/core"
)

// Service is the model-side collaborator of the pipeline.
type Service interface {
	// ClassifyEmail asks the model to triage an email under the given
	// rules. Used only as the fallback path when similarity scores are
	// inconclusive.
	ClassifyEmail(ctx context.Context, email core.Email, rules core.RuleSet) (core.Category, error)

	// Summarize folds the given text into a shorter one while keeping
	// key details.
	Summarize(ctx context.Context, text string) (string, error)

	// Generate produces the response for an assembled prompt.
	Generate(ctx context.Context, system, userMessage string) (string, error)
}

// RetryOnce runs fn and, on failure, retries exactly once after a short
// backoff. Mandatory calls (fallback classification, summarization) get
// this single retry; nothing in the pipeline retries indefinitely.
func RetryOnce(ctx context.Context, backoff time.Duration, fn func(context.Context) error) error {
	if err := fn(ctx); err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
	}
	return fn(ctx)
}
