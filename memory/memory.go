package memory

import (
	"context"
	"strings"
	"time"

	"github.com/mailmind/mailmind-go-sdk/core"
	"github.com/mailmind/mailmind-go-sdk/tokens"
)

// Tier identifies where a memory item came from.
type Tier string

const (
	// TierHot is recent, exact-structure history from the relational store.
	TierHot Tier = "hot"

	// TierWarm is semantically retrieved history from the similarity store.
	TierWarm Tier = "warm"
)

// Kind distinguishes what a memory item holds.
type Kind string

const (
	// KindExchange is one email/response pair.
	KindExchange Kind = "exchange"

	// KindMatch is a semantically retrieved past exchange.
	KindMatch Kind = "match"

	// KindSummary is a condensed view of older history. Summary items
	// are replaced by summarization, never truncated away.
	KindSummary Kind = "summary"
)

// Item is a normalized view of either a hot-store row or a warm-store
// match. Items are transient: constructed fresh per request and never
// persisted by the engine itself.
type Item struct {
	// Key is the stable identity key derived from content, so identical
	// content from different tiers compares equal.
	Key string

	Tier Tier
	Kind Kind

	// Text is the content as it will appear in the prompt.
	Text string

	// Score is the recency rank for hot items (0 = most recent) and the
	// similarity score for warm items (descending, in [0,1]).
	Score float64

	tokenCount int
	counted    bool
}

// Tokens returns the item's token cost, computing it on first use.
func (it *Item) Tokens(c tokens.Counter) int {
	if !it.counted {
		it.tokenCount = c.Count(it.Text)
		it.counted = true
	}
	return it.tokenCount
}

// ItemKey derives the identity key for an exchange: lowercased sender,
// normalized subject, and the receive time. Replies ("Re: X") share the
// key namespace of their thread.
func ItemKey(sender, subject string, ts time.Time) string {
	return strings.ToLower(strings.TrimSpace(sender)) + "|" +
		strings.ToLower(core.NormalizeSubject(subject)) + "|" +
		ts.UTC().Format(time.RFC3339)
}

// Fixed holds the always-present prompt inputs loaded alongside memory.
type Fixed struct {
	Rules   core.RuleSet
	User    core.UserInfo
	Summary *core.Summary
}

// Similarity-store collection names.
const (
	CollectionChatHistory   = "chat_history"
	CollectionTriageIgnore  = "email_triage_ignore"
	CollectionTriageNotify  = "email_triage_notify"
	CollectionTriageRespond = "email_triage_respond"
)

// HistoryStore is the relational (hot) store contract. Assumed
// consistent-read-after-write for the same session.
type HistoryStore interface {
	// RecentPairs returns the last limit email/response pairs for the
	// session, most-recent-first.
	RecentPairs(ctx context.Context, session string, limit int) ([]core.Pair, error)

	// LatestSummary returns the newest summary row for the session, or
	// nil when none exists.
	LatestSummary(ctx context.Context, session string) (*core.Summary, error)

	// UserInfo returns the mailbox owner's profile.
	UserInfo(ctx context.Context) (core.UserInfo, error)

	// AppendPair records a completed exchange.
	AppendPair(ctx context.Context, pair core.Pair) error

	// AppendSummary records a new rolling summary for the session.
	AppendSummary(ctx context.Context, summary core.Summary) error
}

// Document is one entry in a similarity-store collection.
type Document struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// ScoredDoc is a similarity match. Score is in [0,1], higher is closer.
type ScoredDoc struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]string
}

// VectorStore is the similarity (warm) store contract.
type VectorStore interface {
	// Nearest returns the top-k matches in a collection, by descending
	// similarity.
	Nearest(ctx context.Context, collection string, embedding []float32, k int) ([]ScoredDoc, error)

	// Add stores a document into a collection. The document must carry
	// its embedding.
	Add(ctx context.Context, collection string, doc Document) error
}

// Embedder converts text to a vector for similarity search. How the
// vector is computed is the adapter's business.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Summarizer is the slice of the model service the enforcer needs.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
