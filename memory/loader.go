package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mailmind/mailmind-go-sdk/core"
	"github.com/mailmind/mailmind-go-sdk/rules"
)

// Loader orchestrates hot-store and warm-store retrieval for an email
// that qualified for a response.
type Loader struct {
	history  HistoryStore
	vectors  VectorStore
	embedder Embedder
	rules    *rules.Manager

	maxPairs int
	topK     int
	logger   *zap.Logger
}

// NewLoader creates a Loader. logger may be nil.
func NewLoader(history HistoryStore, vectors VectorStore, embedder Embedder, ruleMgr *rules.Manager, maxPairs, topK int, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		history:  history,
		vectors:  vectors,
		embedder: embedder,
		rules:    ruleMgr,
		maxPairs: maxPairs,
		topK:     topK,
		logger:   logger,
	}
}

// Load reads both memory tiers for the email. The two reads are
// independent and run concurrently; a failure in either degrades that
// tier to empty rather than aborting. Only when both tiers fail and no
// fixed content could be read either does Load report
// core.ErrDataUnavailable.
func (l *Loader) Load(ctx context.Context, email core.Email) (hot, warm []*Item, fixed Fixed, err error) {
	var hotErr, warmErr, fixedErr error

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hot, fixed, fixedErr, hotErr = l.loadHot(gctx, email.SessionID)
		return nil
	})
	g.Go(func() error {
		warm, warmErr = l.loadWarm(gctx, email)
		return nil
	})
	_ = g.Wait() // sub-reads degrade, they never fail the group

	if hotErr != nil {
		l.logger.Warn("hot tier degraded to empty",
			zap.String("session", email.SessionID),
			zap.Error(hotErr),
		)
	}
	if warmErr != nil {
		l.logger.Warn("warm tier degraded to empty",
			zap.String("session", email.SessionID),
			zap.Error(warmErr),
		)
	}

	// Rules fall back to defaults internally, so they never gate this.
	fixed.Rules = l.rules.Active(ctx)

	if hotErr != nil && warmErr != nil && fixedErr != nil {
		return nil, nil, fixed, fmt.Errorf("both memory tiers and fixed content failed: %w", core.ErrDataUnavailable)
	}
	return hot, warm, fixed, nil
}

// loadHot reads recent pairs, the latest summary, and the user profile.
// Each piece degrades independently; pairErr reports the pairs read,
// fixedErr reports whether any fixed content was readable.
func (l *Loader) loadHot(ctx context.Context, session string) (items []*Item, fixed Fixed, fixedErr, pairErr error) {
	pairs, pairErr := l.history.RecentPairs(ctx, session, l.maxPairs)
	if pairErr == nil {
		for i, p := range pairs {
			items = append(items, &Item{
				Key:   ItemKey(p.Email.Sender, p.Email.Subject, p.Email.Timestamp),
				Tier:  TierHot,
				Kind:  KindExchange,
				Text:  p.Email.Text() + "\nResponse: " + p.Response,
				Score: float64(i), // 0 = most recent
			})
		}
	}

	summary, sumErr := l.history.LatestSummary(ctx, session)
	if sumErr != nil {
		l.logger.Warn("summary unavailable", zap.Error(sumErr))
	} else {
		fixed.Summary = summary
	}

	user, userErr := l.history.UserInfo(ctx)
	if userErr != nil {
		l.logger.Warn("user profile unavailable", zap.Error(userErr))
	} else {
		fixed.User = user
	}

	if sumErr != nil && userErr != nil {
		fixedErr = userErr
	}
	return items, fixed, fixedErr, pairErr
}

// loadWarm embeds the query email and asks the similarity store for the
// nearest past exchanges.
func (l *Loader) loadWarm(ctx context.Context, email core.Email) ([]*Item, error) {
	embedding, err := l.embedder.Embed(ctx, email.Text())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := l.vectors.Nearest(ctx, CollectionChatHistory, embedding, l.topK)
	if err != nil {
		return nil, fmt.Errorf("warm retrieval: %w", err)
	}

	items := make([]*Item, 0, len(docs))
	for _, doc := range docs {
		key := doc.Metadata["identity_key"]
		if key == "" {
			key = doc.ID
		}
		items = append(items, &Item{
			Key:   key,
			Tier:  TierWarm,
			Kind:  KindMatch,
			Text:  doc.Text,
			Score: doc.Score,
		})
	}
	return items, nil
}
