// Package engine runs the email pipeline: triage first, and for emails
// that warrant a reply, memory retrieval, budget enforcement, prompt
// assembly, generation and recording.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailmind/mailmind-go-sdk/config"
	"github.com/mailmind/mailmind-go-sdk/core"
	"github.com/mailmind/mailmind-go-sdk/llm"
	"github.com/mailmind/mailmind-go-sdk/memory"
	"github.com/mailmind/mailmind-go-sdk/prompt"
	"github.com/mailmind/mailmind-go-sdk/rules"
	"github.com/mailmind/mailmind-go-sdk/tokens"
	"github.com/mailmind/mailmind-go-sdk/triage"
)

// DefaultSession is used when an email carries no session.
const DefaultSession = "default"

// Deps are the external collaborators the engine wires together.
type Deps struct {
	History  memory.HistoryStore
	Vectors  memory.VectorStore
	Embedder memory.Embedder
	Service  llm.Service
	Rules    *rules.Manager
	Counter  tokens.Counter
}

// classifiedRecorder is implemented by hot stores that can persist the
// triage outcome alongside the exchange.
type classifiedRecorder interface {
	AppendClassifiedPair(ctx context.Context, pair core.Pair, result core.ClassificationResult) error
}

// Engine processes one email end to end. Safe for concurrent use: all
// per-request state lives on the stack.
type Engine struct {
	cfg config.Config

	classifier *triage.Classifier
	loader     *memory.Loader
	enforcer   *memory.Enforcer
	assembler  *prompt.Assembler

	history memory.HistoryStore
	vectors memory.VectorStore
	embed   memory.Embedder
	service llm.Service

	logger *zap.Logger
	clock  func() time.Time

	mu     sync.Mutex
	counts map[string]int // exchanges recorded per session, for summary cadence
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// New creates an Engine from its dependencies and configuration.
func New(deps Deps, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.History == nil || deps.Vectors == nil || deps.Embedder == nil || deps.Service == nil {
		return nil, fmt.Errorf("engine requires history, vectors, embedder and service")
	}
	if deps.Rules == nil {
		deps.Rules = rules.NewManager(nil, nil)
	}
	if deps.Counter == nil {
		deps.Counter = tokens.Heuristic{}
	}

	e := &Engine{
		cfg:     cfg,
		history: deps.History,
		vectors: deps.Vectors,
		embed:   deps.Embedder,
		service: deps.Service,
		logger:  zap.NewNop(),
		clock:   time.Now,
		counts:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.classifier = triage.New(deps.Vectors, deps.Embedder, deps.Service, deps.Rules, cfg.Threshold, e.logger)
	e.loader = memory.NewLoader(deps.History, deps.Vectors, deps.Embedder, deps.Rules, cfg.MaxHistoryPairs, cfg.TopK, e.logger)
	e.enforcer = memory.NewEnforcer(deps.Counter, deps.Service, e.logger)
	e.assembler = prompt.New(deps.Counter)
	return e, nil
}

// Classifier exposes the triage classifier, for seeding examples.
func (e *Engine) Classifier() *triage.Classifier {
	return e.classifier
}

// Result is the outcome of processing one email.
type Result struct {
	Email          core.Email
	Classification core.ClassificationResult

	// Response is the drafted reply. Empty for ignore and notify.
	Response string

	// Prompt is the assembled prompt, set only when a reply was drafted.
	Prompt *prompt.Assembled

	// TokensUsed is the enforced prompt cost, set only for replies.
	TokensUsed int
}

// Process runs one email through the pipeline. Emails classified ignore
// or notify are persisted with their classification and short-circuit
// before any memory retrieval. Respond emails go through the five-stage
// context build and a generation call.
func (e *Engine) Process(ctx context.Context, email core.Email) (Result, error) {
	email = e.normalize(email)

	classification, err := e.classify(ctx, email)
	if err != nil {
		return Result{Email: email}, err
	}

	result := Result{Email: email, Classification: classification}
	e.logger.Info("email classified",
		zap.String("email_id", email.ID),
		zap.String("category", string(classification.Category)),
		zap.String("source", string(classification.Source)),
		zap.Float64("confidence", classification.Confidence),
	)

	if classification.Category != core.CategoryRespond {
		if err := e.recordClassified(ctx, email, classification); err != nil {
			return result, err
		}
		return result, nil
	}

	assembled, usedTokens, err := e.buildContext(ctx, email)
	if err != nil {
		return result, err
	}
	result.Prompt = assembled
	result.TokensUsed = usedTokens

	response, err := e.generate(ctx, assembled)
	if err != nil {
		return result, err
	}
	result.Response = response

	e.record(ctx, email, response, classification)
	return result, nil
}

// normalize fills identity fields so the rest of the pipeline can rely
// on them.
func (e *Engine) normalize(email core.Email) core.Email {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	if email.SessionID == "" {
		email.SessionID = DefaultSession
	}
	if email.Timestamp.IsZero() {
		email.Timestamp = e.clock()
	}
	return email
}

// withTimeout bounds one pipeline stage with CallTimeout. Every stage
// that touches a store, an embedder or a model goes through this, so a
// caller passing context.Background still cannot hang on a dead peer.
func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.CallTimeout)
}

func (e *Engine) classify(ctx context.Context, email core.Email) (core.ClassificationResult, error) {
	cctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.classifier.Classify(cctx, email)
}

// buildContext runs retrieval, dedup, enforcement and assembly for a
// respond-classified email.
func (e *Engine) buildContext(ctx context.Context, email core.Email) (*prompt.Assembled, int, error) {
	lctx, lcancel := e.withTimeout(ctx)
	hot, warm, fixed, err := e.loader.Load(lctx, email)
	lcancel()
	if err != nil {
		return nil, 0, err
	}

	items := memory.Dedupe(hot, warm)

	// An existing rolling summary enters the memory region as a summary
	// item, so enforcement can fold or keep it like any other content.
	if fixed.Summary != nil && fixed.Summary.Text != "" {
		summaryItem := &memory.Item{
			Key:  "summary|" + fixed.Summary.SessionID,
			Tier: memory.TierHot,
			Kind: memory.KindSummary,
			Text: fixed.Summary.Text,
		}
		items = append([]*memory.Item{summaryItem}, items...)
	}

	budget := tokens.NewBudget(e.cfg.MaxTokens, e.cfg.MaxPromptTokens)
	fixedTokens := e.assembler.FixedTokens(fixed, email)

	ectx, ecancel := e.withTimeout(ctx)
	items, err = e.enforcer.Enforce(ectx, items, fixedTokens, budget)
	ecancel()
	if err != nil {
		return nil, 0, err
	}

	assembled := e.assembler.Assemble(fixed, items, email)
	e.logger.Debug("prompt assembled",
		zap.String("email_id", email.ID),
		zap.Int("sections", len(assembled.Sections)),
		zap.Int("tokens", budget.Consumed()),
	)
	return &assembled, budget.Consumed(), nil
}

// generate asks the model for the reply, with one retry.
func (e *Engine) generate(ctx context.Context, assembled *prompt.Assembled) (string, error) {
	gctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var response string
	err := llm.RetryOnce(gctx, 500*time.Millisecond, func(ctx context.Context) error {
		var gerr error
		response, gerr = e.service.Generate(ctx, assembled.System, assembled.UserMessage)
		return gerr
	})
	if err != nil {
		return "", fmt.Errorf("%w: generate response: %v", core.ErrServiceUnavailable, err)
	}
	return response, nil
}

// recordClassified persists an ignore or notify email. No response is
// drafted, but the exchange still lands in history so a later thread
// email sees it.
func (e *Engine) recordClassified(ctx context.Context, email core.Email, result core.ClassificationResult) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	pair := core.Pair{
		ID:        email.ID,
		Email:     email,
		Response:  "",
		CreatedAt: e.clock(),
	}

	var err error
	if rec, ok := e.history.(classifiedRecorder); ok {
		err = rec.AppendClassifiedPair(ctx, pair, result)
	} else {
		err = e.history.AppendPair(ctx, pair)
	}
	if err != nil {
		return fmt.Errorf("%w: record %s email: %v", core.ErrTransientIO, result.Category, err)
	}
	return nil
}

// record persists a completed exchange to both stores and refreshes the
// rolling summary when the cadence is due. Recording failures after a
// successful generation degrade to warnings: the caller already has its
// response.
func (e *Engine) record(ctx context.Context, email core.Email, response string, result core.ClassificationResult) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	pair := core.Pair{
		ID:        email.ID,
		Email:     email,
		Response:  response,
		CreatedAt: e.clock(),
	}

	var err error
	if rec, ok := e.history.(classifiedRecorder); ok {
		err = rec.AppendClassifiedPair(ctx, pair, result)
	} else {
		err = e.history.AppendPair(ctx, pair)
	}
	if err != nil {
		e.logger.Warn("exchange not recorded to history", zap.Error(err))
	}

	if err := e.recordVector(ctx, email, response); err != nil {
		e.logger.Warn("exchange not recorded to similarity store", zap.Error(err))
	}

	if e.bumpCount(email.SessionID)%e.cfg.MaxHistoryPairs == 0 {
		if err := e.refreshSummary(ctx, email.SessionID); err != nil {
			e.logger.Warn("rolling summary not refreshed", zap.Error(err))
		}
	}
}

// recordVector stores the exchange in the chat-history collection so
// future warm retrieval can find it.
func (e *Engine) recordVector(ctx context.Context, email core.Email, response string) error {
	text := email.Text() + "\nResponse: " + response
	embedding, err := e.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed exchange: %w", err)
	}
	return e.vectors.Add(ctx, memory.CollectionChatHistory, memory.Document{
		ID:        email.ID,
		Text:      text,
		Embedding: embedding,
		Metadata: map[string]string{
			"identity_key": memory.ItemKey(email.Sender, email.Subject, email.Timestamp),
			"session_id":   email.SessionID,
		},
	})
}

// refreshSummary folds the latest summary and the recent exchanges into
// a new rolling summary row.
func (e *Engine) refreshSummary(ctx context.Context, session string) error {
	pairs, err := e.history.RecentPairs(ctx, session, e.cfg.MaxHistoryPairs)
	if err != nil {
		return fmt.Errorf("read recent pairs: %w", err)
	}
	if len(pairs) == 0 {
		return nil
	}

	parts := make([]string, 0, len(pairs)+1)
	previous, err := e.history.LatestSummary(ctx, session)
	if err == nil && previous != nil && previous.Text != "" {
		parts = append(parts, previous.Text)
	}
	// Oldest first, so the summary reads chronologically.
	for i := len(pairs) - 1; i >= 0; i-- {
		parts = append(parts, pairs[i].Email.Text()+"\nResponse: "+pairs[i].Response)
	}

	var text string
	err = llm.RetryOnce(ctx, 500*time.Millisecond, func(ctx context.Context) error {
		var serr error
		text, serr = e.service.Summarize(ctx, strings.Join(parts, "\n\n"))
		return serr
	})
	if err != nil {
		return fmt.Errorf("summarize session: %w", err)
	}

	return e.history.AppendSummary(ctx, core.Summary{
		SessionID: session,
		Text:      text,
		CreatedAt: e.clock(),
	})
}

// bumpCount increments the session's recorded-exchange count.
func (e *Engine) bumpCount(session string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[session]++
	return e.counts[session]
}
