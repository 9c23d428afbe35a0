// Package rules manages the versioned triage rule texts and agent
// instructions. Rules live in the relational store; every update appends
// a new version, and reads always return the latest of each type.
package rules

import (
	"context"

	"go.uber.org/zap"

	"github.com/mailmind/mailmind-go-sdk/core"
)

// Rule type names as stored.
const (
	TypeIgnore       = "ignore_rules"
	TypeNotify       = "notify_rules"
	TypeRespond      = "respond_rules"
	TypeInstructions = "agent_instructions"
)

// Store is the persistence contract for rules.
type Store interface {
	// ActiveRules returns the latest version of each rule type. Types
	// with no stored rows come back empty; Manager fills defaults.
	ActiveRules(ctx context.Context) (core.RuleSet, error)

	// UpdateRule appends a new version of one rule type and returns the
	// new version number.
	UpdateRule(ctx context.Context, ruleType, content string) (int, error)
}

// Defaults returns the built-in rule texts used until operators store
// their own.
func Defaults() core.RuleSet {
	return core.RuleSet{
		Ignore:       "Spam, promotional emails, mass announcements, no action needed",
		Notify:       "Important information that user should know but doesn't need a response (e.g., system notifications, status updates)",
		Respond:      "Emails that need a direct response (e.g., questions, meeting requests, action items)",
		Instructions: "Use these tools when appropriate to help manage tasks efficiently. Generate professional, courteous email responses.",
	}
}

// Manager reads and writes rules, falling back to defaults when the
// store has nothing or is unreachable.
type Manager struct {
	store  Store
	logger *zap.Logger
}

// NewManager creates a Manager. logger may be nil.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// Active returns the current rule set. A store failure degrades to the
// defaults rather than failing the request; the degradation is logged so
// callers can explain the prompt they got.
func (m *Manager) Active(ctx context.Context) core.RuleSet {
	defaults := Defaults()
	if m.store == nil {
		return defaults
	}

	rs, err := m.store.ActiveRules(ctx)
	if err != nil {
		m.logger.Warn("rules unavailable, using defaults", zap.Error(err))
		return defaults
	}

	if rs.Ignore == "" {
		rs.Ignore = defaults.Ignore
	}
	if rs.Notify == "" {
		rs.Notify = defaults.Notify
	}
	if rs.Respond == "" {
		rs.Respond = defaults.Respond
	}
	if rs.Instructions == "" {
		rs.Instructions = defaults.Instructions
	}
	return rs
}

// Update appends a new version of one rule type.
func (m *Manager) Update(ctx context.Context, ruleType, content string) (int, error) {
	version, err := m.store.UpdateRule(ctx, ruleType, content)
	if err != nil {
		return 0, err
	}
	m.logger.Info("rules updated",
		zap.String("rule_type", ruleType),
		zap.Int("version", version),
	)
	return version, nil
}
