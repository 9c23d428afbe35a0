// Package sqlite provides the relational (hot) store on SQLite, via the
// ncruces/go-sqlite3 database/sql driver. It implements both
// memory.HistoryStore and rules.Store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mailmind/mailmind-go-sdk/core"
)

// Store is the SQLite-backed hot store.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS email_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email_id TEXT NOT NULL,
    sender TEXT NOT NULL,
    subject TEXT NOT NULL,
    email_body TEXT NOT NULL,
    response_text TEXT NOT NULL,
    session_id TEXT NOT NULL,
    classification TEXT,
    classification_confidence REAL,
    received_at DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_session ON email_history(session_id, id);

CREATE TABLE IF NOT EXISTS summary (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    summary_text TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_summary_session ON summary(session_id, id);

CREATE TABLE IF NOT EXISTS user_info (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    occupation TEXT,
    location TEXT,
    interests TEXT
);

CREATE TABLE IF NOT EXISTS email_rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    rule_type TEXT NOT NULL,
    rule_content TEXT NOT NULL,
    version INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rules_type ON email_rules(rule_type, version);
`

// New opens (or creates) the store. Use ":memory:" for tests.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every pooled connection to :memory: would get its own database;
	// pin the pool to one connection so the schema is shared.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecentPairs returns the last limit exchanges for a session,
// most-recent-first.
func (s *Store) RecentPairs(ctx context.Context, session string, limit int) ([]core.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email_id, sender, subject, email_body, response_text, received_at, created_at
		FROM email_history
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`, session, limit)
	if err != nil {
		return nil, fmt.Errorf("recent pairs: %w", err)
	}
	defer rows.Close()

	var pairs []core.Pair
	for rows.Next() {
		var p core.Pair
		p.Email.SessionID = session
		if err := rows.Scan(&p.ID, &p.Email.Sender, &p.Email.Subject, &p.Email.Body,
			&p.Response, &p.Email.Timestamp, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		p.Email.ID = p.ID
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// LatestSummary returns the newest summary for a session, or nil.
func (s *Store) LatestSummary(ctx context.Context, session string) (*core.Summary, error) {
	var sum core.Summary
	sum.SessionID = session
	err := s.db.QueryRowContext(ctx, `
		SELECT summary_text, created_at FROM summary
		WHERE session_id = ?
		ORDER BY id DESC LIMIT 1`, session).Scan(&sum.Text, &sum.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest summary: %w", err)
	}
	return &sum, nil
}

// UserInfo returns the mailbox owner's profile. A missing row yields an
// empty profile, not an error.
func (s *Store) UserInfo(ctx context.Context) (core.UserInfo, error) {
	var u core.UserInfo
	var occupation, location, interests sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT name, occupation, location, interests FROM user_info
		ORDER BY id LIMIT 1`).Scan(&u.Name, &occupation, &location, &interests)
	if err == sql.ErrNoRows {
		return core.UserInfo{}, nil
	}
	if err != nil {
		return core.UserInfo{}, fmt.Errorf("user info: %w", err)
	}
	u.Occupation = occupation.String
	u.Location = location.String
	u.Interests = interests.String
	return u, nil
}

// SaveUserInfo inserts or replaces the profile row.
func (s *Store) SaveUserInfo(ctx context.Context, u core.UserInfo) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_info`); err != nil {
		return fmt.Errorf("clear user info: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_info (name, occupation, location, interests)
		VALUES (?, ?, ?, ?)`, u.Name, u.Occupation, u.Location, u.Interests)
	if err != nil {
		return fmt.Errorf("save user info: %w", err)
	}
	return nil
}

// AppendPair records a completed exchange.
func (s *Store) AppendPair(ctx context.Context, p core.Pair) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_history
		(email_id, sender, subject, email_body, response_text, session_id, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email.Sender, p.Email.Subject, p.Email.Body,
		p.Response, p.Email.SessionID, p.Email.Timestamp)
	if err != nil {
		return fmt.Errorf("append pair: %w", err)
	}
	return nil
}

// AppendClassifiedPair records an exchange along with its triage result,
// used for the persist-only categories (ignore, notify).
func (s *Store) AppendClassifiedPair(ctx context.Context, p core.Pair, result core.ClassificationResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO email_history
		(email_id, sender, subject, email_body, response_text, session_id,
		 classification, classification_confidence, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email.Sender, p.Email.Subject, p.Email.Body,
		p.Response, p.Email.SessionID,
		string(result.Category), result.Confidence, p.Email.Timestamp)
	if err != nil {
		return fmt.Errorf("append classified pair: %w", err)
	}
	return nil
}

// AppendSummary records a new rolling summary.
func (s *Store) AppendSummary(ctx context.Context, sum core.Summary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summary (session_id, summary_text) VALUES (?, ?)`,
		sum.SessionID, sum.Text)
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	return nil
}

// ActiveRules returns the latest version of each rule type. Types with
// no rows come back empty; callers fill defaults.
func (s *Store) ActiveRules(ctx context.Context) (core.RuleSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.rule_type, r.rule_content, r.version
		FROM email_rules r
		JOIN (
			SELECT rule_type, MAX(version) AS version
			FROM email_rules GROUP BY rule_type
		) latest ON r.rule_type = latest.rule_type AND r.version = latest.version`)
	if err != nil {
		return core.RuleSet{}, fmt.Errorf("active rules: %w", err)
	}
	defer rows.Close()

	var rs core.RuleSet
	for rows.Next() {
		var ruleType, content string
		var version int
		if err := rows.Scan(&ruleType, &content, &version); err != nil {
			return core.RuleSet{}, fmt.Errorf("scan rule: %w", err)
		}
		if version > rs.Version {
			rs.Version = version
		}
		switch ruleType {
		case "ignore_rules":
			rs.Ignore = content
		case "notify_rules":
			rs.Notify = content
		case "respond_rules":
			rs.Respond = content
		case "agent_instructions":
			rs.Instructions = content
		}
	}
	return rs, rows.Err()
}

// UpdateRule appends a new version of one rule type.
func (s *Store) UpdateRule(ctx context.Context, ruleType, content string) (int, error) {
	var current sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(version) FROM email_rules WHERE rule_type = ?`, ruleType).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("rule version: %w", err)
	}

	next := int(current.Int64) + 1
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO email_rules (rule_type, rule_content, version)
		VALUES (?, ?, ?)`, ruleType, content, next)
	if err != nil {
		return 0, fmt.Errorf("update rule: %w", err)
	}
	return next, nil
}
