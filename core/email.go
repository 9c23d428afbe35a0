package core

import (
	"fmt"
	"strings"
	"time"
)

// Email is an incoming message handed to the pipeline.
// Immutable once received; the engine never mutates it.
type Email struct {
	// ID is the origin-assigned identifier. Optional; the engine
	// generates one when the ingress did not supply it.
	ID string

	Sender  string
	Subject string
	Body    string

	// Timestamp is when the email was received.
	Timestamp time.Time

	// SessionID groups emails belonging to the same thread.
	// Optional; empty means a fresh session.
	SessionID string
}

// Text renders the email the way it is embedded and shown to the model.
func (e Email) Text() string {
	return fmt.Sprintf("From: %s\nSubject: %s\nBody: %s", e.Sender, e.Subject, e.Body)
}

// NormalizeSubject strips reply/forward prefixes so replies compare equal
// to the thread they belong to ("Re: Budget" == "Budget").
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(s)
		switch {
		case strings.HasPrefix(lower, "re:"):
			s = strings.TrimSpace(s[3:])
		case strings.HasPrefix(lower, "fwd:"):
			s = strings.TrimSpace(s[4:])
		case strings.HasPrefix(lower, "fw:"):
			s = strings.TrimSpace(s[3:])
		default:
			return s
		}
	}
}
