package core

import "time"

// Pair is one email/response exchange from the hot store.
type Pair struct {
	ID        string
	Email     Email
	Response  string
	CreatedAt time.Time
}

// Summary is a condensed view of older history for a session.
type Summary struct {
	SessionID string
	Text      string
	CreatedAt time.Time
}

// UserInfo is the profile of the mailbox owner, rendered into the
// user-profile prompt section.
type UserInfo struct {
	Name       string
	Occupation string
	Location   string
	Interests  string
}

// Text renders the profile for prompt injection.
func (u UserInfo) Text() string {
	if u.Name == "" {
		return "No user information available."
	}
	s := "Name: " + u.Name
	if u.Occupation != "" {
		s += "\nOccupation: " + u.Occupation
	}
	if u.Location != "" {
		s += "\nLocation: " + u.Location
	}
	if u.Interests != "" {
		s += "\nInterests: " + u.Interests
	}
	return s
}

// RuleSet is the currently active rule texts, one per triage category,
// plus the agent instructions injected into the prompt.
type RuleSet struct {
	Ignore       string
	Notify       string
	Respond      string
	Instructions string
	Version      int
}
