package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mailmind/mailmind-go-sdk/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pair(id, subject string, ts time.Time) core.Pair {
	return core.Pair{
		ID: id,
		Email: core.Email{
			ID:        id,
			Sender:    "bob@example.com",
			Subject:   subject,
			Body:      "body of " + subject,
			Timestamp: ts,
			SessionID: "s1",
		},
		Response: "reply to " + subject,
	}
}

func TestRecentPairsMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		p := pair(fmt.Sprintf("e%d", i), fmt.Sprintf("subject %d", i), base.Add(time.Duration(i)*time.Hour))
		if err := s.AppendPair(ctx, p); err != nil {
			t.Fatalf("AppendPair: %v", err)
		}
	}

	pairs, err := s.RecentPairs(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("RecentPairs: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("got %d pairs, want 3", len(pairs))
	}
	for i, want := range []string{"subject 3", "subject 2", "subject 1"} {
		if pairs[i].Email.Subject != want {
			t.Errorf("pairs[%d].Subject = %q, want %q", i, pairs[i].Email.Subject, want)
		}
	}
	if pairs[0].Email.SessionID != "s1" {
		t.Errorf("session = %q", pairs[0].Email.SessionID)
	}
}

func TestRecentPairsScopedToSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Now().UTC()

	p := pair("e1", "mine", ts)
	if err := s.AppendPair(ctx, p); err != nil {
		t.Fatalf("AppendPair: %v", err)
	}
	other := pair("e2", "theirs", ts)
	other.Email.SessionID = "s2"
	if err := s.AppendPair(ctx, other); err != nil {
		t.Fatalf("AppendPair: %v", err)
	}

	pairs, err := s.RecentPairs(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("RecentPairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Email.Subject != "mine" {
		t.Errorf("pairs = %+v", pairs)
	}
}

func TestLatestSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.LatestSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("LatestSummary on empty store: %v", err)
	}
	if got != nil {
		t.Fatalf("summary on empty store = %+v, want nil", got)
	}

	for _, text := range []string{"first summary", "second summary"} {
		if err := s.AppendSummary(ctx, core.Summary{SessionID: "s1", Text: text}); err != nil {
			t.Fatalf("AppendSummary: %v", err)
		}
	}

	got, err = s.LatestSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if got == nil || got.Text != "second summary" {
		t.Errorf("summary = %+v, want the second one", got)
	}
}

func TestUserInfoRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.UserInfo(ctx)
	if err != nil {
		t.Fatalf("UserInfo on empty store: %v", err)
	}
	if u.Name != "" {
		t.Errorf("empty store yielded profile %+v", u)
	}

	want := core.UserInfo{Name: "Alice", Occupation: "Engineer", Location: "Berlin", Interests: "climbing"}
	if err := s.SaveUserInfo(ctx, want); err != nil {
		t.Fatalf("SaveUserInfo: %v", err)
	}
	got, err := s.UserInfo(ctx)
	if err != nil {
		t.Fatalf("UserInfo: %v", err)
	}
	if got != want {
		t.Errorf("profile = %+v, want %+v", got, want)
	}
}

func TestClassifiedPairPersistsResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := pair("e1", "newsletter", time.Now().UTC())
	p.Response = ""
	result := core.ClassificationResult{
		Category:   core.CategoryIgnore,
		Confidence: 0.91,
		Source:     core.SourceSimilarity,
	}
	if err := s.AppendClassifiedPair(ctx, p, result); err != nil {
		t.Fatalf("AppendClassifiedPair: %v", err)
	}

	pairs, err := s.RecentPairs(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("RecentPairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Email.Subject != "newsletter" {
		t.Errorf("pairs = %+v", pairs)
	}
}

func TestRuleVersioning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rs, err := s.ActiveRules(ctx)
	if err != nil {
		t.Fatalf("ActiveRules on empty store: %v", err)
	}
	if rs.Ignore != "" || rs.Version != 0 {
		t.Errorf("empty store yielded rules %+v", rs)
	}

	v1, err := s.UpdateRule(ctx, "ignore_rules", "skip all newsletters")
	if err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if v1 != 1 {
		t.Errorf("first version = %d, want 1", v1)
	}
	v2, err := s.UpdateRule(ctx, "ignore_rules", "skip newsletters and receipts")
	if err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if v2 != 2 {
		t.Errorf("second version = %d, want 2", v2)
	}
	if _, err := s.UpdateRule(ctx, "respond_rules", "answer questions"); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}

	rs, err = s.ActiveRules(ctx)
	if err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if rs.Ignore != "skip newsletters and receipts" {
		t.Errorf("active ignore rule = %q, want the latest version", rs.Ignore)
	}
	if rs.Respond != "answer questions" {
		t.Errorf("active respond rule = %q", rs.Respond)
	}
	if rs.Version != 2 {
		t.Errorf("version = %d, want 2", rs.Version)
	}
}
