package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/mailmind/mailmind-go-sdk/core"
)

type stubStore struct {
	rules   core.RuleSet
	err     error
	updated []string
}

func (s *stubStore) ActiveRules(ctx context.Context) (core.RuleSet, error) {
	return s.rules, s.err
}

func (s *stubStore) UpdateRule(ctx context.Context, ruleType, content string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.updated = append(s.updated, ruleType)
	return len(s.updated), nil
}

func TestActiveFillsMissingFieldsFromDefaults(t *testing.T) {
	store := &stubStore{rules: core.RuleSet{Ignore: "custom ignore rule", Version: 3}}
	m := NewManager(store, nil)

	rs := m.Active(context.Background())
	if rs.Ignore != "custom ignore rule" {
		t.Errorf("stored rule overwritten: %q", rs.Ignore)
	}
	defaults := Defaults()
	if rs.Notify != defaults.Notify || rs.Respond != defaults.Respond || rs.Instructions != defaults.Instructions {
		t.Error("missing fields not filled from defaults")
	}
	if rs.Version != 3 {
		t.Errorf("version = %d, want 3", rs.Version)
	}
}

func TestActiveDegradesToDefaultsOnStoreFailure(t *testing.T) {
	m := NewManager(&stubStore{err: errors.New("down")}, nil)
	if rs := m.Active(context.Background()); rs != Defaults() {
		t.Errorf("degraded rules = %+v, want defaults", rs)
	}
}

func TestActiveWithoutStore(t *testing.T) {
	m := NewManager(nil, nil)
	if rs := m.Active(context.Background()); rs != Defaults() {
		t.Errorf("storeless rules = %+v, want defaults", rs)
	}
}

func TestUpdatePropagatesVersion(t *testing.T) {
	store := &stubStore{}
	m := NewManager(store, nil)

	v, err := m.Update(context.Background(), TypeNotify, "ping me about outages")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
	if len(store.updated) != 1 || store.updated[0] != TypeNotify {
		t.Errorf("updated = %v", store.updated)
	}
}
