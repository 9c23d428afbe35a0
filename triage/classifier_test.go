package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mailmind/mailmind-go-sdk/core"
	"github.com/mailmind/mailmind-go-sdk/memory"
)

// fakeVectors returns canned scores per collection.
type fakeVectors struct {
	scores map[string]float64 // collection -> score of its single example
	err    error
	added  []string // collections Add was called with
}

func (f *fakeVectors) Nearest(ctx context.Context, collection string, embedding []float32, k int) ([]memory.ScoredDoc, error) {
	if f.err != nil {
		return nil, f.err
	}
	score, ok := f.scores[collection]
	if !ok {
		return nil, nil
	}
	return []memory.ScoredDoc{{ID: collection + "-1", Text: "example", Score: score}}, nil
}

func (f *fakeVectors) Add(ctx context.Context, collection string, doc memory.Document) error {
	f.added = append(f.added, collection)
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fakeEmbedder) Dimensions() int { return 3 }

// fakeService counts classification calls and returns a fixed category.
type fakeService struct {
	category core.Category
	err      error
	calls    int
}

func (f *fakeService) ClassifyEmail(ctx context.Context, email core.Email, rules core.RuleSet) (core.Category, error) {
	f.calls++
	return f.category, f.err
}

func (f *fakeService) Summarize(ctx context.Context, text string) (string, error) {
	return text, nil
}

func (f *fakeService) Generate(ctx context.Context, system, userMessage string) (string, error) {
	return "ok", nil
}

type fakeRules struct{}

func (fakeRules) Active(ctx context.Context) core.RuleSet { return core.RuleSet{} }

func testEmail() core.Email {
	return core.Email{
		ID:        "e1",
		Sender:    "alice@example.com",
		Subject:   "Quick question",
		Body:      "Are we still on for Tuesday?",
		Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		SessionID: "s1",
	}
}

func newTestClassifier(vectors *fakeVectors, service *fakeService, threshold float64) *Classifier {
	c := New(vectors, fakeEmbedder{}, service, fakeRules{}, threshold, nil)
	c.backoff = time.Millisecond
	return c
}

func TestClassifySimilarityAboveThreshold(t *testing.T) {
	vectors := &fakeVectors{scores: map[string]float64{
		memory.CollectionTriageIgnore:  0.2,
		memory.CollectionTriageNotify:  0.8,
		memory.CollectionTriageRespond: 0.4,
	}}
	service := &fakeService{category: core.CategoryIgnore}
	c := newTestClassifier(vectors, service, 0.37)

	result, err := c.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Category != core.CategoryNotify {
		t.Errorf("category = %q, want notify", result.Category)
	}
	if result.Source != core.SourceSimilarity {
		t.Errorf("source = %q, want similarity", result.Source)
	}
	if result.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", result.Confidence)
	}
	if service.calls != 0 {
		t.Errorf("model was called %d times on the similarity path", service.calls)
	}
}

func TestClassifyBelowThresholdFallsBack(t *testing.T) {
	vectors := &fakeVectors{scores: map[string]float64{
		memory.CollectionTriageIgnore:  0.1,
		memory.CollectionTriageNotify:  0.2,
		memory.CollectionTriageRespond: 0.3,
	}}
	service := &fakeService{category: core.CategoryRespond}
	c := newTestClassifier(vectors, service, 0.37)

	result, err := c.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Source != core.SourceFallback {
		t.Errorf("source = %q, want fallback", result.Source)
	}
	if result.Category != core.CategoryRespond {
		t.Errorf("category = %q, want respond", result.Category)
	}
	if service.calls != 1 {
		t.Errorf("model called %d times, want 1", service.calls)
	}
}

func TestClassifyTieBreaksTowardMoreActiveCategory(t *testing.T) {
	vectors := &fakeVectors{scores: map[string]float64{
		memory.CollectionTriageIgnore:  0.9,
		memory.CollectionTriageNotify:  0.9,
		memory.CollectionTriageRespond: 0.9,
	}}
	c := newTestClassifier(vectors, &fakeService{}, 0.37)

	result, err := c.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Category != core.CategoryRespond {
		t.Errorf("tie resolved to %q, want respond", result.Category)
	}
}

func TestClassifyEmptyCollectionsFallBack(t *testing.T) {
	vectors := &fakeVectors{scores: map[string]float64{}}
	service := &fakeService{category: core.CategoryNotify}
	c := newTestClassifier(vectors, service, 0.37)

	result, err := c.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Source != core.SourceFallback {
		t.Errorf("source = %q, want fallback when no examples are stored", result.Source)
	}
}

func TestClassifyZeroThresholdWithoutExamplesFallsBack(t *testing.T) {
	// A zero threshold must not let the similarity path decide when no
	// collection holds a single example.
	vectors := &fakeVectors{scores: map[string]float64{}}
	service := &fakeService{category: core.CategoryNotify}
	c := newTestClassifier(vectors, service, 0)

	result, err := c.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if !result.Category.Valid() {
		t.Fatalf("invalid category %q", result.Category)
	}
	if result.Source != core.SourceFallback {
		t.Errorf("source = %q, want fallback", result.Source)
	}
	if service.calls != 1 {
		t.Errorf("model called %d times, want 1", service.calls)
	}
}

func TestClassifyStoreUnreachableFallsBack(t *testing.T) {
	vectors := &fakeVectors{err: errors.New("connection refused")}
	service := &fakeService{category: core.CategoryIgnore}
	c := newTestClassifier(vectors, service, 0.37)

	result, err := c.Classify(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Source != core.SourceFallback {
		t.Errorf("source = %q, want fallback when store is unreachable", result.Source)
	}
	if service.calls != 1 {
		t.Errorf("model called %d times, want 1", service.calls)
	}
}

func TestClassifyFallbackFailureIsServiceUnavailable(t *testing.T) {
	vectors := &fakeVectors{scores: map[string]float64{}}
	service := &fakeService{err: errors.New("model overloaded")}
	c := newTestClassifier(vectors, service, 0.37)

	_, err := c.Classify(context.Background(), testEmail())
	if !errors.Is(err, core.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want core.ErrServiceUnavailable", err)
	}
	if service.calls != 2 {
		t.Errorf("model called %d times, want 2 (one retry)", service.calls)
	}
}

func TestAddExampleRoutesToCategoryCollection(t *testing.T) {
	vectors := &fakeVectors{}
	c := newTestClassifier(vectors, &fakeService{}, 0.37)

	if err := c.AddExample(context.Background(), core.CategoryNotify, testEmail()); err != nil {
		t.Fatalf("AddExample returned error: %v", err)
	}
	if len(vectors.added) != 1 || vectors.added[0] != memory.CollectionTriageNotify {
		t.Errorf("example stored in %v, want [%s]", vectors.added, memory.CollectionTriageNotify)
	}

	if err := c.AddExample(context.Background(), core.Category("bogus"), testEmail()); err == nil {
		t.Error("AddExample accepted an invalid category")
	}
}
