package core

// Category is the triage outcome for an incoming email.
type Category string

const (
	CategoryIgnore  Category = "ignore"
	CategoryNotify  Category = "notify"
	CategoryRespond Category = "respond"
)

// Valid reports whether c is one of the three triage categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryIgnore, CategoryNotify, CategoryRespond:
		return true
	}
	return false
}

// Priority orders categories for tie-breaking: under-responding is worse
// than over-responding, so respond wins over notify wins over ignore.
func (c Category) Priority() int {
	switch c {
	case CategoryRespond:
		return 2
	case CategoryNotify:
		return 1
	default:
		return 0
	}
}

// ClassificationSource records which path produced a classification.
type ClassificationSource string

const (
	// SourceSimilarity means the nearest few-shot example cleared the
	// confidence threshold and no model call was made.
	SourceSimilarity ClassificationSource = "similarity"

	// SourceFallback means the similarity scores were inconclusive and
	// the model was asked to classify.
	SourceFallback ClassificationSource = "fallback"
)

// ClassificationResult is created once per email and never mutated.
type ClassificationResult struct {
	Category   Category
	Confidence float64
	Source     ClassificationSource
}
