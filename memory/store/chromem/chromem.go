// Package chromem implements memory.VectorStore on chromem-go, a pure
// Go embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/mailmind/mailmind-go-sdk/memory"
)

// Store wraps chromem-go. Collections are created lazily; the engine
// uses one per triage category plus one for past exchanges.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
	logger      *zap.Logger
}

// New creates an in-memory store. logger may be nil.
func New(logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		logger:      logger,
	}, nil
}

// NewPersistent creates a store backed by a directory on disk.
func NewPersistent(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &Store{
		db:          db,
		collections: make(map[string]*chromem.Collection),
		logger:      logger,
	}, nil
}

func (s *Store) getOrCreate(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	// Embeddings are supplied by the caller, distance is the default
	// cosine similarity.
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

// Add stores a document with its embedding into a collection.
func (s *Store) Add(ctx context.Context, collection string, doc memory.Document) error {
	col, err := s.getOrCreate(collection)
	if err != nil {
		return err
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Text,
		Embedding: doc.Embedding,
		Metadata:  doc.Metadata,
	})
	if err != nil {
		return fmt.Errorf("add document to %q: %w", collection, err)
	}

	s.logger.Debug("document stored",
		zap.String("collection", collection),
		zap.String("id", doc.ID),
	)
	return nil
}

// Nearest returns the top-k matches in a collection by descending
// similarity. An empty collection yields an empty result, not an error.
func (s *Store) Nearest(ctx context.Context, collection string, embedding []float32, k int) ([]memory.ScoredDoc, error) {
	col, err := s.getOrCreate(collection)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size; clamp and retry
	// downward rather than failing the read.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil // collection is empty
			}
			continue
		}
		return nil, fmt.Errorf("query %q: %w", collection, err)
	}

	docs := make([]memory.ScoredDoc, 0, len(results))
	for _, r := range results {
		docs = append(docs, memory.ScoredDoc{
			ID:       r.ID,
			Text:     r.Content,
			Score:    float64(r.Similarity),
			Metadata: r.Metadata,
		})
	}
	return docs, nil
}

// isInsufficientDocsError checks whether a query failed only because the
// collection holds fewer documents than requested.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
