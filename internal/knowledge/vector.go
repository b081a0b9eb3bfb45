package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/mavrika/mavrika/internal/log"
)

// Embedder converts text into an embedding vector. Satisfied by
// provider.EmbeddingClient; defined here so this package depends only on the
// operation it needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the embedding+persistence pipeline: it turns raw text into
// a stored, embedded document and a query string into a ranked result set.
//
// Failure policy, deliberately asymmetric:
//   - ingestion: an embedding failure is logged and the document is stored
//     with a nil embedding. Such documents are excluded from similarity
//     ranking until a later update re-embeds them.
//   - query: an embedding failure is fatal (ErrQueryEmbedding); there is no
//     similarity search without a query vector.
type VectorStore struct {
	store    DocumentStore
	embedder Embedder
	logger   log.Logger
}

// NewVectorStore creates the pipeline over a document store and an embedder.
func NewVectorStore(store DocumentStore, embedder Embedder, logger log.Logger) *VectorStore {
	if logger == nil {
		logger = log.NewNop()
	}
	return &VectorStore{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// AddDocument embeds and persists the document.
func (s *VectorStore) AddDocument(ctx context.Context, doc Document) error {
	if doc.Content == "" {
		return ErrEmptyContent
	}

	embedding, err := s.embedder.Embed(ctx, doc.Content)
	if err != nil {
		// Non-fatal: store the document without a vector.
		s.logger.Warn("embedding failed, storing document without vector",
			"id", doc.ID,
			"error", err)
		embedding = nil
	}
	doc.Embedding = embedding

	if err := s.store.Insert(ctx, doc); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Search embeds the query and returns documents ranked by similarity.
func (s *VectorStore) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	if query == "" {
		return nil, ErrEmptyContent
	}
	cfg := buildSearchConfig(opts)

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}

	results, err := s.store.Query(ctx, embedding, cfg.limit, cfg.filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return results, nil
}

// UpdateDocument applies a partial update. When the content changes, the
// embedding is regenerated; metadata-only updates skip re-embedding.
func (s *VectorStore) UpdateDocument(ctx context.Context, id string, upd Update) error {
	if id == "" {
		return ErrEmptyID
	}

	if upd.Content != nil {
		if *upd.Content == "" {
			return ErrEmptyContent
		}
		embedding, err := s.embedder.Embed(ctx, *upd.Content)
		if err != nil {
			// Same policy as ingestion: the new content must not be lost
			// because the embedding call failed. Clear the stale vector so
			// search never ranks old content.
			s.logger.Warn("re-embedding failed, clearing stored vector",
				"id", id,
				"error", err)
			embedding = nil
		}
		upd.Embedding = embedding
		upd.SetEmbedding = true
	}

	if err := s.store.Update(ctx, id, upd); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// DeleteDocument removes the document. Idempotent.
func (s *VectorStore) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
