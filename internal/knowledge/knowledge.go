package knowledge

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mavrika/mavrika/internal/log"
)

// KnowledgeBase is the stable public surface for the rest of the
// application: input validation, id and timestamp assignment, and the legacy
// degraded-search behavior.
//
// Constructed once at process start and passed by reference to consumers.
// Safe for concurrent use to the extent the underlying store is.
type KnowledgeBase struct {
	vectors *VectorStore
	logger  log.Logger
}

// New creates the knowledge base facade.
func New(vectors *VectorStore, logger log.Logger) *KnowledgeBase {
	if logger == nil {
		logger = log.NewNop()
	}
	return &KnowledgeBase{
		vectors: vectors,
		logger:  logger,
	}
}

// AddDocument validates, assigns an id and timestamps, and stores the
// document. Returns the generated id.
func (kb *KnowledgeBase) AddDocument(ctx context.Context, content string, metadata map[string]string) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}

	now := time.Now().UTC()
	doc := Document{
		ID:        uuid.NewString(),
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := kb.vectors.AddDocument(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// Search returns documents ranked by similarity to the query. Any internal
// error is logged and collapsed to an empty result list, so callers must
// treat an empty list as "no matches or search temporarily degraded".
//
// This is the legacy contract the call sites depend on. Callers that need to
// distinguish degradation from no-match use SearchStrict.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, opts ...SearchOption) []Result {
	results, err := kb.vectors.Search(ctx, query, opts...)
	if err != nil {
		kb.logger.Warn("search degraded, returning empty results",
			"query_length", len(query),
			"error", err)
		return []Result{}
	}
	return results
}

// SearchStrict is Search without the error swallowing: failures propagate so
// the caller can tell a degraded search from an empty one.
func (kb *KnowledgeBase) SearchStrict(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	return kb.vectors.Search(ctx, query, opts...)
}

// UpdateDocument replaces the document's content and, when metadata is
// non-nil, its metadata. The embedding is regenerated for the new content
// and updated_at is bumped. An empty content with non-nil metadata performs
// a metadata-only update.
func (kb *KnowledgeBase) UpdateDocument(ctx context.Context, id, content string, metadata map[string]string) error {
	if id == "" {
		return ErrEmptyID
	}
	if content == "" && metadata == nil {
		return ErrEmptyContent
	}

	upd := Update{
		Metadata:  metadata,
		UpdatedAt: time.Now().UTC(),
	}
	if content != "" {
		upd.Content = &content
	}

	return kb.vectors.UpdateDocument(ctx, id, upd)
}

// DeleteDocument removes the document. Idempotent: deleting an id twice
// succeeds both times.
func (kb *KnowledgeBase) DeleteDocument(ctx context.Context, id string) error {
	return kb.vectors.DeleteDocument(ctx, id)
}
