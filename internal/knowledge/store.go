package knowledge

import "context"

// DocumentStore is the persistence boundary for documents. Implementations:
// PostgresStore (pgvector-backed, production) and MemoryStore (brute-force
// cosine, tests and local mode).
//
// The interface is defined here, by its consumer, so VectorStore depends on
// an abstraction rather than a concrete backend.
type DocumentStore interface {
	// Insert stores a new document record, including a possibly nil
	// embedding.
	Insert(ctx context.Context, doc Document) error

	// Update merges the partial update into the existing record.
	// Returns ErrNotFound if no document has the given id.
	Update(ctx context.Context, id string, upd Update) error

	// Delete removes the record. Idempotent: deleting a missing id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Query returns up to limit documents whose metadata matches every
	// filter entry exactly, ranked by similarity to the query embedding in
	// descending order. Documents without an embedding are excluded; they
	// cannot be scored.
	Query(ctx context.Context, embedding []float32, limit int, filter map[string]string) ([]Result, error)
}
