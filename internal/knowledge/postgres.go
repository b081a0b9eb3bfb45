package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/mavrika/mavrika/internal/log"
)

// queryTimeout bounds vector search queries so a slow scan cannot block the
// caller indefinitely.
const queryTimeout = 10 * time.Second

// pgxConn is the subset of pgxpool.Pool the store needs. An interface so
// tests can substitute a fake connection.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the production DocumentStore backed by PostgreSQL with
// the pgvector extension. Metadata filters use the JSONB containment
// operator; similarity ranking uses cosine distance.
//
// Safe for concurrent use; the underlying pool handles connection sharing.
type PostgresStore struct {
	db     pgxConn
	logger log.Logger
}

// NewPostgresStore creates a Postgres-backed document store.
// A nil logger discards output.
func NewPostgresStore(db pgxConn, logger log.Logger) *PostgresStore {
	if logger == nil {
		logger = log.NewNop()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Insert stores a new document record.
func (s *PostgresStore) Insert(ctx context.Context, doc Document) error {
	metadataJSON, err := json.Marshal(orEmptyMetadata(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, content, embedding, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Content, vectorOrNil(doc.Embedding), metadataJSON, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("inserted document",
		"id", doc.ID,
		"content_length", len(doc.Content),
		"embedded", doc.Embedding != nil)
	return nil
}

// Update merges the partial update into the existing record.
func (s *PostgresStore) Update(ctx context.Context, id string, upd Update) error {
	var metadataJSON []byte
	if upd.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(upd.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	// COALESCE keeps columns whose update field is nil; the embedding column
	// only changes when the update explicitly sets it.
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET
			content    = COALESCE($2, content),
			metadata   = COALESCE($3, metadata),
			embedding  = CASE WHEN $4 THEN $5 ELSE embedding END,
			updated_at = $6
		WHERE id = $1`,
		id, upd.Content, metadataJSON, upd.SetEmbedding, vectorOrNil(upd.Embedding), upd.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating document %q: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}

	s.logger.Debug("updated document", "id", id, "content_changed", upd.Content != nil)
	return nil
}

// Delete removes the record. Deleting a missing id is not an error.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting document %q: %w", id, err)
	}
	s.logger.Debug("deleted document", "id", id)
	return nil
}

// Query ranks documents by cosine similarity to the query embedding.
// Documents without an embedding cannot be scored and are excluded.
func (s *PostgresStore) Query(ctx context.Context, embedding []float32, limit int, filter map[string]string) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// filter is marshaled with json.Marshal, never interpolated: the JSONB
	// containment operator is safe with parameterized queries only.
	filterJSON, err := json.Marshal(orEmptyMetadata(filter))
	if err != nil {
		return nil, fmt.Errorf("marshaling filter: %w", err)
	}

	queryVec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(queryCtx, `
		SELECT id, content, metadata, created_at, updated_at,
		       GREATEST(0.0, 1 - (embedding <=> $1))::float8 AS similarity
		FROM documents
		WHERE embedding IS NOT NULL
		  AND metadata @> $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		queryVec, filterJSON, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			res          Result
			metadataJSON []byte
		)
		if err := rows.Scan(&res.ID, &res.Content, &metadataJSON, &res.CreatedAt, &res.UpdatedAt, &res.Similarity); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &res.Metadata); err != nil {
			s.logger.Warn("unparseable metadata", "document_id", res.ID, "error", err)
			res.Metadata = make(map[string]string)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating results: %w", err)
	}

	return results, nil
}

// vectorOrNil converts a slice to a nullable pgvector value.
func vectorOrNil(v []float32) *pgvector.Vector {
	if v == nil {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

func orEmptyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
