package knowledge

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-memory DocumentStore using brute-force cosine
// similarity. Suitable for tests and small local datasets; production uses
// PostgresStore.
//
// Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

// Insert stores a new document record.
func (s *MemoryStore) Insert(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = cloneDocument(doc)
	return nil
}

// Update merges the partial update into the existing record.
func (s *MemoryStore) Update(_ context.Context, id string, upd Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}

	if upd.Content != nil {
		doc.Content = *upd.Content
	}
	if upd.Metadata != nil {
		doc.Metadata = cloneMetadata(upd.Metadata)
	}
	if upd.SetEmbedding {
		doc.Embedding = cloneVector(upd.Embedding)
	}
	doc.UpdatedAt = upd.UpdatedAt

	s.docs[id] = doc
	return nil
}

// Delete removes the record. Deleting a missing id is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// Query ranks stored documents by cosine similarity to the query embedding.
// Documents without an embedding are skipped.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, limit int, filter map[string]string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results := make([]Result, 0, limit)
	for _, doc := range s.docs {
		if doc.Embedding == nil {
			continue
		}
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		results = append(results, Result{
			Document:   cloneDocument(doc),
			Similarity: cosineSimilarity(embedding, doc.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Len returns the number of stored documents, embedded or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns a copy of the stored document, for tests and non-similarity
// lookups of records without an embedding.
func (s *MemoryStore) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, false
	}
	return cloneDocument(doc), true
}

// matchesFilter reports whether metadata contains every filter entry exactly.
func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity returns the cosine of the angle between a and b, clamped
// to [0, 1]. Mismatched or empty vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(0, math.Min(1, cos))
}

func cloneDocument(doc Document) Document {
	doc.Metadata = cloneMetadata(doc.Metadata)
	doc.Embedding = cloneVector(doc.Embedding)
	return doc
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	cp := make([]float32, len(v))
	copy(cp, v)
	return cp
}
