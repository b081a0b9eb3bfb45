// Package knowledge implements semantic document storage and retrieval.
//
// Documents are embedded on ingestion and ranked at query time by cosine
// similarity against the query embedding. Two DocumentStore backends exist:
// PostgresStore on pgvector for production and MemoryStore for tests and
// single-process deployments.
//
// Layering, inner to outer:
//
//	DocumentStore  raw persistence (insert, update, delete, vector query)
//	VectorStore    embedding generation glued onto a DocumentStore
//	KnowledgeBase  validation, id assignment, degraded-search contract
//
// Embedding failures are asymmetric. On ingestion the document is stored
// without a vector and excluded from ranking until a later update re-embeds
// it. On query the search fails with ErrQueryEmbedding, because without a
// query vector there is nothing meaningful to rank.
package knowledge
