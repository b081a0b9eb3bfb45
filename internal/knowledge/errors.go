package knowledge

import "errors"

var (
	// ErrEmptyContent indicates a document operation was given empty content.
	ErrEmptyContent = errors.New("document content is empty")

	// ErrEmptyID indicates a document operation was given an empty id.
	ErrEmptyID = errors.New("document id is empty")

	// ErrNotFound indicates the referenced document does not exist.
	// Delete is exempt: deleting a missing document succeeds.
	ErrNotFound = errors.New("document not found")

	// ErrStorage indicates the persistence layer failed.
	ErrStorage = errors.New("storage failure")

	// ErrQueryEmbedding indicates the search query could not be embedded.
	// Unlike ingestion, this is fatal: without a query vector there is no
	// similarity search to run.
	ErrQueryEmbedding = errors.New("query embedding failed")
)
