package knowledge

import "time"

// Conventional metadata keys. Keys are caller-defined; the system reserves
// none, but these two are what Atlas and the search filters use.
const (
	// MetaType categorizes a document ("report", "policy", "conversation").
	MetaType = "type"

	// MetaCompanyID scopes a document to a tenant.
	MetaCompanyID = "company_id"
)

// DefaultSearchLimit is the maximum number of results returned when no limit
// option is given.
const DefaultSearchLimit = 5

// Document is a unit of stored text with optional metadata and embedding.
type Document struct {
	ID       string            // Unique identifier, immutable
	Content  string            // Document text content
	Metadata map[string]string // Optional metadata (type, company_id, filename, ...)

	// Embedding is the content's vector representation. Nil when embedding
	// generation failed at ingestion; such documents are stored but excluded
	// from similarity ranking.
	Embedding []float32

	CreatedAt time.Time
	UpdatedAt time.Time // bumped on every content or metadata mutation
}

// Result is a single search result with its similarity score.
type Result struct {
	Document
	Similarity float64 // cosine similarity, clamped to [0, 1]; higher is more relevant
}

// Update describes a partial document mutation. Nil fields are left
// unchanged.
type Update struct {
	Content  *string           // new content, or nil
	Metadata map[string]string // replacement metadata, or nil

	// Embedding replaces the stored vector when SetEmbedding is true.
	// A nil Embedding with SetEmbedding clears the stored vector.
	Embedding    []float32
	SetEmbedding bool

	UpdatedAt time.Time
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	limit  int
	filter map[string]string
}

// WithLimit sets the maximum number of results to return.
// Default is DefaultSearchLimit.
func WithLimit(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithFilter adds an exact-match metadata constraint. Multiple calls combine
// with AND logic.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithType restricts results to documents of the given type.
// Shorthand for WithFilter(MetaType, t).
func WithType(t string) SearchOption {
	return WithFilter(MetaType, t)
}

// buildSearchConfig applies the options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{limit: DefaultSearchLimit}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
