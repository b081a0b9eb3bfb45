// Package provider wraps the external AI provider calls (embeddings,
// chat completions) with a shared retry policy and a stable error taxonomy.
//
// Both clients classify provider failures the same way:
//
//	credential errors   -> ErrUnauthorized (fail fast)
//	malformed responses -> ErrInvalidResponse (fail fast)
//	transient errors    -> retried with backoff, then ErrUnavailable
//
// The concrete provider behind the Genkit embedder/model is selected at
// application wiring time (see internal/app).
package provider

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/mavrika/mavrika/internal/log"
)

// EmbeddingClient converts text into embedding vectors via a Genkit embedder,
// retrying transient failures. Stateless and safe for concurrent use.
type EmbeddingClient struct {
	embedder ai.Embedder
	retry    RetryConfig
	logger   log.Logger
}

// NewEmbeddingClient creates an embedding client.
// A zero RetryConfig uses defaults; a nil logger uses slog's default.
func NewEmbeddingClient(embedder ai.Embedder, retry RetryConfig, logger log.Logger) *EmbeddingClient {
	if logger == nil {
		logger = log.NewNop()
	}
	return &EmbeddingClient{
		embedder: embedder,
		retry:    retry,
		logger:   logger,
	}
}

// Embed converts text into an embedding vector.
// The caller guarantees text is non-empty.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	err := c.retry.do(ctx, c.logger, "embed", func(ctx context.Context) error {
		resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{
				ai.DocumentFromText(text, nil),
			},
		})
		if err != nil {
			return err
		}

		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			// Terminal: an empty vector will stay empty on retry.
			return fmt.Errorf("%w: empty embedding", ErrInvalidResponse)
		}

		vector = resp.Embeddings[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}

	return vector, nil
}
