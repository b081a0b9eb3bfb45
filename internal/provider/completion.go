package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/mavrika/mavrika/internal/log"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation, in the normalized form the rest of
// the application uses. The completion client converts these to the
// provider's message format.
type Message struct {
	Role    Role
	Content string
}

// StreamFunc receives partial response text as it is generated.
// Returning an error aborts the stream.
type StreamFunc func(ctx context.Context, chunk string) error

// CompletionConfig holds the construction parameters for CompletionClient.
type CompletionConfig struct {
	Genkit      *genkit.Genkit
	ModelName   string
	Temperature float32       // 0 leaves the model default in place
	MaxTokens   int           // 0 leaves the model default in place
	Retry       RetryConfig   // zero value uses defaults
	Limiter     *rate.Limiter // nil = default 10 req/s, burst 30
	Logger      log.Logger
}

// CompletionClient generates chat completions via a Genkit model, with
// streaming support, proactive rate limiting, and the shared retry policy.
// Safe for concurrent use.
type CompletionClient struct {
	g       *genkit.Genkit
	model   string
	genCfg  *ai.GenerationCommonConfig
	retry   RetryConfig
	limiter *rate.Limiter
	logger  log.Logger
}

// NewCompletionClient creates a completion client.
func NewCompletionClient(cfg CompletionConfig) (*CompletionClient, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	var genCfg *ai.GenerationCommonConfig
	if cfg.Temperature != 0 || cfg.MaxTokens != 0 {
		genCfg = &ai.GenerationCommonConfig{
			Temperature:     float64(cfg.Temperature),
			MaxOutputTokens: cfg.MaxTokens,
		}
	}

	return &CompletionClient{
		g:       cfg.Genkit,
		model:   cfg.ModelName,
		genCfg:  genCfg,
		retry:   cfg.Retry,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// errStreamAborted marks a stream callback failure. It must never look
// transient to the retry classifier: replaying an attempt after the caller
// already saw chunks would deliver the same partial text twice.
var errStreamAborted = errors.New("stream aborted by caller")

// Complete generates a response to the conversation. If stream is non-nil it
// receives the partial text chunks of the successful attempt; chunks are
// buffered per attempt and flushed only after generation succeeds, so a
// retried attempt never replays partial text. The full text is always
// returned after generation completes.
func (c *CompletionClient) Complete(ctx context.Context, messages []Message, stream StreamFunc) (string, error) {
	system, history := splitSystem(messages)

	opts := []ai.GenerateOption{
		ai.WithModelName(c.model),
		ai.WithMessages(history...),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	if c.genCfg != nil {
		opts = append(opts, ai.WithConfig(c.genCfg))
	}

	var (
		text      string
		streamErr error
	)
	err := c.retry.do(ctx, c.logger, "complete", func(ctx context.Context) error {
		// Rate limit each attempt, not just the first.
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		attemptOpts := opts
		var chunks []string
		if stream != nil {
			attemptOpts = append(opts[:len(opts):len(opts)],
				ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
					chunks = append(chunks, chunk.Text())
					return nil
				}))
		}

		resp, err := genkit.Generate(ctx, c.g, attemptOpts...)
		if err != nil {
			return err
		}

		text = resp.Text()
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: empty completion", ErrInvalidResponse)
		}

		for _, chunk := range chunks {
			if err := stream(ctx, chunk); err != nil {
				streamErr = err
				return errStreamAborted
			}
		}
		return nil
	})
	if streamErr != nil {
		return "", fmt.Errorf("%w: %w", errStreamAborted, streamErr)
	}
	if err != nil {
		return "", err
	}

	return text, nil
}

// splitSystem separates the system prompt from the conversational turns.
// Genkit takes the system prompt as a dedicated option rather than a message.
func splitSystem(messages []Message) (string, []*ai.Message) {
	var system strings.Builder
	history := make([]*ai.Message, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case RoleAssistant:
			history = append(history, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			history = append(history, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}

	return system.String(), history
}
