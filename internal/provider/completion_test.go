package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/mavrika/mavrika/internal/log"
	"github.com/mavrika/mavrika/internal/testutil"
)

// newCompletionFixture registers a MockLLM against a fresh genkit instance
// and returns a client pointed at it.
func newCompletionFixture(t *testing.T, mock *testutil.MockLLM) *CompletionClient {
	t.Helper()

	g := genkit.Init(context.Background())
	mock.RegisterModel(g)

	client, err := NewCompletionClient(CompletionConfig{
		Genkit:    g,
		ModelName: "mock/test-model",
		Retry:     fastRetry(3),
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewCompletionClient() = %v", err)
	}
	return client
}

func TestNewCompletionClient(t *testing.T) {
	g := genkit.Init(context.Background())

	t.Run("requires genkit", func(t *testing.T) {
		if _, err := NewCompletionClient(CompletionConfig{ModelName: "m"}); err == nil {
			t.Fatal("expected error for nil genkit")
		}
	})

	t.Run("requires model name", func(t *testing.T) {
		if _, err := NewCompletionClient(CompletionConfig{Genkit: g}); err == nil {
			t.Fatal("expected error for empty model name")
		}
	})

	t.Run("nil logger and limiter get defaults", func(t *testing.T) {
		client, err := NewCompletionClient(CompletionConfig{Genkit: g, ModelName: "m"})
		if err != nil {
			t.Fatalf("NewCompletionClient() = %v", err)
		}
		if client.logger == nil || client.limiter == nil {
			t.Fatal("defaults not applied")
		}
	})
}

func TestCompletionClientComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("returns response text", func(t *testing.T) {
		mock := testutil.NewMockLLM("Understood.")
		mock.AddResponse("revenue", "Q3 revenue was 4.2M EUR.")
		client := newCompletionFixture(t, mock)

		got, err := client.Complete(ctx, []Message{
			{Role: RoleSystem, Content: "You are Atlas."},
			{Role: RoleUser, Content: "What was the revenue last quarter?"},
		}, nil)
		if err != nil {
			t.Fatalf("Complete() = %v", err)
		}
		if got != "Q3 revenue was 4.2M EUR." {
			t.Errorf("Complete() = %q", got)
		}
	})

	t.Run("system prompt reaches the model as system role", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		client := newCompletionFixture(t, mock)

		if _, err := client.Complete(ctx, []Message{
			{Role: RoleSystem, Content: "You are Atlas."},
			{Role: RoleUser, Content: "hello"},
		}, nil); err != nil {
			t.Fatalf("Complete() = %v", err)
		}

		calls := mock.Calls()
		if len(calls) != 1 {
			t.Fatalf("calls = %d, want 1", len(calls))
		}
		if !strings.Contains(calls[0].System, "You are Atlas.") {
			t.Errorf("system prompt not forwarded: %q", calls[0].System)
		}
		if calls[0].UserMessage != "hello" {
			t.Errorf("user message = %q", calls[0].UserMessage)
		}
	})

	t.Run("streams chunks and returns full text", func(t *testing.T) {
		mock := testutil.NewMockLLM("streamed reply")
		client := newCompletionFixture(t, mock)

		var chunks []string
		got, err := client.Complete(ctx, []Message{
			{Role: RoleUser, Content: "hi"},
		}, func(_ context.Context, chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		if err != nil {
			t.Fatalf("Complete() = %v", err)
		}
		if got != "streamed reply" {
			t.Errorf("Complete() = %q", got)
		}
		if strings.Join(chunks, "") != "streamed reply" {
			t.Errorf("streamed %q, want full text", strings.Join(chunks, ""))
		}
	})

	t.Run("generation config is forwarded to the model", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		g := genkit.Init(ctx)
		mock.RegisterModel(g)

		client, err := NewCompletionClient(CompletionConfig{
			Genkit:      g,
			ModelName:   "mock/test-model",
			Temperature: 0.2,
			MaxTokens:   512,
			Retry:       fastRetry(3),
			Logger:      log.NewNop(),
		})
		if err != nil {
			t.Fatalf("NewCompletionClient() = %v", err)
		}

		if _, err := client.Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}}, nil); err != nil {
			t.Fatalf("Complete() = %v", err)
		}

		calls := mock.Calls()
		if len(calls) != 1 {
			t.Fatalf("calls = %d, want 1", len(calls))
		}
		cfg, ok := calls[0].Config.(*ai.GenerationCommonConfig)
		if !ok {
			t.Fatalf("request config = %T, want *ai.GenerationCommonConfig", calls[0].Config)
		}
		if cfg.Temperature != 0.2 {
			t.Errorf("Temperature = %v, want 0.2", cfg.Temperature)
		}
		if cfg.MaxOutputTokens != 512 {
			t.Errorf("MaxOutputTokens = %d, want 512", cfg.MaxOutputTokens)
		}
	})

	t.Run("zero config sends no generation config", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		client := newCompletionFixture(t, mock)

		if _, err := client.Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}}, nil); err != nil {
			t.Fatalf("Complete() = %v", err)
		}
		if cfg := mock.Calls()[0].Config; cfg != nil {
			t.Errorf("request config = %v, want nil", cfg)
		}
	})

	t.Run("retried attempt does not replay chunks", func(t *testing.T) {
		mock := testutil.NewMockLLM("second try")
		mock.FailTimes(1, errors.New("503 model overloaded"))
		client := newCompletionFixture(t, mock)

		var chunks []string
		got, err := client.Complete(ctx, []Message{
			{Role: RoleUser, Content: "hi"},
		}, func(_ context.Context, chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		if err != nil {
			t.Fatalf("Complete() = %v", err)
		}
		if got != "second try" {
			t.Errorf("Complete() = %q", got)
		}
		if len(chunks) != 1 || chunks[0] != "second try" {
			t.Errorf("chunks = %q, want the successful attempt's text exactly once", chunks)
		}
	})

	t.Run("stream callback error aborts without retry", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		client := newCompletionFixture(t, mock)

		abort := errors.New("consumer gone")
		_, err := client.Complete(ctx, []Message{
			{Role: RoleUser, Content: "hi"},
		}, func(context.Context, string) error {
			return abort
		})
		if !errors.Is(err, abort) {
			t.Fatalf("Complete() = %v, want wrapped abort cause", err)
		}
		if len(mock.Calls()) != 1 {
			t.Errorf("generations = %d, want 1 (no retry after abort)", len(mock.Calls()))
		}
	})

	t.Run("transient model error exhausts retries", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		mock.SetError(errors.New("503 model overloaded"))
		client := newCompletionFixture(t, mock)

		_, err := client.Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}}, nil)
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("Complete() = %v, want ErrUnavailable", err)
		}
		if len(mock.Calls()) != 0 {
			t.Errorf("failed generations should not be recorded, got %d", len(mock.Calls()))
		}
	})

	t.Run("auth error is not retried", func(t *testing.T) {
		mock := testutil.NewMockLLM("ok")
		mock.SetError(errors.New("401 API key not valid"))
		client := newCompletionFixture(t, mock)

		_, err := client.Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}}, nil)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Complete() = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("blank completion is invalid response", func(t *testing.T) {
		mock := testutil.NewMockLLM("   ")
		client := newCompletionFixture(t, mock)

		_, err := client.Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}}, nil)
		if !errors.Is(err, ErrInvalidResponse) {
			t.Fatalf("Complete() = %v, want ErrInvalidResponse", err)
		}
	})
}

func TestSplitSystem(t *testing.T) {
	system, history := splitSystem([]Message{
		{Role: RoleSystem, Content: "first directive"},
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, Content: "answer"},
		{Role: RoleSystem, Content: "second directive"},
	})

	if system != "first directive\n\nsecond directive" {
		t.Errorf("system = %q", system)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want 2", len(history))
	}
	if history[0].Text() != "question" || history[1].Text() != "answer" {
		t.Errorf("history = [%q, %q]", history[0].Text(), history[1].Text())
	}
}
