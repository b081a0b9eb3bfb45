package atlas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mavrika/mavrika/internal/eve"
	"github.com/mavrika/mavrika/internal/knowledge"
	"github.com/mavrika/mavrika/internal/provider"
	"github.com/mavrika/mavrika/internal/task"
)

// ============================================================
// Collaborator stubs
// ============================================================

// scriptedCompleter returns canned responses in order, recording the message
// sequences it was called with.
type scriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]provider.Message
}

func (c *scriptedCompleter) Complete(ctx context.Context, messages []provider.Message, stream provider.StreamFunc) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}

	cp := make([]provider.Message, len(messages))
	copy(cp, messages)
	c.calls = append(c.calls, cp)

	response := "ok"
	if len(c.responses) > 0 {
		response = c.responses[0]
		if len(c.responses) > 1 {
			c.responses = c.responses[1:]
		}
	}
	if stream != nil {
		if err := stream(ctx, response); err != nil {
			return "", err
		}
	}
	return response, nil
}

type stubKB struct {
	results []knowledge.Result
	added   []knowledge.Document
	addErr  error
}

func (kb *stubKB) Search(context.Context, string, ...knowledge.SearchOption) []knowledge.Result {
	return kb.results
}

func (kb *stubKB) AddDocument(_ context.Context, content string, metadata map[string]string) (string, error) {
	if kb.addErr != nil {
		return "", kb.addErr
	}
	kb.added = append(kb.added, knowledge.Document{Content: content, Metadata: metadata})
	return fmt.Sprintf("doc-%d", len(kb.added)), nil
}

type stubAgents struct {
	created []CreateAgent
	roster  []eve.EVE
	err     error
}

func (a *stubAgents) Create(_ context.Context, name, role string) (eve.EVE, error) {
	if a.err != nil {
		return eve.EVE{}, a.err
	}
	a.created = append(a.created, CreateAgent{Name: name, Role: role})
	return eve.EVE{ID: fmt.Sprintf("eve-%d", len(a.created)), Name: name, Role: role, Status: eve.StatusActive}, nil
}

func (a *stubAgents) List(context.Context) []eve.EVE { return a.roster }

type stubTasks struct {
	assigned []AssignTask
	pending  int
}

func (t *stubTasks) Assign(_ context.Context, eveID, description string) (task.Task, error) {
	t.assigned = append(t.assigned, AssignTask{EveID: eveID, Description: description})
	return task.Task{ID: fmt.Sprintf("task-%d", len(t.assigned))}, nil
}

func (t *stubTasks) Pending(context.Context) int { return t.pending }

type fixture struct {
	orch      *Orchestrator
	completer *scriptedCompleter
	kb        *stubKB
	agents    *stubAgents
	tasks     *stubTasks
}

func newFixture(cfg Config, responses ...string) *fixture {
	f := &fixture{
		completer: &scriptedCompleter{responses: responses},
		kb:        &stubKB{},
		agents:    &stubAgents{},
		tasks:     &stubTasks{},
	}
	f.orch = New(f.completer, f.kb, f.agents, f.tasks, cfg)
	return f
}

// ============================================================
// Chat
// ============================================================

func TestChatNotConfigured(t *testing.T) {
	orch := New(nil, &stubKB{}, &stubAgents{}, &stubTasks{}, Config{})
	_, err := orch.Chat(context.Background(), "hello", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Chat() error = %v, want ErrNotConfigured", err)
	}
}

func TestChatReturnsResponse(t *testing.T) {
	f := newFixture(Config{}, "Hello, operator.")
	got, err := f.orch.Chat(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "Hello, operator." {
		t.Errorf("Chat() = %q, want the model response", got)
	}
}

func TestChatAugmentsTurn(t *testing.T) {
	f := newFixture(Config{CompanyID: "acme"}, "ok")
	f.kb.results = []knowledge.Result{
		{Document: knowledge.Document{Content: "Revenue grew 12% last quarter."}},
	}
	f.agents.roster = []eve.EVE{{Name: "Nova", Role: "Analyst", Status: eve.StatusActive}}
	f.tasks.pending = 3

	if _, err := f.orch.Chat(context.Background(), "how are we doing?", nil); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	calls := f.completer.calls
	if len(calls) != 1 {
		t.Fatalf("completer called %d times, want 1", len(calls))
	}
	messages := calls[0]
	if messages[0].Role != provider.RoleSystem {
		t.Errorf("messages[0].Role = %q, want system", messages[0].Role)
	}

	turn := messages[len(messages)-1]
	if turn.Role != provider.RoleUser {
		t.Errorf("last message role = %q, want user", turn.Role)
	}
	for _, want := range []string{
		"Revenue grew 12% last quarter.",
		"EVE Nova (Analyst): active",
		"pending tasks: 3",
		"how are we doing?",
	} {
		if !strings.Contains(turn.Content, want) {
			t.Errorf("augmented turn missing %q:\n%s", want, turn.Content)
		}
	}
}

func TestChatStreamsProgress(t *testing.T) {
	f := newFixture(Config{}, "streamed answer")

	var chunks []string
	_, err := f.orch.Chat(context.Background(), "hi", func(_ context.Context, chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(chunks) == 0 || strings.Join(chunks, "") != "streamed answer" {
		t.Errorf("chunks = %v, want the streamed response", chunks)
	}
}

// ============================================================
// Command dispatch
// ============================================================

func TestChatDispatchesCreateAgentOnce(t *testing.T) {
	f := newFixture(Config{},
		`On it! [create_eve {"name":"Echo","role":"Content Strategist"}] Echo joins the team.`)

	got, err := f.orch.Chat(context.Background(), "Create a marketing specialist", nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if len(f.agents.created) != 1 {
		t.Fatalf("agent creations = %d, want exactly 1", len(f.agents.created))
	}
	if c := f.agents.created[0]; c.Name != "Echo" || c.Role != "Content Strategist" {
		t.Errorf("created = %+v, want Echo / Content Strategist", c)
	}
	if strings.Contains(got, "[create_eve") {
		t.Errorf("returned text still contains command token: %q", got)
	}
	if !strings.Contains(got, "Echo joins the team.") {
		t.Errorf("returned text lost the prose: %q", got)
	}
}

func TestChatDispatchesTaskAndKnowledge(t *testing.T) {
	f := newFixture(Config{CompanyID: "acme"},
		`[assign_task {"eve_id":"eve-1","description":"draft the memo"}] and [update_knowledge {"content":"Memo drafted","metadata":{"type":"note"}}]`)

	if _, err := f.orch.Chat(context.Background(), "get it done", nil); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if len(f.tasks.assigned) != 1 || f.tasks.assigned[0].Description != "draft the memo" {
		t.Errorf("assigned = %+v, want one draft-the-memo task", f.tasks.assigned)
	}
	if len(f.kb.added) != 1 {
		t.Fatalf("documents added = %d, want 1", len(f.kb.added))
	}
	added := f.kb.added[0]
	if added.Content != "Memo drafted" {
		t.Errorf("added content = %q", added.Content)
	}
	if added.Metadata["type"] != "note" || added.Metadata[knowledge.MetaCompanyID] != "acme" {
		t.Errorf("added metadata = %v, want type and tenant scope", added.Metadata)
	}
}

func TestChatSkipsUnparseableCommand(t *testing.T) {
	f := newFixture(Config{},
		`[create_eve {"name":"Echo",]] still a fine answer`)

	got, err := f.orch.Chat(context.Background(), "create someone", nil)
	if err != nil {
		t.Fatalf("Chat() error = %v, want unparseable command skipped", err)
	}
	if len(f.agents.created) != 0 {
		t.Errorf("agent creations = %d, want 0", len(f.agents.created))
	}
	if !strings.Contains(got, "still a fine answer") {
		t.Errorf("Chat() = %q, want the prose preserved", got)
	}
}

func TestChatDispatchFailureWrapped(t *testing.T) {
	cause := errors.New("roster full")
	f := newFixture(Config{}, `[create_eve {"name":"Echo","role":"PM"}]`)
	f.agents.err = cause

	_, err := f.orch.Chat(context.Background(), "create", nil)
	if err == nil {
		t.Fatal("Chat() error = nil, want dispatch failure")
	}

	var atlasErr *Error
	if !errors.As(err, &atlasErr) {
		t.Fatalf("Chat() error = %T, want *Error", err)
	}
	if atlasErr.Op != "dispatch" {
		t.Errorf("Op = %q, want dispatch", atlasErr.Op)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error chain %v does not carry the cause", err)
	}
	if !errors.Is(f.orch.LastError(), cause) {
		t.Errorf("LastError() = %v, want the dispatch failure retained", f.orch.LastError())
	}
}

func TestChatCompletionFailureWrapped(t *testing.T) {
	cause := errors.New("provider down")
	f := newFixture(Config{})
	f.completer.err = cause

	_, err := f.orch.Chat(context.Background(), "hi", nil)
	var atlasErr *Error
	if !errors.As(err, &atlasErr) || atlasErr.Op != "complete" {
		t.Fatalf("Chat() error = %v, want *Error with op complete", err)
	}
	if !errors.Is(f.orch.LastError(), cause) {
		t.Errorf("LastError() = %v, want retained", f.orch.LastError())
	}

	// A failed turn leaves no residue in the rolling context.
	f.completer.err = nil
	f.completer.responses = []string{"recovered"}
	if _, err := f.orch.Chat(context.Background(), "again", nil); err != nil {
		t.Fatalf("Chat() after recovery error = %v", err)
	}
	conv := f.orch.conversation(DefaultConversation)
	if len(conv.turns) != 3 { // system + one user + one assistant
		t.Errorf("context length = %d after one successful turn, want 3", len(conv.turns))
	}
}

func TestChatKeepCommandTokens(t *testing.T) {
	f := newFixture(Config{KeepCommandTokens: true},
		`done [create_eve {"name":"Echo","role":"PM"}]`)

	got, err := f.orch.Chat(context.Background(), "create", nil)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !strings.Contains(got, "[create_eve") {
		t.Errorf("Chat() = %q, want raw tokens kept", got)
	}
}

// ============================================================
// Context window
// ============================================================

func TestChatContextBounded(t *testing.T) {
	f := newFixture(Config{}, "reply")
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := f.orch.Chat(ctx, fmt.Sprintf("message %d", i), nil); err != nil {
			t.Fatalf("Chat(%d) error = %v", i, err)
		}
	}

	conv := f.orch.conversation(DefaultConversation)
	if len(conv.turns) > DefaultContextWindow {
		t.Errorf("context length = %d, want <= %d", len(conv.turns), DefaultContextWindow)
	}
	if conv.turns[0].Role != provider.RoleSystem || conv.turns[0].Content != DefaultSystemPrompt {
		t.Errorf("turns[0] = %+v, want the pinned system prompt", conv.turns[0])
	}
	last := conv.turns[len(conv.turns)-1]
	if last.Role != provider.RoleAssistant {
		t.Errorf("newest turn role = %q, want assistant", last.Role)
	}
	// The newest turns survived pruning.
	if !strings.Contains(conv.turns[len(conv.turns)-2].Content, "message 14") {
		t.Errorf("newest user turn = %q, want message 14", conv.turns[len(conv.turns)-2].Content)
	}
}

func TestChatConversationsIsolated(t *testing.T) {
	f := newFixture(Config{}, "reply")
	ctx := context.Background()

	if _, err := f.orch.ChatIn(ctx, "alice", "from alice", nil); err != nil {
		t.Fatalf("ChatIn(alice) error = %v", err)
	}
	if _, err := f.orch.ChatIn(ctx, "bob", "from bob", nil); err != nil {
		t.Fatalf("ChatIn(bob) error = %v", err)
	}

	alice := f.orch.conversation("alice")
	bob := f.orch.conversation("bob")
	if len(alice.turns) != 3 || len(bob.turns) != 3 {
		t.Fatalf("context lengths = %d, %d, want 3 each", len(alice.turns), len(bob.turns))
	}
	if !strings.Contains(alice.turns[1].Content, "from alice") {
		t.Errorf("alice context = %q, want only alice's turn", alice.turns[1].Content)
	}
	if strings.Contains(bob.turns[1].Content, "from alice") {
		t.Error("bob's context contains alice's turn")
	}
}

func TestSetCompany(t *testing.T) {
	f := newFixture(Config{CompanyID: "acme"}, `[update_knowledge {"content":"note"}]`)
	f.orch.SetCompany("globex")

	if _, err := f.orch.Chat(context.Background(), "save this", nil); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if len(f.kb.added) != 1 || f.kb.added[0].Metadata[knowledge.MetaCompanyID] != "globex" {
		t.Errorf("added = %+v, want globex tenant scope", f.kb.added)
	}
}
