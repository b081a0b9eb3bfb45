// Package atlas implements the conversational orchestrator. Atlas grounds
// each operator message in knowledge base retrieval and a live system state
// snapshot, delegates to the completion provider, and translates command
// tokens in the model's response into side effects on the EVE roster, the
// task tracker, and the knowledge base.
package atlas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mavrika/mavrika/internal/eve"
	"github.com/mavrika/mavrika/internal/knowledge"
	"github.com/mavrika/mavrika/internal/log"
	"github.com/mavrika/mavrika/internal/provider"
	"github.com/mavrika/mavrika/internal/task"
)

// DefaultKnowledgeTopK is how many knowledge entries ground each turn.
const DefaultKnowledgeTopK = 5

// DefaultConversation is the conversation id used when the caller does not
// manage multiple conversations.
const DefaultConversation = "default"

// ErrNotConfigured indicates Chat was called before a completion client was
// wired in, usually a missing provider API key.
var ErrNotConfigured = errors.New("atlas is not configured")

// Error wraps any failure during a chat turn with the phase it occurred in.
// Knowledge retrieval never produces one: grounding degrades to an
// unaugmented turn when search fails.
type Error struct {
	Op  string // "complete", "dispatch"
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("atlas %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Completer produces a chat completion for a message sequence. Satisfied by
// provider.CompletionClient.
type Completer interface {
	Complete(ctx context.Context, messages []provider.Message, stream provider.StreamFunc) (string, error)
}

// KnowledgeBase is the slice of the knowledge facade Atlas consumes:
// retrieval for grounding and ingestion for update_knowledge commands.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) []knowledge.Result
	AddDocument(ctx context.Context, content string, metadata map[string]string) (string, error)
}

// AgentService is the EVE roster collaborator.
type AgentService interface {
	Create(ctx context.Context, name, role string) (eve.EVE, error)
	List(ctx context.Context) []eve.EVE
}

// TaskService is the task tracker collaborator.
type TaskService interface {
	Assign(ctx context.Context, eveID, description string) (task.Task, error)
	Pending(ctx context.Context) int
}

// Config holds orchestrator settings.
type Config struct {
	// CompanyID scopes knowledge retrieval and ingested documents to the
	// tenant. Mutable via SetCompany.
	CompanyID string

	// ContextWindow bounds the rolling context. Default DefaultContextWindow.
	ContextWindow int

	// KnowledgeTopK is how many knowledge entries ground each turn.
	// Default DefaultKnowledgeTopK.
	KnowledgeTopK int

	// SystemPrompt seeds each conversation. Default DefaultSystemPrompt.
	SystemPrompt string

	// KeepCommandTokens leaves command tokens in the returned text instead
	// of stripping them before display.
	KeepCommandTokens bool

	Logger log.Logger
}

// Orchestrator is Atlas. It maintains one rolling context per conversation
// id and serializes turns within a conversation; turns in different
// conversations proceed independently.
type Orchestrator struct {
	completer Completer
	kb        KnowledgeBase
	agents    AgentService
	tasks     TaskService
	cfg       Config
	logger    log.Logger

	mu            sync.Mutex
	companyID     string
	conversations map[string]*conversation
	lastErr       error
}

// New creates the orchestrator. A nil completer is allowed: the orchestrator
// stays unconfigured and Chat fails with ErrNotConfigured until the
// completion provider is available.
func New(completer Completer, kb KnowledgeBase, agents AgentService, tasks TaskService, cfg Config) *Orchestrator {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.KnowledgeTopK <= 0 {
		cfg.KnowledgeTopK = DefaultKnowledgeTopK
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Orchestrator{
		completer:     completer,
		kb:            kb,
		agents:        agents,
		tasks:         tasks,
		cfg:           cfg,
		logger:        logger,
		companyID:     cfg.CompanyID,
		conversations: make(map[string]*conversation),
	}
}

// SetCompany changes the tenant scope for retrieval and ingestion.
func (o *Orchestrator) SetCompany(companyID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.companyID = companyID
}

// LastError returns the most recent chat turn failure, nil if none.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Chat runs one turn of the default conversation.
func (o *Orchestrator) Chat(ctx context.Context, message string, onProgress provider.StreamFunc) (string, error) {
	return o.ChatIn(ctx, DefaultConversation, message, onProgress)
}

// ChatIn runs one turn of the named conversation: retrieve grounding
// knowledge, build the augmented turn, complete, dispatch commands, and
// update the rolling context. Streaming chunks go through onProgress when
// non-nil. The returned text has command tokens stripped unless configured
// otherwise; the raw response is what enters the context.
func (o *Orchestrator) ChatIn(ctx context.Context, conversationID, message string, onProgress provider.StreamFunc) (string, error) {
	if o.completer == nil {
		return "", ErrNotConfigured
	}
	if conversationID == "" {
		conversationID = DefaultConversation
	}

	conv := o.conversation(conversationID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	companyID := o.company()

	// Grounding retrieval uses the degraded-search contract: a transient
	// failure means this turn proceeds without knowledge, not that the
	// conversation dies.
	searchOpts := []knowledge.SearchOption{knowledge.WithLimit(o.cfg.KnowledgeTopK)}
	if companyID != "" {
		searchOpts = append(searchOpts, knowledge.WithFilter(knowledge.MetaCompanyID, companyID))
	}
	results := o.kb.Search(ctx, message, searchOpts...)

	state := systemState{pendingTasks: o.tasks.Pending(ctx)}
	state.agents = o.agents.List(ctx)

	userTurn := provider.Message{
		Role:    provider.RoleUser,
		Content: buildAugmentedTurn(results, state, message),
	}
	messages := append(conv.snapshot(), userTurn)

	response, err := o.completer.Complete(ctx, messages, onProgress)
	if err != nil {
		return "", o.fail(&Error{Op: "complete", Err: err})
	}

	if err := o.dispatchCommands(ctx, companyID, response); err != nil {
		return "", o.fail(&Error{Op: "dispatch", Err: err})
	}

	// The raw response, command tokens included, enters the context so the
	// model can see its own past actions.
	conv.append(o.cfg.ContextWindow, userTurn, provider.Message{
		Role:    provider.RoleAssistant,
		Content: response,
	})

	if o.cfg.KeepCommandTokens {
		return response, nil
	}
	return StripCommands(response), nil
}

// dispatchCommands parses and executes command tokens from the response.
// Unparseable tokens are logged and skipped; collaborator failures abort.
func (o *Orchestrator) dispatchCommands(ctx context.Context, companyID, response string) error {
	commands, issues := parseCommands(response)
	for _, issue := range issues {
		o.logger.Warn("skipping unparseable command", "issue", issue)
	}

	for _, cmd := range commands {
		switch c := cmd.(type) {
		case CreateAgent:
			created, err := o.agents.Create(ctx, c.Name, c.Role)
			if err != nil {
				return fmt.Errorf("create_eve: %w", err)
			}
			o.logger.Info("dispatched create_eve", "eve_id", created.ID, "name", c.Name)

		case AssignTask:
			assigned, err := o.tasks.Assign(ctx, c.EveID, c.Description)
			if err != nil {
				return fmt.Errorf("assign_task: %w", err)
			}
			o.logger.Info("dispatched assign_task", "task_id", assigned.ID, "eve_id", c.EveID)

		case UpdateKnowledge:
			metadata := make(map[string]string, len(c.Metadata)+1)
			for k, v := range c.Metadata {
				metadata[k] = v
			}
			if companyID != "" {
				metadata[knowledge.MetaCompanyID] = companyID
			}
			id, err := o.kb.AddDocument(ctx, c.Content, metadata)
			if err != nil {
				return fmt.Errorf("update_knowledge: %w", err)
			}
			o.logger.Info("dispatched update_knowledge", "document_id", id)
		}
	}
	return nil
}

// conversation returns the rolling context for the id, creating it on first
// use with the pinned system prompt.
func (o *Orchestrator) conversation(id string) *conversation {
	o.mu.Lock()
	defer o.mu.Unlock()
	conv, ok := o.conversations[id]
	if !ok {
		conv = newConversation(o.cfg.SystemPrompt)
		o.conversations[id] = conv
	}
	return conv
}

func (o *Orchestrator) company() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.companyID
}

// fail records the turn failure for LastError and returns it.
func (o *Orchestrator) fail(err *Error) error {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
	o.logger.Error("chat turn failed", "op", err.Op, "error", err.Err)
	return err
}
