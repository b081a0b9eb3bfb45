package atlas

import (
	"sync"

	"github.com/mavrika/mavrika/internal/provider"
)

// DefaultContextWindow bounds the rolling context: the pinned system prompt
// plus the most recent turns. Older turns fall out and are only recoverable
// through the knowledge base.
const DefaultContextWindow = 10

// conversation is the rolling context of one conversation. The mutex
// serializes whole chat turns: concurrent Chat calls on the same
// conversation id queue up rather than interleave their context mutations.
type conversation struct {
	mu    sync.Mutex
	turns []provider.Message
}

func newConversation(systemPrompt string) *conversation {
	return &conversation{
		turns: []provider.Message{{
			Role:    provider.RoleSystem,
			Content: systemPrompt,
		}},
	}
}

// append adds a turn and prunes to the window: the system prompt at index 0
// is always retained, then the most recent window-1 turns.
// Caller holds c.mu.
func (c *conversation) append(window int, msgs ...provider.Message) {
	c.turns = append(c.turns, msgs...)
	if len(c.turns) <= window {
		return
	}
	keep := window - 1
	pruned := make([]provider.Message, 0, window)
	pruned = append(pruned, c.turns[0])
	pruned = append(pruned, c.turns[len(c.turns)-keep:]...)
	c.turns = pruned
}

// snapshot returns a copy of the turns for handing to the completion client.
// Caller holds c.mu.
func (c *conversation) snapshot() []provider.Message {
	cp := make([]provider.Message, len(c.turns))
	copy(cp, c.turns)
	return cp
}
