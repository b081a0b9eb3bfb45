package atlas

import (
	"fmt"
	"strings"

	"github.com/mavrika/mavrika/internal/eve"
	"github.com/mavrika/mavrika/internal/knowledge"
)

// DefaultSystemPrompt seeds every conversation. It describes Atlas's role
// and the command tokens it may emit.
const DefaultSystemPrompt = `You are Atlas, the orchestrator agent for this company's workspace.
You coordinate a roster of EVE agents, assign them tasks, and answer the
operator's questions grounded in the company knowledge base.

When an action is needed, embed exactly one command token in your response:
  [create_eve {"name":"...","role":"..."}]
  [assign_task {"eve_id":"...","description":"..."}]
  [update_knowledge {"content":"...","metadata":{"key":"value"}}]
Only emit a command when the operator asked for the corresponding action.`

// systemState is the live snapshot embedded into each augmented turn.
type systemState struct {
	agents       []eve.EVE
	pendingTasks int
}

// buildAugmentedTurn assembles the user turn sent to the model: retrieved
// knowledge, the system state snapshot, and the raw operator message.
func buildAugmentedTurn(results []knowledge.Result, state systemState, message string) string {
	var b strings.Builder

	if len(results) > 0 {
		b.WriteString("Relevant knowledge:\n")
		for _, r := range results {
			fmt.Fprintf(&b, "- %s\n", r.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("System state:\n")
	if len(state.agents) == 0 {
		b.WriteString("- no EVE agents provisioned\n")
	}
	for _, a := range state.agents {
		fmt.Fprintf(&b, "- EVE %s (%s): %s\n", a.Name, a.Role, a.Status)
	}
	fmt.Fprintf(&b, "- pending tasks: %d\n\n", state.pendingTasks)

	b.WriteString("Operator message:\n")
	b.WriteString(message)
	return b.String()
}
