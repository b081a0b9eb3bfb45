package atlas

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Command is a side-effecting directive parsed from model output. The set of
// variants is closed: CreateAgent, AssignTask, UpdateKnowledge.
type Command interface {
	commandName() string
}

// CreateAgent provisions a new EVE agent.
type CreateAgent struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (CreateAgent) commandName() string { return "create_eve" }

// AssignTask queues a work item for an EVE.
type AssignTask struct {
	EveID       string `json:"eve_id"`
	Description string `json:"description"`
}

func (AssignTask) commandName() string { return "assign_task" }

// UpdateKnowledge stores new content in the knowledge base.
type UpdateKnowledge struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func (UpdateKnowledge) commandName() string { return "update_knowledge" }

// commandToken matches "[command_name {json args}]" in model output. The
// argument object must not itself contain square brackets.
var commandToken = regexp.MustCompile(`\[(create_eve|assign_task|update_knowledge)\s*(\{.*?\})?\s*\]`)

// commandOpen matches the start of a command token regardless of whether the
// token closes properly. Openings with no commandToken match at the same
// position are truncated tokens and must surface as issues, not vanish.
var commandOpen = regexp.MustCompile(`\[(create_eve|assign_task|update_knowledge)\b`)

// parseCommands scans text for command tokens and validates each into its
// typed variant. Tokens with malformed or incomplete arguments are returned
// as issues, not errors: the caller logs and continues, the model response
// itself stays usable.
func parseCommands(text string) ([]Command, []string) {
	var (
		commands []Command
		issues   []string
	)

	closed := make(map[int]bool)
	for _, m := range commandToken.FindAllStringSubmatchIndex(text, -1) {
		closed[m[0]] = true

		name := text[m[2]:m[3]]
		var args string
		if m[4] >= 0 {
			args = text[m[4]:m[5]]
		}

		cmd, err := parseCommand(name, args)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		commands = append(commands, cmd)
	}

	for _, m := range commandOpen.FindAllStringSubmatchIndex(text, -1) {
		if !closed[m[0]] {
			issues = append(issues, fmt.Sprintf("%s: unterminated command token", text[m[2]:m[3]]))
		}
	}
	return commands, issues
}

func parseCommand(name, args string) (Command, error) {
	if args == "" {
		return nil, fmt.Errorf("missing arguments")
	}

	switch name {
	case "create_eve":
		var c CreateAgent
		if err := json.Unmarshal([]byte(args), &c); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if c.Name == "" {
			return nil, fmt.Errorf("missing name")
		}
		return c, nil

	case "assign_task":
		var c AssignTask
		if err := json.Unmarshal([]byte(args), &c); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if c.Description == "" {
			return nil, fmt.Errorf("missing description")
		}
		return c, nil

	case "update_knowledge":
		var c UpdateKnowledge
		if err := json.Unmarshal([]byte(args), &c); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if c.Content == "" {
			return nil, fmt.Errorf("missing content")
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown command")
}

// StripCommands removes command tokens from text for display, collapsing the
// whitespace they leave behind. The raw text, tokens included, is what goes
// into the rolling context.
func StripCommands(text string) string {
	stripped := commandToken.ReplaceAllString(text, "")
	lines := strings.Split(stripped, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" && len(out) > 0 && out[len(out)-1] == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
