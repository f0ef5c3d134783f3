package chat

import "time"

// Roles attributed to a recorded turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one exchange unit in a dialogue. Immutable once recorded.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn stamps a turn with the current time.
func NewTurn(role, text string) Turn {
	return Turn{Role: role, Text: text, Timestamp: time.Now().UTC()}
}
