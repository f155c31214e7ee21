package models

// Role identifies the author of a chat message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one message of a conversation as supplied by the caller.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// IsHuman reports whether the message was written by the user. Every other
// role, including unknown ones, counts as assistant.
func (m ChatMessage) IsHuman() bool {
	return m.Role == RoleHuman
}
