// Package conversation turns role-tagged chat messages into typed turns.
package conversation

import "github.com/hyperjump/kotae/internal/models"

// Kind identifies who spoke a turn.
type Kind int

const (
	Human Kind = iota
	Assistant
)

func (k Kind) String() string {
	if k == Human {
		return "human"
	}
	return "assistant"
}

// Turn is one message of a conversation.
type Turn struct {
	Kind Kind
	Text string
}

// Format maps messages to turns in order. Role "human" becomes Human; any
// other role becomes Assistant. An empty input yields an empty result.
func Format(messages []models.ChatMessage) []Turn {
	turns := make([]Turn, len(messages))
	for i, m := range messages {
		kind := Assistant
		if m.IsHuman() {
			kind = Human
		}
		turns[i] = Turn{Kind: kind, Text: m.Content}
	}
	return turns
}

// Split separates the latest message from the history before it.
// ok is false when messages is empty.
func Split(messages []models.ChatMessage) (history []models.ChatMessage, latest models.ChatMessage, ok bool) {
	if len(messages) == 0 {
		return nil, models.ChatMessage{}, false
	}
	n := len(messages) - 1
	return messages[:n:n], messages[n], true
}
