// Package storage persists conversation transcripts so multi-turn chats can
// be continued by id.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// ConversationStore defines transcript persistence operations.
type ConversationStore interface {
	// Append adds messages to the end of a conversation, creating it if needed.
	Append(ctx context.Context, conversationID string, msgs ...models.ChatMessage) error
	// History returns every message of a conversation in order. An unknown id
	// yields an empty history.
	History(ctx context.Context, conversationID string) ([]models.ChatMessage, error)
	Delete(ctx context.Context, conversationID string) error

	// Stats
	CountConversations(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)

	Close() error
}
