// Package rag implements the per-question pipeline: history-aware query
// rewriting, retrieval, grounded answer synthesis, and stream aggregation.
package rag

import (
	"strings"

	"github.com/hyperjump/kotae/internal/conversation"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

// ContextPlaceholder is replaced by the retrieved passages in the system template.
const ContextPlaceholder = "{context}"

// DefaultSystemTemplate instructs the model to answer from the retrieved passages only.
const DefaultSystemTemplate = `You are an assistant that answers questions about a single document.
Answer using only the passages inside the <doc> tags below. If they do not contain
the answer, say that you don't know. Keep the answer short and do not mention the tags.

` + ContextPlaceholder

// DefaultRephraseInstruction asks the model for a standalone search query.
const DefaultRephraseInstruction = "Given the above conversation, generate a natural language search query to look up in order to get information relevant to the conversation. Do not respond with anything except the query."

// FormatContext wraps each passage in <doc> tags, in ranked order, separated by blank lines.
func FormatContext(results []models.RetrievalResult) string {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = "<doc>\n" + r.Passage.Text + "</doc>"
	}
	return strings.Join(docs, "\n\n")
}

// historyMessages converts turns to chat model messages.
func historyMessages(turns []conversation.Turn) []llm.Message {
	msgs := make([]llm.Message, len(turns))
	for i, t := range turns {
		role := llm.RoleAssistant
		if t.Kind == conversation.Human {
			role = llm.RoleUser
		}
		msgs[i] = llm.Message{Role: role, Content: t.Text}
	}
	return msgs
}
