// Package cli provides output helpers for the kotae command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// ChatReply is the body returned by POST /chat.
type ChatReply struct {
	Success        bool   `json:"success"`
	Answer         string `json:"answer,omitempty"`
	Message        string `json:"message,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// IndexStatus is the index section of GET /api/v1/status.
type IndexStatus struct {
	Passages   int `json:"passages"`
	Dimensions int `json:"dimensions"`
}

// StatusReport is the body returned by GET /api/v1/status.
type StatusReport struct {
	Index          IndexStatus    `json:"index"`
	Model          string         `json:"model"`
	Conversations  int64          `json:"conversations"`
	Messages       int64          `json:"messages"`
	DiskUsageBytes *int64         `json:"disk_usage_bytes,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes a chat reply. Text output is the bare answer, followed by
// the conversation id when one was used.
func WriteAnswer(w io.Writer, reply *ChatReply, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, reply)
	}
	fmt.Fprintln(w, reply.Answer)
	if reply.ConversationID != "" {
		fmt.Fprintf(w, "\n(conversation: %s)\n", reply.ConversationID)
	}
	return nil
}

// WritePassages writes passages as produced by the chunker.
func WritePassages(w io.Writer, passages []models.Passage, format OutputFormat) error {
	if format == OutputJSON {
		if passages == nil {
			passages = []models.Passage{}
		}
		return writeJSON(w, passages)
	}
	fmt.Fprintf(w, "\n%d passages\n\n", len(passages))
	for i, p := range passages {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "#%d | page %s | offset %d | %d runes\n",
			i, p.Metadata[models.MetaPage], p.SourceOffset, utf8.RuneCountInString(p.Text))
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(p.Text, 200))
	}
	return nil
}

// WriteStatus writes a server status report.
func WriteStatus(w io.Writer, status *StatusReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Model:          %s\n", status.Model)
	fmt.Fprintf(w, "Passages:       %d\n", status.Index.Passages)
	fmt.Fprintf(w, "Dimensions:     %d\n", status.Index.Dimensions)
	fmt.Fprintf(w, "Conversations:  %d\n", status.Conversations)
	fmt.Fprintf(w, "Messages:       %d\n", status.Messages)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage:     %s\n", FormatBytes(*status.DiskUsageBytes))
	}
	if doc, ok := status.Config["document"]; ok {
		fmt.Fprintf(w, "Document:       %v\n", doc)
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
