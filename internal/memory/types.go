package memory

import (
	"context"
	"strings"
	"time"
)

// Conversation turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn stores a single user or assistant conversational turn. Immutable once
// appended.
type Turn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves per-user conversation history. Histories are
// created lazily on first append and capped at a fixed maximum length, with
// the oldest turns evicted first.
type Store interface {
	AppendTurn(ctx context.Context, turn Turn) error
	Recent(ctx context.Context, userID string, limit int) ([]Turn, error)
	Close() error
}

// RenderContext formats turns as a role-prefixed transcript, oldest first,
// for injection into the reasoning prompt. Empty input renders as "".
func RenderContext(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
