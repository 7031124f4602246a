package entity

import (
	"strings"
	"time"
)

// titleMaxLen bounds the human-readable title derived from the first user turn.
const titleMaxLen = 60

// Conversation is the aggregate root owning an append-only Turn sequence.
type Conversation struct {
	id        string
	title     string
	turns     []Turn
	createdAt time.Time
	updatedAt time.Time
}

// NewConversation creates a fresh conversation (factory method).
func NewConversation(id string) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidConversationID
	}
	now := time.Now()
	return &Conversation{
		id:        id,
		turns:     make([]Turn, 0),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructConversation rebuilds a conversation from persisted state.
func ReconstructConversation(id, title string, turns []Turn, createdAt, updatedAt time.Time) *Conversation {
	return &Conversation{
		id:        id,
		title:     title,
		turns:     turns,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (c *Conversation) ID() string        { return c.id }
func (c *Conversation) Title() string     { return c.title }
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }
func (c *Conversation) UpdatedAt() time.Time { return c.updatedAt }

// Turns returns a defensive copy of the turn sequence.
func (c *Conversation) Turns() []Turn {
	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)
	return turns
}

// MessageCount returns the number of turns recorded.
func (c *Conversation) MessageCount() int {
	return len(c.turns)
}

// AppendTurn appends a turn to the end of the log and derives the title
// from the first User turn if one hasn't been set yet.
func (c *Conversation) AppendTurn(t Turn) {
	if c.title == "" && t.Kind == TurnUser {
		c.title = deriveTitle(t.Text)
	}
	c.turns = append(c.turns, t)
	c.updatedAt = time.Now()
}

// ReplaceLastToolResult replaces the most recent ToolResult turn matching
// callID — used when an approval decision resolves a synthetic
// approval_required placeholder into a real result (§4.6).
func (c *Conversation) ReplaceLastToolResult(callID string, result ToolResult) bool {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Kind == TurnToolResult && c.turns[i].ToolResult != nil && c.turns[i].ToolResult.CallID == callID {
			c.turns[i].ToolResult = &result
			c.updatedAt = time.Now()
			return true
		}
	}
	return false
}

// PendingToolResult returns the synthetic approval_required ToolResult
// turn awaiting resolution, if any.
func (c *Conversation) PendingToolResult() (Turn, bool) {
	for i := len(c.turns) - 1; i >= 0; i-- {
		t := c.turns[i]
		if t.Kind == TurnToolResult && t.ToolResult != nil && t.ToolResult.Status == StatusApprovalRequired {
			return t, true
		}
	}
	return Turn{}, false
}

func deriveTitle(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(text) <= titleMaxLen {
		return text
	}
	return text[:titleMaxLen] + "…"
}
