package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSession = errors.New("session user id is empty")
	ErrInvalidMessage = errors.New("chat message is invalid")
)

const (
	DefaultHistoryLimit = 40
	DefaultPageSize     = 5
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ChatMessage is one entry of a user's conversation log. Seq is assigned by
// the store and is strictly increasing per user.
type ChatMessage struct {
	Seq       int64     `json:"seq"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Cursor is the pagination state of the user's last product search.
type Cursor struct {
	LastQuery string `json:"last_query,omitempty"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// Store is the per-user session log. Append keeps at most the configured
// number of most recent messages; older entries are evicted first.
// Callers serialize access per user.
type Store interface {
	Append(ctx context.Context, userID string, msgs ...ChatMessage) error
	History(ctx context.Context, userID string) ([]ChatMessage, error)
	Cursor(ctx context.Context, userID string) (Cursor, error)
	SaveCursor(ctx context.Context, userID string, c Cursor) error
}

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Text: text}
}

func AgentMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleAgent, Text: text}
}

func NewCursor(pageSize int) Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Cursor{Page: 1, PageSize: pageSize}
}

// Offset is the zero-based index of the first product on the cursor page.
func (c Cursor) Offset() int {
	if c.Page <= 1 || c.PageSize <= 0 {
		return 0
	}
	return (c.Page - 1) * c.PageSize
}

func (c Cursor) normalized() Cursor {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Page <= 0 {
		c.Page = 1
	}
	return c
}

func (m ChatMessage) Validate() error {
	if m.Role != RoleUser && m.Role != RoleAgent {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, m.Role)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidMessage)
	}
	return nil
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidSession
	}
	return nil
}

// stamp validates msgs and assigns sequence numbers starting after last.
func stamp(msgs []ChatMessage, last int64, now time.Time) ([]ChatMessage, error) {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return nil, err
		}
		m.Seq = last + int64(i) + 1
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out[i] = m
	}
	return out, nil
}

func retention(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
