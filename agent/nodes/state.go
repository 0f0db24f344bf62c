package orchestratornode

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tanpawarit/chative-commerce-agent/agent/agents/sales"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = errors.New("user id is empty")
)

// Path records how a turn produced its reply.
type Path string

const (
	PathDirect   Path = "direct"
	PathTool     Path = "tool"
	PathClarify  Path = "clarify"
	PathApology  Path = "apology"
	PathFallback Path = "fallback"
)

type GraphInput struct {
	UserID string
	Text   string
}

type GraphOutput struct {
	Reply string
	Path  Path
	Tool  string
}

type GraphState struct {
	UserID string
	Text   string
	Now    time.Time

	History []statex.ChatMessage

	Call    *contractx.ToolInvocation
	Result  *contractx.ToolResult
	ToolErr error
	Err     error

	Reply string
	Path  Path
}

// Responder performs one model call.
type Responder interface {
	Respond(ctx context.Context, req sales.Request) (sales.Response, error)
}

// ToolValidator checks an invocation against its declaration.
type ToolValidator interface {
	Validate(inv contractx.ToolInvocation) error
}

// ToolExecutor runs a validated invocation exactly once.
type ToolExecutor interface {
	Execute(ctx context.Context, userID string, inv contractx.ToolInvocation) (contractx.ToolResult, error)
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		UserID: userID,
		Text:   text,
		Now:    nowFn().UTC(),
	}, nil
}

// HasReply reports whether a terminal reply was already decided.
func (s *GraphState) HasReply() bool {
	return s != nil && s.Path != ""
}

func (s *GraphState) fallback(err error) *GraphState {
	s.Err = err
	s.Path = PathFallback
	s.Reply = FallbackText
	return s
}
