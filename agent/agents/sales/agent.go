package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
)

// Request is one model call. A follow-up call carries the tool call the
// model made on the first call together with its result.
type Request struct {
	History    []statex.ChatMessage
	UserText   string
	ToolCall   *contractx.ToolInvocation
	ToolResult *contractx.ToolResult
}

// Response holds either final text or exactly one tool call. Ignored counts
// extra tool calls dropped because only one action is honored per turn.
type Response struct {
	Text     string
	ToolCall *contractx.ToolInvocation
	Ignored  int
}

// Agent is a stateless model-facing runner shared by all turns.
type Agent struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
) (*Agent, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: sales system prompt", contractx.ErrPromptMissing)
	}

	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind sales tools: %v", contractx.ErrModelInvoke, err)
	}
	runner, err := compileModelGraph(ctx, toolModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &Agent{runner: runner}, nil
}

// Respond performs one model call. A malformed tool call is reported as
// *contract.ValidationError; transport failures are returned unwrapped so the
// caller can classify them.
func (a *Agent) Respond(ctx context.Context, req Request) (Response, error) {
	vars, err := buildVariables(req)
	if err != nil {
		return Response{}, err
	}

	msg, err := a.runner.Invoke(ctx, vars)
	if err != nil {
		return Response{}, err
	}
	if msg == nil {
		return Response{}, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	if len(msg.ToolCalls) > 0 {
		call, err := toToolInvocation(msg.ToolCalls[0])
		if err != nil {
			return Response{}, err
		}
		return Response{
			Text:     strings.TrimSpace(msg.Content),
			ToolCall: &call,
			Ignored:  len(msg.ToolCalls) - 1,
		}, nil
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return Response{}, fmt.Errorf("%w: model returned neither text nor tool call", contractx.ErrSchemaViolation)
	}
	return Response{Text: content}, nil
}

func buildVariables(req Request) (map[string]any, error) {
	history := make([]*schema.Message, 0, len(req.History))
	for _, m := range req.History {
		switch m.Role {
		case statex.RoleUser:
			history = append(history, schema.UserMessage(m.Text))
		case statex.RoleAgent:
			history = append(history, schema.AssistantMessage(m.Text, nil))
		}
	}

	vars := map[string]any{
		varHistory: history,
		varInput:   req.UserText,
	}

	if req.ToolCall != nil && req.ToolResult != nil {
		scratchpad, err := toolScratchpad(*req.ToolCall, *req.ToolResult)
		if err != nil {
			return nil, err
		}
		vars[varScratchpad] = scratchpad
	}
	return vars, nil
}

// toolScratchpad replays the assistant tool call and its result as
// {name, result} so the model phrases the final reply.
func toolScratchpad(call contractx.ToolInvocation, result contractx.ToolResult) ([]*schema.Message, error) {
	args, err := json.Marshal(call.Args)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal tool args: %v", contractx.ErrValidation, err)
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal tool result: %v", contractx.ErrValidation, err)
	}

	return []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:   call.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      call.Name,
				Arguments: string(args),
			},
		}}),
		schema.ToolMessage(string(payload), call.ID),
	}, nil
}

func toToolInvocation(call schema.ToolCall) (contractx.ToolInvocation, error) {
	name := strings.TrimSpace(call.Function.Name)
	if name == "" {
		return contractx.ToolInvocation{}, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
	}

	id := strings.TrimSpace(call.ID)
	if id == "" {
		id = "call_" + uuid.NewString()
	}

	args := map[string]any{}
	rawArgs := strings.TrimSpace(call.Function.Arguments)
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return contractx.ToolInvocation{}, &contractx.ValidationError{Tool: name, Invalid: []string{"arguments"}}
		}
	}

	return contractx.ToolInvocation{ID: id, Name: name, Args: args}, nil
}
