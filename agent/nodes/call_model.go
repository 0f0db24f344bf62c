package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tanpawarit/chative-commerce-agent/agent/agents/sales"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	llmx "github.com/tanpawarit/chative-commerce-agent/agent/llm"
)

// CallModel sends history plus the user message to the model. The outcome is
// either direct text, a single tool call, or a decided clarification or
// fallback reply.
func CallModel(ctx context.Context, in *GraphState, responder Responder, policy RetryPolicy) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	var resp sales.Response
	err := policy.Do(ctx, "call_model", func(ctx context.Context) error {
		var err error
		resp, err = responder.Respond(ctx, sales.Request{History: in.History, UserText: in.Text})
		return err
	})
	if err != nil {
		var verr *contractx.ValidationError
		if errors.As(err, &verr) {
			zerolog.Ctx(ctx).Info().Err(err).Msg("model produced a malformed tool call")
			in.Path = PathClarify
			in.Reply = Clarification(verr)
			return in, nil
		}
		err = llmx.Classify(err)
		zerolog.Ctx(ctx).Error().Err(err).Msg("model call failed")
		return in.fallback(err), nil
	}

	if resp.ToolCall == nil {
		in.Path = PathDirect
		in.Reply = resp.Text
		return in, nil
	}

	if resp.Ignored > 0 {
		zerolog.Ctx(ctx).Info().
			Str("tool", resp.ToolCall.Name).
			Int("ignored", resp.Ignored).
			Msg("extra tool calls ignored, one action per turn")
	}
	in.Call = resp.ToolCall
	return in, nil
}

// ComposeReply feeds the tool result back to the model for final phrasing.
// Tool calls in this second response are ignored.
func ComposeReply(ctx context.Context, in *GraphState, responder Responder, policy RetryPolicy) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Call == nil || in.Result == nil {
		return nil, fmt.Errorf("%w: compose reply without tool result", contractx.ErrValidation)
	}

	var resp sales.Response
	err := policy.Do(ctx, "compose_reply", func(ctx context.Context) error {
		var err error
		resp, err = responder.Respond(ctx, sales.Request{
			History:    in.History,
			UserText:   in.Text,
			ToolCall:   in.Call,
			ToolResult: in.Result,
		})
		return err
	})
	if err != nil {
		err = llmx.Classify(err)
		zerolog.Ctx(ctx).Error().Err(err).Str("tool", in.Call.Name).Msg("follow-up model call failed")
		return in.fallback(err), nil
	}

	if resp.ToolCall != nil {
		zerolog.Ctx(ctx).Info().
			Str("tool", resp.ToolCall.Name).
			Msg("tool call in follow-up response ignored")
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return in.fallback(fmt.Errorf("%w: follow-up response has no text", contractx.ErrSchemaViolation)), nil
	}
	in.Path = PathTool
	in.Reply = text
	return in, nil
}
