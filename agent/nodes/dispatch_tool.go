package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
)

// ValidateTool rejects the requested call before any side effect when it does
// not match its declaration.
func ValidateTool(ctx context.Context, in *GraphState, validator ToolValidator) (*GraphState, error) {
	if in == nil || in.Call == nil {
		return nil, fmt.Errorf("%w: no tool call to validate", contractx.ErrValidation)
	}

	err := validator.Validate(*in.Call)
	if err == nil {
		return in, nil
	}

	var verr *contractx.ValidationError
	if !errors.As(err, &verr) {
		verr = &contractx.ValidationError{Tool: in.Call.Name, Invalid: []string{"arguments"}}
	}
	zerolog.Ctx(ctx).Info().
		Str("tool", in.Call.Name).
		Strs("missing", verr.Missing).
		Strs("invalid", verr.Invalid).
		Bool("unknown", verr.Unknown).
		Msg("tool invocation rejected")

	in.ToolErr = verr
	in.Path = PathClarify
	in.Reply = Clarification(verr)
	return in, nil
}

// ExecuteTool runs the validated call once. A gateway failure becomes the
// tool-specific apology without a second model call.
func ExecuteTool(ctx context.Context, in *GraphState, executor ToolExecutor) (*GraphState, error) {
	if in == nil || in.Call == nil {
		return nil, fmt.Errorf("%w: no tool call to execute", contractx.ErrValidation)
	}

	result, err := executor.Execute(ctx, in.UserID, *in.Call)
	if err != nil {
		in.ToolErr = err
		var verr *contractx.ValidationError
		if errors.As(err, &verr) {
			in.Path = PathClarify
			in.Reply = Clarification(verr)
			return in, nil
		}

		zerolog.Ctx(ctx).Warn().Err(err).Str("tool", in.Call.Name).Msg("backend gateway failure")
		in.Path = PathApology
		in.Reply = Apology(*in.Call, err)
		return in, nil
	}

	in.Result = &result
	return in, nil
}
