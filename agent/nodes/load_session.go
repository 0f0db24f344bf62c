package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
)

// LoadSession reads the prior history and then appends the user message, so
// the model sees history plus the new input exactly once.
func LoadSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	history, err := store.History(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %w", contractx.ErrUpstreamFailure, err)
	}

	msg := statex.UserMessage(in.Text)
	msg.CreatedAt = in.Now
	if err := store.Append(ctx, in.UserID, msg); err != nil {
		return nil, fmt.Errorf("%w: append user message: %w", contractx.ErrUpstreamFailure, err)
	}

	in.History = history
	return in, nil
}
