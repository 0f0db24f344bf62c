package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	statex "github.com/tanpawarit/chative-commerce-agent/agent/state"
)

// FinalizeReply guarantees a non-empty reply on every path.
func FinalizeReply(ctx context.Context, in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Reply = strings.TrimSpace(in.Reply)
	if in.Reply == "" {
		zerolog.Ctx(ctx).Warn().Str("path", string(in.Path)).Msg("empty reply replaced with fallback")
		in.fallback(fmt.Errorf("%w: empty reply", contractx.ErrSchemaViolation))
	}
	return in, nil
}

// SaveReply appends the agent reply to the session log. A failed write is
// logged and the reply is still delivered.
func SaveReply(ctx context.Context, in *GraphState, store statex.Store) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if err := store.Append(ctx, in.UserID, statex.AgentMessage(in.Reply)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("append agent reply failed")
	}

	out := GraphOutput{Reply: in.Reply, Path: in.Path}
	if in.Call != nil {
		out.Tool = in.Call.Name
	}
	return out, nil
}
