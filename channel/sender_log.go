package channel

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes outbound messages to the context logger. It backs local
// development where no messaging account is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to string, body string) error {
	zerolog.Ctx(ctx).Info().Str("to", to).Str("body", body).Msg("outbound message")
	return nil
}
