package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
)

// Outbound delivers a reply as an ordered sequence of chunks to one
// recipient.
type Outbound struct {
	sender contractx.Sender
	limit  int
}

func NewOutbound(sender contractx.Sender, limit int) (*Outbound, error) {
	if sender == nil {
		return nil, errors.New("outbound sender is nil")
	}
	if limit <= 0 {
		limit = MaxMessageLen
	}
	return &Outbound{sender: sender, limit: limit}, nil
}

// Deliver sends the chunks of text in order. The first failed chunk stops
// delivery; the error wraps ErrTransport.
func (o *Outbound) Deliver(ctx context.Context, to string, text string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: recipient is required", contractx.ErrTransport)
	}

	chunks := Chunk(text, o.limit)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: chunk %d/%d: %w", contractx.ErrTransport, i+1, len(chunks), err)
		}
		if err := o.sender.Send(ctx, to, chunk); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Int("chunk", i+1).
				Int("chunks", len(chunks)).
				Msg("outbound delivery failed")
			if errors.Is(err, contractx.ErrTransport) {
				return err
			}
			return fmt.Errorf("%w: chunk %d/%d: %w", contractx.ErrTransport, i+1, len(chunks), err)
		}
	}
	return nil
}
