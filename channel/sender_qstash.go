package channel

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/chative-commerce-agent/agent/contract"
	qstashx "github.com/tanpawarit/chative-commerce-agent/pkg/qstash"
)

type TwilioConfig struct {
	AccountSID string `envconfig:"ACCOUNT_SID" required:"true"`
	AuthToken  string `envconfig:"AUTH_TOKEN" required:"true"`
	From       string `envconfig:"FROM" required:"true"`
	APIBase    string `envconfig:"API_BASE" default:"https://api.twilio.com"`
}

func (c TwilioConfig) messagesURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.APIBase), "/")
	if base == "" {
		base = "https://api.twilio.com"
	}
	return base + "/2010-04-01/Accounts/" + url.PathEscape(c.AccountSID) + "/Messages.json"
}

// Enqueuer publishes to an ordered queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg qstashx.Message) (string, error)
}

// QStashSender hands each message to a per-recipient QStash queue that
// forwards it to the Twilio Messages API. A queue delivers one message at a
// time, so chunks reach the user in order.
type QStashSender struct {
	queue   Enqueuer
	twilio  TwilioConfig
	retries int
}

func NewQStashSender(queue Enqueuer, twilio TwilioConfig) (*QStashSender, error) {
	if queue == nil {
		return nil, errors.New("qstash client is nil")
	}
	if strings.TrimSpace(twilio.AccountSID) == "" || strings.TrimSpace(twilio.AuthToken) == "" {
		return nil, errors.New("twilio credentials are required")
	}
	if strings.TrimSpace(twilio.From) == "" {
		return nil, errors.New("twilio sender number is required")
	}
	return &QStashSender{queue: queue, twilio: twilio, retries: 3}, nil
}

func (s *QStashSender) Send(ctx context.Context, to string, body string) error {
	form := url.Values{}
	form.Set("To", whatsappAddress(to))
	form.Set("From", whatsappAddress(s.twilio.From))
	form.Set("Body", body)

	credentials := base64.StdEncoding.EncodeToString([]byte(s.twilio.AccountSID + ":" + s.twilio.AuthToken))
	id, err := s.queue.Enqueue(ctx, qstashx.Message{
		Queue:       QueueName(to),
		Destination: s.twilio.messagesURL(),
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
		Headers:     map[string]string{"Authorization": "Basic " + credentials},
		Retries:     s.retries,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", contractx.ErrTransport, err)
	}
	zerolog.Ctx(ctx).Debug().Str("message_id", id).Str("to", to).Msg("outbound message enqueued")
	return nil
}

// QueueName derives the per-recipient queue, e.g. "wa-5491100000000".
func QueueName(to string) string {
	var b strings.Builder
	b.WriteString("wa-")
	for _, r := range to {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func whatsappAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "whatsapp:") {
		return addr
	}
	return "whatsapp:" + addr
}
