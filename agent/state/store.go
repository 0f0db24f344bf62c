package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultStoreKeyPrefix = "chative:session:"
	defaultStoreTTL       = 30 * 24 * time.Hour
	maxResponseSizeBytes  = 2 << 20
)

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHistoryLimit(limit int) StoreOption {
	return func(s *UpstashRedisStore) {
		s.limit = retention(limit)
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// UpstashRedisStore keeps each session as a Redis list of JSON messages plus
// a cursor string and a sequence counter, all sharing one TTL that is
// refreshed on every write.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
	limit      int
	now        func() time.Time
}

var _ Store = (*UpstashRedisStore)(nil)

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL       string        `envconfig:"URL" split_words:"true" required:"true"`
	Token     string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"chative:session:"`
	TTL       time.Duration `envconfig:"TTL" split_words:"true" default:"720h"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashRedisStore{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
		limit:     DefaultHistoryLimit,
		now:       time.Now,
	}
	if p := strings.TrimSpace(cfg.KeyPrefix); p != "" {
		store.keyPrefix = p
	}
	if cfg.TTL != 0 {
		store.ttl = cfg.TTL
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Append(ctx context.Context, userID string, msgs ...ChatMessage) error {
	keys, err := s.keysFor(userID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	resp, err := s.exec(ctx, []any{"INCRBY", keys.seq, len(msgs)})
	if err != nil {
		return err
	}
	var last int64
	if err := json.Unmarshal(resp.Result, &last); err != nil {
		return fmt.Errorf("decode session sequence: %w", err)
	}

	stamped, err := stamp(msgs, last-int64(len(msgs)), s.now())
	if err != nil {
		return err
	}

	push := make([]any, 0, len(stamped)+2)
	push = append(push, "RPUSH", keys.log)
	for _, m := range stamped {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal chat message: %w", err)
		}
		push = append(push, string(payload))
	}

	commands := [][]any{
		push,
		{"LTRIM", keys.log, -s.limit, -1},
	}
	commands = append(commands, s.expireCommands(keys.log, keys.seq)...)
	return s.pipeline(ctx, commands)
}

func (s *UpstashRedisStore) History(ctx context.Context, userID string) ([]ChatMessage, error) {
	keys, err := s.keysFor(userID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"LRANGE", keys.log, 0, -1})
	if err != nil {
		return nil, err
	}

	var encoded []string
	if result := bytes.TrimSpace(resp.Result); len(result) > 0 && !bytes.Equal(result, []byte("null")) {
		if err := json.Unmarshal(result, &encoded); err != nil {
			return nil, fmt.Errorf("decode session log: %w", err)
		}
	}

	out := make([]ChatMessage, 0, len(encoded))
	for _, raw := range encoded {
		var m ChatMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("unmarshal chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *UpstashRedisStore) Cursor(ctx context.Context, userID string) (Cursor, error) {
	keys, err := s.keysFor(userID)
	if err != nil {
		return Cursor{}, err
	}

	resp, err := s.exec(ctx, []any{"GET", keys.cursor})
	if err != nil {
		return Cursor{}, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		c := NewCursor(0)
		if err := s.SaveCursor(ctx, userID, c); err != nil {
			return Cursor{}, err
		}
		return c, nil
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return Cursor{}, fmt.Errorf("decode cursor payload: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal([]byte(encoded), &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return c.normalized(), nil
}

func (s *UpstashRedisStore) SaveCursor(ctx context.Context, userID string, c Cursor) error {
	keys, err := s.keysFor(userID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(c.normalized())
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	cmd := []any{"SET", keys.cursor, string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}
	_, err = s.exec(ctx, cmd)
	return err
}

type sessionKeys struct {
	log    string
	cursor string
	seq    string
}

func (s *UpstashRedisStore) keysFor(userID string) (sessionKeys, error) {
	if err := checkUser(userID); err != nil {
		return sessionKeys{}, err
	}
	base := strings.TrimSpace(s.keyPrefix) + strings.TrimSpace(userID)
	return sessionKeys{
		log:    base + ":log",
		cursor: base + ":cursor",
		seq:    base + ":seq",
	}, nil
}

func (s *UpstashRedisStore) expireCommands(keys ...string) [][]any {
	if s.ttl <= 0 {
		return nil
	}
	out := make([][]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, []any{"EXPIRE", k, ttlSeconds(s.ttl)})
	}
	return out
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	var parsed redisRESTResponse
	if err := s.post(ctx, s.baseURL, command, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

// pipeline sends commands through the Upstash /multi-exec endpoint so they
// apply as one transaction.
func (s *UpstashRedisStore) pipeline(ctx context.Context, commands [][]any) error {
	if len(commands) == 0 {
		return nil
	}

	var parsed []redisRESTResponse
	if err := s.post(ctx, s.baseURL+"/multi-exec", commands, &parsed); err != nil {
		return err
	}
	for i, r := range parsed {
		if r.Error != "" {
			return fmt.Errorf("redis command %d (%v): %s", i, commands[i][0], r.Error)
		}
	}
	return nil
}

func (s *UpstashRedisStore) post(ctx context.Context, endpoint string, payload any, out any) error {
	if s == nil {
		return errors.New("nil store")
	}
	if strings.TrimSpace(s.baseURL) == "" {
		return errors.New("empty redis url")
	}
	if strings.TrimSpace(s.token) == "" {
		return errors.New("empty redis token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode redis response: %w", err)
	}
	return nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
