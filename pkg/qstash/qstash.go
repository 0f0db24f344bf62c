package qstash

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

// ErrEnqueue reports a publish the QStash API did not accept.
var ErrEnqueue = errors.New("qstash enqueue failed")

type Config struct {
	URL     string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token   string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Message is one publish request. Headers are forwarded to the destination
// with the Upstash-Forward- prefix.
type Message struct {
	Queue       string
	Destination string
	Body        []byte
	ContentType string
	Headers     map[string]string
	Retries     int
}

type enqueueResponse struct {
	MessageID string `json:"messageId"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("qstash token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Enqueue appends msg to a named queue. Messages on one queue are delivered
// in order, one at a time.
func (c *Client) Enqueue(ctx context.Context, msg Message) (string, error) {
	queue := strings.TrimSpace(msg.Queue)
	if queue == "" {
		return "", fmt.Errorf("%w: queue is required", ErrEnqueue)
	}
	if _, err := url.ParseRequestURI(msg.Destination); err != nil {
		return "", fmt.Errorf("%w: destination: %v", ErrEnqueue, err)
	}

	endpoint := c.baseURL + "/v2/enqueue/" + url.PathEscape(queue) + "/" + msg.Destination
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(msg.Body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	contentType := msg.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	if msg.Retries > 0 {
		req.Header.Set("Upstash-Retries", fmt.Sprint(msg.Retries))
	}
	for k, v := range msg.Headers {
		req.Header.Set("Upstash-Forward-"+k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEnqueue, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrEnqueue, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status=%d body=%s", ErrEnqueue, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out enqueueResponse
	if len(raw) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrEnqueue, err)
	}
	return out.MessageID, nil
}
