package qstash

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnqueueForwardsHeaders(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth, gotForward, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotForward = r.Header.Get("Upstash-Forward-Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{"messageId":"msg_1"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	id, err := client.Enqueue(context.Background(), Message{
		Queue:       "wa-5491100000000",
		Destination: "https://api.twilio.com/2010-04-01/Accounts/AC1/Messages.json",
		Body:        []byte("To=x&Body=hola"),
		ContentType: "application/x-www-form-urlencoded",
		Headers:     map[string]string{"Authorization": "Basic abc"},
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if id != "msg_1" {
		t.Fatalf("unexpected message id: %q", id)
	}
	if gotPath != "/v2/enqueue/wa-5491100000000/https://api.twilio.com/2010-04-01/Accounts/AC1/Messages.json" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer tok" || gotForward != "Basic abc" {
		t.Fatalf("unexpected headers: auth=%q forward=%q", gotAuth, gotForward)
	}
	if gotBody != "To=x&Body=hola" {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}

func TestEnqueueRejectedStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := MustNew(Config{URL: server.URL, Token: "tok"})
	_, err := client.Enqueue(context.Background(), Message{Queue: "q", Destination: "https://example.com/hook"})
	if !errors.Is(err, ErrEnqueue) {
		t.Fatalf("expected ErrEnqueue, got %v", err)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{URL: "https://qstash.upstash.io"}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
