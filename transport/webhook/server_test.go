package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeTurns struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeTurns) HandleMessage(ctx context.Context, userID string, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID+"|"+text)
	if f.err != nil {
		return "", f.err
	}
	return "eco: " + text, nil
}

type fakeDeliverer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, to string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+text)
	return nil
}

func newTestServer(t *testing.T, turns *fakeTurns) (*Server, *fakeDeliverer) {
	t.Helper()
	out := &fakeDeliverer{}
	s, err := New(turns, out, Config{Workers: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, out
}

func TestWebhookAcceptsJSON(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	s, out := newTestServer(t, turns)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"from":"u1","body":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	s.Close()

	if len(out.sent) != 1 || out.sent[0] != "u1|eco: hola" {
		t.Fatalf("unexpected deliveries: %#v", out.sent)
	}
}

func TestWebhookAcceptsTwilioForm(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	s, out := newTestServer(t, turns)

	form := url.Values{"From": {"whatsapp:+5491100000000"}, "Body": {"ver carrito"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	s.Close()

	if len(turns.calls) != 1 || turns.calls[0] != "whatsapp:+5491100000000|ver carrito" {
		t.Fatalf("unexpected turns: %#v", turns.calls)
	}
	if len(out.sent) != 1 {
		t.Fatalf("expected one delivery, got %#v", out.sent)
	}
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"from":`},
		{name: "missing from", body: `{"body":"hola"}`},
		{name: "blank body", body: `{"from":"u1","body":"   "}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			turns := &fakeTurns{}
			s, _ := newTestServer(t, turns)
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			s.Close()

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if len(turns.calls) != 0 {
				t.Fatalf("turn scheduled for bad payload: %#v", turns.calls)
			}
		})
	}
}

func TestWebhookTurnErrorSkipsDelivery(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{err: errors.New("invalid message")}
	s, out := newTestServer(t, turns)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"from":"u1","body":"hola"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	s.Close()

	if len(out.sent) != 0 {
		t.Fatalf("unexpected deliveries: %#v", out.sent)
	}
}

func TestWebhookRejectsAfterClose(t *testing.T) {
	t.Parallel()

	turns := &fakeTurns{}
	s, _ := newTestServer(t, turns)
	s.Close()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"from":"u1","body":"hola"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeTurns{})
	defer s.Close()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

// overlapDeliverer records the highest number of deliveries in flight at once.
type overlapDeliverer struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	order   []string
}

func (d *overlapDeliverer) Deliver(ctx context.Context, to string, text string) error {
	d.mu.Lock()
	d.active++
	if d.active > d.maxSeen {
		d.maxSeen = d.active
	}
	d.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	d.mu.Lock()
	d.active--
	d.order = append(d.order, text)
	d.mu.Unlock()
	return nil
}

func TestWebhookSerializesDeliveryPerSender(t *testing.T) {
	t.Parallel()

	out := &overlapDeliverer{}
	s, err := New(&fakeTurns{}, out, Config{Workers: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, body := range []string{"uno", "dos", "tres"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"from":"u1","body":"`+body+`"}`))
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
	}
	s.Close()

	if len(out.order) != 3 {
		t.Fatalf("expected 3 deliveries, got %#v", out.order)
	}
	if out.maxSeen != 1 {
		t.Fatalf("deliveries for one sender overlapped: max in flight = %d", out.maxSeen)
	}
}
