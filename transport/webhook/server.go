package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/tanpawarit/chative-commerce-agent/pkg/keylock"
)

const defaultMaxBodyBytes = 64 << 10

// TurnHandler runs one conversational turn and returns the reply.
type TurnHandler interface {
	HandleMessage(ctx context.Context, userID string, text string) (string, error)
}

// Deliverer sends a reply back to the user.
type Deliverer interface {
	Deliver(ctx context.Context, to string, text string) error
}

type Config struct {
	Workers      int
	MaxBodyBytes int64
}

// Server accepts inbound messages and runs each turn on a bounded worker
// pool, replying through the outbound channel.
type Server struct {
	router chi.Router
	turns  TurnHandler
	out    Deliverer
	limit  int64
	locks  *keylock.Locker

	mu     sync.RWMutex
	closed bool
	pool   *pool.Pool
}

type inboundMessage struct {
	From string `json:"from"`
	Body string `json:"body"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func New(turns TurnHandler, out Deliverer, cfg Config) (*Server, error) {
	if turns == nil {
		return nil, errors.New("turn handler is nil")
	}
	if out == nil {
		return nil, errors.New("deliverer is nil")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	s := &Server{
		turns: turns,
		out:   out,
		limit: limit,
		locks: keylock.New(),
		pool:  pool.New().WithMaxGoroutines(workers),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)
	s.router = r

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops accepting messages and waits for scheduled turns to finish.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.pool.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limit)

	msg, err := decodeInbound(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "rejected", Error: err.Error()})
		return
	}

	ctx := context.WithoutCancel(r.Context())
	ctx = log.Logger.With().
		Str("request_id", chiMiddleware.GetReqID(r.Context())).
		Logger().
		WithContext(ctx)

	if !s.schedule(ctx, msg) {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "shutting_down"})
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted"})
}

func (s *Server) schedule(ctx context.Context, msg inboundMessage) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	s.pool.Go(func() { s.runTurn(ctx, msg) })
	return true
}

func (s *Server) runTurn(ctx context.Context, msg inboundMessage) {
	logger := zerolog.Ctx(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("turn panicked")
		}
	}()

	// Handling and delivery share one per-sender slot so the chunks of two
	// replies to the same user never interleave.
	unlock := s.locks.Lock(msg.From)
	defer unlock()

	reply, err := s.turns.HandleMessage(ctx, msg.From, msg.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("inbound message rejected")
		return
	}
	if err := s.out.Deliver(ctx, msg.From, reply); err != nil {
		logger.Error().Err(err).Msg("reply delivery failed")
	}
}

// decodeInbound accepts the JSON shape {from, body} and the Twilio form
// fields From and Body.
func decodeInbound(r *http.Request) (inboundMessage, error) {
	var msg inboundMessage

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return msg, fmt.Errorf("parse form: %w", err)
		}
		msg.From = r.PostForm.Get("From")
		msg.Body = r.PostForm.Get("Body")
	default:
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			return msg, fmt.Errorf("decode json: %w", err)
		}
	}

	msg.From = strings.TrimSpace(msg.From)
	msg.Body = strings.TrimSpace(msg.Body)
	if msg.From == "" {
		return msg, errors.New("from is required")
	}
	if msg.Body == "" {
		return msg, errors.New("body is required")
	}
	return msg, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
