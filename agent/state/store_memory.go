package state

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	log     []ChatMessage
	lastSeq int64
	cursor  Cursor
	hasCur  bool
}

// MemoryStore keeps sessions in process memory with bounded retention.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	limit    int
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(historyLimit int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		limit:    retention(historyLimit),
		now:      time.Now,
	}
}

func (s *MemoryStore) Append(ctx context.Context, userID string, msgs ...ChatMessage) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(userID)
	stamped, err := stamp(msgs, sess.lastSeq, s.now())
	if err != nil {
		return err
	}
	sess.log = append(sess.log, stamped...)
	sess.lastSeq = stamped[len(stamped)-1].Seq
	if over := len(sess.log) - s.limit; over > 0 {
		sess.log = append(sess.log[:0:0], sess.log[over:]...)
	}
	return nil
}

func (s *MemoryStore) History(ctx context.Context, userID string) ([]ChatMessage, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return []ChatMessage{}, nil
	}
	out := make([]ChatMessage, len(sess.log))
	copy(out, sess.log)
	return out, nil
}

func (s *MemoryStore) Cursor(ctx context.Context, userID string) (Cursor, error) {
	if err := checkUser(userID); err != nil {
		return Cursor{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(userID)
	if !sess.hasCur {
		sess.cursor = NewCursor(0)
		sess.hasCur = true
	}
	return sess.cursor, nil
}

func (s *MemoryStore) SaveCursor(ctx context.Context, userID string, c Cursor) error {
	if err := checkUser(userID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(userID)
	sess.cursor = c.normalized()
	sess.hasCur = true
	return nil
}

func (s *MemoryStore) session(userID string) *memorySession {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &memorySession{}
		s.sessions[userID] = sess
	}
	return sess
}
