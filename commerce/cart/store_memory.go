package cart

import (
	"context"
	"strings"
	"sync"
	"time"

	keylockx "github.com/tanpawarit/chative-commerce-agent/pkg/keylock"
)

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	carts  map[string]*Cart
	locks  *keylockx.Locker
	nextID int64
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: make(map[string]*Cart),
		locks: keylockx.New(),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	unlock, err := s.locks.LockContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.getOrCreate(userID).Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUser
	}
	unlock, err := s.locks.LockContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	working := s.getOrCreate(userID).Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = s.now().UTC()

	s.mu.Lock()
	s.carts[userID] = working
	s.mu.Unlock()

	return working.Clone(), nil
}

func (s *MemoryStore) getOrCreate(userID string) *Cart {
	s.mu.RLock()
	c, ok := s.carts[userID]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[userID]; ok {
		return c
	}
	s.nextID++
	c = New(userID)
	c.ID = s.nextID
	c.CreatedAt = s.now().UTC()
	c.UpdatedAt = c.CreatedAt
	s.carts[userID] = c
	return c
}
