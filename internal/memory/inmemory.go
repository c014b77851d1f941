package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps conversation history in process memory. Histories live
// for the process lifetime; each user's log is truncated FIFO at maxHistory.
type InMemoryStore struct {
	mu         sync.RWMutex
	histories  map[string][]Turn
	maxHistory int
}

func NewInMemoryStore(maxHistory int) *InMemoryStore {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &InMemoryStore{
		histories:  make(map[string][]Turn),
		maxHistory: maxHistory,
	}
}

func (s *InMemoryStore) AppendTurn(_ context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	log := append(s.histories[turn.UserID], turn)
	if len(log) > s.maxHistory {
		log = log[len(log)-s.maxHistory:]
	}
	s.histories[turn.UserID] = log
	return nil
}

func (s *InMemoryStore) Recent(_ context.Context, userID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.histories[userID]
	if len(log) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(log) {
		limit = len(log)
	}
	out := make([]Turn, limit)
	copy(out, log[len(log)-limit:])
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
