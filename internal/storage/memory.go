package storage

import (
	"context"
	"sync"

	"schnitzelbot/internal/subscriber"
)

// memoryStore keeps everything in process memory.
type memoryStore struct {
	mu     sync.RWMutex
	subs   map[string]subscriber.Subscriber
	runs   []RunRecord
	closed bool
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{subs: map[string]subscriber.Subscriber{}}
}

func (s *memoryStore) ListSubscribers(ctx context.Context, cursor string, limit int) ([]subscriber.Subscriber, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, "", ErrClosed
	}
	items, next := pageOf(s.subs, cursor, limit)
	return items, next, nil
}

func (s *memoryStore) PutSubscriber(ctx context.Context, in subscriber.Subscriber) (subscriber.Subscriber, error) {
	sub, err := prepareSubscriber(in)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return subscriber.Subscriber{}, ErrClosed
	}
	s.subs[sub.ID] = sub
	return sub, nil
}

func (s *memoryStore) DeleteSubscriber(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.subs[id]; !ok {
		return ErrNotFound
	}
	delete(s.subs, id)
	return nil
}

func (s *memoryStore) AppendRun(ctx context.Context, r RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.runs = append(s.runs, r)
	return nil
}

func (s *memoryStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return lastRuns(s.runs, limit), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
