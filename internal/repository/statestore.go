package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

// StateStore is the durable key-value contract backing per-user read-state.
// Values are opaque strings; missing keys surface appErrors.ErrNotFound.
// Set carries the writing session's origin id, which watchers echo back in
// change events so writers can recognise their own writes.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, origin string) error
	Delete(ctx context.Context, key string) error
}

// StateWatcher is the optional change-notification side of a StateStore.
// Watchers observe writes made by other sessions (browser tabs, gateway
// instances) so in-memory state can be reconciled.
type StateWatcher interface {
	Watch(ctx context.Context, prefix string) (<-chan models.StateChange, error)
}

// MemoryStateStore is a process-local StateStore used for guest sessions and
// tests. It implements StateWatcher by fanning writes out to subscribers.
type MemoryStateStore struct {
	mu      sync.RWMutex
	entries map[string]string
	subs    []memorySub
}

type memorySub struct {
	prefix string
	ch     chan models.StateChange
	done   <-chan struct{}
}

// NewMemoryStateStore builds an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: make(map[string]string)}
}

// Get returns the stored value or ErrNotFound.
func (s *MemoryStateStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	if !ok {
		return "", appErrors.ErrNotFound
	}
	return value, nil
}

// Set stores the value and notifies watchers.
func (s *MemoryStateStore) Set(_ context.Context, key, value, origin string) error {
	s.mu.Lock()
	s.entries[key] = value
	subs := make([]memorySub, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	change := models.StateChange{Key: key, Value: value, Origin: origin}
	for _, sub := range subs {
		if !strings.HasPrefix(key, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- change:
		case <-sub.done:
		default:
			// Slow subscriber; dropping beats blocking a mutation path.
		}
	}
	return nil
}

// Delete removes the key. Unknown keys are a no-op.
func (s *MemoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Watch streams changes for keys under prefix until ctx is done.
func (s *MemoryStateStore) Watch(ctx context.Context, prefix string) (<-chan models.StateChange, error) {
	ch := make(chan models.StateChange, 16)
	s.mu.Lock()
	s.subs = append(s.subs, memorySub{prefix: prefix, ch: ch, done: ctx.Done()})
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, sub := range s.subs {
			if sub.ch == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
