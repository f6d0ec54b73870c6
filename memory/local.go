package memory

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Collaborator. Expired items are dropped lazily on
// access and by Purge.
type Local struct {
	mu    sync.RWMutex
	items map[string]Item
	now   func() time.Time
}

// LocalOption configures a Local store.
type LocalOption func(*Local)

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLocal returns an empty in-process store.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{items: make(map[string]Item), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store implements Collaborator.
func (l *Local) Store(ctx context.Context, key string, value any, ttlSeconds int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, err := encode(key, value)
	if err != nil {
		return false, err
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[key] = Item{Key: key, Value: data, CreatedAt: now, ExpiresAt: now.Add(ttlOf(ttlSeconds))}
	return true, nil
}

// Retrieve implements Collaborator.
func (l *Local) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l.mu.RLock()
	item, ok := l.items[key]
	l.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if item.Expired(l.now()) {
		l.mu.Lock()
		if cur, ok := l.items[key]; ok && cur.Expired(l.now()) {
			delete(l.items, key)
		}
		l.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), item.Value...), true, nil
}

// Delete removes key and reports whether it was present.
func (l *Local) Delete(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.items[key]
	delete(l.items, key)
	return ok
}

// Purge drops every expired item and returns how many were removed.
func (l *Local) Purge() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, item := range l.items {
		if item.Expired(now) {
			delete(l.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of items held, including expired ones not yet purged.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
