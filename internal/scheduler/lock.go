package scheduler

import (
	"context"
	"sync"
	"time"
)

// localLocker serializes dispatches per config inside one process. It is
// used when no shared Locker is configured, so a manual run and the ticker
// cannot send the same report at once.
type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newLocalLocker() *localLocker {
	return &localLocker{held: map[string]struct{}{}}
}

// TryLock ignores ttl; the lock lives until release is called.
func (l *localLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, true, nil
}
