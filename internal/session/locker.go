package session

import (
	"context"
	"sync"
	"time"
)

// Locker serializes work per chat so a conversation never has two stages in
// flight. Different chats proceed in parallel.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	sem      chan struct{}
	refs     int
	lastUsed time.Time
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*chatLock)}
}

// Do runs fn while holding the chat's lock. It gives up with ctx.Err() if the
// lock cannot be taken before ctx is done.
func (l *Locker) Do(ctx context.Context, chat string, fn func() error) error {
	l.mu.Lock()
	cl, ok := l.locks[chat]
	if !ok {
		cl = &chatLock{sem: make(chan struct{}, 1)}
		l.locks[chat] = cl
	}
	cl.refs++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		cl.refs--
		cl.lastUsed = time.Now()
		l.mu.Unlock()
	}()

	select {
	case cl.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-cl.sem }()

	return fn()
}

// Sweep drops locks that nobody holds or waits on and that were last used
// more than maxAge ago. It returns how many were removed.
func (l *Locker) Sweep(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	now := time.Now()
	for chat, cl := range l.locks {
		if cl.refs == 0 && now.Sub(cl.lastUsed) > maxAge {
			delete(l.locks, chat)
			removed++
		}
	}
	return removed
}

// SweepEvery calls Sweep on a ticker until ctx is done.
func (l *Locker) SweepEvery(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(maxAge)
		}
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
