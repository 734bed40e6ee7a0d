package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocker_SerializesSameChat(t *testing.T) {
	l := NewLocker()
	var inFlight, maxInFlight int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Do(context.Background(), "chat", func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Fatalf("max concurrent = %d, want 1", maxInFlight)
	}
}

func TestLocker_DifferentChatsRunInParallel(t *testing.T) {
	l := NewLocker()
	held := make(chan struct{})
	release := make(chan struct{})

	go l.Do(context.Background(), "a", func() error {
		close(held)
		<-release
		return nil
	})
	<-held

	done := make(chan struct{})
	go func() {
		l.Do(context.Background(), "b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chat b blocked behind chat a")
	}
	close(release)
}

func TestLocker_ContextCancelWhileWaiting(t *testing.T) {
	l := NewLocker()
	held := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go l.Do(context.Background(), "a", func() error {
		close(held)
		<-release
		return nil
	})
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := l.Do(ctx, "a", func() error {
		called = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if called {
		t.Fatal("fn ran without the lock")
	}
}

func TestLocker_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	if err := NewLocker().Do(context.Background(), "a", func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestLocker_Sweep(t *testing.T) {
	l := NewLocker()
	l.Do(context.Background(), "old", func() error { return nil })

	if n := l.Sweep(time.Hour); n != 0 {
		t.Fatalf("swept %d fresh locks", n)
	}
	if n := l.Sweep(0); n != 1 || l.size() != 0 {
		t.Fatalf("swept %d, size %d", n, l.size())
	}
}
