package keymutex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWithLock_SerializesSameKey(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, "balance:U1", func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected at most one holder per key, saw %d", maxActive)
	}
}

func TestWithLock_FIFOOrder(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	var order []int
	var mu sync.Mutex

	release := make(chan struct{})
	firstIn := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.WithLock(ctx, "k", func() error {
			close(firstIn)
			<-release
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	<-firstIn

	// enqueue waiters one at a time so arrival order is deterministic
	for i := 1; i <= 5; i++ {
		i := i
		entered := make(chan struct{})
		wg.Add(1)
		go func() {
			close(entered)
			defer wg.Done()
			m.WithLock(ctx, "k", func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		<-entered
		time.Sleep(5 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("expected FIFO grant order, got %v", order)
		}
	}
}

func TestWithLock_IndependentKeysDoNotBlock(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	blocked := make(chan struct{})
	go m.WithLock(ctx, "a", func() error {
		<-blocked
		return nil
	})

	done := make(chan struct{})
	go func() {
		m.WithLock(ctx, "b", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("operation on independent key was blocked")
	}
	close(blocked)
}

func TestWithLock_ErrorReleasesLock(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	sentinel := errors.New("boom")
	if err := m.WithLock(ctx, "k", func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected propagated error, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		m.WithLock(ctx, "k", func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("key stayed locked after an error")
	}
}

func TestWithLock_Timeout(t *testing.T) {
	m := New(20 * time.Millisecond)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	go m.WithLock(ctx, "k", func() error {
		close(holding)
		<-release
		return nil
	})
	<-holding

	ran := false
	err := m.WithLock(ctx, "k", func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if ran {
		t.Fatalf("protected function ran despite timeout")
	}

	// the abandoned slot must not wedge the queue
	close(release)
	done := make(chan struct{})
	go func() {
		m.WithLock(ctx, "k", func() error { return nil })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("queue wedged after abandoned waiter")
	}
}

func TestWithLock_ContextCancel(t *testing.T) {
	m := New(0)

	holding := make(chan struct{})
	release := make(chan struct{})
	go m.WithLock(context.Background(), "k", func() error {
		close(holding)
		<-release
		return nil
	})
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.WithLock(ctx, "k", func() error { return nil })
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("canceled waiter never returned")
	}
	close(release)
}
