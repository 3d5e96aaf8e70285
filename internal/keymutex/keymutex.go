// Package keymutex serializes operations that share a key. Operations queued
// under the same key run strictly one at a time in arrival order; operations
// under different keys proceed independently.
package keymutex

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock cannot be acquired within the
// configured acquisition timeout. The queued slot is abandoned and the
// protected function never runs.
var ErrLockTimeout = errors.New("keymutex: acquisition timed out")

type waiter struct {
	ready chan struct{}
	done  chan struct{}
}

// KeyedMutex provides per-key FIFO mutual exclusion. The zero timeout waits
// forever, which matches the accepted stuck-lock risk of the original design;
// a positive timeout bounds it.
type KeyedMutex struct {
	mu      sync.Mutex
	queues  map[string][]*waiter
	timeout time.Duration
}

// New builds a KeyedMutex with the given acquisition timeout (0 = no timeout).
func New(timeout time.Duration) *KeyedMutex {
	return &KeyedMutex{
		queues:  make(map[string][]*waiter),
		timeout: timeout,
	}
}

// WithLock runs fn while holding the lock for key. The lock is released as
// soon as fn returns, whether or not it errored; fn's error propagates
// unchanged. Waiters behind a canceled context or an expired timeout vacate
// their queue slot without ever blocking the chain.
func (m *KeyedMutex) WithLock(ctx context.Context, key string, fn func() error) error {
	w := &waiter{ready: make(chan struct{}), done: make(chan struct{})}

	m.mu.Lock()
	queue := m.queues[key]
	m.queues[key] = append(queue, w)
	if len(queue) == 0 {
		close(w.ready)
	}
	m.mu.Unlock()

	var timeoutCh <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-w.ready:
	case <-ctx.Done():
		m.abandon(key, w)
		return ctx.Err()
	case <-timeoutCh:
		m.abandon(key, w)
		return ErrLockTimeout
	}

	defer m.release(key, w)
	return fn()
}

// release hands the lock to the next queued waiter and discards the key's
// bookkeeping once its queue is empty.
func (m *KeyedMutex) release(key string, w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.queues[key]
	if len(queue) == 0 || queue[0] != w {
		return
	}
	queue = queue[1:]
	if len(queue) == 0 {
		delete(m.queues, key)
		return
	}
	m.queues[key] = queue
	close(queue[0].ready)
}

// abandon removes a waiter that gave up before acquiring. If the waiter was
// granted the lock between the select losing and this call, it is released
// normally so the chain keeps moving.
func (m *KeyedMutex) abandon(key string, w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.queues[key]
	for i, queued := range queue {
		if queued != w {
			continue
		}
		if i == 0 {
			// already at the head: treat as acquire-and-release
			queue = queue[1:]
			if len(queue) == 0 {
				delete(m.queues, key)
				return
			}
			m.queues[key] = queue
			select {
			case <-queue[0].ready:
			default:
				close(queue[0].ready)
			}
			return
		}
		m.queues[key] = append(queue[:i], queue[i+1:]...)
		return
	}
}
