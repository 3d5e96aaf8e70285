// Package idempotency executes keyed side effects at most once within an
// optional expiry window, backed by the persisted snapshot.
package idempotency

import (
	"log/slog"
	"time"

	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// Registry records applied operation keys in the snapshot. The check-then-
// persist sequence here is only atomic with respect to the protected effect
// when the caller composes both inside the same keyed lock; the ledger does
// exactly that.
type Registry struct {
	store  *store.FileStore
	logger *slog.Logger
}

// New builds a registry over the snapshot store.
func New(s *store.FileStore, logger *slog.Logger) *Registry {
	return &Registry{store: s, logger: logger}
}

// Result reports whether the protected operation actually ran.
type Result struct {
	Executed bool
}

// Applied reports whether key currently has an unexpired record in state.
// Expired records are treated as absent.
func Applied(state *store.State, key string, now time.Time) bool {
	rec, ok := state.Idempotency[key]
	if !ok {
		return false
	}
	if rec.TTL > 0 && now.After(rec.CreatedAt.Add(rec.TTL)) {
		return false
	}
	return true
}

// Mark records key inside an already-open store mutation, letting callers
// persist the record and its protected effect in one snapshot write.
func Mark(state *store.State, key string, ttl time.Duration) {
	state.Idempotency[key] = store.IdempotencyRecord{
		Key:       key,
		CreatedAt: time.Now().UTC(),
		TTL:       ttl,
	}
}

// RunOnce invokes fn unless an unexpired record for key exists. On success
// the record is persisted (overwriting an expired one) and Executed is true;
// on skip fn is never invoked. A zero ttl never expires.
func (r *Registry) RunOnce(key string, ttl time.Duration, fn func() error) (Result, error) {
	if Applied(r.store.Get(), key, time.Now().UTC()) {
		r.logger.Debug("idempotent skip", "key", key)
		return Result{Executed: false}, nil
	}

	if err := fn(); err != nil {
		return Result{}, err
	}

	if err := r.store.Update(func(s *store.State) {
		Mark(s, key, ttl)
	}); err != nil {
		return Result{}, err
	}

	return Result{Executed: true}, nil
}
