// Package ledger is the sole writer of balances. Every mutation appends an
// immutable transaction and updates the derived balance in one snapshot
// write, serialized per user by the keyed mutex.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EnterpriseGoose/CoinFlipper/internal/archive"
	"github.com/EnterpriseGoose/CoinFlipper/internal/idempotency"
	"github.com/EnterpriseGoose/CoinFlipper/internal/keymutex"
	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

var (
	// ErrInternalConsistency indicates an idempotency record exists without
	// its corresponding transaction. It signals corrupted persisted state and
	// must never be caught and ignored.
	ErrInternalConsistency = errors.New("ledger: idempotency record present but transaction not found")

	// ErrUnknownType rejects transaction types outside the closed set.
	ErrUnknownType = errors.New("ledger: unknown transaction type")
)

var validTypes = map[store.TransactionType]struct{}{
	store.TxGrant:    {},
	store.TxBet:      {},
	store.TxWin:      {},
	store.TxLoss:     {},
	store.TxPurchase: {},
	store.TxRefund:   {},
	store.TxAdmin:    {},
}

// Options carries the optional reference and idempotency key of a posting.
type Options struct {
	RefID   string
	IdemKey string
}

// Service posts transactions against the snapshot store.
type Service struct {
	store    *store.FileStore
	locks    *keymutex.KeyedMutex
	archiver archive.Archiver
	logger   *slog.Logger
}

// NewService builds the ledger. archiver may be archive.Noop().
func NewService(s *store.FileStore, locks *keymutex.KeyedMutex, archiver archive.Archiver, logger *slog.Logger) *Service {
	return &Service{store: s, locks: locks, archiver: archiver, logger: logger}
}

func lockKey(userID string) string { return "balance:" + userID }

func compositeKey(userID, idemKey string) string { return "tx:" + userID + ":" + idemKey }

// AddTransaction appends a transaction for userID and returns it. With an
// IdemKey the posting applies at most once: a repeat call returns the
// previously recorded transaction. The idempotency record and the
// transaction are written in the same snapshot mutation, so a crash can
// never persist one without the other.
func (s *Service) AddTransaction(ctx context.Context, userID string, txType store.TransactionType, amount int64, opts Options) (store.Transaction, error) {
	if userID == "" {
		return store.Transaction{}, fmt.Errorf("ledger: user id is required")
	}
	if _, ok := validTypes[txType]; !ok {
		return store.Transaction{}, fmt.Errorf("%w: %q", ErrUnknownType, txType)
	}

	var created store.Transaction
	err := s.locks.WithLock(ctx, lockKey(userID), func() error {
		if opts.IdemKey != "" {
			state := s.store.Get()
			if idempotency.Applied(state, compositeKey(userID, opts.IdemKey), time.Now().UTC()) {
				existing, ok := findByIdemKey(state, userID, opts.IdemKey)
				if !ok {
					return ErrInternalConsistency
				}
				s.logger.Debug("idempotent transaction skip", "user_id", userID, "idem_key", opts.IdemKey)
				created = existing
				return nil
			}
		}

		if err := s.store.Update(func(state *store.State) {
			now := time.Now().UTC()
			bal := state.Balances[userID]
			if bal.UserID == "" {
				bal = store.Balance{UserID: userID, UpdatedAt: now}
			}

			newBalance := bal.Amount + amount
			created = store.Transaction{
				ID:           uuid.NewString(),
				UserID:       userID,
				Type:         txType,
				Amount:       amount,
				BalanceAfter: newBalance,
				RefID:        opts.RefID,
				IdemKey:      opts.IdemKey,
				CreatedAt:    now,
			}
			state.Transactions = append(state.Transactions, created)

			bal.Amount = newBalance
			bal.UpdatedAt = now
			state.Balances[userID] = bal

			if opts.IdemKey != "" {
				idempotency.Mark(state, compositeKey(userID, opts.IdemKey), 0)
			}
		}); err != nil {
			return err
		}

		s.logger.Info("transaction",
			"user_id", userID,
			"type", txType,
			"amount", amount,
			"balance_after", created.BalanceAfter,
			"ref_id", opts.RefID,
		)
		return nil
	})
	if err != nil {
		return store.Transaction{}, err
	}

	// mirror to the reporting archive; the snapshot stays authoritative
	if err := s.archiver.Record(ctx, created); err != nil {
		s.logger.Warn("archive record failed", "tx_id", created.ID, "error", err)
	}

	return created, nil
}

// Balance returns the user's current amount, 0 for accounts never touched.
func (s *Service) Balance(userID string) int64 {
	return s.store.Get().Balances[userID].Amount
}

// History returns the user's most recent transactions, newest first.
func (s *Service) History(userID string, limit int) []store.Transaction {
	state := s.store.Get()

	var out []store.Transaction
	for i := len(state.Transactions) - 1; i >= 0; i-- {
		if state.Transactions[i].UserID != userID {
			continue
		}
		out = append(out, state.Transactions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func findByIdemKey(state *store.State, userID, idemKey string) (store.Transaction, bool) {
	for i := len(state.Transactions) - 1; i >= 0; i-- {
		tx := state.Transactions[i]
		if tx.UserID == userID && tx.IdemKey == idemKey {
			return tx, true
		}
	}
	return store.Transaction{}, false
}
