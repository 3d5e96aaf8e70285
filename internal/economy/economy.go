// Package economy covers the recurring currency grant and betting
// eligibility checks on top of the ledger.
package economy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/EnterpriseGoose/CoinFlipper/internal/ledger"
	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// Service grants allowances and answers eligibility questions.
type Service struct {
	store       *store.FileStore
	ledger      *ledger.Service
	grantAmount int64
	location    *time.Location
	logger      *slog.Logger
}

// NewService builds the economy service. location controls which calendar
// day a "daily" grant belongs to.
func NewService(s *store.FileStore, l *ledger.Service, grantAmount int64, location *time.Location, logger *slog.Logger) *Service {
	return &Service{store: s, ledger: l, grantAmount: grantAmount, location: location, logger: logger}
}

// EligibilityResult reports whether a user may enter a bet.
type EligibilityResult struct {
	OK      bool
	Balance int64
	Reason  string
}

// CanStartBet allows betting while the current balance is non-negative.
func (s *Service) CanStartBet(userID string) EligibilityResult {
	balance := s.ledger.Balance(userID)
	if balance < 0 {
		return EligibilityResult{
			Balance: balance,
			Reason:  "balance is negative, no new bets until it recovers",
		}
	}
	return EligibilityResult{OK: true, Balance: balance}
}

// Today returns the current date stamp in the service's timezone, the unit
// the daily grant is idempotent over.
func (s *Service) Today() string {
	return time.Now().In(s.location).Format("2006-01-02")
}

// GrantDailyAll grants the daily allowance to every opted-in user. The
// per-user idempotency key `daily:<date>` makes re-running the same date a
// no-op, so a restarted scheduler or a manual trigger cannot double-pay.
// Individual failures are logged and skipped; the loop always finishes.
func (s *Service) GrantDailyAll(ctx context.Context, date string) error {
	if date == "" {
		date = s.Today()
	}

	state := s.store.Get()
	var eligible []string
	for id, u := range state.Users {
		if u.Play {
			eligible = append(eligible, id)
		}
	}
	sort.Strings(eligible)

	s.logger.Info("daily grant start", "date", date, "users", len(eligible), "amount", s.grantAmount)

	for _, userID := range eligible {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.ledger.AddTransaction(ctx, userID, store.TxGrant, s.grantAmount, ledger.Options{
			RefID:   "daily_grant",
			IdemKey: fmt.Sprintf("daily:%s", date),
		}); err != nil {
			s.logger.Error("daily grant failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("daily grant done", "date", date)
	return nil
}

// Entry is one leaderboard row.
type Entry struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// Leaderboard returns the richest opted-in users, ties broken by user id.
func (s *Service) Leaderboard(limit int) []Entry {
	state := s.store.Get()

	var entries []Entry
	for id, bal := range state.Balances {
		if !state.Users[id].Play {
			continue
		}
		entries = append(entries, Entry{UserID: id, Balance: bal.Amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Balance != entries[j].Balance {
			return entries[i].Balance > entries[j].Balance
		}
		return entries[i].UserID < entries[j].UserID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
