package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/EnterpriseGoose/CoinFlipper/internal/archive"
	"github.com/EnterpriseGoose/CoinFlipper/internal/idempotency"
	"github.com/EnterpriseGoose/CoinFlipper/internal/keymutex"
	"github.com/EnterpriseGoose/CoinFlipper/internal/logging"
	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.Open(t.TempDir(), "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return NewService(s, keymutex.New(0), archive.Noop(), logging.Discard())
}

func TestAddTransaction_IdempotentGrant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	opts := Options{IdemKey: "daily:2024-01-01"}
	first, err := svc.AddTransaction(ctx, "U1", store.TxGrant, 100, opts)
	if err != nil {
		t.Fatalf("first grant: %v", err)
	}
	second, err := svc.AddTransaction(ctx, "U1", store.TxGrant, 100, opts)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected the prior transaction back, got a new one")
	}
	if first.BalanceAfter != 100 {
		t.Fatalf("expected balance_after 100, got %d", first.BalanceAfter)
	}
	if got := svc.Balance("U1"); got != 100 {
		t.Fatalf("expected balance 100 after duplicate grant, got %d", got)
	}
	if n := len(svc.History("U1", 0)); n != 1 {
		t.Fatalf("expected exactly one transaction, got %d", n)
	}
}

func TestAddTransaction_NegativeBalancePermitted(t *testing.T) {
	svc := newTestService(t)

	tx, err := svc.AddTransaction(context.Background(), "U1", store.TxBet, -50, Options{})
	if err != nil {
		t.Fatalf("bet: %v", err)
	}
	if tx.BalanceAfter != -50 {
		t.Fatalf("expected balance_after -50, got %d", tx.BalanceAfter)
	}
}

func TestAddTransaction_UnknownType(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.AddTransaction(context.Background(), "U1", "jackpot", 1, Options{}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestAddTransaction_NoLostUpdates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const workers = 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := int64(i + 1)
			if _, err := svc.AddTransaction(ctx, "U1", store.TxGrant, delta, Options{
				IdemKey: fmt.Sprintf("concurrent-%d", i),
			}); err != nil {
				t.Errorf("grant %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	var want int64
	for i := 1; i <= workers; i++ {
		want += int64(i)
	}
	if got := svc.Balance("U1"); got != want {
		t.Fatalf("expected final balance %d, got %d", want, got)
	}

	// each entry's balance_after must equal the running prefix sum in
	// lock-grant order
	var running int64
	for _, tx := range svc.store.Get().Transactions {
		running += tx.Amount
		if tx.BalanceAfter != running {
			t.Fatalf("balance_after %d does not match running sum %d", tx.BalanceAfter, running)
		}
	}
}

func TestReadsRunSafelyDuringConcurrentPostings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// the keyed lock only serializes same-user postings; different users
	// write concurrently while Balance and History read the snapshot
	users := []string{"U1", "U2", "U3", "U4"}
	const grants = 50

	done := make(chan struct{})
	var readers sync.WaitGroup
	for _, userID := range users {
		readers.Add(1)
		go func(userID string) {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				svc.Balance(userID)
				svc.History(userID, 10)
			}
		}(userID)
	}

	var writers sync.WaitGroup
	for _, userID := range users {
		writers.Add(1)
		go func(userID string) {
			defer writers.Done()
			for i := 0; i < grants; i++ {
				if _, err := svc.AddTransaction(ctx, userID, store.TxGrant, 1, Options{
					IdemKey: fmt.Sprintf("grant-%d", i),
				}); err != nil {
					t.Errorf("grant %s/%d: %v", userID, i, err)
				}
			}
		}(userID)
	}
	writers.Wait()
	close(done)
	readers.Wait()

	for _, userID := range users {
		if got := svc.Balance(userID); got != grants {
			t.Fatalf("expected balance %d for %s, got %d", grants, userID, got)
		}
		if n := len(svc.History(userID, 0)); n != grants {
			t.Fatalf("expected %d transactions for %s, got %d", grants, userID, n)
		}
	}
}

func TestAddTransaction_InternalConsistencyError(t *testing.T) {
	svc := newTestService(t)

	// an idempotency record without its transaction is corrupted state
	if err := svc.store.Update(func(s *store.State) {
		idempotency.Mark(s, compositeKey("U1", "ghost"), 0)
	}); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	_, err := svc.AddTransaction(context.Background(), "U1", store.TxGrant, 10, Options{IdemKey: "ghost"})
	if !errors.Is(err, ErrInternalConsistency) {
		t.Fatalf("expected ErrInternalConsistency, got %v", err)
	}
}

func TestAddTransaction_RecordAndTxShareOneWrite(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := NewService(s, keymutex.New(0), archive.Noop(), logging.Discard())

	if _, err := svc.AddTransaction(context.Background(), "U1", store.TxGrant, 10, Options{IdemKey: "k"}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	// reload from disk: the record and the transaction were one durable write
	reloaded, err := store.Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	state := reloaded.Get()
	if _, ok := state.Idempotency[compositeKey("U1", "k")]; !ok {
		t.Fatalf("idempotency record missing from snapshot")
	}
	if len(state.Transactions) != 1 {
		t.Fatalf("expected one transaction, got %d", len(state.Transactions))
	}
}

func TestBalance_UntouchedAccountIsZero(t *testing.T) {
	svc := newTestService(t)
	if got := svc.Balance("nobody"); got != 0 {
		t.Fatalf("expected 0 for untouched account, got %d", got)
	}
}

func TestHistory_NewestFirstWithLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.AddTransaction(ctx, "U1", store.TxGrant, int64(i+1), Options{}); err != nil {
			t.Fatalf("grant %d: %v", i, err)
		}
	}
	if _, err := svc.AddTransaction(ctx, "U2", store.TxGrant, 999, Options{}); err != nil {
		t.Fatalf("grant other user: %v", err)
	}

	history := svc.History("U1", 3)
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	if history[0].Amount != 5 {
		t.Fatalf("expected newest entry first, got amount %d", history[0].Amount)
	}
	for _, tx := range history {
		if tx.UserID != "U1" {
			t.Fatalf("history leaked another user's transaction")
		}
	}
}
