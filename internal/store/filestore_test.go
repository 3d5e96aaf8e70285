package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/EnterpriseGoose/CoinFlipper/internal/logging"
)

func TestOpen_MissingFileSeedsDefaults(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	state := s.Get()
	if state.Version != CurrentVersion {
		t.Fatalf("expected version %d, got %d", CurrentVersion, state.Version)
	}
	if !state.FeatureFlags.Economy {
		t.Fatalf("expected default feature flags enabled")
	}

	// seeding must persist immediately
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Fatalf("expected state file on disk: %v", err)
	}
}

func TestOpen_CorruptFileSeedsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s, err := Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Get().Version != CurrentVersion {
		t.Fatalf("expected seeded defaults after corrupt load")
	}
}

func TestGet_ReturnsDetachedCopy(t *testing.T) {
	s, err := Open(t.TempDir(), "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Update(func(st *State) {
		st.Balances["U1"] = Balance{UserID: "U1", Amount: 100}
		st.Inventory["U1"] = []InventoryItem{{Key: "sigma", Qty: 1}}
		st.Transactions = append(st.Transactions, Transaction{ID: "t1", UserID: "U1", Amount: 100})
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	snapshot := s.Get()

	// later updates must not show through an already-taken snapshot
	if err := s.Update(func(st *State) {
		st.Balances["U1"] = Balance{UserID: "U1", Amount: 999}
		st.Inventory["U1"][0].Qty = 7
		st.Transactions = append(st.Transactions, Transaction{ID: "t2", UserID: "U1", Amount: 899})
	}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if got := snapshot.Balances["U1"].Amount; got != 100 {
		t.Fatalf("snapshot balance changed under a concurrent update: %d", got)
	}
	if got := snapshot.Inventory["U1"][0].Qty; got != 1 {
		t.Fatalf("snapshot inventory changed under a concurrent update: %d", got)
	}
	if n := len(snapshot.Transactions); n != 1 {
		t.Fatalf("snapshot transactions changed under a concurrent update: %d", n)
	}

	// and writes to the snapshot must never reach the live state
	snapshot.Balances["U1"] = Balance{UserID: "U1", Amount: -1}
	snapshot.Inventory["U1"][0].Qty = -1
	if got := s.Get().Balances["U1"].Amount; got != 999 {
		t.Fatalf("mutating a snapshot leaked into the store: %d", got)
	}
	if got := s.Get().Inventory["U1"][0].Qty; got != 7 {
		t.Fatalf("mutating snapshot inventory leaked into the store: %d", got)
	}
}

func TestUpdate_PersistsMutation(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.Update(func(st *State) {
		st.Balances["U1"] = Balance{UserID: "U1", Amount: 250}
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reloaded.Get().Balances["U1"].Amount; got != 250 {
		t.Fatalf("expected persisted balance 250, got %d", got)
	}
}

func TestUpdate_LeftoverTempFileNeverCorruptsState(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Update(func(st *State) {
		st.Balances["U1"] = Balance{UserID: "U1", Amount: 100}
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// simulate a crash mid-write: a partial temp file sits next to the real
	// document but the rename never happened
	tmp := filepath.Join(dir, "state.json.tmp")
	if err := os.WriteFile(tmp, []byte(`{"version":1,"users"`), 0o644); err != nil {
		t.Fatalf("write partial temp file: %v", err)
	}

	reloaded, err := Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reloaded.Get().Balances["U1"].Amount; got != 100 {
		t.Fatalf("expected last completed update to survive, got balance %d", got)
	}
}

func TestSave_WritesWellFormedJSON(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, "state.json", logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Update(func(st *State) {
		st.Users["U1"] = User{ID: "U1", Play: true}
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var decoded State
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if !decoded.Users["U1"].Play {
		t.Fatalf("round-tripped user lost play flag")
	}
}
