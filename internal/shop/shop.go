// Package shop sells inventory items against the ledger. Purchases debit
// the buyer once per client transaction id and record the item in the
// snapshot inventory.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/EnterpriseGoose/CoinFlipper/internal/idempotency"
	"github.com/EnterpriseGoose/CoinFlipper/internal/ledger"
	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

var (
	// ErrUnknownItem rejects purchases outside the catalog.
	ErrUnknownItem = errors.New("shop: unknown item")

	// ErrInsufficientFunds rejects purchases the buyer cannot cover.
	ErrInsufficientFunds = errors.New("shop: insufficient funds")
)

// Item is a purchasable catalog entry.
type Item struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Catalog returns the fixed item list, stable order.
func Catalog() []Item {
	return []Item{
		{Key: "streak_saver", Name: "Streak Saver", Price: 150},
		{Key: "game_breaker", Name: "Game Breaker", Price: 300},
		{Key: "sigma", Name: "Sigma", Price: 500},
		{Key: "reactor", Name: "Reactor", Price: 1000},
	}
}

func catalogItem(key string) (Item, bool) {
	for _, item := range Catalog() {
		if item.Key == key {
			return item, true
		}
	}
	return Item{}, false
}

// Service handles purchases.
type Service struct {
	store  *store.FileStore
	ledger *ledger.Service
	logger *slog.Logger
}

// NewService builds the shop service.
func NewService(s *store.FileStore, l *ledger.Service, logger *slog.Logger) *Service {
	return &Service{store: s, ledger: l, logger: logger}
}

// PurchaseResult reports the outcome of a purchase.
type PurchaseResult struct {
	Transaction store.Transaction
	Item        Item
	Quantity    int
}

// Purchase debits the item price and increments the buyer's inventory. The
// client transaction id makes retries safe: a replay returns the original
// transaction and leaves the inventory untouched. The affordability check is
// advisory: it reads the balance outside the buyer's posting lock, so racing
// purchases can drive the balance negative. The ledger permits that, and the
// debit and inventory idempotency keys keep every coin and item accounted
// for either way.
func (s *Service) Purchase(ctx context.Context, userID, itemKey, clientTxID string) (PurchaseResult, error) {
	item, ok := catalogItem(itemKey)
	if !ok {
		return PurchaseResult{}, fmt.Errorf("%w: %q", ErrUnknownItem, itemKey)
	}
	if clientTxID == "" {
		clientTxID = uuid.NewString()
	}

	if s.ledger.Balance(userID) < item.Price {
		return PurchaseResult{}, ErrInsufficientFunds
	}

	tx, err := s.ledger.AddTransaction(ctx, userID, store.TxPurchase, -item.Price, ledger.Options{
		RefID:   "shop:" + item.Key,
		IdemKey: "shop:" + clientTxID,
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	// the inventory bump gets its own idempotency mark so a replayed
	// purchase cannot grant the item twice
	invKey := fmt.Sprintf("inv:%s:%s", userID, clientTxID)
	var qty int
	if err := s.store.Update(func(state *store.State) {
		if !idempotency.Applied(state, invKey, tx.CreatedAt) {
			addItem(state, userID, item.Key)
			idempotency.Mark(state, invKey, 0)
		}
		qty = itemQty(state, userID, item.Key)
	}); err != nil {
		return PurchaseResult{}, err
	}

	s.logger.Info("purchase", "user_id", userID, "item", item.Key, "price", item.Price, "qty", qty)
	return PurchaseResult{Transaction: tx, Item: item, Quantity: qty}, nil
}

// Inventory lists a user's items, stable order.
func (s *Service) Inventory(userID string) []store.InventoryItem {
	items := append([]store.InventoryItem(nil), s.store.Get().Inventory[userID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items
}

func addItem(state *store.State, userID, key string) {
	items := state.Inventory[userID]
	for i := range items {
		if items[i].Key == key {
			items[i].Qty++
			state.Inventory[userID] = items
			return
		}
	}
	state.Inventory[userID] = append(items, store.InventoryItem{Key: key, Qty: 1})
}

func itemQty(state *store.State, userID, key string) int {
	for _, item := range state.Inventory[userID] {
		if item.Key == key {
			return item.Qty
		}
	}
	return 0
}
