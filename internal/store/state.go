package store

import (
	"maps"
	"time"
)

// CurrentVersion tags persisted snapshots so a future schema change can
// migrate old documents on load.
const CurrentVersion = 1

// TransactionType enumerates the ledger entry kinds.
type TransactionType string

const (
	TxGrant    TransactionType = "grant"
	TxBet      TransactionType = "bet"
	TxWin      TransactionType = "win"
	TxLoss     TransactionType = "loss"
	TxPurchase TransactionType = "purchase"
	TxRefund   TransactionType = "refund"
	TxAdmin    TransactionType = "admin"
)

// User is a chat participant's profile. Play gates game participation, See
// gates the activity feed.
type User struct {
	ID        string    `json:"id"`
	Play      bool      `json:"play"`
	See       bool      `json:"see"`
	Timezone  string    `json:"tz,omitempty"`
	Stats     UserStats `json:"stats"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStats tracks participation streaks.
type UserStats struct {
	CurrentStreak      int    `json:"current_streak"`
	LongestStreak      int    `json:"longest_streak"`
	LastQualifyingDate string `json:"last_qualifying_date,omitempty"`
}

// Balance is a user's current currency amount. Mutated only by the ledger;
// amounts may go negative.
type Balance struct {
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger entry. Never updated or deleted once
// appended; BalanceAfter always equals the prior balance plus Amount.
type Transaction struct {
	ID           string          `json:"tx_id"`
	UserID       string          `json:"user_id"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	RefID        string          `json:"ref_id,omitempty"`
	IdemKey      string          `json:"idem_key,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OpponentKind discriminates the closed opponent variant.
type OpponentKind string

const (
	OpponentUser   OpponentKind = "user"
	OpponentDealer OpponentKind = "dealer"
)

// Opponent is either a specific user or the house dealer. UserID is set only
// when Kind is OpponentUser.
type Opponent struct {
	Kind   OpponentKind `json:"kind"`
	UserID string       `json:"user_id,omitempty"`
}

// ChallengeState enumerates the wager lifecycle.
type ChallengeState string

const (
	ChallengePending  ChallengeState = "pending"
	ChallengeAccepted ChallengeState = "accepted"
	ChallengeDeclined ChallengeState = "declined"
	ChallengeCanceled ChallengeState = "canceled"
)

// Challenge is a proposed wager between a challenger and an opponent.
type Challenge struct {
	ID           string         `json:"id"`
	ChannelID    string         `json:"channel_id"`
	ChallengerID string         `json:"challenger_id"`
	Opponent     Opponent       `json:"opponent"`
	Game         string         `json:"game"`
	Stake        int64          `json:"stake"`
	State        ChallengeState `json:"state"`
	AcceptedBy   string         `json:"accepted_by,omitempty"`
	WinnerID     string         `json:"winner_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IdempotencyRecord marks a keyed side effect as already applied. While
// unexpired the protected effect runs at most once.
type IdempotencyRecord struct {
	Key       string        `json:"key"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl,omitempty"`
}

// InventoryItem is a purchased shop item and its owned quantity.
type InventoryItem struct {
	Key string `json:"key"`
	Qty int    `json:"qty"`
}

// AnnouncementConfig controls recurring announcement jobs.
type AnnouncementConfig struct {
	ChannelID          string `json:"channel_id,omitempty"`
	DailyTopEnabled    bool   `json:"daily_top_enabled"`
	WeeklyResetEnabled bool   `json:"weekly_reset_enabled"`
}

// FeatureFlags toggles optional behavior without a redeploy.
type FeatureFlags struct {
	OptIn       bool `json:"opt_in"`
	Economy     bool `json:"economy"`
	Shop        bool `json:"shop"`
	Streaks     bool `json:"streaks"`
	Games       bool `json:"games"`
	Leaderboard bool `json:"leaderboard"`
}

// State is the aggregate root persisted wholesale by the file store. Callers
// receive a detached copy from Get and mutate the live state only through
// Update.
type State struct {
	Version       int                          `json:"version"`
	Users         map[string]User              `json:"users"`
	Balances      map[string]Balance           `json:"balances"`
	Inventory     map[string][]InventoryItem   `json:"inventory"`
	Transactions  []Transaction                `json:"transactions"`
	Challenges    map[string]Challenge         `json:"challenges"`
	Idempotency   map[string]IdempotencyRecord `json:"idempotency"`
	Announcements AnnouncementConfig           `json:"announcements"`
	FeatureFlags  FeatureFlags                 `json:"feature_flags"`
	CreatedAt     time.Time                    `json:"created_at"`
	UpdatedAt     time.Time                    `json:"updated_at"`
}

// Clone deep-copies the snapshot. Every record is a plain value, so cloning
// the maps and slices detaches the copy completely from the live state.
func (s *State) Clone() *State {
	out := *s
	out.Users = maps.Clone(s.Users)
	out.Balances = maps.Clone(s.Balances)
	out.Challenges = maps.Clone(s.Challenges)
	out.Idempotency = maps.Clone(s.Idempotency)
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	out.Inventory = make(map[string][]InventoryItem, len(s.Inventory))
	for id, items := range s.Inventory {
		out.Inventory[id] = append([]InventoryItem(nil), items...)
	}
	return &out
}

// DefaultState seeds a fresh snapshot when no persisted document exists or
// the existing one cannot be parsed.
func DefaultState() *State {
	now := time.Now().UTC()
	return &State{
		Version:      CurrentVersion,
		Users:        make(map[string]User),
		Balances:     make(map[string]Balance),
		Inventory:    make(map[string][]InventoryItem),
		Transactions: []Transaction{},
		Challenges:   make(map[string]Challenge),
		Idempotency:  make(map[string]IdempotencyRecord),
		FeatureFlags: FeatureFlags{
			OptIn:       true,
			Economy:     true,
			Shop:        true,
			Streaks:     true,
			Games:       true,
			Leaderboard: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
