// Package challenge models the two-party wager lifecycle: a pending
// challenge locks both stakes on acceptance, terminal declines and cancels
// never touch balances, and refunds compensate accepted-but-unsettled games.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EnterpriseGoose/CoinFlipper/internal/economy"
	"github.com/EnterpriseGoose/CoinFlipper/internal/ledger"
	"github.com/EnterpriseGoose/CoinFlipper/internal/notification"
	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// DealerID is the reserved party id representing the house.
const DealerID = "dealer"

var (
	// ErrNotFound indicates the challenge id is unknown.
	ErrNotFound = errors.New("challenge: not found")

	// ErrNotPending rejects lifecycle moves on settled or terminal challenges.
	ErrNotPending = errors.New("challenge: not pending")

	// ErrNotAccepted rejects settlement of a challenge whose stakes were
	// never locked.
	ErrNotAccepted = errors.New("challenge: not accepted")

	// ErrWrongDecliner rejects a decline from anyone but the challenged party.
	ErrWrongDecliner = errors.New("challenge: only the challenged user can decline")

	// ErrUnknownWinner rejects settlement for a non-participant.
	ErrUnknownWinner = errors.New("challenge: winner is not a participant")
)

// KnownGames is the closed set of playable game kinds.
var KnownGames = map[string]struct{}{
	"coin_flip":     {},
	"old_maid":      {},
	"poker":         {},
	"typing_battle": {},
}

// Service drives the wager state machine on top of the ledger.
type Service struct {
	store    *store.FileStore
	ledger   *ledger.Service
	economy  *economy.Service
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds the challenge service.
func NewService(s *store.FileStore, l *ledger.Service, e *economy.Service, n notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: s, ledger: l, economy: e, notifier: n, logger: logger}
}

// UserOpponent challenges a specific user.
func UserOpponent(id string) store.Opponent {
	return store.Opponent{Kind: store.OpponentUser, UserID: id}
}

// DealerOpponent challenges the house.
func DealerOpponent() store.Opponent {
	return store.Opponent{Kind: store.OpponentDealer}
}

// CreateInput captures the data required to open a challenge.
type CreateInput struct {
	ChannelID    string
	ChallengerID string
	Opponent     store.Opponent
	Game         string
	Stake        int64
}

// Create validates the input and inserts a pending challenge.
func (s *Service) Create(ctx context.Context, input CreateInput) (store.Challenge, error) {
	if input.ChallengerID == "" {
		return store.Challenge{}, fmt.Errorf("challenge: challenger id is required")
	}
	if input.Stake <= 0 {
		return store.Challenge{}, fmt.Errorf("challenge: stake must be positive")
	}
	if _, ok := KnownGames[input.Game]; !ok {
		return store.Challenge{}, fmt.Errorf("challenge: unknown game %q", input.Game)
	}
	switch input.Opponent.Kind {
	case store.OpponentUser:
		if input.Opponent.UserID == "" {
			return store.Challenge{}, fmt.Errorf("challenge: opponent user id is required")
		}
		if input.Opponent.UserID == input.ChallengerID {
			return store.Challenge{}, fmt.Errorf("challenge: cannot challenge yourself")
		}
	case store.OpponentDealer:
	default:
		return store.Challenge{}, fmt.Errorf("challenge: unknown opponent kind %q", input.Opponent.Kind)
	}

	now := time.Now().UTC()
	rec := store.Challenge{
		ID:           uuid.NewString(),
		ChannelID:    input.ChannelID,
		ChallengerID: input.ChallengerID,
		Opponent:     input.Opponent,
		Game:         input.Game,
		Stake:        input.Stake,
		State:        store.ChallengePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Update(func(state *store.State) {
		state.Challenges[rec.ID] = rec
	}); err != nil {
		return store.Challenge{}, err
	}

	s.logger.Info("challenge created",
		"id", rec.ID,
		"challenger_id", rec.ChallengerID,
		"opponent", string(rec.Opponent.Kind),
		"game", rec.Game,
		"stake", rec.Stake,
	)
	s.notify(ctx, notification.KindChallengeCreated, rec)
	return rec, nil
}

// Get looks up a challenge by id.
func (s *Service) Get(id string) (store.Challenge, error) {
	rec, ok := s.store.Get().Challenges[id]
	if !ok {
		return store.Challenge{}, ErrNotFound
	}
	return rec, nil
}

// AcceptResult is the outcome of an accept attempt. A false OK with a Reason
// is an expected rejection; infrastructure failures surface as errors.
type AcceptResult struct {
	OK        bool
	Reason    string
	Challenge store.Challenge
}

// Accept locks both stakes and flips the challenge to accepted. Stake debits
// are guarded by per-party idempotency keys, so a retried accept can never
// double-charge. If any debit fails the challenge stays pending, the failure
// propagates, and no compensation runs; callers decide whether to retry or
// invoke RefundStakes. The pending gate holds at commit time too: a decline
// or cancel that lands between the debits and the commit is never overwritten.
func (s *Service) Accept(ctx context.Context, id, accepterID string) (AcceptResult, error) {
	rec, ok := s.store.Get().Challenges[id]
	if !ok {
		return AcceptResult{Reason: "challenge not found"}, nil
	}
	if rec.State != store.ChallengePending {
		return AcceptResult{Reason: fmt.Sprintf("challenge is %s", rec.State)}, nil
	}

	if check := s.economy.CanStartBet(rec.ChallengerID); !check.OK {
		return AcceptResult{Reason: fmt.Sprintf("challenger %s cannot bet: %s", rec.ChallengerID, check.Reason)}, nil
	}

	switch rec.Opponent.Kind {
	case store.OpponentUser:
		if accepterID != rec.Opponent.UserID {
			return AcceptResult{Reason: "only the challenged user can accept"}, nil
		}
		if check := s.economy.CanStartBet(rec.Opponent.UserID); !check.OK {
			return AcceptResult{Reason: fmt.Sprintf("opponent %s cannot bet: %s", rec.Opponent.UserID, check.Reason)}, nil
		}
	case store.OpponentDealer:
		// the house always accepts and stakes nothing
	default:
		return AcceptResult{}, fmt.Errorf("challenge: unknown opponent kind %q", rec.Opponent.Kind)
	}

	if _, err := s.ledger.AddTransaction(ctx, rec.ChallengerID, store.TxBet, -rec.Stake, ledger.Options{
		RefID:   refID(rec.ID),
		IdemKey: stakeKey(rec.ID, rec.ChallengerID),
	}); err != nil {
		s.logger.Error("stake lock failed", "id", rec.ID, "user_id", rec.ChallengerID, "error", err)
		return AcceptResult{}, fmt.Errorf("lock challenger stake: %w", err)
	}

	if rec.Opponent.Kind == store.OpponentUser {
		if _, err := s.ledger.AddTransaction(ctx, rec.Opponent.UserID, store.TxBet, -rec.Stake, ledger.Options{
			RefID:   refID(rec.ID),
			IdemKey: stakeKey(rec.ID, rec.Opponent.UserID),
		}); err != nil {
			s.logger.Error("stake lock failed", "id", rec.ID, "user_id", rec.Opponent.UserID, "error", err)
			return AcceptResult{}, fmt.Errorf("lock opponent stake: %w", err)
		}
	}

	// the pending gate is re-checked inside the mutation: an interleaved
	// decline or cancel between the debits and this commit wins, and the
	// debited stakes stay recoverable through the refund keys
	var updated store.Challenge
	var conflict store.ChallengeState
	if err := s.store.Update(func(state *store.State) {
		r := state.Challenges[id]
		if r.State != store.ChallengePending {
			conflict = r.State
			return
		}
		r.State = store.ChallengeAccepted
		r.AcceptedBy = accepterID
		r.UpdatedAt = time.Now().UTC()
		state.Challenges[id] = r
		updated = r
	}); err != nil {
		return AcceptResult{}, err
	}
	if conflict != "" {
		s.logger.Warn("accept lost to a concurrent transition", "id", id, "state", string(conflict))
		return AcceptResult{Reason: fmt.Sprintf("challenge is %s", conflict)}, nil
	}

	s.logger.Info("challenge accepted", "id", id, "accepted_by", accepterID)
	s.notify(ctx, notification.KindChallengeAccepted, updated)
	return AcceptResult{OK: true, Challenge: updated}, nil
}

// Decline flips a pending challenge to declined. Balances are never touched;
// nothing was locked yet.
func (s *Service) Decline(ctx context.Context, id, declinerID string) (store.Challenge, error) {
	rec, ok := s.store.Get().Challenges[id]
	if !ok {
		return store.Challenge{}, ErrNotFound
	}
	if rec.State != store.ChallengePending {
		return store.Challenge{}, fmt.Errorf("%w: challenge is %s", ErrNotPending, rec.State)
	}

	switch rec.Opponent.Kind {
	case store.OpponentUser:
		if declinerID != rec.Opponent.UserID {
			return store.Challenge{}, ErrWrongDecliner
		}
	case store.OpponentDealer:
		// a dealer challenge is only withdrawable by its challenger
		if declinerID != rec.ChallengerID {
			return store.Challenge{}, ErrWrongDecliner
		}
	default:
		return store.Challenge{}, fmt.Errorf("challenge: unknown opponent kind %q", rec.Opponent.Kind)
	}

	var updated store.Challenge
	var conflict store.ChallengeState
	if err := s.store.Update(func(state *store.State) {
		r := state.Challenges[id]
		if r.State != store.ChallengePending {
			conflict = r.State
			return
		}
		r.State = store.ChallengeDeclined
		r.UpdatedAt = time.Now().UTC()
		state.Challenges[id] = r
		updated = r
	}); err != nil {
		return store.Challenge{}, err
	}
	if conflict != "" {
		return store.Challenge{}, fmt.Errorf("%w: challenge is %s", ErrNotPending, conflict)
	}

	s.logger.Info("challenge declined", "id", id, "decliner_id", declinerID)
	s.notify(ctx, notification.KindChallengeDeclined, updated)
	return updated, nil
}

// Cancel administratively terminates a pending challenge.
func (s *Service) Cancel(ctx context.Context, id string) (store.Challenge, error) {
	rec, ok := s.store.Get().Challenges[id]
	if !ok {
		return store.Challenge{}, ErrNotFound
	}
	if rec.State != store.ChallengePending {
		return store.Challenge{}, fmt.Errorf("%w: challenge is %s", ErrNotPending, rec.State)
	}

	var updated store.Challenge
	var conflict store.ChallengeState
	if err := s.store.Update(func(state *store.State) {
		r := state.Challenges[id]
		if r.State != store.ChallengePending {
			conflict = r.State
			return
		}
		r.State = store.ChallengeCanceled
		r.UpdatedAt = time.Now().UTC()
		state.Challenges[id] = r
		updated = r
	}); err != nil {
		return store.Challenge{}, err
	}
	if conflict != "" {
		return store.Challenge{}, fmt.Errorf("%w: challenge is %s", ErrNotPending, conflict)
	}

	s.logger.Info("challenge canceled", "id", id)
	return updated, nil
}

// RefundStakes credits back every stake that was actually debited for the
// challenge, once per party. Per-party failures are logged and skipped so
// one party's problem never blocks the other's refund; repeat calls are
// no-ops through the refund idempotency keys.
func (s *Service) RefundStakes(ctx context.Context, id string) error {
	rec, ok := s.store.Get().Challenges[id]
	if !ok {
		return ErrNotFound
	}

	s.refundOne(ctx, rec, rec.ChallengerID)
	if rec.Opponent.Kind == store.OpponentUser {
		s.refundOne(ctx, rec, rec.Opponent.UserID)
	}
	return nil
}

func (s *Service) refundOne(ctx context.Context, rec store.Challenge, userID string) {
	if !s.stakeDebited(rec.ID, userID) {
		return
	}
	if _, err := s.ledger.AddTransaction(ctx, userID, store.TxRefund, rec.Stake, ledger.Options{
		RefID:   refID(rec.ID),
		IdemKey: refundKey(rec.ID, userID),
	}); err != nil {
		s.logger.Error("stake refund failed", "id", rec.ID, "user_id", userID, "error", err)
	}
}

// stakeDebited reports whether userID's bet for this challenge ever landed
// in the ledger. Refunding a stake that was never locked would mint currency.
func (s *Service) stakeDebited(id, userID string) bool {
	key := stakeKey(id, userID)
	for _, tx := range s.store.Get().Transactions {
		if tx.UserID == userID && tx.IdemKey == key {
			return true
		}
	}
	return false
}

// Settle pays the winner double the stake. The loser's stake was already
// debited on accept, so no further ledger call is made for them; a dealer
// win pays nobody. The payout idempotency key makes resolver retries safe.
func (s *Service) Settle(ctx context.Context, id, winnerID string) (store.Challenge, error) {
	rec, ok := s.store.Get().Challenges[id]
	if !ok {
		return store.Challenge{}, ErrNotFound
	}
	if rec.State != store.ChallengeAccepted {
		return store.Challenge{}, fmt.Errorf("%w: challenge is %s", ErrNotAccepted, rec.State)
	}
	if !isParticipant(rec, winnerID) {
		return store.Challenge{}, fmt.Errorf("%w: %s", ErrUnknownWinner, winnerID)
	}

	if winnerID != DealerID {
		if _, err := s.ledger.AddTransaction(ctx, winnerID, store.TxWin, 2*rec.Stake, ledger.Options{
			RefID:   refID(rec.ID),
			IdemKey: payoutKey(rec.ID, winnerID),
		}); err != nil {
			return store.Challenge{}, fmt.Errorf("pay winner: %w", err)
		}
	}

	var updated store.Challenge
	if err := s.store.Update(func(state *store.State) {
		r := state.Challenges[id]
		r.WinnerID = winnerID
		r.UpdatedAt = time.Now().UTC()
		state.Challenges[id] = r
		updated = r
	}); err != nil {
		return store.Challenge{}, err
	}

	s.logger.Info("challenge settled", "id", id, "winner_id", winnerID)
	s.notify(ctx, notification.KindChallengeSettled, updated)
	return updated, nil
}

func isParticipant(rec store.Challenge, userID string) bool {
	if userID == rec.ChallengerID {
		return true
	}
	switch rec.Opponent.Kind {
	case store.OpponentUser:
		return userID == rec.Opponent.UserID
	case store.OpponentDealer:
		return userID == DealerID
	default:
		return false
	}
}

func (s *Service) notify(ctx context.Context, kind string, rec store.Challenge) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: rec.ChannelID,
		Body:        fmt.Sprintf("challenge %s (%s, stake %d) is %s", rec.ID, rec.Game, rec.Stake, rec.State),
	})
}

func refID(id string) string { return "challenge:" + id }

func stakeKey(id, userID string) string { return fmt.Sprintf("challenge:%s:stake:%s", id, userID) }

func refundKey(id, userID string) string { return fmt.Sprintf("challenge:%s:refund:%s", id, userID) }

func payoutKey(id, userID string) string { return fmt.Sprintf("challenge:%s:payout:%s", id, userID) }
