// Package player manages participant profiles: the Play flag gates game
// participation, the See flag gates the activity feed. Profiles live in the
// snapshot and are created lazily on first touch.
package player

import (
	"errors"
	"log/slog"
	"time"

	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// ErrNotFound is returned when a profile has never been created.
var ErrNotFound = errors.New("player: not found")

// Service mutates participant profiles in the snapshot.
type Service struct {
	store  *store.FileStore
	logger *slog.Logger
}

// NewService builds the player service.
func NewService(s *store.FileStore, logger *slog.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// Get returns a user's profile.
func (s *Service) Get(userID string) (store.User, error) {
	u, ok := s.store.Get().Users[userID]
	if !ok {
		return store.User{}, ErrNotFound
	}
	return u, nil
}

// ensure creates the profile and its zero balance inside an open mutation.
func ensure(state *store.State, userID string) {
	now := time.Now().UTC()
	if _, ok := state.Users[userID]; !ok {
		state.Users[userID] = store.User{
			ID:        userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if _, ok := state.Balances[userID]; !ok {
		state.Balances[userID] = store.Balance{UserID: userID, UpdatedAt: now}
	}
}

// SetPlay opts a user in or out of games.
func (s *Service) SetPlay(userID string, on bool) (store.User, error) {
	return s.mutate(userID, func(u *store.User) { u.Play = on })
}

// SetSee toggles the activity feed.
func (s *Service) SetSee(userID string, on bool) (store.User, error) {
	return s.mutate(userID, func(u *store.User) { u.See = on })
}

// OptOut clears both flags; the bot stops reacting to the user entirely.
func (s *Service) OptOut(userID string) (store.User, error) {
	return s.mutate(userID, func(u *store.User) {
		u.Play = false
		u.See = false
	})
}

func (s *Service) mutate(userID string, fn func(*store.User)) (store.User, error) {
	var updated store.User
	err := s.store.Update(func(state *store.State) {
		ensure(state, userID)
		u := state.Users[userID]
		fn(&u)
		u.UpdatedAt = time.Now().UTC()
		state.Users[userID] = u
		updated = u
	})
	if err != nil {
		return store.User{}, err
	}
	s.logger.Info("player updated", "user_id", userID, "play", updated.Play, "see", updated.See)
	return updated, nil
}
