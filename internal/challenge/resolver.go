package challenge

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/EnterpriseGoose/CoinFlipper/internal/store"
)

// Resolver decides the winner of an accepted challenge. One implementation
// exists per game kind; the wager engine itself knows nothing about rules or
// randomness.
type Resolver interface {
	Resolve(ctx context.Context, rec store.Challenge) (winnerID string, err error)
}

// ResolverRegistry maps game kinds to their resolvers.
type ResolverRegistry map[string]Resolver

// DefaultResolvers registers the games with built-in rules. Game kinds
// without a resolver can still be created and accepted; they settle through
// an external caller.
func DefaultResolvers() ResolverRegistry {
	return ResolverRegistry{
		"coin_flip": CoinFlipResolver{},
	}
}

// For returns the resolver for a game kind.
func (r ResolverRegistry) For(game string) (Resolver, error) {
	resolver, ok := r[game]
	if !ok {
		return nil, fmt.Errorf("challenge: no resolver for game %q", game)
	}
	return resolver, nil
}

// CoinFlipResolver flips a fair coin between the challenger and the
// opponent. Dealer opponents win as DealerID, which settles without payout.
type CoinFlipResolver struct {
	// Flip overrides the coin for tests; nil means a fair rand flip.
	Flip func() bool
}

// Resolve picks the winner.
func (c CoinFlipResolver) Resolve(_ context.Context, rec store.Challenge) (string, error) {
	flip := c.Flip
	if flip == nil {
		flip = func() bool { return rand.Intn(2) == 0 }
	}

	if flip() {
		return rec.ChallengerID, nil
	}
	switch rec.Opponent.Kind {
	case store.OpponentUser:
		return rec.Opponent.UserID, nil
	case store.OpponentDealer:
		return DealerID, nil
	default:
		return "", fmt.Errorf("challenge: unknown opponent kind %q", rec.Opponent.Kind)
	}
}
