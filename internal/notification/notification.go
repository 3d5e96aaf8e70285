package notification

import (
	"context"
	"log/slog"
)

const (
	// KindChallengeCreated announces a freshly opened challenge.
	KindChallengeCreated = "challenge_created"
	// KindChallengeAccepted announces locked stakes.
	KindChallengeAccepted = "challenge_accepted"
	// KindChallengeDeclined announces a declined challenge.
	KindChallengeDeclined = "challenge_declined"
	// KindChallengeSettled announces a settled game.
	KindChallengeSettled = "challenge_settled"
	// KindDailyGrant announces the recurring allowance run.
	KindDailyGrant = "daily_grant"
	// KindWeeklyTop announces the weekly leaderboard summary.
	KindWeeklyTop = "weekly_top"
)

// Message describes a notification payload. Destination is a chat channel or
// user reference understood by the front end.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to the chat platform (or any downstream).
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the
// logger; the real chat integration lives outside this service.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
