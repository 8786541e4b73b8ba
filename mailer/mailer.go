package mailer

//go:generate mockgen -destination=mocks/mock_mailer.go -package=mocks secure-voting/mailer Mailer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"secure-voting/encryption"
)

// VotingKeyMessage carries a primary key to a voter.
type VotingKeyMessage struct {
	To            string
	Key           string
	ElectionTitle string
	ExpiresAt     time.Time
}

// ConfirmationMessage tells a voter their ballot was recorded.
type ConfirmationMessage struct {
	To              string
	ConfirmationKey string
	ElectionTitle   string
	CandidateName   string
}

// Mailer delivers protocol notifications to voters.
type Mailer interface {
	SendVotingKey(ctx context.Context, msg VotingKeyMessage) error
	SendConfirmationKey(ctx context.Context, msg ConfirmationMessage) error
}

// LogMailer writes notifications to the log instead of sending them.
// Keys are masked.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer returns a Mailer that only logs, with keys masked.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.With(zap.String("component", "mailer"))}
}

func (m *LogMailer) SendVotingKey(_ context.Context, msg VotingKeyMessage) error {
	m.logger.Info("Voting key email",
		zap.String("to", msg.To),
		zap.String("election", msg.ElectionTitle),
		zap.String("key", encryption.MaskKey(msg.Key)),
		zap.Time("expires_at", msg.ExpiresAt))
	return nil
}

func (m *LogMailer) SendConfirmationKey(_ context.Context, msg ConfirmationMessage) error {
	m.logger.Info("Vote confirmation email",
		zap.String("to", msg.To),
		zap.String("election", msg.ElectionTitle),
		zap.String("candidate", msg.CandidateName),
		zap.String("confirmation_key", encryption.MaskKey(msg.ConfirmationKey)))
	return nil
}
