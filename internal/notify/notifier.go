// Package notify delivers issued participation tokens to participants by SMS.
package notify

import (
	"context"
	"fmt"

	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/model"
	"go.uber.org/zap"
)

// Notifier defines the interface for sending a token to a participant
type Notifier interface {
	Send(ctx context.Context, to model.MobileNumber, token model.ParticipationToken) error
}

// MessageBody is the SMS text sent with a token.
func MessageBody(token model.ParticipationToken) string {
	return fmt.Sprintf("Thank you for sharing your story with SpeechBox. Your participation token is %s", token)
}

// LogNotifier only logs what it would send. Used when no SMS provider is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the masked recipient and the token.
func (n *LogNotifier) Send(ctx context.Context, to model.MobileNumber, token model.ParticipationToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Info("sms not configured, token not sent",
		logging.Phone("to", to.String()),
		zap.String("token", token.String()),
	)
	return nil
}
