package notify

import (
	"context"
	"fmt"

	"github.com/speechbox/server/internal/logging"
	"github.com/speechbox/server/internal/model"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// messageCreator is the subset of the Twilio API the notifier uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends tokens as SMS through Twilio.
type TwilioNotifier struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

// NewTwilioNotifier creates a notifier for the given account, sending from fromNumber.
func NewTwilioNotifier(accountSID, authToken, fromNumber string, logger *zap.Logger) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{api: client.Api, from: fromNumber, logger: logger}
}

// Send creates one SMS. The Twilio client takes no context; ctx is only checked up front.
func (n *TwilioNotifier) Send(ctx context.Context, to model.MobileNumber, token model.ParticipationToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to.String())
	params.SetFrom(n.from)
	params.SetBody(MessageBody(token))

	msg, err := n.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}

	fields := []zap.Field{logging.Phone("to", to.String()), zap.String("token", token.String())}
	if msg != nil && msg.Sid != nil {
		fields = append(fields, zap.String("sid", *msg.Sid))
	}
	n.logger.Info("sms sent", fields...)
	return nil
}
