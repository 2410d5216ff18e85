package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogTransport writes messages to the service log instead of delivering them.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"messageId": msg.ID,
		"to":        msg.Recipient.Email,
		"role":      msg.Recipient.Role,
	}).Infof("notification: %s", msg.Subject)
	return nil
}
