package notify

import (
	"context"
	"errors"

	"tablebook/src/lib"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MultiAlerter fans an alert out to every channel and joins their errors.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(ctx context.Context, subject, body string) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSender writes emails to the log instead of delivering them. Used in local mode.
type LogSender struct {
	Log *zerolog.Logger
}

func (s LogSender) Send(ctx context.Context, msg *lib.SendMailInput) (string, error) {
	id := uuid.NewString()
	s.Log.Info().
		Str("message_id", id).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Msg(msg.Body)
	return id, nil
}

type LogAlerter struct {
	Log *zerolog.Logger
}

func (a LogAlerter) Alert(ctx context.Context, subject, body string) error {
	a.Log.Info().Str("subject", subject).Msg(body)
	return nil
}
