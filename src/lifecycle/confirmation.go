package lifecycle

import (
	"context"
	"fmt"

	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/google/uuid"
)

type ConfirmationResult struct {
	Reservation *models.Reservation `json:"reservation"`
	AlreadySent bool                `json:"already_sent"`
	MessageID   string              `json:"message_id,omitempty"`
}

// SendConfirmation emails the booking confirmation once. The sent flag is
// written only after the email has gone out, so a failed send can be retried.
func (e *Engine) SendConfirmation(ctx context.Context, id uuid.UUID, forceResend bool) (*ConfirmationResult, error) {
	unlock, err := e.lock(ctx, "confirmation:"+id.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	r, err := e.repo.Reservations().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == types.RESERVATION_CANCELLED {
		return nil, fmt.Errorf("reservation %s: %w", id, types.ErrAlreadyCancelled)
	}
	if r.ConfirmationEmailSent && !forceResend {
		res := &ConfirmationResult{Reservation: r, AlreadySent: true}
		if r.ConfirmationEmailID != nil {
			res.MessageID = *r.ConfirmationEmailID
		}
		return res, nil
	}

	var eventName string
	if event, err := e.repo.Events().GetEvent(ctx, r.EventID); err == nil {
		eventName = event.Name
	}
	msgID, err := e.notifier.SendReservationConfirmation(ctx, confirmationFor(r, eventName, e.currency(r)))
	if err != nil {
		return nil, fmt.Errorf("%w: sending confirmation: %w", types.ErrGateway, err)
	}

	updated, err := e.repo.Reservations().ConditionalUpdate(context.WithoutCancel(ctx), id,
		[]types.ReservationStatus{types.RESERVATION_PENDING, types.RESERVATION_CONFIRMED, types.RESERVATION_CHECKED_IN},
		func(next *models.Reservation) error {
			now := e.now()
			next.ConfirmationEmailSent = true
			next.ConfirmationEmailSentAt = &now
			next.ConfirmationEmailID = &msgID
			return nil
		})
	if err != nil {
		e.logFor(id).Error().Err(err).Str("message_id", msgID).Msg("confirmation sent but flag not saved")
		return nil, err
	}
	return &ConfirmationResult{Reservation: updated, MessageID: msgID}, nil
}
