package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tablebook/src/models"
	"tablebook/src/notify"
	"tablebook/src/types"

	"github.com/google/uuid"
)

type CheckInInput struct {
	ReservationID uuid.UUID
	StaffName     string
}

// CheckIn marks a confirmed reservation as arrived. Of two concurrent
// check-ins exactly one succeeds; the other learns who won and when.
func (e *Engine) CheckIn(ctx context.Context, in CheckInInput) (*models.Reservation, error) {
	staff := e.staffName(strings.TrimSpace(in.StaffName))
	at := e.now()
	r, err := e.repo.Reservations().ConditionalUpdate(ctx, in.ReservationID,
		[]types.ReservationStatus{types.RESERVATION_CONFIRMED},
		func(next *models.Reservation) error {
			next.Status = types.RESERVATION_CHECKED_IN
			next.CheckedInAt = &at
			next.CheckedInBy = &staff
			return nil
		})
	if errors.Is(err, types.ErrStatusConflict) {
		return nil, e.checkInConflict(ctx, in.ReservationID, err)
	}
	if err != nil {
		return nil, err
	}

	n := notify.CheckinAlert{
		ReservationID: r.ID,
		EventID:       r.EventID,
		GuestName:     r.GuestName,
		TableNumber:   r.TableNumber,
		StaffName:     staff,
		CheckedInAt:   at,
	}
	e.bestEffort(context.WithoutCancel(ctx), EffectCheckinAlert, r.ID, n, func(ctx context.Context) error {
		return e.notifier.NotifyCheckinAlert(ctx, n)
	})
	e.logFor(r.ID).Info().Str("by", staff).Msg("guest checked in")
	return r, nil
}

func (e *Engine) checkInConflict(ctx context.Context, id uuid.UUID, cause error) error {
	current, err := e.repo.Reservations().Get(ctx, id)
	if err != nil {
		return err
	}
	switch current.Status {
	case types.RESERVATION_CHECKED_IN:
		return checkedInErr(current)
	case types.RESERVATION_CANCELLED:
		return fmt.Errorf("reservation %s: %w", id, types.ErrAlreadyCancelled)
	default:
		return cause
	}
}
