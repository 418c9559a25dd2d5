package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"tablebook/src/models"
	"tablebook/src/money"
	"tablebook/src/notify"
	"tablebook/src/store"
	"tablebook/src/types"

	"github.com/google/uuid"
)

type CancelInput struct {
	ReservationID uuid.UUID
	Reason        string
	RefundAmount  float64
	StaffName     string
}

type CancelResult struct {
	Reservation   *models.Reservation `json:"reservation"`
	Refund        *models.Refund      `json:"refund,omitempty"`
	TableReleased bool                `json:"table_released"`
}

// Cancel refunds first and cancels only once the refund has been accepted. A
// failed refund leaves the reservation untouched. Releasing the table happens
// after commit and never fails the operation.
func (e *Engine) Cancel(ctx context.Context, in CancelInput) (*CancelResult, error) {
	log := e.logFor(in.ReservationID)
	r, err := e.repo.Reservations().Get(ctx, in.ReservationID)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case types.RESERVATION_CANCELLED:
		return nil, fmt.Errorf("reservation %s: %w", r.ID, types.ErrAlreadyCancelled)
	case types.RESERVATION_CHECKED_IN:
		return nil, checkedInErr(r)
	}

	amount := money.Round2(in.RefundAmount)
	if amount < 0 || amount > r.TotalAmount {
		return nil, fmt.Errorf("refund %.2f outside 0..%.2f: %w", amount, r.TotalAmount, types.ErrInvalidRequest)
	}
	if amount > 0 && !r.HasPayment() {
		return nil, fmt.Errorf("reservation %s: %w", r.ID, types.ErrNoPaymentOnFile)
	}

	var refund *models.Refund
	if amount > 0 {
		key := fmt.Sprintf("cancel:%s:%d", r.ID, money.ToMinorUnits(amount))
		gw, err := e.gateway.CreateRefund(ctx, types.RefundRequest{
			ChargeID:       *r.PaymentID,
			Amount:         amount,
			Reason:         in.Reason,
			Metadata:       map[string]string{types.MetaReservationID: r.ID.String()},
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrRefundFailed, err)
		}
		gwID := gw.ID
		refund = &models.Refund{
			ReservationID:   r.ID,
			GatewayRefundID: &gwID,
			PaymentIntentID: *r.PaymentID,
			Amount:          amount,
			Status:          types.REFUND_SUCCEEDED,
			Kind:            types.REFUND_CANCELLATION,
			Reason:          in.Reason,
			IdempotencyKey:  key,
		}
	}

	staff := e.staffName(strings.TrimSpace(in.StaffName))
	var cancelled *models.Reservation
	err = e.repo.Atomic(ctx, func(tx store.Repository) error {
		u, err := tx.Reservations().ConditionalUpdate(ctx, r.ID,
			[]types.ReservationStatus{types.RESERVATION_PENDING, types.RESERVATION_CONFIRMED},
			func(next *models.Reservation) error {
				now := e.now()
				next.Status = types.RESERVATION_CANCELLED
				next.CancelledAt = &now
				next.CancelledBy = &staff
				if in.Reason != "" {
					reason := in.Reason
					next.CancellationReason = &reason
				}
				if refund != nil {
					status := string(refund.Status)
					next.RefundID = refund.GatewayRefundID
					next.RefundAmount = &amount
					next.RefundStatus = &status
				}
				return nil
			})
		if err != nil {
			return err
		}
		cancelled = u
		if refund == nil {
			return nil
		}
		return tx.Refunds().Record(ctx, refund)
	})
	if err != nil {
		if refund != nil {
			log.Error().Err(err).
				Str("refund_id", *refund.GatewayRefundID).
				Float64("amount", amount).
				Msg("refund issued but cancellation did not commit")
		}
		return nil, err
	}

	result := &CancelResult{Reservation: cancelled, Refund: refund, TableReleased: true}
	post := context.WithoutCancel(ctx)
	if err := e.repo.Tables().Release(post, r.EventID, r.TableID, r.ID); err != nil {
		log.Error().Err(err).Uint("table_id", r.TableID).Msg("could not release table after cancellation")
		result.TableReleased = false
	}

	n := notify.Cancellation{
		ReservationID: r.ID,
		GuestName:     r.GuestName,
		GuestEmail:    r.GuestEmail,
		TableNumber:   r.TableNumber,
		Reason:        in.Reason,
		RefundAmount:  amount,
		Currency:      e.currency(r),
	}
	e.bestEffort(post, EffectCancellationNotice, r.ID, n, func(ctx context.Context) error {
		return e.notifier.SendCancellationNotification(ctx, n)
	})

	log.Info().Float64("refund", amount).Str("by", staff).Msg("reservation cancelled")
	return result, nil
}
