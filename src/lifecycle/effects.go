package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"tablebook/src/models"
	"tablebook/src/notify"
	"tablebook/src/types"

	"github.com/google/uuid"
)

const (
	EffectRefundRetry           = "refund.retry"
	EffectTableChangeNotice     = "notify.table_change"
	EffectPaymentRequiredNotice = "notify.payment_required"
	EffectCancellationNotice    = "notify.cancellation"
	EffectCheckinAlert          = "notify.checkin_alert"
)

type refundRetry struct {
	RefundID       uuid.UUID        `json:"refund_id"`
	ReservationID  uuid.UUID        `json:"reservation_id"`
	ChargeID       string           `json:"charge_id"`
	Amount         float64          `json:"amount"`
	Reason         string           `json:"reason"`
	Kind           types.RefundKind `json:"kind,omitempty"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// EffectHandlers replays queued side effects. Keys are effect kinds.
func (e *Engine) EffectHandlers() map[string]func(ctx context.Context, payload types.JSONB) error {
	return map[string]func(ctx context.Context, payload types.JSONB) error{
		EffectRefundRetry: e.retryRefund,
		EffectTableChangeNotice: replay(func(ctx context.Context, n notify.TableChange) error {
			return e.notifier.SendTableChangeNotification(ctx, n)
		}),
		EffectPaymentRequiredNotice: replay(func(ctx context.Context, n notify.PaymentRequired) error {
			return e.notifier.SendTableChangePaymentRequired(ctx, n)
		}),
		EffectCancellationNotice: replay(func(ctx context.Context, n notify.Cancellation) error {
			return e.notifier.SendCancellationNotification(ctx, n)
		}),
		EffectCheckinAlert: replay(func(ctx context.Context, n notify.CheckinAlert) error {
			return e.notifier.NotifyCheckinAlert(ctx, n)
		}),
	}
}

func replay[T any](send func(ctx context.Context, n T) error) func(ctx context.Context, payload types.JSONB) error {
	return func(ctx context.Context, payload types.JSONB) error {
		var n T
		if err := decodePayload(payload, &n); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}
		return send(ctx, n)
	}
}

// retryRefund reissues a failed refund under its original idempotency key and
// clears the reservation's flag once nothing is owed. The audit row is written
// here when the original attempt could not record it.
func (e *Engine) retryRefund(ctx context.Context, payload types.JSONB) error {
	var p refundRetry
	if err := decodePayload(payload, &p); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	gw, err := e.gateway.CreateRefund(ctx, types.RefundRequest{
		ChargeID:       p.ChargeID,
		Amount:         p.Amount,
		Reason:         p.Reason,
		Metadata:       map[string]string{types.MetaReservationID: p.ReservationID.String()},
		IdempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		return err
	}
	gwID := gw.ID
	if err := e.repo.Refunds().UpdateStatus(ctx, p.RefundID, types.REFUND_SUCCEEDED, &gwID); err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return err
		}
		kind := p.Kind
		if kind == "" {
			kind = types.REFUND_TABLE_CHANGE
		}
		row := &models.Refund{
			ID:              p.RefundID,
			ReservationID:   p.ReservationID,
			GatewayRefundID: &gwID,
			PaymentIntentID: p.ChargeID,
			Amount:          p.Amount,
			Status:          types.REFUND_SUCCEEDED,
			Kind:            kind,
			Reason:          p.Reason,
			IdempotencyKey:  p.IdempotencyKey,
		}
		if err := e.repo.Refunds().Record(ctx, row); err != nil {
			return err
		}
	}

	refunds, err := e.repo.Refunds().ListForReservation(ctx, p.ReservationID)
	if err != nil {
		return err
	}
	for _, r := range refunds {
		if r.Status == types.REFUND_FAILED {
			return nil
		}
	}
	_, err = e.repo.Reservations().ConditionalUpdate(ctx, p.ReservationID, allStatuses,
		func(next *models.Reservation) error {
			next.RefundFailed = false
			return nil
		})
	if err != nil {
		return err
	}
	e.logFor(p.ReservationID).Info().Str("refund_id", gw.ID).Float64("amount", p.Amount).Msg("refund retry succeeded")
	return nil
}
