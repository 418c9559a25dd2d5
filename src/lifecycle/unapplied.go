package lifecycle

import (
	"context"
	"errors"

	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/google/uuid"
)

// RefundUnappliedCharge returns a paid table change charge that could not be
// applied, for instance because the target table was taken before the payment
// landed. Charges in the applied ledger are left alone and a nil refund is
// returned. Repeated calls for one charge return the first refund row.
func (e *Engine) RefundUnappliedCharge(ctx context.Context, reservationID uuid.UUID, chargeID string) (*models.Refund, error) {
	unlock, err := e.lock(ctx, "charge:"+chargeID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := e.repo.Charges().Get(ctx, chargeID); err == nil {
		return nil, nil
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	key := "table-change-unapplied:" + chargeID
	refunds, err := e.repo.Refunds().ListForReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	for i := range refunds {
		if refunds[i].IdempotencyKey == key {
			return &refunds[i], nil
		}
	}

	charge, err := e.gateway.RetrieveCharge(ctx, chargeID)
	if err != nil {
		return nil, gatewayErr(err, "retrieving unapplied charge")
	}
	if charge.Status != types.CHARGE_SUCCEEDED || charge.Amount <= 0 {
		return nil, nil
	}

	log := e.logFor(reservationID)
	row, err := e.refundCharge(ctx, reservationID, charge.ID, charge.Amount, "table change not applied", key)
	if err != nil {
		e.setRefundFailed(ctx, reservationID)
		return row, nil
	}
	log.Info().Str("charge_id", charge.ID).Float64("amount", charge.Amount).Msg("unapplied table change charge refunded")
	return row, nil
}
