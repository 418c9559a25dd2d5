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
)

type CreateInput struct {
	EventID     uint
	TableID     uint
	UserID      uint
	GuestName   string
	GuestEmail  string
	PaymentID   string
	TotalAmount float64
}

// Create books a table against a payment that has already succeeded. The table
// claim and the reservation insert commit together.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*models.Reservation, error) {
	if in.PaymentID == "" || in.TotalAmount <= 0 {
		return nil, fmt.Errorf("payment and a positive total are required: %w", types.ErrInvalidRequest)
	}
	total := money.Round2(in.TotalAmount)

	charge, err := e.gateway.RetrieveCharge(ctx, in.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidPayment, err)
	}
	if charge.Status != types.CHARGE_SUCCEEDED {
		return nil, fmt.Errorf("charge %s is %s: %w", charge.ID, charge.Status, types.ErrPaymentIncomplete)
	}
	if !money.WithinCent(charge.Amount, total) {
		return nil, fmt.Errorf("charge %s is for %.2f, reservation totals %.2f: %w", charge.ID, charge.Amount, total, types.ErrMetadataMismatch)
	}

	event, err := e.repo.Events().GetEvent(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	table, err := e.repo.Tables().GetTable(ctx, in.EventID, in.TableID)
	if err != nil {
		return nil, err
	}

	paymentID := in.PaymentID
	currency := e.cfg.Currency
	if charge.Currency != "" {
		currency = strings.ToLower(charge.Currency)
	}
	r := &models.Reservation{
		ReservationData: models.ReservationData{
			EventID:     in.EventID,
			TableID:     table.ID,
			TableNumber: table.Number,
			UserID:      in.UserID,
			GuestName:   in.GuestName,
			GuestEmail:  in.GuestEmail,
			Status:      types.RESERVATION_CONFIRMED,
			TotalAmount: total,
			Currency:    currency,
			PaymentID:   &paymentID,
		},
	}
	err = e.repo.Atomic(ctx, func(tx store.Repository) error {
		if err := tx.Reservations().Create(ctx, r); err != nil {
			return err
		}
		return tx.Tables().Reserve(ctx, in.EventID, table.ID, r.ID, in.UserID)
	})
	if err != nil {
		return nil, err
	}
	e.logFor(r.ID).Info().
		Uint("table_id", table.ID).
		Str("charge_id", charge.ID).
		Str("event", event.Name).
		Msg("reservation created")
	return r, nil
}

func confirmationFor(r *models.Reservation, eventName, currency string) notify.Confirmation {
	return notify.Confirmation{
		ReservationID: r.ID,
		GuestName:     r.GuestName,
		GuestEmail:    r.GuestEmail,
		EventName:     eventName,
		TableNumber:   r.TableNumber,
		TotalAmount:   r.TotalAmount,
		Currency:      currency,
	}
}
