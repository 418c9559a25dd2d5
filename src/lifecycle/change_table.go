package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"tablebook/src/models"
	"tablebook/src/money"
	"tablebook/src/notify"
	"tablebook/src/store"
	"tablebook/src/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type ChangeTableInput struct {
	ReservationID uuid.UUID
	NewTableID    uint
	// PaymentReference completes an upgrade paid through a charge created by
	// an earlier call.
	PaymentReference string
	// DeferPayment moves the guest now and records the difference as owed.
	DeferPayment bool
}

type Outcome string

const (
	OutcomeTableChanged    Outcome = "table_changed"
	OutcomePaymentRequired Outcome = "payment_required"
	OutcomeAlreadyApplied  Outcome = "already_applied"
)

type ChangeTableResult struct {
	Outcome      Outcome             `json:"outcome"`
	Reservation  *models.Reservation `json:"reservation"`
	Delta        float64             `json:"delta"`
	AmountDue    float64             `json:"amount_due,omitempty"`
	ChargeID     string              `json:"charge_id,omitempty"`
	ClientSecret string              `json:"client_secret,omitempty"`
	RefundID     string              `json:"refund_id,omitempty"`
	RefundAmount float64             `json:"refund_amount,omitempty"`
	RefundFailed bool                `json:"refund_failed,omitempty"`
}

// ChangeTable moves a reservation to another table of the same event.
//
// Downgrades and equal-price moves commit immediately and refund the
// difference afterwards. Upgrades first return a charge for the difference;
// the move happens on a second call carrying that charge as PaymentReference.
func (e *Engine) ChangeTable(ctx context.Context, in ChangeTableInput) (*ChangeTableResult, error) {
	r, err := e.repo.Reservations().Get(ctx, in.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.TableID == in.NewTableID {
		if in.PaymentReference != "" {
			return e.alreadyApplied(ctx, r, in.PaymentReference)
		}
		return nil, fmt.Errorf("reservation %s is already at table %d: %w", r.ID, in.NewTableID, types.ErrInvalidRequest)
	}
	if err := checkChangeable(r); err != nil {
		return nil, err
	}

	current, target, err := e.tablePair(ctx, r, in.NewTableID)
	if err != nil {
		return nil, err
	}
	if target.Reserved && !target.HeldBy(r.ID) {
		return nil, fmt.Errorf("table %d: %w", target.ID, types.ErrTableUnavailable)
	}
	delta := money.ComputeTableChangeDelta(current.Price, target.Price, e.cfg.ServiceFeeRate)

	switch {
	case in.PaymentReference != "":
		return e.completeChange(ctx, r, current, target, delta, in.PaymentReference)
	case delta <= 0:
		return e.applyDowngrade(ctx, r, current, target, delta)
	case in.DeferPayment:
		return e.applyDeferred(ctx, r, current, target, delta)
	default:
		return e.requestPayment(ctx, r, current, target, delta)
	}
}

func (e *Engine) tablePair(ctx context.Context, r *models.Reservation, newTableID uint) (*models.Table, *models.Table, error) {
	var current, target *models.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := e.repo.Tables().GetTable(gctx, r.EventID, r.TableID)
		current = t
		return err
	})
	g.Go(func() error {
		t, err := e.repo.Tables().GetTable(gctx, r.EventID, newTableID)
		target = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return current, target, nil
}

// alreadyApplied answers a completion for a reservation that already sits on
// the target table. Only a charge in the ledger for this reservation counts.
func (e *Engine) alreadyApplied(ctx context.Context, r *models.Reservation, chargeID string) (*ChangeTableResult, error) {
	applied, err := e.repo.Charges().Get(ctx, chargeID)
	switch {
	case err == nil && applied.ReservationID == r.ID:
		return &ChangeTableResult{Outcome: OutcomeAlreadyApplied, Reservation: r, ChargeID: chargeID}, nil
	case err != nil && !errors.Is(err, types.ErrNotFound):
		return nil, err
	}
	if err := checkChangeable(r); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("charge %s did not pay for table %d: %w", chargeID, r.TableID, types.ErrMetadataMismatch)
}

// swap moves the reservation and rewrites its record in one transaction. extra
// adjusts path-specific fields on top of the common audit trail. A non-nil
// charge is written to the ledger in the same transaction.
func (e *Engine) swap(ctx context.Context, r *models.Reservation, current, target *models.Table, delta float64, extra func(next *models.Reservation), charge *models.AppliedCharge) (*models.Reservation, error) {
	var updated *models.Reservation
	err := e.repo.Atomic(ctx, func(tx store.Repository) error {
		if err := tx.Tables().SwapReservation(ctx, r.EventID, current.ID, target.ID, r.ID, r.UserID); err != nil {
			return err
		}
		u, err := tx.Reservations().ConditionalUpdate(ctx, r.ID,
			[]types.ReservationStatus{types.RESERVATION_CONFIRMED},
			func(next *models.Reservation) error {
				if next.TableID != current.ID {
					return fmt.Errorf("reservation %s moved to table %d meanwhile: %w", r.ID, next.TableID, types.ErrStatusConflict)
				}
				now := e.now()
				prevID, prevNumber, d := next.TableID, next.TableNumber, delta
				next.PreviousTableID = &prevID
				next.PreviousTableNumber = &prevNumber
				next.TableID = target.ID
				next.TableNumber = target.Number
				next.TotalAmount = money.Add(next.TotalAmount, delta)
				next.TableChangedAt = &now
				next.TableChangeAmount = &d
				if extra != nil {
					extra(next)
				}
				return nil
			})
		if err != nil {
			return err
		}
		updated = u
		if charge != nil {
			return tx.Charges().Apply(ctx, charge)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logFor(r.ID).Info().
		Uint("from_table_id", current.ID).
		Uint("table_id", target.ID).
		Float64("delta", delta).
		Msg("table changed")
	return updated, nil
}

func (e *Engine) applyDowngrade(ctx context.Context, r *models.Reservation, current, target *models.Table, delta float64) (*ChangeTableResult, error) {
	updated, err := e.swap(ctx, r, current, target, delta, nil, nil)
	if err != nil {
		return nil, err
	}
	result := &ChangeTableResult{Outcome: OutcomeTableChanged, Reservation: updated, Delta: delta}
	post := context.WithoutCancel(ctx)
	if delta < 0 {
		e.refundDifference(post, result, -delta)
	}
	e.sendTableChange(post, result, current)
	return result, nil
}

func (e *Engine) applyDeferred(ctx context.Context, r *models.Reservation, current, target *models.Table, delta float64) (*ChangeTableResult, error) {
	updated, err := e.swap(ctx, r, current, target, delta, func(next *models.Reservation) {
		next.AmountDue = money.Add(next.AmountDue, delta)
	}, nil)
	if err != nil {
		return nil, err
	}
	result := &ChangeTableResult{
		Outcome:     OutcomeTableChanged,
		Reservation: updated,
		Delta:       delta,
		AmountDue:   updated.AmountDue,
	}
	e.sendTableChange(context.WithoutCancel(ctx), result, current)
	return result, nil
}

func (e *Engine) requestPayment(ctx context.Context, r *models.Reservation, current, target *models.Table, delta float64) (*ChangeTableResult, error) {
	charge, err := e.gateway.CreateCharge(ctx, types.ChargeRequest{
		Amount:      delta,
		Currency:    e.currency(r),
		Description: fmt.Sprintf("Table change %d to %d", current.Number, target.Number),
		Metadata: map[string]string{
			types.MetaReservationID: r.ID.String(),
			types.MetaTableID:       strconv.FormatUint(uint64(target.ID), 10),
			types.MetaFromTableID:   strconv.FormatUint(uint64(current.ID), 10),
			types.MetaPurpose:       types.PurposeTableChange,
			types.MetaDelta:         strconv.FormatFloat(delta, 'f', 2, 64),
		},
		IdempotencyKey: fmt.Sprintf("table-change:%s:%d:%d:%d:%d", r.ID, current.ID, target.ID, money.ToMinorUnits(delta), moveNonce(r)),
	})
	if err != nil {
		return nil, gatewayErr(err, "creating table change charge")
	}

	n := notify.PaymentRequired{
		ReservationID: r.ID,
		GuestName:     r.GuestName,
		GuestEmail:    r.GuestEmail,
		FromTable:     current.Number,
		ToTable:       target.Number,
		AmountDue:     delta,
		Currency:      e.currency(r),
		ChargeID:      charge.ID,
	}
	e.bestEffort(context.WithoutCancel(ctx), EffectPaymentRequiredNotice, r.ID, n, func(ctx context.Context) error {
		return e.notifier.SendTableChangePaymentRequired(ctx, n)
	})

	return &ChangeTableResult{
		Outcome:      OutcomePaymentRequired,
		Reservation:  r,
		Delta:        delta,
		AmountDue:    delta,
		ChargeID:     charge.ID,
		ClientSecret: charge.ClientSecret,
	}, nil
}

func (e *Engine) completeChange(ctx context.Context, r *models.Reservation, current, target *models.Table, delta float64, chargeID string) (*ChangeTableResult, error) {
	unlock, err := e.lock(ctx, "charge:"+chargeID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// A concurrent completion may have applied this charge while we waited.
	fresh, err := e.repo.Reservations().Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if fresh.TableID == target.ID {
		return e.alreadyApplied(ctx, fresh, chargeID)
	}
	if err := checkChangeable(fresh); err != nil {
		return nil, err
	}
	if _, err := e.repo.Charges().Get(ctx, chargeID); err == nil {
		return nil, fmt.Errorf("charge %s: %w", chargeID, types.ErrChargeApplied)
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	charge, err := e.gateway.RetrieveCharge(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidPayment, err)
	}
	if charge.Status != types.CHARGE_SUCCEEDED {
		return nil, fmt.Errorf("charge %s is %s: %w", charge.ID, charge.Status, types.ErrPaymentIncomplete)
	}
	if err := matchChargeMetadata(charge, fresh, current, target, delta); err != nil {
		return nil, err
	}

	applied := &models.AppliedCharge{
		ChargeID:      charge.ID,
		ReservationID: fresh.ID,
		FromTableID:   current.ID,
		ToTableID:     target.ID,
		Amount:        charge.Amount,
	}
	updated, err := e.swap(ctx, fresh, current, target, delta, func(next *models.Reservation) {
		id := charge.ID
		next.TableChangeInvoiceID = &id
	}, applied)
	if err != nil {
		return nil, err
	}
	result := &ChangeTableResult{
		Outcome:     OutcomeTableChanged,
		Reservation: updated,
		Delta:       delta,
		ChargeID:    charge.ID,
	}
	e.sendTableChange(context.WithoutCancel(ctx), result, current)
	return result, nil
}

// matchChargeMetadata rejects a charge that was created for another
// reservation, another table or another price difference.
func matchChargeMetadata(c *types.Charge, r *models.Reservation, current, target *models.Table, delta float64) error {
	mismatch := func(what string) error {
		return fmt.Errorf("charge %s %s: %w", c.ID, what, types.ErrMetadataMismatch)
	}
	if c.Metadata[types.MetaReservationID] != r.ID.String() {
		return mismatch("belongs to another reservation")
	}
	if c.Metadata[types.MetaTableID] != strconv.FormatUint(uint64(target.ID), 10) {
		return mismatch("is for another table")
	}
	if p, ok := c.Metadata[types.MetaPurpose]; ok && p != types.PurposeTableChange {
		return mismatch("is not a table change charge")
	}
	if from, ok := c.Metadata[types.MetaFromTableID]; ok && from != strconv.FormatUint(uint64(current.ID), 10) {
		return mismatch("was priced from another table")
	}
	if !money.WithinCent(c.Amount, delta) {
		return mismatch(fmt.Sprintf("amount %.2f does not cover %.2f", c.Amount, delta))
	}
	return nil
}

// moveNonce changes with every committed table change, so a charge created for
// one move is never handed back for a later one.
func moveNonce(r *models.Reservation) int64 {
	if r.TableChangedAt == nil {
		return 0
	}
	return r.TableChangedAt.UnixNano()
}

// refundDifference returns a downgrade's difference to the original payment.
// The table change has committed, so a failure only flags the reservation and
// queues a retry.
func (e *Engine) refundDifference(ctx context.Context, result *ChangeTableResult, amount float64) {
	r := result.Reservation
	result.RefundAmount = amount
	if !r.HasPayment() {
		e.logFor(r.ID).Warn().Float64("amount", amount).Msg("downgrade refund owed but no payment on file")
		e.flagRefundFailed(ctx, result)
		return
	}
	key := fmt.Sprintf("table-change-refund:%s:%d", r.ID, r.TableChangedAt.UnixNano())
	row, err := e.refundCharge(ctx, r.ID, *r.PaymentID, amount, "table change", key)
	if err != nil {
		e.flagRefundFailed(ctx, result)
		return
	}
	result.RefundID = *row.GatewayRefundID
}

// refundCharge refunds amount against chargeID and records the attempt. A
// failed refund is recorded and queued for retry under the same key.
func (e *Engine) refundCharge(ctx context.Context, reservationID uuid.UUID, chargeID string, amount float64, reason, key string) (*models.Refund, error) {
	log := e.logFor(reservationID)
	row := &models.Refund{
		ID:              uuid.New(),
		ReservationID:   reservationID,
		PaymentIntentID: chargeID,
		Amount:          amount,
		Status:          types.REFUND_SUCCEEDED,
		Kind:            types.REFUND_TABLE_CHANGE,
		Reason:          reason,
		IdempotencyKey:  key,
	}
	gw, err := e.gateway.CreateRefund(ctx, types.RefundRequest{
		ChargeID:       chargeID,
		Amount:         amount,
		Reason:         reason,
		Metadata:       map[string]string{types.MetaReservationID: reservationID.String()},
		IdempotencyKey: key,
	})
	if err == nil {
		id := gw.ID
		row.GatewayRefundID = &id
		if err := e.repo.Refunds().Record(ctx, row); err != nil {
			log.Error().Err(err).Str("refund_id", gw.ID).Msg("could not record refund")
		}
		return row, nil
	}

	log.Error().Err(err).Str("charge_id", chargeID).Float64("amount", amount).Msg("refund failed")
	row.Status = types.REFUND_FAILED
	if err := e.repo.Refunds().Record(ctx, row); err != nil {
		log.Error().Err(err).Msg("could not record failed refund")
	}
	e.enqueue(ctx, EffectRefundRetry, reservationID, refundRetry{
		RefundID:       row.ID,
		ReservationID:  reservationID,
		ChargeID:       chargeID,
		Amount:         amount,
		Reason:         reason,
		Kind:           row.Kind,
		IdempotencyKey: key,
	})
	return row, err
}

func (e *Engine) flagRefundFailed(ctx context.Context, result *ChangeTableResult) {
	result.RefundFailed = true
	if u := e.setRefundFailed(ctx, result.Reservation.ID); u != nil {
		result.Reservation = u
	}
}

// setRefundFailed marks a reservation as owed a refund. It returns nil when the
// flag could not be written.
func (e *Engine) setRefundFailed(ctx context.Context, id uuid.UUID) *models.Reservation {
	u, err := e.repo.Reservations().ConditionalUpdate(ctx, id, allStatuses,
		func(next *models.Reservation) error {
			next.RefundFailed = true
			return nil
		})
	if err != nil {
		e.logFor(id).Error().Err(err).Msg("could not flag failed refund")
		return nil
	}
	return u
}

func (e *Engine) sendTableChange(ctx context.Context, result *ChangeTableResult, from *models.Table) {
	r := result.Reservation
	n := notify.TableChange{
		ReservationID: r.ID,
		GuestName:     r.GuestName,
		GuestEmail:    r.GuestEmail,
		FromTable:     from.Number,
		ToTable:       r.TableNumber,
		Delta:         result.Delta,
		NewTotal:      r.TotalAmount,
		RefundAmount:  result.RefundAmount,
		RefundFailed:  result.RefundFailed,
		AmountDue:     r.AmountDue,
		Currency:      e.currency(r),
	}
	e.bestEffort(ctx, EffectTableChangeNotice, r.ID, n, func(ctx context.Context) error {
		return e.notifier.SendTableChangeNotification(ctx, n)
	})
}
