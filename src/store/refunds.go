package store

import (
	"context"
	"fmt"

	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/google/uuid"
)

type refundStore struct {
	*Store
}

func (r *refundStore) Record(ctx context.Context, refund *models.Refund) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	return r.conn(ctx).Create(refund).Error
}

func (r *refundStore) UpdateStatus(ctx context.Context, id uuid.UUID, status types.RefundStatus, gatewayRefundID *string) error {
	updates := map[string]any{"status": status}
	if gatewayRefundID != nil {
		updates["gateway_refund_id"] = *gatewayRefundID
	}
	res := r.conn(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("refund %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func (r *refundStore) ListForReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Refund, error) {
	var rows []models.Refund
	err := r.conn(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC").
		Find(&rows).
		Error
	return rows, err
}
