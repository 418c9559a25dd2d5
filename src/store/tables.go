package store

import (
	"context"
	"fmt"

	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type tableStore struct {
	*Store
}

func (t *tableStore) GetTable(ctx context.Context, eventID, tableID uint) (*models.Table, error) {
	var table models.Table
	if err := t.conn(ctx).
		Where("event_id = ? AND id = ?", eventID, tableID).
		First(&table).
		Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("table %d", tableID))
	}
	return &table, nil
}

func (t *tableStore) SwapReservation(ctx context.Context, eventID, oldTableID, newTableID uint, reservationID uuid.UUID, ownerID uint) error {
	return t.atomic(ctx, func(tx *gorm.DB) error {
		if err := claimTable(tx, eventID, newTableID, reservationID, ownerID); err != nil {
			return err
		}
		return releaseTable(tx, eventID, oldTableID, reservationID)
	})
}

func (t *tableStore) Reserve(ctx context.Context, eventID, tableID uint, reservationID uuid.UUID, ownerID uint) error {
	return t.atomic(ctx, func(tx *gorm.DB) error {
		return claimTable(tx, eventID, tableID, reservationID, ownerID)
	})
}

func (t *tableStore) Release(ctx context.Context, eventID, tableID uint, reservationID uuid.UUID) error {
	return releaseTable(t.conn(ctx), eventID, tableID, reservationID)
}

// claimTable flips reserved false->true in a single conditional UPDATE, so two
// writers racing for one table cannot both see a row affected.
func claimTable(tx *gorm.DB, eventID, tableID uint, reservationID uuid.UUID, ownerID uint) error {
	res := tx.
		Model(&models.Table{}).
		Where("event_id = ? AND id = ? AND reserved = ?", eventID, tableID, false).
		Updates(map[string]any{
			"reserved":       true,
			"reserved_by":    ownerID,
			"reservation_id": reservationID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := tx.
		Model(&models.Table{}).
		Where("event_id = ? AND id = ?", eventID, tableID).
		Count(&count).
		Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("table %d: %w", tableID, types.ErrNotFound)
	}
	return fmt.Errorf("table %d: %w", tableID, types.ErrTableUnavailable)
}

func releaseTable(tx *gorm.DB, eventID, tableID uint, reservationID uuid.UUID) error {
	return tx.
		Model(&models.Table{}).
		Where("event_id = ? AND id = ? AND reservation_id = ?", eventID, tableID, reservationID).
		Updates(map[string]any{
			"reserved":       false,
			"reserved_by":    nil,
			"reservation_id": nil,
		}).
		Error
}
