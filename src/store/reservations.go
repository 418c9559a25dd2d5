package store

import (
	"context"
	"fmt"
	"slices"

	"tablebook/src/models"
	"tablebook/src/models/scopes"
	"tablebook/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type reservationStore struct {
	*Store
}

func (r *reservationStore) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.conn(ctx).
		Scopes(scopes.WithUUID(id)).
		First(&reservation).
		Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("reservation %s", id))
	}
	return &reservation, nil
}

func (r *reservationStore) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	return r.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(reservation).Error; err != nil {
			return err
		}
		return upsertMirror(tx, reservation)
	})
}

func (r *reservationStore) ConditionalUpdate(ctx context.Context, id uuid.UUID, expected []types.ReservationStatus, mutate Mutation) (*models.Reservation, error) {
	var out models.Reservation
	err := r.atomic(ctx, func(tx *gorm.DB) error {
		var current models.Reservation
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Scopes(scopes.WithUUID(id)).
			First(&current).
			Error; err != nil {
			return notFound(err, fmt.Sprintf("reservation %s", id))
		}
		if !slices.Contains(expected, current.Status) {
			return fmt.Errorf("reservation %s is %s: %w", id, current.Status, types.ErrStatusConflict)
		}
		next := current
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID = current.ID
		res := tx.
			Model(&next).
			Where("status = ?", current.Status).
			Select("*").
			Omit("created_at", "deleted_at").
			Updates(&next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("reservation %s changed concurrently: %w", id, types.ErrStatusConflict)
		}
		if err := upsertMirror(tx, &next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reservationStore) ListForUser(ctx context.Context, userID uint) ([]models.UserReservation, error) {
	var rows []models.UserReservation
	err := r.conn(ctx).
		Scopes(scopes.ForUser(userID), scopes.NewestFirst).
		Find(&rows).
		Error
	return rows, err
}

func upsertMirror(tx *gorm.DB, reservation *models.Reservation) error {
	return tx.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reservation_id"}},
			UpdateAll: true,
		}).
		Create(reservation.Mirror()).
		Error
}
