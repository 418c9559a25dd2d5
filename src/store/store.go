// Package store persists reservations, tables and refunds. Every write that
// must land together goes through Repository.Atomic.
package store

import (
	"context"
	"errors"
	"fmt"

	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Mutation func(r *models.Reservation) error

type TableStore interface {
	GetTable(ctx context.Context, eventID, tableID uint) (*models.Table, error)
	// SwapReservation moves a reservation from oldTableID to newTableID. It fails
	// with types.ErrTableUnavailable, without touching either table, when the
	// new table is already reserved.
	SwapReservation(ctx context.Context, eventID, oldTableID, newTableID uint, reservationID uuid.UUID, ownerID uint) error
	Reserve(ctx context.Context, eventID, tableID uint, reservationID uuid.UUID, ownerID uint) error
	// Release frees a table held by reservationID. Tables held by anyone else are left alone.
	Release(ctx context.Context, eventID, tableID uint, reservationID uuid.UUID) error
}

type ReservationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Create(ctx context.Context, r *models.Reservation) error
	// ConditionalUpdate applies mutate only while the stored status is one of
	// expected, otherwise it fails with types.ErrStatusConflict. The user mirror
	// is rewritten in the same transaction.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, expected []types.ReservationStatus, mutate Mutation) (*models.Reservation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.UserReservation, error)
}

type RefundStore interface {
	Record(ctx context.Context, r *models.Refund) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status types.RefundStatus, gatewayRefundID *string) error
	ListForReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Refund, error)
}

// ChargeStore is the ledger of charges that paid for a table change.
type ChargeStore interface {
	// Apply fails with types.ErrChargeApplied when the charge is already recorded.
	Apply(ctx context.Context, c *models.AppliedCharge) error
	Get(ctx context.Context, chargeID string) (*models.AppliedCharge, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, eventID uint) (*models.Event, error)
}

type Repository interface {
	Tables() TableStore
	Reservations() ReservationStore
	Refunds() RefundStore
	Charges() ChargeStore
	Events() EventStore
	// Atomic runs fn in one transaction. Stores reached through the Repository
	// passed to fn commit or roll back together.
	Atomic(ctx context.Context, fn func(tx Repository) error) error
}

type Option func(s *Store)

// WithEventStore swaps the catalog reader, e.g. for a cached one.
func WithEventStore(events EventStore) Option {
	return func(s *Store) {
		s.events = events
	}
}

// Store is the gorm/postgres Repository.
type Store struct {
	db     *gorm.DB
	inTx   bool
	events EventStore
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = &eventStore{s}
	}
	return s
}

func (s *Store) Tables() TableStore             { return &tableStore{s} }
func (s *Store) Reservations() ReservationStore { return &reservationStore{s} }
func (s *Store) Refunds() RefundStore           { return &refundStore{s} }
func (s *Store) Charges() ChargeStore           { return &chargeStore{s} }
func (s *Store) Events() EventStore             { return s.events }

func (s *Store) Atomic(ctx context.Context, fn func(tx Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true, events: s.events})
	})
}

func (s *Store) atomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.inTx {
		return fn(s.db.WithContext(ctx))
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, types.ErrNotFound)
	}
	return err
}
