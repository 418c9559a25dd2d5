// Package memory is an in-process store.Repository. Atomic blocks run under one
// mutex against a copy of the data that replaces the original only on success.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"tablebook/src/models"
	"tablebook/src/store"
	"tablebook/src/types"

	"github.com/google/uuid"
)

type state struct {
	reservations map[uuid.UUID]models.Reservation
	mirrors      map[uuid.UUID]models.UserReservation
	tables       map[uint]models.Table
	events       map[uint]models.Event
	refunds      map[uuid.UUID]models.Refund
	charges      map[string]models.AppliedCharge
}

func newState() *state {
	return &state{
		reservations: map[uuid.UUID]models.Reservation{},
		mirrors:      map[uuid.UUID]models.UserReservation{},
		tables:       map[uint]models.Table{},
		events:       map[uint]models.Event{},
		refunds:      map[uuid.UUID]models.Refund{},
		charges:      map[string]models.AppliedCharge{},
	}
}

func (s *state) clone() *state {
	return &state{
		reservations: maps.Clone(s.reservations),
		mirrors:      maps.Clone(s.mirrors),
		tables:       maps.Clone(s.tables),
		events:       maps.Clone(s.events),
		refunds:      maps.Clone(s.refunds),
		charges:      maps.Clone(s.charges),
	}
}

type root struct {
	mu sync.Mutex
	st *state
}

type Store struct {
	root *root
	// tx is set inside Atomic; writes land here until commit.
	tx  *state
	now func() time.Time
}

func New() *Store {
	return &Store{root: &root{st: newState()}, now: time.Now}
}

func (s *Store) Tables() store.TableStore             { return &tables{s} }
func (s *Store) Reservations() store.ReservationStore { return &reservations{s} }
func (s *Store) Refunds() store.RefundStore           { return &refunds{s} }
func (s *Store) Charges() store.ChargeStore           { return &charges{s} }
func (s *Store) Events() store.EventStore             { return &events{s} }

func (s *Store) Atomic(ctx context.Context, fn func(tx store.Repository) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	work := s.root.st.clone()
	if err := fn(&Store{root: s.root, tx: work, now: s.now}); err != nil {
		return err
	}
	s.root.st = work
	return nil
}

// read runs fn against the committed data, or the open transaction's view.
func (s *Store) read(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	return fn(s.root.st)
}

// write applies fn as its own all-or-nothing unit unless a transaction is open.
func (s *Store) write(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	work := s.root.st.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.root.st = work
	return nil
}

func (s *Store) SeedEvent(e models.Event) {
	_ = s.write(func(st *state) error {
		st.events[e.ID] = e
		return nil
	})
}

func (s *Store) SeedTable(t models.Table) {
	_ = s.write(func(st *state) error {
		st.tables[t.ID] = t
		return nil
	})
}

// SeedReservation stores r and its mirror without touching tables.
func (s *Store) SeedReservation(r models.Reservation) {
	_ = s.write(func(st *state) error {
		st.reservations[r.ID] = r
		st.mirrors[r.ID] = *r.Mirror()
		return nil
	})
}

// Mirror returns the user-scoped copy of a reservation.
func (s *Store) Mirror(id uuid.UUID) (models.UserReservation, bool) {
	var m models.UserReservation
	var ok bool
	_ = s.read(func(st *state) error {
		m, ok = st.mirrors[id]
		return nil
	})
	return m, ok
}

type tables struct{ *Store }

func (t *tables) GetTable(ctx context.Context, eventID, tableID uint) (*models.Table, error) {
	var out models.Table
	err := t.read(func(st *state) error {
		table, ok := st.tables[tableID]
		if !ok || table.EventID != eventID {
			return fmt.Errorf("table %d: %w", tableID, types.ErrNotFound)
		}
		out = table
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *tables) SwapReservation(ctx context.Context, eventID, oldTableID, newTableID uint, reservationID uuid.UUID, ownerID uint) error {
	return t.write(func(st *state) error {
		if err := claim(st, eventID, newTableID, reservationID, ownerID); err != nil {
			return err
		}
		release(st, eventID, oldTableID, reservationID)
		return nil
	})
}

func (t *tables) Reserve(ctx context.Context, eventID, tableID uint, reservationID uuid.UUID, ownerID uint) error {
	return t.write(func(st *state) error {
		return claim(st, eventID, tableID, reservationID, ownerID)
	})
}

func (t *tables) Release(ctx context.Context, eventID, tableID uint, reservationID uuid.UUID) error {
	return t.write(func(st *state) error {
		release(st, eventID, tableID, reservationID)
		return nil
	})
}

func claim(st *state, eventID, tableID uint, reservationID uuid.UUID, ownerID uint) error {
	table, ok := st.tables[tableID]
	if !ok || table.EventID != eventID {
		return fmt.Errorf("table %d: %w", tableID, types.ErrNotFound)
	}
	if table.Reserved {
		return fmt.Errorf("table %d: %w", tableID, types.ErrTableUnavailable)
	}
	owner, id := ownerID, reservationID
	table.Reserved = true
	table.ReservedBy = &owner
	table.ReservationID = &id
	st.tables[tableID] = table
	return nil
}

func release(st *state, eventID, tableID uint, reservationID uuid.UUID) {
	table, ok := st.tables[tableID]
	if !ok || table.EventID != eventID || !table.HeldBy(reservationID) {
		return
	}
	table.Reserved = false
	table.ReservedBy = nil
	table.ReservationID = nil
	st.tables[tableID] = table
}

type reservations struct{ *Store }

func (r *reservations) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var out models.Reservation
	err := r.read(func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return fmt.Errorf("reservation %s: %w", id, types.ErrNotFound)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reservations) Create(ctx context.Context, res *models.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	return r.write(func(st *state) error {
		if _, ok := st.reservations[res.ID]; ok {
			return fmt.Errorf("reservation %s already exists: %w", res.ID, types.ErrStatusConflict)
		}
		now := r.now()
		res.CreatedAt, res.UpdatedAt = now, now
		st.reservations[res.ID] = *res
		st.mirrors[res.ID] = *res.Mirror()
		return nil
	})
}

func (r *reservations) ConditionalUpdate(ctx context.Context, id uuid.UUID, expected []types.ReservationStatus, mutate store.Mutation) (*models.Reservation, error) {
	var out models.Reservation
	err := r.write(func(st *state) error {
		current, ok := st.reservations[id]
		if !ok {
			return fmt.Errorf("reservation %s: %w", id, types.ErrNotFound)
		}
		if !slices.Contains(expected, current.Status) {
			return fmt.Errorf("reservation %s is %s: %w", id, current.Status, types.ErrStatusConflict)
		}
		next := current
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = r.now()
		st.reservations[id] = next
		st.mirrors[id] = *next.Mirror()
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reservations) ListForUser(ctx context.Context, userID uint) ([]models.UserReservation, error) {
	var out []models.UserReservation
	_ = r.read(func(st *state) error {
		for _, m := range st.mirrors {
			if m.UserID == userID {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type refunds struct{ *Store }

func (r *refunds) Record(ctx context.Context, refund *models.Refund) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	return r.write(func(st *state) error {
		for _, existing := range st.refunds {
			if refund.IdempotencyKey != "" && existing.IdempotencyKey == refund.IdempotencyKey {
				return fmt.Errorf("refund %s already recorded: %w", refund.IdempotencyKey, types.ErrStatusConflict)
			}
		}
		refund.CreatedAt = r.now()
		refund.UpdatedAt = refund.CreatedAt
		st.refunds[refund.ID] = *refund
		return nil
	})
}

func (r *refunds) UpdateStatus(ctx context.Context, id uuid.UUID, status types.RefundStatus, gatewayRefundID *string) error {
	return r.write(func(st *state) error {
		refund, ok := st.refunds[id]
		if !ok {
			return fmt.Errorf("refund %s: %w", id, types.ErrNotFound)
		}
		refund.Status = status
		if gatewayRefundID != nil {
			refund.GatewayRefundID = gatewayRefundID
		}
		refund.UpdatedAt = r.now()
		st.refunds[id] = refund
		return nil
	})
}

func (r *refunds) ListForReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Refund, error) {
	var out []models.Refund
	_ = r.read(func(st *state) error {
		for _, refund := range st.refunds {
			if refund.ReservationID == reservationID {
				out = append(out, refund)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type charges struct{ *Store }

func (c *charges) Apply(ctx context.Context, charge *models.AppliedCharge) error {
	return c.write(func(st *state) error {
		if _, ok := st.charges[charge.ChargeID]; ok {
			return fmt.Errorf("charge %s already applied: %w", charge.ChargeID, types.ErrChargeApplied)
		}
		charge.CreatedAt = c.now()
		charge.UpdatedAt = charge.CreatedAt
		st.charges[charge.ChargeID] = *charge
		return nil
	})
}

func (c *charges) Get(ctx context.Context, chargeID string) (*models.AppliedCharge, error) {
	var out models.AppliedCharge
	err := c.read(func(st *state) error {
		charge, ok := st.charges[chargeID]
		if !ok {
			return fmt.Errorf("applied charge %s: %w", chargeID, types.ErrNotFound)
		}
		out = charge
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type events struct{ *Store }

func (e *events) GetEvent(ctx context.Context, eventID uint) (*models.Event, error) {
	var out models.Event
	err := e.read(func(st *state) error {
		event, ok := st.events[eventID]
		if !ok {
			return fmt.Errorf("event %d: %w", eventID, types.ErrNotFound)
		}
		out = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
