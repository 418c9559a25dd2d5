// Package lifecycle owns every state transition of a reservation: creation,
// table changes, cancellation, check-in and confirmation. It is the only writer
// of reservation and table occupancy state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/src/config"
	"tablebook/src/logger"
	"tablebook/src/models"
	"tablebook/src/notify"
	"tablebook/src/store"
	"tablebook/src/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Gateway is the payment provider. Amounts are currency units.
type Gateway interface {
	CreateCharge(ctx context.Context, req types.ChargeRequest) (*types.Charge, error)
	RetrieveCharge(ctx context.Context, id string) (*types.Charge, error)
	CreateRefund(ctx context.Context, req types.RefundRequest) (*types.GatewayRefund, error)
}

// EffectQueue stores a failed post-commit side effect for later replay.
type EffectQueue interface {
	Enqueue(ctx context.Context, kind string, reservationID uuid.UUID, payload types.JSONB) error
}

// Locker serializes requests on a key across processes. A lock that is already
// held must fail with an error wrapping types.ErrStatusConflict.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type Engine struct {
	repo     store.Repository
	gateway  Gateway
	notifier notify.Dispatcher
	effects  EffectQueue
	locker   Locker
	cfg      config.EngineConfig
	log      *zerolog.Logger
	now      func() time.Time
}

type Option func(e *Engine)

func WithLogger(l *zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

func WithConfig(cfg config.EngineConfig) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

func WithEffects(q EffectQueue) Option {
	return func(e *Engine) {
		e.effects = q
	}
}

func WithLocker(l Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(repo store.Repository, gateway Gateway, notifier notify.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		cfg: config.EngineConfig{
			ServiceFeeRate:   config.DefaultServiceFeeRate,
			Currency:         config.DefaultCurrency,
			DefaultStaffName: config.DefaultStaffLabel,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get()
	}
	return e
}

func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return e.repo.Reservations().Get(ctx, id)
}

func (e *Engine) ListForUser(ctx context.Context, userID uint) ([]models.UserReservation, error) {
	return e.repo.Reservations().ListForUser(ctx, userID)
}

func (e *Engine) logFor(id uuid.UUID) *zerolog.Logger {
	l := e.log.With().Str("reservation_id", id.String()).Logger()
	return &l
}

// lock takes key when a Locker is configured. Contention is a conflict; any
// other locker failure is logged and the request proceeds on database guards.
func (e *Engine) lock(ctx context.Context, key string) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	unlock, err := e.locker.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, types.ErrStatusConflict) {
			return nil, err
		}
		e.log.Warn().Err(err).Str("key", key).Msg("locker unavailable, continuing without lock")
		return func() {}, nil
	}
	return unlock, nil
}

// bestEffort runs a post-commit side effect. A failure is logged and, when an
// effect queue is configured, stored for replay with payload.
func (e *Engine) bestEffort(ctx context.Context, kind string, reservationID uuid.UUID, payload any, run func(ctx context.Context) error) {
	log := e.logFor(reservationID)
	err := run(ctx)
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("effect", kind).Msg("side effect failed")
	e.enqueue(ctx, kind, reservationID, payload)
}

func (e *Engine) enqueue(ctx context.Context, kind string, reservationID uuid.UUID, payload any) {
	if e.effects == nil {
		return
	}
	log := e.logFor(reservationID)
	p, err := encodePayload(payload)
	if err != nil {
		log.Error().Err(err).Str("effect", kind).Msg("could not encode effect payload")
		return
	}
	if err := e.effects.Enqueue(ctx, kind, reservationID, p); err != nil {
		log.Error().Err(err).Str("effect", kind).Msg("could not enqueue effect")
	}
}

func (e *Engine) staffName(name string) string {
	if name == "" {
		return e.cfg.DefaultStaffName
	}
	return name
}

func (e *Engine) currency(r *models.Reservation) string {
	if r.Currency != "" {
		return r.Currency
	}
	return e.cfg.Currency
}

// gatewayErr makes sure err classifies as a gateway error.
func gatewayErr(err error, action string) error {
	if errors.Is(err, types.ErrGateway) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%w: %s: %w", types.ErrGateway, action, err)
}

// checkChangeable rejects reservations that can no longer move or be cancelled.
func checkChangeable(r *models.Reservation) error {
	switch r.Status {
	case types.RESERVATION_CONFIRMED:
		return nil
	case types.RESERVATION_CANCELLED:
		return fmt.Errorf("reservation %s: %w", r.ID, types.ErrAlreadyCancelled)
	case types.RESERVATION_CHECKED_IN:
		return checkedInErr(r)
	default:
		return fmt.Errorf("reservation %s is %s: %w", r.ID, r.Status, types.ErrStatusConflict)
	}
}

func checkedInErr(r *models.Reservation) error {
	e := &types.AlreadyCheckedInError{}
	if r.CheckedInBy != nil {
		e.CheckedInBy = *r.CheckedInBy
	}
	if r.CheckedInAt != nil {
		e.CheckedInAt = *r.CheckedInAt
	}
	return e
}

var allStatuses = []types.ReservationStatus{
	types.RESERVATION_PENDING,
	types.RESERVATION_CONFIRMED,
	types.RESERVATION_CANCELLED,
	types.RESERVATION_CHECKED_IN,
}
