package effects

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tablebook/src/config"
	"tablebook/src/lib"
	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type HandlerFunc func(ctx context.Context, payload types.JSONB) error

// Queue records failed side effects for the worker to replay.
type Queue struct {
	store       Store
	maxAttempts int
	now         func() time.Time
}

func NewQueue(store Store, cfg config.EffectsConfig) *Queue {
	return &Queue{store: store, maxAttempts: cfg.MaxAttempts, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, kind string, reservationID uuid.UUID, payload types.JSONB) error {
	task := &models.EffectTask{
		Kind:        kind,
		Payload:     payload,
		Status:      types.EFFECT_PENDING,
		MaxAttempts: q.maxAttempts,
		RunAfter:    q.now(),
	}
	if reservationID != uuid.Nil {
		task.ReservationID = &reservationID
	}
	return q.store.Enqueue(ctx, task)
}

type Worker struct {
	store     Store
	cfg       config.EffectsConfig
	log       *zerolog.Logger
	now       func() time.Time
	mu        sync.RWMutex
	handlers  map[string]HandlerFunc
	lease     time.Duration
	baseDelay time.Duration
}

func NewWorker(store Store, cfg config.EffectsConfig, log *zerolog.Logger) *Worker {
	return &Worker{
		store:     store,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		handlers:  map[string]HandlerFunc{},
		lease:     5 * time.Minute,
		baseDelay: 30 * time.Second,
	}
}

func (w *Worker) Register(kind string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = fn
}

func (w *Worker) handler(kind string) (HandlerFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn, ok := w.handlers[kind]
	return fn, ok
}

// RunOnce processes one batch of due tasks and reports how many succeeded.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	tasks, err := w.store.Due(ctx, w.now(), w.lease, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("loading due effects: %w", err)
	}
	done := 0
	for _, task := range tasks {
		if w.run(ctx, task) {
			done++
		}
	}
	return done, nil
}

func (w *Worker) run(ctx context.Context, task models.EffectTask) bool {
	log := w.log.With().Str("effect_id", task.ID.String()).Str("kind", task.Kind).Logger()
	fn, ok := w.handler(task.Kind)
	if !ok {
		log.Error().Msg("no handler registered for effect")
		w.retry(ctx, &log, task, fmt.Errorf("no handler for %s", task.Kind), true)
		return false
	}
	if err := fn(ctx, task.Payload); err != nil {
		attempts := task.Attempts + 1
		w.retry(ctx, &log, task, err, attempts >= task.MaxAttempts)
		return false
	}
	if err := w.store.MarkDone(ctx, task.ID); err != nil {
		log.Error().Err(err).Msg("could not mark effect done")
	}
	log.Info().Msg("effect replayed")
	return true
}

func (w *Worker) retry(ctx context.Context, log *zerolog.Logger, task models.EffectTask, cause error, failed bool) {
	attempts := task.Attempts + 1
	// exponential backoff: base, 2*base, 4*base...
	delay := w.baseDelay << min(attempts-1, 10)
	if failed {
		log.Error().Err(cause).Int("attempts", attempts).Msg("effect failed permanently")
	} else {
		log.Warn().Err(cause).Int("attempts", attempts).Dur("retry_in", delay).Msg("effect failed, will retry")
	}
	if err := w.store.MarkRetry(ctx, task.ID, attempts, w.now().Add(delay), cause.Error(), failed); err != nil {
		log.Error().Err(err).Msg("could not reschedule effect")
	}
}

// Start schedules RunOnce on the shared gocron scheduler.
func (w *Worker) Start() (string, error) {
	return lib.CreateCronJob("effects-worker", w.cfg.Interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Interval)
		defer cancel()
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Error().Err(err).Msg("effects run failed")
		}
	})
}
