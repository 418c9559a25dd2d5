package effects

import (
	"context"
	"errors"
	"testing"
	"time"

	"tablebook/src/config"
	"tablebook/src/models"
	"tablebook/src/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Enqueue(ctx context.Context, task *models.EffectTask) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockStore) Due(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.EffectTask, error) {
	args := m.Called(ctx, now, lease, limit)
	tasks, _ := args.Get(0).([]models.EffectTask)
	return tasks, args.Error(1)
}

func (m *mockStore) MarkDone(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, runAfter time.Time, lastErr string, failed bool) error {
	return m.Called(ctx, id, attempts, runAfter, lastErr, failed).Error(0)
}

var testCfg = config.EffectsConfig{Interval: time.Minute, MaxAttempts: 3, BatchSize: 10}

func newTestWorker(store Store, now time.Time) *Worker {
	log := zerolog.Nop()
	w := NewWorker(store, testCfg, &log)
	w.now = func() time.Time { return now }
	return w
}

func TestQueueEnqueue(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	q := NewQueue(store, testCfg)
	id := uuid.New()

	store.On("Enqueue", ctx, mock.MatchedBy(func(task *models.EffectTask) bool {
		return task.Kind == "notify.checkin_alert" &&
			task.Status == types.EFFECT_PENDING &&
			task.MaxAttempts == 3 &&
			*task.ReservationID == id
	})).Return(nil)

	require.NoError(t, q.Enqueue(ctx, "notify.checkin_alert", id, types.JSONB{"staff_name": "Ana"}))
	store.AssertExpectations(t)
}

func TestWorkerRunOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := new(mockStore)
	w := newTestWorker(store, now)

	ok := models.EffectTask{ID: uuid.New(), Kind: "good", MaxAttempts: 3, Payload: types.JSONB{"n": "1"}}
	flaky := models.EffectTask{ID: uuid.New(), Kind: "bad", MaxAttempts: 3, Attempts: 0}
	last := models.EffectTask{ID: uuid.New(), Kind: "bad", MaxAttempts: 3, Attempts: 2}
	orphan := models.EffectTask{ID: uuid.New(), Kind: "unknown", MaxAttempts: 3}

	store.On("Due", ctx, now, 5*time.Minute, 10).Return([]models.EffectTask{ok, flaky, last, orphan}, nil)
	store.On("MarkDone", ctx, ok.ID).Return(nil)
	store.On("MarkRetry", ctx, flaky.ID, 1, now.Add(30*time.Second), "boom", false).Return(nil)
	store.On("MarkRetry", ctx, last.ID, 3, now.Add(120*time.Second), "boom", true).Return(nil)
	store.On("MarkRetry", ctx, orphan.ID, 1, mock.Anything, mock.Anything, true).Return(nil)

	var seen types.JSONB
	w.Register("good", func(ctx context.Context, payload types.JSONB) error {
		seen = payload
		return nil
	})
	w.Register("bad", func(ctx context.Context, payload types.JSONB) error {
		return errors.New("boom")
	})

	done, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, "1", seen.String("n"))
	store.AssertExpectations(t)
}

func TestWorkerDueError(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	w := newTestWorker(store, time.Now())
	store.On("Due", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := w.RunOnce(ctx)
	assert.ErrorContains(t, err, "db down")
}
