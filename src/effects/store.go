// Package effects is a durable retry queue for side effects that failed after
// their state change committed. Tasks are written after the commit, not with
// it, and are retried with backoff until they succeed or exhaust their attempts.
package effects

import (
	"context"
	"time"

	"tablebook/src/models"
	"tablebook/src/models/scopes"
	"tablebook/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store interface {
	Enqueue(ctx context.Context, task *models.EffectTask) error
	// Due claims up to limit runnable tasks by pushing their RunAfter past lease.
	Due(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.EffectTask, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, runAfter time.Time, lastErr string, failed bool) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Enqueue(ctx context.Context, task *models.EffectTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(task).Error
}

func (s *GormStore) Due(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.EffectTask, error) {
	var tasks []models.EffectTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Scopes(scopes.DueEffects(now)).
			Order("run_after ASC").
			Limit(limit).
			Find(&tasks).
			Error
		if err != nil || len(tasks) == 0 {
			return err
		}
		ids := make([]uuid.UUID, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID
		}
		return tx.
			Model(&models.EffectTask{}).
			Where("id IN ?", ids).
			Update("run_after", now.Add(lease)).
			Error
	})
	return tasks, err
}

func (s *GormStore) MarkDone(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.EffectTask{}).
		Scopes(scopes.WithUUID(id)).
		Updates(map[string]any{"status": types.EFFECT_DONE, "last_error": ""}).
		Error
}

func (s *GormStore) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, runAfter time.Time, lastErr string, failed bool) error {
	status := types.EFFECT_PENDING
	if failed {
		status = types.EFFECT_FAILED
	}
	return s.db.WithContext(ctx).
		Model(&models.EffectTask{}).
		Scopes(scopes.WithUUID(id)).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"run_after":  runAfter,
			"last_error": lastErr,
		}).
		Error
}
