package scopes

import (
	"time"

	"tablebook/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func WithUUID(id uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func ForUser(userID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}

// DueEffects selects pending effect tasks whose retry time has come.
func DueEffects(now time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ? AND run_after <= ?", types.EFFECT_PENDING, now)
	}
}
