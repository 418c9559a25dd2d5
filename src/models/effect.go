package models

import (
	"time"

	"tablebook/src/types"

	"github.com/google/uuid"
)

// EffectTask is a retry queue row for a side effect that failed after its state
// change committed. The effects worker replays it until it succeeds or runs out
// of attempts.
type EffectTask struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	Kind          string             `gorm:"index" json:"kind"`
	ReservationID *uuid.UUID         `gorm:"type:uuid;index" json:"reservation_id,omitempty"`
	Payload       types.JSONB        `gorm:"type:jsonb" json:"payload"`
	Status        types.EffectStatus `gorm:"type:varchar(16);index" json:"status"`
	Attempts      int                `json:"attempts"`
	MaxAttempts   int                `json:"max_attempts"`
	RunAfter      time.Time          `gorm:"index" json:"run_after"`
	LastError     string             `json:"last_error,omitempty"`

	types.Timestamps
}
