package models

import (
	"tablebook/src/types"
)

type User struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`

	Reservations []UserReservation `gorm:"foreignKey:user_id" json:"reservations,omitempty"`

	types.Timestamps
}
