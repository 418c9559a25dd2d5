package store

import (
	"context"
	"errors"
	"fmt"

	"tablebook/src/models"
	"tablebook/src/types"

	"gorm.io/gorm"
)

type chargeStore struct {
	*Store
}

func (c *chargeStore) Apply(ctx context.Context, charge *models.AppliedCharge) error {
	err := c.conn(ctx).Create(charge).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("charge %s already applied: %w", charge.ChargeID, types.ErrChargeApplied)
	}
	return err
}

func (c *chargeStore) Get(ctx context.Context, chargeID string) (*models.AppliedCharge, error) {
	var charge models.AppliedCharge
	err := c.conn(ctx).Where("charge_id = ?", chargeID).First(&charge).Error
	if err != nil {
		return nil, notFound(err, "applied charge "+chargeID)
	}
	return &charge, nil
}
