package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEngineConfigDefaults(t *testing.T) {
	t.Setenv("TABLE_CHANGE_FEE_RATE", "")
	t.Setenv("CURRENCY", "")
	t.Setenv("DEFAULT_STAFF_LABEL", "")

	cfg := GetEngineConfig()
	assert.Equal(t, 0.10, cfg.ServiceFeeRate)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, "Venue staff", cfg.DefaultStaffName)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
}

func TestGetEngineConfigFromEnv(t *testing.T) {
	t.Setenv("TABLE_CHANGE_FEE_RATE", "0.15")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("LOCK_TTL", "5s")

	cfg := GetEngineConfig()
	assert.Equal(t, 0.15, cfg.ServiceFeeRate)
	assert.Equal(t, "eur", cfg.Currency)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)

	t.Setenv("TABLE_CHANGE_FEE_RATE", "-1")
	assert.Equal(t, DefaultServiceFeeRate, GetEngineConfig().ServiceFeeRate)
}

func TestGetDSN(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_NAME", "tablebook")
	dsn := GetDSN()
	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "dbname=tablebook")
}
