package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// const dsn = "host=localhost user=postgres password=password dbname=tablebook port=5432 sslmode=disable TimeZone=UTC"

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

const (
	DefaultServiceFeeRate = 0.10
	DefaultCurrency       = "usd"
	DefaultStaffLabel     = "Venue staff"
)

func APIEnv() string {
	return envStr("API_ENV", "local")
}

// StoreDriver selects the reservation store: "postgres" or "memory".
func StoreDriver() string {
	return strings.ToLower(envStr("STORE_DRIVER", "postgres"))
}

// EngineConfig holds the knobs of the reservation lifecycle engine.
type EngineConfig struct {
	// ServiceFeeRate applies to table changes only. Booking fees are configured elsewhere.
	ServiceFeeRate   float64
	Currency         string
	DefaultStaffName string
	LockTTL          time.Duration
}

func GetEngineConfig() EngineConfig {
	return EngineConfig{
		ServiceFeeRate:   envFloat("TABLE_CHANGE_FEE_RATE", DefaultServiceFeeRate),
		Currency:         strings.ToLower(envStr("CURRENCY", DefaultCurrency)),
		DefaultStaffName: envStr("DEFAULT_STAFF_LABEL", DefaultStaffLabel),
		LockTTL:          envDur("LOCK_TTL", 30*time.Second),
	}
}

type MailConfig struct {
	Transport  string
	From       string
	FromName   string
	EmailQueue string
	AlertTopic string
	FCMTopic   string
}

func GetMailConfig() MailConfig {
	return MailConfig{
		Transport:  envStr("MAIL_TRANSPORT", "smtp"),
		From:       envStr("MAIL_FROM", "reservations@example.com"),
		FromName:   envStr("MAIL_FROM_NAME", "Reservations"),
		EmailQueue: envStr("EMAIL_QUEUE", "Emails"),
		AlertTopic: os.Getenv("STAFF_ALERT_TOPIC"),
		FCMTopic:   os.Getenv("FCM_STAFF_TOPIC"),
	}
}

type EffectsConfig struct {
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
}

func GetEffectsConfig() EffectsConfig {
	return EffectsConfig{
		Interval:    envDur("EFFECTS_INTERVAL", time.Minute),
		MaxAttempts: envInt("EFFECTS_MAX_ATTEMPTS", 5),
		BatchSize:   envInt("EFFECTS_BATCH_SIZE", 20),
	}
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
