package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds every tunable read at boot. All values come from the
// environment; a .env file in the working directory is loaded first when
// present.
type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	EscrowURL    string
	EscrowAPIKey string

	// Initial allotment per side when a match starts.
	ClockAllotment time.Duration
	// Tick period for the clock scheduler.
	ClockTick time.Duration

	// Signed-message freshness window.
	AuthMaxAge  time.Duration
	AuthMaxSkew time.Duration

	// How often finished-but-unsettled sessions are retried.
	SettleResweep time.Duration

	MaxWager uint64
}

func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:     ":8080",
		ClockAllotment: 10 * time.Minute,
		ClockTick:      time.Second,
		AuthMaxAge:     120 * time.Second,
		AuthMaxSkew:    60 * time.Second,
		SettleResweep:  time.Minute,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.EscrowURL = strings.TrimSpace(os.Getenv("ESCROW_URL"))
	cfg.EscrowAPIKey = strings.TrimSpace(os.Getenv("ESCROW_API_KEY"))

	if v := strings.TrimSpace(os.Getenv("CLOCK_ALLOTMENT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ClockAllotment = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("CLOCK_TICK")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ClockTick = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_MAX_AGE")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AuthMaxAge = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("AUTH_MAX_SKEW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AuthMaxSkew = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SETTLE_RESWEEP")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SettleResweep = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("MAX_WAGER")); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MaxWager = n
		}
	}

	return cfg, nil
}
