package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. FromEnv keeps main lean; every
// knob has a development default so the server boots with no environment.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  string
	JWTSigningKey string

	// FeeBps is the platform fee charged on escrow settlement, in basis
	// points. It is validated against MaxFeeBps at startup.
	FeeBps uint32
	// MaxFeeBps is the hard fee cap (500 = 5%).
	MaxFeeBps uint32
	// EscrowTimeout is the funding/approval window for an escrow.
	EscrowTimeout time.Duration
	// ClaimPeriod is the window heirs have to claim after a plan triggers.
	ClaimPeriod time.Duration
	// PlatformAccount receives the settlement fee.
	PlatformAccount string
	// EscrowAccount holds buyer deposits between funding and settlement.
	EscrowAccount string

	// RegistrarKeyHash is the bcrypt hash of the cadastral office API key.
	// Empty disables key auth for parcel registration.
	RegistrarKeyHash string
	// RegistrarServiceID is the identity registrations made with the API key
	// are attributed to.
	RegistrarServiceID string
}

const (
	defaultFeeBps        = 50
	defaultMaxFeeBps     = 500
	defaultEscrowTimeout = 30 * 24 * time.Hour
	defaultClaimPeriod   = 365 * 24 * time.Hour
)

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("LANDLEDGER_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		JWTSigningKey:   envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		FeeBps:          uint32(envIntOr("FEE_BPS", defaultFeeBps)),
		MaxFeeBps:       uint32(envIntOr("MAX_FEE_BPS", defaultMaxFeeBps)),
		EscrowTimeout:   envDurationOr("ESCROW_TIMEOUT", defaultEscrowTimeout),
		ClaimPeriod:     envDurationOr("CLAIM_PERIOD", defaultClaimPeriod),
		PlatformAccount: os.Getenv("PLATFORM_ACCOUNT"),
		EscrowAccount:   os.Getenv("ESCROW_ACCOUNT"),

		RegistrarKeyHash:   os.Getenv("REGISTRAR_KEY_HASH"),
		RegistrarServiceID: os.Getenv("REGISTRAR_SERVICE_ID"),
	}
	if cfg.FeeBps > cfg.MaxFeeBps {
		cfg.FeeBps = cfg.MaxFeeBps
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
