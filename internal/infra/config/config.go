package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rently/internal/domain/booking"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                   string
	HTTPAddr              string
	MongoURI              string
	MongoDB               string
	KafkaBrokers          []string
	KafkaTopicPrefix      string
	RedisAddr             string
	SessionTTL            time.Duration
	IdempotencyTTL        time.Duration
	OutboxPollInterval    time.Duration
	RetryBackoff          []time.Duration
	CancelFeeTiers        []booking.FeeTier
	PendingHoldTTL        time.Duration
	AutoRejectOverlapping bool
	ConfirmLockWait       time.Duration
	ConfirmLockRetries    int
	SweepInterval         time.Duration
	AdFixturesPath        string
}

// Load parses configuration from the current environment. Mongo, Kafka and
// Redis are all optional: with no MONGO_URI the service runs on the in-memory
// store, with no brokers events stay in the outbox, with no Redis the
// idempotency cache lives in process memory.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "rently"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		AdFixturesPath:   os.Getenv("AD_FIXTURES_PATH"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	sessionTTL, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = sessionTTL

	idempotencyTTL, err := parseDurationEnv("IDEMP_TTL", 168*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = idempotencyTTL

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	holdTTL, err := parseDurationEnv("PENDING_HOLD_TTL", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.PendingHoldTTL = holdTTL

	sweep, err := parseDurationEnv("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval = sweep

	lockWait, err := parseDurationEnv("CONFIRM_LOCK_WAIT", 250*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfirmLockWait = lockWait

	retries, err := parseIntEnv("CONFIRM_LOCK_RETRIES", 3)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfirmLockRetries = retries

	autoReject, err := parseBoolEnv("AUTO_REJECT_OVERLAPPING", false)
	if err != nil {
		return Config{}, err
	}
	cfg.AutoRejectOverlapping = autoReject

	tiers, err := parseFeeTiers(getEnv("CANCEL_FEE_TIERS", "3:0,1:30,0:60"))
	if err != nil {
		return Config{}, err
	}
	cfg.CancelFeeTiers = tiers

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	return cfg, nil
}

// parseFeeTiers reads a "minDays:percent,..." table, e.g. "3:0,1:30,0:60".
func parseFeeTiers(raw string) ([]booking.FeeTier, error) {
	var tiers []booking.FeeTier
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid CANCEL_FEE_TIERS component %q", part)
		}
		minDays, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid CANCEL_FEE_TIERS notice in %q: %w", part, err)
		}
		percent, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid CANCEL_FEE_TIERS percent in %q: %w", part, err)
		}
		tiers = append(tiers, booking.FeeTier{MinDays: minDays, Percent: percent})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("CANCEL_FEE_TIERS must contain at least one tier")
	}
	return tiers, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
