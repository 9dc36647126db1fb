package config

import (
	"os"
	"time"
)

// Config is loaded from environment variables with working defaults, so the
// service boots in local development with nothing set.
type Config struct {
	Port      string
	RedisAddr string
	MongoURI  string // empty selects the in-memory store
	DBName    string

	SaveInterval   time.Duration // debounce window for durable document writes
	ReconnectGrace time.Duration // how long an empty room stays in the registry
	InactiveAfter  time.Duration // idle time before a durable record is marked inactive
	PurgeAfter     time.Duration // idle time before registry + durable record are purged
	SweepSchedule  string        // cron spec for the reconciliation sweep
}

func Load() *Config {
	return &Config{
		Port:      getEnvOrDefault("PORT", "8080"),
		RedisAddr: getEnvOrDefault("REDIS_ADDR", "redis:6379"),
		MongoURI:  os.Getenv("MONGO_URI"),
		DBName:    getEnvOrDefault("ROOMSYNC_DB_NAME", "roomsync"),

		SaveInterval:   getDurationOrDefault("SAVE_INTERVAL", 2*time.Second),
		ReconnectGrace: getDurationOrDefault("RECONNECT_GRACE", 5*time.Minute),
		InactiveAfter:  getDurationOrDefault("INACTIVE_AFTER", time.Hour),
		PurgeAfter:     getDurationOrDefault("PURGE_AFTER", 72*time.Hour),
		SweepSchedule:  getEnvOrDefault("SWEEP_SCHEDULE", "@every 10m"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
