package config

import (
	"os"
	"strconv"
	"time"

	"reserva/internal/cache"
	"reserva/internal/database"
	"reserva/internal/external"
	"reserva/internal/messaging"
)

// Config holds the full application configuration
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	Database database.Config
	NATS     messaging.Config
	Valkey   cache.Config
	Notify   external.NotifyConfig
	Email    external.EmailConfig
	Escrow   external.EscrowConfig
	Trust    TrustConfig
}

// TrustConfig carries the trust-engine business knobs. Defaults mirror the
// marketplace policy; establishments may narrow the protection window per-row.
type TrustConfig struct {
	ProtectionWindowHours      int
	DisputeResponseHours       int
	WaitlistOfferMinutes       int
	MaxPartySize               int
	ConsecutiveNoShowThreshold int
	RehabilitationConsecutive  int
	RecurrenceNoShowCount      int
	FirstSuspensionDays        int
	RecurrenceSuspensionDays   int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8081"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "reserva"),
			Password:           getEnv("DB_PASSWORD", "reserva123"),
			DBName:             getEnv("DB_NAME", "reserva"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "reserva"),
			ClientID:  getEnv("NATS_CLIENT_ID", "reserva-api"),
		},

		Valkey: cache.Config{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
		},

		Notify: external.NotifyConfig{
			BaseURL: getEnv("NOTIFY_SERVICE_URL", "http://localhost:8090"),
			Timeout: time.Duration(getEnvInt("NOTIFY_TIMEOUT_SEC", 10)) * time.Second,
		},

		Email: external.EmailConfig{
			BaseURL: getEnv("EMAIL_SERVICE_URL", "http://localhost:8091"),
			Timeout: time.Duration(getEnvInt("EMAIL_TIMEOUT_SEC", 10)) * time.Second,
		},

		Escrow: external.EscrowConfig{
			BaseURL: getEnv("ESCROW_SERVICE_URL", "http://localhost:8092"),
			APIKey:  getEnv("ESCROW_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("ESCROW_TIMEOUT_SEC", 15)) * time.Second,
		},

		Trust: TrustConfig{
			ProtectionWindowHours:      getEnvInt("PROTECTION_WINDOW_HOURS", 24),
			DisputeResponseHours:       getEnvInt("DISPUTE_RESPONSE_HOURS", 48),
			WaitlistOfferMinutes:       getEnvInt("WAITLIST_OFFER_MINUTES", 120),
			MaxPartySize:               getEnvInt("MAX_PARTY_SIZE", 15),
			ConsecutiveNoShowThreshold: getEnvInt("CONSECUTIVE_NO_SHOWS_THRESHOLD", 3),
			RehabilitationConsecutive:  getEnvInt("REHABILITATION_CONSECUTIVE", 5),
			RecurrenceNoShowCount:      getEnvInt("RECURRENCE_NO_SHOW_COUNT", 5),
			FirstSuspensionDays:        getEnvInt("FIRST_SUSPENSION_DAYS", 7),
			RecurrenceSuspensionDays:   getEnvInt("RECURRENCE_SUSPENSION_DAYS", 30),
		},
	}
}

// getEnv returns an environment variable or the default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or the default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
