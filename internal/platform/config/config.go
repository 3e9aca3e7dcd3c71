package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything cmd/server needs to wire the service. Every field
// has a development default so a bare `go run ./cmd/server` comes up against
// in-memory stores.
type Config struct {
	Addr string

	// PostgresURL selects the pgx-backed stores when set; empty means
	// in-memory stores.
	PostgresURL string

	// RedisURL enables the cross-process verification lock when set.
	RedisURL string

	// KafkaBrokers enables lifecycle event publishing when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// UploadDir is the disk content store root. Ignored when GCSBucket is set.
	UploadDir string
	GCSBucket string

	VerifierURL     string
	VerifierTimeout time.Duration
	VerifierRetries int

	JWTSigningKey string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("GREENCREDITS_ADDR", ":5000"),
		PostgresURL:     os.Getenv("GREENCREDITS_POSTGRES_URL"),
		RedisURL:        os.Getenv("GREENCREDITS_REDIS_URL"),
		KafkaTopic:      getenv("GREENCREDITS_KAFKA_TOPIC", "certificate-events"),
		UploadDir:       getenv("GREENCREDITS_UPLOAD_DIR", "uploads"),
		GCSBucket:       os.Getenv("GREENCREDITS_GCS_BUCKET"),
		VerifierURL:     getenv("GREENCREDITS_VERIFIER_URL", "http://localhost:5001"),
		VerifierTimeout: getduration("GREENCREDITS_VERIFIER_TIMEOUT", 30*time.Second),
		VerifierRetries: getint("GREENCREDITS_VERIFIER_RETRIES", 2),
		JWTSigningKey:   getenv("GREENCREDITS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
	}
	if brokers := os.Getenv("GREENCREDITS_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
