package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "prato/pkg/platform/strings"
)

// Server captures process-level configuration for the registration service.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration

	Redis      RedisConfig
	ViaCEPBase string
	Captcha    CaptchaConfig
	Kafka      KafkaConfig

	// SessionTTL bounds how long an in-flight registration session survives
	// in the session store before the TTL reaps it.
	SessionTTL time.Duration
}

// RedisConfig holds connection tuning for the Redis-backed session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CaptchaConfig selects and configures the anti-bot verifier.
type CaptchaConfig struct {
	Secret    string
	VerifyURL string
	Timeout   time.Duration
}

// KafkaConfig wires the audit event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := getenv("PRATO_JWT_SIGNING_KEY", "")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          getenv("PRATO_ADDR", ":8080"),
		DatabaseURL:   getenv("PRATO_DATABASE_URL", ""),
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     getenv("PRATO_JWT_ISSUER", "prato"),
		TokenTTL:      getduration("PRATO_TOKEN_TTL", 30*time.Minute),
		ViaCEPBase:    getenv("PRATO_VIACEP_BASE_URL", "https://viacep.com.br"),
		SessionTTL:    getduration("PRATO_SESSION_TTL", 24*time.Hour),
		Redis: RedisConfig{
			URL:          getenv("PRATO_REDIS_URL", ""),
			PoolSize:     getint("PRATO_REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("PRATO_REDIS_MIN_IDLE", 2),
			DialTimeout:  getduration("PRATO_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("PRATO_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("PRATO_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Captcha: CaptchaConfig{
			Secret:    getenv("PRATO_RECAPTCHA_SECRET", ""),
			VerifyURL: getenv("PRATO_RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			Timeout:   getduration("PRATO_RECAPTCHA_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getenv("PRATO_KAFKA_BROKERS", "")),
			Topic:   getenv("PRATO_AUDIT_TOPIC", "prato.registration.audit"),
		},
	}
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

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrim(strings.Split(s, ","))
}
