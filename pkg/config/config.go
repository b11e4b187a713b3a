// pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// APL backend selectors.
const (
	BackendUpstash  = "upstash"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// Config is resolved once at startup; nothing else in the tree reads the
// environment. Stores and verifiers receive already-resolved values.
type Config struct {
	Env      string
	HTTPAddr string

	// BaseURL is the public URL this app is served under; manifest URLs
	// are derived from it.
	BaseURL string

	// AppNamespace suffixes every APL storage key so multiple app
	// deployments can share one backing store.
	AppNamespace string

	// APLBackend selects the credential store implementation.
	APLBackend       string
	UpstashRestURL   string
	UpstashRestToken string
	RedisURL         string
	DatabaseURL      string
	APLFilePath      string

	// AllowedDomainPattern optionally restricts which Saleor origins may
	// install the app (regular expression; empty allows all).
	AllowedDomainPattern string

	ManifestPath string

	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string

	JWKSCacheTTL time.Duration
	HTTPTimeout  time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:                  env("APP_ENV", "dev"),
		HTTPAddr:             env("APP_HTTP_ADDR", ":8080"),
		BaseURL:              env("APP_BASE_URL", "http://localhost:8080"),
		AppNamespace:         env("APP_NAMESPACE", "saleor-app"),
		APLBackend:           env("APL_BACKEND", BackendUpstash),
		UpstashRestURL:       env("UPSTASH_URL", ""),
		UpstashRestToken:     env("UPSTASH_TOKEN", ""),
		RedisURL:             env("REDIS_URL", ""),
		DatabaseURL:          env("DATABASE_URL", ""),
		APLFilePath:          env("APL_FILE_PATH", ".saleor-app-auth.json"),
		AllowedDomainPattern: env("ALLOWED_DOMAIN_PATTERN", ""),
		ManifestPath:         env("APP_MANIFEST_PATH", "manifest.yaml"),
		OTLPEndpoint:         env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		JWKSCacheTTL:         envDur("JWKS_CACHE_TTL_SEC", 6*60*60) * time.Second,
		HTTPTimeout:          envDur("HTTP_TIMEOUT_SEC", 10) * time.Second,
	}
}

// Validate rejects configurations that can only fail later at request time.
func (c Config) Validate() error {
	switch c.APLBackend {
	case BackendUpstash, BackendRedis, BackendPostgres, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("config: unknown APL backend %q", c.APLBackend)
	}
	if c.AllowedDomainPattern != "" {
		if _, err := regexp.Compile(c.AllowedDomainPattern); err != nil {
			return fmt.Errorf("config: ALLOWED_DOMAIN_PATTERN: %w", err)
		}
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
