package bridge

import (
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is the staging identity/attribution service.
const DefaultBaseURL = "https://stage-api.getstan.app/identity-service/api/v1"

// AssertionTTL is how long a minted identity assertion stays valid.
const AssertionTTL = 7 * 24 * time.Hour

type Config struct {
	BaseURL   string
	APIKey    string
	JWTSecret string
	Timeout   time.Duration
}

// ConfigFromEnv reads PROVIDER_BASE_URL, PROVIDER_API_KEY,
// PROVIDER_JWT_SECRET and PROVIDER_TIMEOUT.
func ConfigFromEnv() Config {
	base := strings.TrimRight(strings.TrimSpace(os.Getenv("PROVIDER_BASE_URL")), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := 10 * time.Second
	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}
	return Config{
		BaseURL:   base,
		APIKey:    os.Getenv("PROVIDER_API_KEY"),
		JWTSecret: os.Getenv("PROVIDER_JWT_SECRET"),
		Timeout:   timeout,
	}
}

// LockLease is the shortest distributed-lock lease that covers a holder
// making two provider calls (registration, then event submission) plus the
// database writes around them.
func (c Config) LockLease() time.Duration {
	return 2*c.Timeout + 15*time.Second
}
