package config

import (
	"fmt"
	"os"
	"time"
)

const defaultCruxEndpoint = "https://chromeuxreport.googleapis.com/v1/records:queryRecord"

// Config is assembled once at startup from environment variables and is
// read-only afterwards.
type Config struct {
	Port         string
	AuthToken    string
	GoogleAPIKey string
	CruxEndpoint string
	CruxTimeout  time.Duration
	SentryDSN    string
	CacheTTL     time.Duration
	S3           S3
}

// S3 holds the settings for the optional record cache.
type S3 struct {
	ServiceURL            string
	AccessKey             string
	SecretKey             string
	BucketName            string
	DisablePayloadSigning bool
}

// Configured reports whether a cache backend was set up at all.
func (s S3) Configured() bool {
	return s.ServiceURL != "" || s.AccessKey != ""
}

// CacheEnabled reports whether fetched records should be cached.
func (c *Config) CacheEnabled() bool {
	return c.S3.Configured() && c.CacheTTL > 0
}

// Load reads configuration from the environment. GOOGLE_API_KEY is the
// only required variable.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getenv("PORT", "8080"),
		AuthToken:    os.Getenv("AUTH_TOKEN"),
		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		CruxEndpoint: getenv("CRUX_API_ENDPOINT", defaultCruxEndpoint),
		SentryDSN:    os.Getenv("SENTRY_DSN"),
		S3: S3{
			ServiceURL:            os.Getenv("S3_SERVICE_URL"),
			AccessKey:             os.Getenv("S3_ACCESS_KEY"),
			SecretKey:             os.Getenv("S3_SECRET_KEY"),
			BucketName:            getenv("S3_BUCKET_NAME", "crux-records"),
			DisablePayloadSigning: os.Getenv("S3_DISABLE_PAYLOAD_SIGNING") != "false",
		},
	}

	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY must be set")
	}

	var err error
	if cfg.CruxTimeout, err = getduration("CRUX_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getduration("CACHE_TTL", 12*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return d, nil
}
