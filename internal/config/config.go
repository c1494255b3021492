package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	StripeKey    string
	HTTPAddr     string
	OTLPEndpoint string

	// ChargeTimeout bounds a single provider charge call; a timeout is
	// treated as a provider failure and compensated.
	ChargeTimeout time.Duration
	StoreTimeout  time.Duration
	CatalogTTL    time.Duration

	ReconcileInterval time.Duration
	OrphanAge         time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		CRDBDSN:           os.Getenv("CRDB_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RabbitURL:         os.Getenv("RABBIT_URL"),
		StripeKey:         os.Getenv("STRIPE_KEY"),
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ChargeTimeout:     durationOr("CHARGE_TIMEOUT", 15*time.Second),
		StoreTimeout:      durationOr("STORE_TIMEOUT", 5*time.Second),
		CatalogTTL:        durationOr("CATALOG_TTL", time.Minute),
		ReconcileInterval: durationOr("RECONCILE_INTERVAL", time.Minute),
		OrphanAge:         durationOr("ORPHAN_AGE", 15*time.Minute),
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return def
	}
	return d
}
