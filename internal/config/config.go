package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	// batch sync pacing — the inter-batch delay is a hard rate-limit
	// against the hotel APIs, not a tunable for throughput
	SyncBatchSize  int
	SyncBatchDelay time.Duration
	SyncInterval   time.Duration
	FetchTimeout   time.Duration

	// figure archive (S3/R2); empty endpoint+bucket => simulator
	R2Endpoint string
	R2Bucket   string
	R2KeysRaw  string

	AdminSecretKey string
	CORSOrigins    []string
}

func Load() (Config, error) {
	// .env é opcional; em produção as vars vêm do ambiente
	_ = godotenv.Load()

	cfg := Config{
		DBDSN:          os.Getenv("DB_DSN"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:       getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		R2Endpoint:     getenvDefault("R2_ENDPOINT", ""),
		R2Bucket:       getenvDefault("R2_BUCKET", ""),
		R2KeysRaw:      os.Getenv("R2_KEYS"),
		AdminSecretKey: getenvDefault("ADMIN_SECRET_KEY", ""),
		SyncBatchSize:  getenvInt("SYNC_BATCH_SIZE", 5),
		SyncBatchDelay: getenvDuration("SYNC_BATCH_DELAY", 2*time.Second),
		SyncInterval:   getenvDuration("SYNC_INTERVAL", 10*time.Minute),
		FetchTimeout:   getenvDuration("FETCH_TIMEOUT", 12*time.Second),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	if cfg.SyncBatchSize < 1 {
		cfg.SyncBatchSize = 5
	}
	if cfg.SyncBatchDelay < 0 {
		cfg.SyncBatchDelay = 2 * time.Second
	}

	// light validation: ensure R2 keys are valid json if set
	if cfg.R2KeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.R2KeysRaw), &tmp); err != nil {
			return Config{}, errors.New("R2_KEYS must be valid json")
		}
	}

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
