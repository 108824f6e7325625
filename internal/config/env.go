package config

import (
	"os"
	"strconv"
	"time"

	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
)

// FromEnv overlays BROKER_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("BROKER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BROKER_FSYNC"); v != "" {
		switch v {
		case "always":
			cfg.Fsync = pebblestore.FsyncModeAlways
		case "interval":
			cfg.Fsync = pebblestore.FsyncModeInterval
		case "never":
			cfg.Fsync = pebblestore.FsyncModeNever
		}
	}
	if v := os.Getenv("BROKER_FSYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FsyncInterval = d
		}
	}
	if v := os.Getenv("BROKER_CATCHUP_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CatchUpBatchSize = n
		}
	}
	if v := os.Getenv("BROKER_SUBSCRIBE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SubscribeTimeout = d
		}
	}
	if v := os.Getenv("BROKER_PRESENCE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PresenceTTL = d
		}
	}
}
