package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
)

// Config is the top-level configuration for a broker process, loadable
// from a JSON file and overlaid with BROKER_* environment variables.
type Config struct {
	// DataDir is the directory holding the Pebble database backing the
	// event store and consumer presence index.
	DataDir string `json:"dataDir"`
	// Fsync selects the durability tradeoff for store writes.
	Fsync pebblestore.FsyncMode `json:"fsync"`
	// FsyncInterval is the group-commit window when Fsync is
	// FsyncModeInterval.
	FsyncInterval time.Duration `json:"fsyncInterval"`
	// CatchUpBatchSize bounds how many decoded events the store's query
	// cursor buffers per fetch during a catch-up scan (the worker still
	// hands events to the broker one at a time). Kept small (order of 10
	// rows) to cap memory on long catch-up scans; matches the store's own
	// defaultQueryBatchSize.
	CatchUpBatchSize int `json:"catchUpBatchSize"`
	// SubscribeTimeout bounds how long a Subscribe call waits for the
	// broker loop to accept the request before giving up.
	SubscribeTimeout time.Duration `json:"subscribeTimeout"`
	// PresenceTTL is how long a consumer's heartbeat is considered fresh
	// before it is treated as dead.
	PresenceTTL time.Duration `json:"presenceTTL"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:          DefaultDataDir(),
		Fsync:            pebblestore.FsyncModeInterval,
		FsyncInterval:    5 * time.Millisecond,
		CatchUpBatchSize: 10,
		SubscribeTimeout: 5 * time.Second,
		PresenceTTL:      30 * time.Second,
	}
}

// Load reads configuration from a JSON file, overlaid on Default(). If
// path is empty, it returns the defaults unchanged. Only JSON is
// supported; other extensions are rejected rather than silently ignored.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".json", "":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, errors.New("config: only JSON config files are supported")
	}
	return cfg, nil
}
