package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DataDir == "" {
		t.Fatalf("default data dir should not be empty")
	}
	if cfg.Fsync != pebblestore.FsyncModeInterval {
		t.Fatalf("default fsync mode")
	}
	if cfg.CatchUpBatchSize != 10 {
		t.Fatalf("default catch-up batch size")
	}
	if cfg.SubscribeTimeout != 5*time.Second {
		t.Fatalf("default subscribe timeout")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broker.json")
	data := []byte(`{"dataDir":"/tmp/broker-data","catchUpBatchSize":64,"subscribeTimeout":2000000000}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/broker-data" {
		t.Fatalf("expected overridden data dir, got %s", cfg.DataDir)
	}
	if cfg.CatchUpBatchSize != 64 {
		t.Fatalf("expected 64, got %d", cfg.CatchUpBatchSize)
	}
	if cfg.SubscribeTimeout != 2*time.Second {
		t.Fatalf("expected 2s, got %v", cfg.SubscribeTimeout)
	}
}

func TestLoadRejectsNonJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "broker.yaml")
	if err := os.WriteFile(file, []byte("dataDir: /tmp"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected error for non-JSON config file")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("BROKER_DATA_DIR", "/var/lib/broker-test")
	os.Setenv("BROKER_FSYNC", "always")
	os.Setenv("BROKER_CATCHUP_BATCH_SIZE", "32")
	t.Cleanup(func() {
		os.Unsetenv("BROKER_DATA_DIR")
		os.Unsetenv("BROKER_FSYNC")
		os.Unsetenv("BROKER_CATCHUP_BATCH_SIZE")
	})
	FromEnv(&cfg)
	if cfg.DataDir != "/var/lib/broker-test" {
		t.Fatalf("env override data dir")
	}
	if cfg.Fsync != pebblestore.FsyncModeAlways {
		t.Fatalf("env override fsync")
	}
	if cfg.CatchUpBatchSize != 32 {
		t.Fatalf("env override batch size")
	}
}
