package broker

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/flowcursor/broker/internal/config"
)

// Exercises Run directly, without cobra, proving out the package doc's
// claim that the Options/Run split keeps the serve command testable.
func TestRunCompletesDemoScenario(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Run(ctx, Options{Config: cfg}); err != nil {
		t.Fatalf("run: %v", err)
	}
}
