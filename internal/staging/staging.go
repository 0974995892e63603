// Package staging resets the per-session working directories to a known-good
// empty state before capture begins.
package staging

import (
	"fmt"
	"os"
	"strings"

	"capsync/internal/ledger"
)

// Paths names the three working directories a session records into.
type Paths struct {
	VideoDir      string
	AudioDir      string
	ScreenshotDir string
}

// Reset recursively deletes dir and recreates it empty. When withLedger is
// true an empty segment ledger is seeded so the capture engine can open it
// for append; the ledger is only created when absent. Screenshot directories
// carry no ledger.
func Reset(dir string, withLedger bool) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("reset directory: path is empty")
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if !withLedger {
		return nil
	}

	ledgerPath := ledger.PathIn(dir)
	file, err := os.OpenFile(ledgerPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("seed segment ledger %s: %w", ledgerPath, err)
	}
	return file.Close()
}

// PrepareSession resets all three working directories for a fresh session.
// Any filesystem failure aborts the start attempt; a partially prepared
// layout is safe to retry because each Reset is idempotent.
func PrepareSession(paths Paths) error {
	if err := Reset(paths.VideoDir, true); err != nil {
		return fmt.Errorf("prepare video directory: %w", err)
	}
	if err := Reset(paths.AudioDir, true); err != nil {
		return fmt.Errorf("prepare audio directory: %w", err)
	}
	if err := Reset(paths.ScreenshotDir, false); err != nil {
		return fmt.Errorf("prepare screenshot directory: %w", err)
	}
	return nil
}
