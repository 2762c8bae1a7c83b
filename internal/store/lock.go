package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
)

// Unlock releases a data-root lock
type Unlock func() error

// LockDataRoot takes the single-writer lock guarding the global artifacts of dataRoot.
// It blocks until the lock is free, ctx is done, or timeout elapses (0 waits for ctx only).
func LockDataRoot(ctx context.Context, dataRoot string, timeout time.Duration) (Unlock, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := os.MkdirAll(dataRoot, 0755); err != nil {
		return nil, fmt.Errorf("create data root %s: %w: %w", dataRoot, model.ErrIO, err)
	}

	fl := flock.New(filepath.Join(dataRoot, paths.LockFile))
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock data root %s: %w", dataRoot, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock data root %s: not acquired", dataRoot)
	}

	return fl.Unlock, nil
}

// NoopUnlock is returned when locking is disabled
func NoopUnlock() error { return nil }
