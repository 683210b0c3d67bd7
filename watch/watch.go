// Package watch reruns a compile whenever a source file changes on
// disk. Change detection is a modification-time poll; recompiles are
// strictly sequential and never overlap, so a change observed during
// a compile only takes effect once that compile finishes.
package watch

import (
	"context"
	"os"
	"time"
)

// DefaultInterval is the poll period used when none is given.
const DefaultInterval = 100 * time.Millisecond

// Watch polls the file's modification time and calls compile once per
// observed change. It blocks until the context is cancelled or
// compile returns an error.
func Watch(ctx context.Context, path string, interval time.Duration, compile func() error) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	last := info.ModTime()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			// The file may be mid-replace by an editor; try again on
			// the next tick.
			continue
		}

		if info.ModTime().Equal(last) {
			continue
		}

		if err := compile(); err != nil {
			return err
		}
		last = info.ModTime()
	}
}
