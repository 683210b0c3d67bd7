package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tempSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.1bpc")
	assert.NoError(t, os.WriteFile(path, []byte("halt\n"), 0o644))
	return path
}

func TestWatchMissingFile(t *testing.T) {
	assert := assert.New(t)

	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope"),
		time.Millisecond, func() error { return nil })
	assert.Error(err)
}

func TestWatchCancel(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Watch(ctx, tempSource(t), time.Millisecond, func() error {
		t.Error("compile called without a change")
		return nil
	})
	assert.ErrorIs(err, context.Canceled)
}

func TestWatchRecompilesOnChange(t *testing.T) {
	assert := assert.New(t)

	path := tempSource(t)
	compiled := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, time.Millisecond, func() error {
			close(compiled)
			return nil
		})
	}()

	// Give Watch time to record its baseline modification time before
	// we bump it; otherwise the bump can land first and never be seen.
	time.Sleep(50 * time.Millisecond)

	// Force a modification time in the future, so the change is seen
	// regardless of filesystem timestamp granularity.
	future := time.Now().Add(time.Hour)
	assert.NoError(os.Chtimes(path, future, future))

	select {
	case <-compiled:
	case <-ctx.Done():
		t.Fatal("change never triggered a compile")
	}

	cancel()
	assert.ErrorIs(<-done, context.Canceled)
}

func TestWatchStopsOnCompileError(t *testing.T) {
	assert := assert.New(t)

	path := tempSource(t)
	fail := errors.New("compile failed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, time.Millisecond, func() error { return fail })
	}()

	// Give Watch time to record its baseline modification time before
	// we bump it; otherwise the bump can land first and never be seen.
	time.Sleep(50 * time.Millisecond)

	future := time.Now().Add(time.Hour)
	assert.NoError(os.Chtimes(path, future, future))

	assert.ErrorIs(<-done, fail)
}
