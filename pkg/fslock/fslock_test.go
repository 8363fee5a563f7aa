package fslock_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerchecker/taskchain/pkg/fslock"
)

func TestWithLock_RunsFnWhileHoldingLock(t *testing.T) {
	t.Run("Should run fn and release the lock afterward", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "task.lock")
		ran := false
		err := fslock.WithLock(context.Background(), path, fslock.Options{}, func() error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)

		// A second acquisition must succeed immediately now the first
		// has released the lock.
		err = fslock.WithLock(context.Background(), path, fslock.Options{}, func() error { return nil })
		require.NoError(t, err)
	})
}

func TestAcquire_TimesOutWhenHeld(t *testing.T) {
	t.Run("Should time out when the lock is already held by this process", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "task.lock")
		held, err := fslock.Acquire(context.Background(), path, fslock.Options{})
		require.NoError(t, err)
		defer held.Unlock()

		_, err = fslock.Acquire(context.Background(), path, fslock.Options{Timeout: 50_000_000})
		assert.Error(t, err)
	})
}
