package datahandler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerchecker/taskchain/engine/datahandler"
)

func TestMemory_RoundTrips(t *testing.T) {
	t.Run("Should report absent before Save and return the saved value after", func(t *testing.T) {
		h := datahandler.NewMemory()
		ok, err := h.Exists()
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, h.Save(42))
		ok, err = h.Exists()
		require.NoError(t, err)
		assert.True(t, ok)

		value, err := h.Load()
		require.NoError(t, err)
		assert.Equal(t, 42, value)
	})
}

func TestSingle_RoundTripsThroughJSONCodec(t *testing.T) {
	t.Run("Should persist and reload a value via the JSON codec", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		h := datahandler.NewSingle(fs, "/artifacts/task.json", nil)

		ok, err := h.Exists()
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, h.Save(map[string]any{"rows": float64(3)}))

		ok, err = h.Exists()
		require.NoError(t, err)
		assert.True(t, ok)

		value, err := h.Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"rows": float64(3)}, value)
	})
}

func TestStreamed_AppendAndIterate(t *testing.T) {
	t.Run("Should iterate appended records in write order", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		h := datahandler.NewStreamed(fs, "/artifacts/rows.jsonl", nil)

		require.NoError(t, h.Append(map[string]any{"id": float64(1)}))
		require.NoError(t, h.Append(map[string]any{"id": float64(2)}))

		var seen []any
		require.NoError(t, h.Iterate(func(record any) (bool, error) {
			seen = append(seen, record)
			return true, nil
		}))
		require.Len(t, seen, 2)
	})

	t.Run("Should stop iterating early when fn returns false", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		h := datahandler.NewStreamed(fs, "/artifacts/rows.jsonl", nil)
		require.NoError(t, h.Append(map[string]any{"id": float64(1)}))
		require.NoError(t, h.Append(map[string]any{"id": float64(2)}))

		count := 0
		require.NoError(t, h.Iterate(func(record any) (bool, error) {
			count++
			return false, nil
		}))
		assert.Equal(t, 1, count)
	})
}

func TestStreamed_ExistsReflectsCompletionNotPresence(t *testing.T) {
	t.Run("Should report not-exists for a stream still missing its done sentinel", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		h := datahandler.NewStreamed(fs, "/artifacts/rows.jsonl", nil)

		require.NoError(t, h.Append(map[string]any{"id": float64(1)}))

		ok, err := h.Exists()
		require.NoError(t, err)
		assert.False(t, ok, "a partially-appended stream must not be treated as a reusable artifact")

		finished, err := h.IsFinished()
		require.NoError(t, err)
		assert.False(t, finished)

		require.NoError(t, h.MarkFinished())

		ok, err = h.Exists()
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should mark itself finished after a bulk Save", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		h := datahandler.NewStreamed(fs, "/artifacts/rows.jsonl", nil)

		require.NoError(t, h.Save([]any{map[string]any{"id": float64(1)}}))

		ok, err := h.Exists()
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestDirectory_SaveRoundTripsThroughAnInMemoryFs(t *testing.T) {
	t.Run("Should promote a real scratch directory into an in-memory destination fs", func(t *testing.T) {
		scratch := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(scratch, "part-0.csv"), []byte("a,b\n1,2\n"), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(scratch, "nested"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(scratch, "nested", "part-1.csv"), []byte("c,d\n3,4\n"), 0o644))

		fs := afero.NewMemMapFs()
		h := datahandler.NewDirectory(fs, "/artifacts/rows")

		ok, err := h.Exists()
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, h.Save(datahandler.DirData{Root: scratch}))

		// The promoted tree must be readable through the same fs the
		// handler exposes, not left sitting on the real disk.
		ok, err = h.Exists()
		require.NoError(t, err)
		assert.True(t, ok)

		top, err := afero.ReadFile(fs, "/artifacts/rows/part-0.csv")
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n", string(top))

		nested, err := afero.ReadFile(fs, "/artifacts/rows/nested/part-1.csv")
		require.NoError(t, err)
		assert.Equal(t, "c,d\n3,4\n", string(nested))

		value, err := h.Load()
		require.NoError(t, err)
		assert.Equal(t, datahandler.DirData{Root: "/artifacts/rows"}, value)
	})
}

func TestContinuable_ExistsReflectsCompletionNotPresence(t *testing.T) {
	t.Run("Should report not-exists for a checkpoint directory missing the done sentinel", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		h := datahandler.NewContinuable(fs, "/artifacts/checkpoint")
		require.NoError(t, fs.MkdirAll("/artifacts/checkpoint", 0o755))

		ok, err := h.Exists()
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, h.MarkComplete())
		ok, err = h.Exists()
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
