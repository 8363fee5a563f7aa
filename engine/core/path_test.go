package core_test

import (
	"testing"

	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCWD_JoinRejectsEscape(t *testing.T) {
	t.Run("Should reject a relative path that escapes the cwd", func(t *testing.T) {
		cwd, err := core.NewCWD(t.TempDir())
		require.NoError(t, err)
		_, err = cwd.Join("../../etc/passwd")
		assert.Error(t, err)
	})
}

func TestCWD_JoinAllowsNested(t *testing.T) {
	t.Run("Should resolve a nested relative path", func(t *testing.T) {
		cwd, err := core.NewCWD(t.TempDir())
		require.NoError(t, err)
		joined, err := cwd.Join("a/b.yaml")
		require.NoError(t, err)
		assert.Contains(t, joined, "a/b.yaml")
	})
}

func TestIsReservedParameterName(t *testing.T) {
	t.Run("Should flag structural keys as reserved", func(t *testing.T) {
		assert.True(t, core.IsReservedParameterName("uses"))
		assert.True(t, core.IsReservedParameterName("human_readable_data_name"))
		assert.False(t, core.IsReservedParameterName("batch_size"))
	})
}
