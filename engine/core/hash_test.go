package core_test

import (
	"testing"

	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestDigest128_StableAcrossMapOrder(t *testing.T) {
	t.Run("Should produce identical digests for maps built in different orders", func(t *testing.T) {
		a := map[string]any{"b": 2, "a": 1, "c": 3}
		b := map[string]any{"c": 3, "b": 2, "a": 1}
		assert.Equal(t, core.Digest128(a), core.Digest128(b))
	})
}

func TestDigest128_NestedTypedMaps(t *testing.T) {
	t.Run("Should be stable for nested map[string]string values", func(t *testing.T) {
		a := map[string]any{"outer": map[string]string{"b": "2", "a": "1"}}
		b := map[string]any{"outer": map[string]string{"a": "1", "b": "2"}}
		assert.Equal(t, core.Digest128(a), core.Digest128(b))
	})
}

func TestDigest128_OrderSensitiveForSlices(t *testing.T) {
	t.Run("Should differ when slice order differs", func(t *testing.T) {
		a := []any{1, 2, 3}
		b := []any{3, 2, 1}
		assert.NotEqual(t, core.Digest128(a), core.Digest128(b))
	})
}

func TestDigest128_Is128Bits(t *testing.T) {
	t.Run("Should return exactly 32 hex characters", func(t *testing.T) {
		assert.Len(t, core.Digest128("anything"), 32)
	})
}

func TestDigest128_ChangeInvalidatesDigest(t *testing.T) {
	t.Run("Should change when an input value changes", func(t *testing.T) {
		a := map[string]any{"x": 5}
		b := map[string]any{"x": 6}
		assert.NotEqual(t, core.Digest128(a), core.Digest128(b))
	})
}
