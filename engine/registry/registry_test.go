package registry_test

import (
	"testing"

	"github.com/flowerchecker/taskchain/engine/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct{}

func TestRegister_LookupRoundTrip(t *testing.T) {
	t.Run("Should find a registered class by its full name", func(t *testing.T) {
		registry.Register("ingest_test", "FetchRows", false, func() any { return &fakeTask{} })
		entry, ok := registry.Lookup("ingest_test.FetchRows")
		require.True(t, ok)
		assert.Equal(t, "ingest_test", entry.Group)
		assert.Equal(t, "FetchRows", entry.Class)
		assert.False(t, entry.Abstract)
	})
}

func TestConcrete_ExcludesAbstract(t *testing.T) {
	t.Run("Should omit abstract classes from Concrete", func(t *testing.T) {
		registry.Register("abstract_test", "BaseTask", true, func() any { return &fakeTask{} })
		for _, e := range registry.Concrete() {
			assert.NotEqual(t, "abstract_test.BaseTask", e.FullName)
		}
	})
}

func TestSplitFullName_RequiresSeparator(t *testing.T) {
	t.Run("Should error when there is no group separator", func(t *testing.T) {
		_, _, err := registry.SplitFullName("NoGroupClass")
		assert.Error(t, err)
	})
	t.Run("Should split group and class", func(t *testing.T) {
		group, class, err := registry.SplitFullName("ingest.FetchRows")
		require.NoError(t, err)
		assert.Equal(t, "ingest", group)
		assert.Equal(t, "FetchRows", class)
	})
}
