package resolve_test

import (
	"testing"

	"github.com/flowerchecker/taskchain/engine/registry"
	"github.com/flowerchecker/taskchain/engine/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	registry.Register("resolve_demo", "FetchRowsTask", false, func() any { return nil })
	registry.Register("resolve_demo", "CleanRowsTask", false, func() any { return nil })
	registry.Register("resolve_demo", "BaseRowsTask", true, func() any { return nil })
}

func TestSlugname_StripsTaskSuffixAndPrefixesGroup(t *testing.T) {
	t.Run("Should convert CamelCase to snake_case and drop the _task suffix", func(t *testing.T) {
		entry, ok := registry.Lookup("resolve_demo.FetchRowsTask")
		require.True(t, ok)
		assert.Equal(t, "resolve_demo:fetch_rows", resolve.Slugname(entry))
	})
}

func TestFullName_CollapsesEmptyNamespace(t *testing.T) {
	t.Run("Should omit the namespace separator when namespace is empty", func(t *testing.T) {
		entry, ok := registry.Lookup("resolve_demo.FetchRowsTask")
		require.True(t, ok)
		assert.Equal(t, "resolve_demo:fetch_rows", resolve.FullName("", entry))
	})
	t.Run("Should prefix the namespace when set", func(t *testing.T) {
		entry, ok := registry.Lookup("resolve_demo.FetchRowsTask")
		require.True(t, ok)
		assert.Equal(t, "region_a::resolve_demo:fetch_rows", resolve.FullName("region_a", entry))
	})
}

func TestExpand_WildcardExcludesAbstractAndAppliesExclusions(t *testing.T) {
	t.Run("Should match every concrete class under the group prefix, minus exclusions", func(t *testing.T) {
		entries, err := resolve.Expand([]string{"resolve_demo.*"}, []string{"resolve_demo.CleanRowsTask"})
		require.NoError(t, err)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.FullName)
		}
		assert.Contains(t, names, "resolve_demo.FetchRowsTask")
		assert.NotContains(t, names, "resolve_demo.CleanRowsTask")
		assert.NotContains(t, names, "resolve_demo.BaseRowsTask")
	})
}

func TestExpand_UnknownSelectorFails(t *testing.T) {
	t.Run("Should error when a named class is not registered", func(t *testing.T) {
		_, err := resolve.Expand([]string{"resolve_demo.DoesNotExist"}, nil)
		assert.Error(t, err)
	})
}
