package task_test

import (
	"testing"

	"github.com/flowerchecker/taskchain/engine/config"
	"github.com/flowerchecker/taskchain/engine/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(data map[string]any, uses ...*config.Node) *config.Node {
	n := &config.Node{Data: data}
	n.Uses = uses
	return n
}

func TestBind_FindsValueOnOwnNode(t *testing.T) {
	t.Run("Should bind a parameter declared on the node itself", func(t *testing.T) {
		n := node(map[string]any{"batch_size": 8})
		set, err := task.Bind(n, []task.ParamSpec{{Name: "batch_size"}})
		require.NoError(t, err)
		assert.Equal(t, 8, set.Get("batch_size"))
	})
}

func TestBind_NearestWinsOverAncestor(t *testing.T) {
	t.Run("Should prefer the node's own value over an ancestor's", func(t *testing.T) {
		ancestor := node(map[string]any{"batch_size": 64})
		n := node(map[string]any{"batch_size": 8}, ancestor)
		set, err := task.Bind(n, []task.ParamSpec{{Name: "batch_size"}})
		require.NoError(t, err)
		assert.Equal(t, 8, set.Get("batch_size"))
	})
	t.Run("Should fall back to an ancestor's value when the node has none", func(t *testing.T) {
		ancestor := node(map[string]any{"batch_size": 64})
		n := node(map[string]any{}, ancestor)
		set, err := task.Bind(n, []task.ParamSpec{{Name: "batch_size"}})
		require.NoError(t, err)
		assert.Equal(t, 64, set.Get("batch_size"))
	})
}

func TestBind_RequiredMissingFails(t *testing.T) {
	t.Run("Should error when a required parameter has no value anywhere in the chain", func(t *testing.T) {
		n := node(map[string]any{})
		_, err := task.Bind(n, []task.ParamSpec{{Name: "batch_size"}})
		assert.Error(t, err)
	})
}

func TestBind_UsesDefaultWhenAbsent(t *testing.T) {
	t.Run("Should use the declared default when no config provides a value", func(t *testing.T) {
		n := node(map[string]any{})
		set, err := task.Bind(n, []task.ParamSpec{{Name: "batch_size", Default: 32, HasDefault: true}})
		require.NoError(t, err)
		assert.Equal(t, 32, set.Get("batch_size"))
	})
}

func TestBind_NameInConfigOverridesSearchKey(t *testing.T) {
	t.Run("Should search under name_in_config rather than the parameter's own name", func(t *testing.T) {
		n := node(map[string]any{"n_rows": 100})
		set, err := task.Bind(n, []task.ParamSpec{{Name: "limit", NameInConfig: "n_rows"}})
		require.NoError(t, err)
		assert.Equal(t, 100, set.Get("limit"))
	})
}

func TestParameterSet_Repr_SkipsIgnoredAndDefaultedParameters(t *testing.T) {
	t.Run("Should omit ignore_persistence and unchanged-default parameters from Repr", func(t *testing.T) {
		n := node(map[string]any{"batch_size": 8, "verbose": true})
		specs := []task.ParamSpec{
			{Name: "batch_size"},
			{Name: "verbose", Default: false, HasDefault: true, IgnorePersistence: true},
			{Name: "limit", Default: 10, HasDefault: true, DontPersistDefaultValue: true},
		}
		set, err := task.Bind(n, specs)
		require.NoError(t, err)
		repr := set.Repr()
		assert.Contains(t, repr, "batch_size=")
		assert.NotContains(t, repr, "verbose")
		assert.NotContains(t, repr, "limit")
	})
}

func TestBind_RejectsReservedParameterName(t *testing.T) {
	t.Run("Should reject a parameter declared under a reserved name", func(t *testing.T) {
		n := node(map[string]any{"uses": "x"})
		_, err := task.Bind(n, []task.ParamSpec{{Name: "uses"}})
		assert.Error(t, err)
	})
}
