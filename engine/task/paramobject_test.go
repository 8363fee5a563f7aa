package task_test

import (
	"testing"

	"github.com/flowerchecker/taskchain/engine/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type region struct {
	name string
}

func (r *region) Repr() string {
	return "Region(name='" + r.name + "')"
}

func init() {
	task.RegisterParameterObject("Region", func(args []any, kwargs map[string]any) (task.ParameterObject, error) {
		name, _ := kwargs["name"].(string)
		if name == "" && len(args) > 0 {
			name, _ = args[0].(string)
		}
		return &region{name: name}, nil
	})
}

func TestBuildParameterObject_ConstructsRegisteredClass(t *testing.T) {
	t.Run("Should build a registered parameter object from kwargs", func(t *testing.T) {
		obj, err := task.BuildParameterObject(map[string]any{
			"class":  "Region",
			"kwargs": map[string]any{"name": "eu-west"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Region(name='eu-west')", obj.Repr())
	})
}

func TestBuildParameterObject_UnknownClassFails(t *testing.T) {
	t.Run("Should error for an unregistered class", func(t *testing.T) {
		_, err := task.BuildParameterObject(map[string]any{"class": "DoesNotExist"})
		assert.Error(t, err)
	})
}
