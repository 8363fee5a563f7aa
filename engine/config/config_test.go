package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerchecker/taskchain/engine/config"
)

func TestLoad_FromMapResolvesPlaceholders(t *testing.T) {
	t.Run("Should substitute a {NAME} placeholder from global_vars", func(t *testing.T) {
		node, err := config.Load(config.FromMap(map[string]any{
			"data_dir": "{DATA_DIR}/raw",
		}), config.Options{GlobalVars: map[string]any{"DATA_DIR": "/data"}})
		require.NoError(t, err)
		v, ok := node.Get("data_dir")
		require.True(t, ok)
		assert.Equal(t, "/data/raw", v)
	})

	t.Run("Should fail to load when a placeholder is unresolved", func(t *testing.T) {
		_, err := config.Load(config.FromMap(map[string]any{
			"data_dir": "{MISSING}/raw",
		}), config.Options{})
		assert.Error(t, err)
	})
}

func TestLoad_MultiPartSelectsMainPart(t *testing.T) {
	t.Run("Should select the part marked main_part when none is requested", func(t *testing.T) {
		node, err := config.Load(config.FromMap(map[string]any{
			"configs": map[string]any{
				"dev":  map[string]any{"env": "dev"},
				"prod": map[string]any{"env": "prod", "main_part": true},
			},
		}), config.Options{})
		require.NoError(t, err)
		v, ok := node.Get("env")
		require.True(t, ok)
		assert.Equal(t, "prod", v)
	})

	t.Run("Should select an explicitly requested part over main_part", func(t *testing.T) {
		node, err := config.Load(config.FromMap(map[string]any{
			"configs": map[string]any{
				"dev":  map[string]any{"env": "dev"},
				"prod": map[string]any{"env": "prod", "main_part": true},
			},
		}), config.Options{Part: "dev"})
		require.NoError(t, err)
		v, _ := node.Get("env")
		assert.Equal(t, "dev", v)
	})
}

func TestParseUses_RejectsDuplicateNamespace(t *testing.T) {
	t.Run("Should reject two uses entries claiming the same namespace for different refs", func(t *testing.T) {
		_, err := config.Load(config.FromMap(map[string]any{
			"uses": []any{"a.yaml as region", "b.yaml as region"},
		}), config.Options{})
		assert.Error(t, err)
	})
}

func TestContextOverlay_RejectsReservedKey(t *testing.T) {
	t.Run("Should reject a context overlay that sets `tasks` directly", func(t *testing.T) {
		_, err := config.Load(
			config.FromMap(map[string]any{}),
			config.Options{Contexts: []config.Source{config.FromMap(map[string]any{"tasks": []any{"x"}})}},
		)
		assert.Error(t, err)
	})

	t.Run("Should allow a context overlay to set plain parameter keys", func(t *testing.T) {
		node, err := config.Load(
			config.FromMap(map[string]any{}),
			config.Options{Contexts: []config.Source{config.FromMap(map[string]any{"batch_size": 16})}},
		)
		require.NoError(t, err)
		v, ok := node.Get("batch_size")
		require.True(t, ok)
		assert.Equal(t, 16, v)
	})
}

func TestNew_PropagatesArtifactRoot(t *testing.T) {
	t.Run("Should carry ArtifactRoot through to the loaded node", func(t *testing.T) {
		node, err := config.New(config.NewOptions{
			ArtifactRoot: "/data/artifacts",
			Source:       config.FromMap(map[string]any{}),
		})
		require.NoError(t, err)
		assert.Equal(t, "/data/artifacts", node.ArtifactRoot)
	})
}
