package chain_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerchecker/taskchain/engine/chain"
	"github.com/flowerchecker/taskchain/engine/config"
)

func TestCreateReadableFilenames_SkipsTasksWithoutComputedData(t *testing.T) {
	t.Run("Should create no symlink for a task that has never been evaluated", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		ch := buildTestChain(t, fs)

		err := ch.CreateReadableFilenames(context.Background(), chain.ReadableOptions{})
		require.NoError(t, err)
	})
}

func TestCreateReadableFilenames_UsesHumanReadableConfigName(t *testing.T) {
	t.Run("Should name the symlink after human_readable_data_name when set on the owning config", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		root, err := config.New(config.NewOptions{
			ArtifactRoot: "/artifacts",
			Source: config.FromMap(map[string]any{
				"human_readable_data_name": "latest_source_rows",
				"tasks":                    []string{"chain_demo.SourceTask"},
			}),
		})
		require.NoError(t, err)

		ch, err := chain.New(root, chain.Options{Fs: fs})
		require.NoError(t, err)

		source, err := ch.Task("chain_demo:source")
		require.NoError(t, err)
		_, err = source.Value(context.Background())
		require.NoError(t, err)

		err = ch.CreateReadableFilenames(context.Background(), chain.ReadableOptions{})
		assert.NoError(t, err)
	})
}
