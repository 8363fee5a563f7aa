package multichain_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowerchecker/taskchain/engine/config"
	"github.com/flowerchecker/taskchain/engine/multichain"
	"github.com/flowerchecker/taskchain/engine/registry"
	"github.com/flowerchecker/taskchain/engine/task"
)

// sharedSourceTask is deliberately identical to chain_test.go's
// sourceTask but lives in this package to keep the multichain test
// self-contained: two chains selecting it with the same parameter
// value must end up with the same fingerprint and thus share one
// instance.
type sharedSourceTask struct{ task.Base }

func (sharedSourceTask) Params() []task.ParamSpec {
	return []task.ParamSpec{{Name: "n_rows", Default: 3, HasDefault: true}}
}

func (sharedSourceTask) Run(_ context.Context, rc *task.RunContext) (any, error) {
	return rc.Params.Get("n_rows"), nil
}

func init() {
	registry.Register("mc_demo", "SharedSourceTask", false, func() any { return &sharedSourceTask{} })
}

func buildRoot(t *testing.T, name string) *config.Node {
	t.Helper()
	root, err := config.New(config.NewOptions{
		ArtifactRoot: "/artifacts",
		Source: config.FromMap(map[string]any{
			"name":  name,
			"tasks": []string{"mc_demo.SharedSourceTask"},
		}),
	})
	require.NoError(t, err)
	root.Name = name
	return root
}

func TestMultiChain_RejectsDuplicateRootConfigNames(t *testing.T) {
	t.Run("Should error when two root configs share a name", func(t *testing.T) {
		a := buildRoot(t, "region_a")
		b := buildRoot(t, "region_a")
		_, err := multichain.New([]*config.Node{a, b}, multichain.Options{Fs: afero.NewMemMapFs()})
		assert.Error(t, err)
	})
}

func TestMultiChain_SharesIdenticalFingerprintAcrossMembers(t *testing.T) {
	t.Run("Should merge two identically-fingerprinted tasks into one shared instance", func(t *testing.T) {
		a := buildRoot(t, "region_a")
		b := buildRoot(t, "region_b")
		fs := afero.NewMemMapFs()

		mc, err := multichain.New([]*config.Node{a, b}, multichain.Options{Fs: fs})
		require.NoError(t, err)

		memA, ok := mc.Member("region_a")
		require.True(t, ok)
		memB, ok := mc.Member("region_b")
		require.True(t, ok)

		instA, err := memA.Task("mc_demo:shared_source")
		require.NoError(t, err)
		instB, err := memB.Task("mc_demo:shared_source")
		require.NoError(t, err)

		assert.Same(t, instA, instB)
		assert.Equal(t, 1, mc.SharedTaskCount())

		canonical, ok := mc.SharedInstance(instA.Fingerprint)
		require.True(t, ok)
		assert.Same(t, instA, canonical)
	})
}

func TestMultiChain_TasksTableSurvivesAMergedAwayInstance(t *testing.T) {
	t.Run("Should not panic on the member whose instance was replaced by the shared one", func(t *testing.T) {
		a := buildRoot(t, "region_a")
		b := buildRoot(t, "region_b")
		fs := afero.NewMemMapFs()

		mc, err := multichain.New([]*config.Node{a, b}, multichain.Options{Fs: fs})
		require.NoError(t, err)

		memA, ok := mc.Member("region_a")
		require.True(t, ok)
		memB, ok := mc.Member("region_b")
		require.True(t, ok)

		// One of the two members lost its own meta entry for the
		// shared fingerprint when Chain.Replace merged it away; both
		// TasksTable() calls must return the row set without panicking
		// on the merged-away member's now-nil meta lookup.
		rowsA := memA.TasksTable()
		rowsB := memB.TasksTable()

		assert.NotEmpty(t, rowsA)
		var sawShared bool
		for _, r := range rowsA {
			if r.FullName == "mc_demo:shared_source" {
				sawShared = true
			}
		}
		assert.True(t, sawShared, "region_a should still report the shared task in its table")

		for _, r := range rowsB {
			assert.NotEqual(t, "mc_demo:shared_source", r.FullName)
		}
	})
}

func TestMultiChain_EvaluatingThroughEitherMemberSharesOneComputation(t *testing.T) {
	t.Run("Should compute a shared task's value once and reuse it from the other member", func(t *testing.T) {
		a := buildRoot(t, "region_a")
		b := buildRoot(t, "region_b")
		fs := afero.NewMemMapFs()

		mc, err := multichain.New([]*config.Node{a, b}, multichain.Options{Fs: fs})
		require.NoError(t, err)

		memA, _ := mc.Member("region_a")
		memB, _ := mc.Member("region_b")

		instA, err := memA.Task("mc_demo:shared_source")
		require.NoError(t, err)
		instB, err := memB.Task("mc_demo:shared_source")
		require.NoError(t, err)

		vA, err := instA.Value(context.Background())
		require.NoError(t, err)
		vB, err := instB.Value(context.Background())
		require.NoError(t, err)
		assert.Equal(t, vA, vB)
	})
}
