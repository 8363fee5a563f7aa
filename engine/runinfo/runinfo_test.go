package runinfo_test

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/flowerchecker/taskchain/engine/runinfo"
)

func TestBuilder_FinishComputesElapsed(t *testing.T) {
	t.Run("Should compute elapsed seconds between start and finish", func(t *testing.T) {
		start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		b := runinfo.NewBuilder(start, "ingest.FetchRows", "ingest:fetch_rows", "pipeline", "")
		b.AppendNote("checkpoint at row 1000")
		record := b.Finish(start.Add(90 * time.Second))
		assert.Equal(t, 90.0, record.ElapsedSeconds)
		assert.Equal(t, []string{"checkpoint at row 1000"}, record.Notes)
	})
}

func TestWrite_EncodesValidYAML(t *testing.T) {
	t.Run("Should write a sidecar readable back as the same record", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		b := runinfo.NewBuilder(start, "ingest.FetchRows", "ingest:fetch_rows", "pipeline", "region_a")
		record := b.Finish(start.Add(time.Second))

		require.NoError(t, runinfo.Write(fs, "/artifacts/task.run.yaml", record))

		data, err := afero.ReadFile(fs, "/artifacts/task.run.yaml")
		require.NoError(t, err)

		var decoded runinfo.Record
		require.NoError(t, yaml.Unmarshal(data, &decoded))
		assert.Equal(t, "ingest:fetch_rows", decoded.FullName)
		assert.Equal(t, "region_a", decoded.Namespace)
	})
}
