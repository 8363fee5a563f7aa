package datahandler

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/core"
)

// doneSentinel is the file whose presence marks a continuable
// checkpoint directory as a finished artifact, per spec.md §4.6.
const doneSentinel = ".done"

// Continuable is the `continuable` data handler family: a checkpoint
// directory a task may write partial progress into across multiple
// runs, finished by writing the `.done` sentinel, per spec.md §4.6.
type Continuable struct {
	*Directory
}

func NewContinuable(fs afero.Fs, path string) *Continuable {
	return &Continuable{Directory: NewDirectory(fs, path)}
}

// CheckpointDir is the directory a task writes partial progress into:
// the artifact's final path itself. Save, inherited from Directory,
// still copies a DirData tree into that path.
func (c *Continuable) CheckpointDir() string { return c.Dir() }

func (c *Continuable) IsComplete() (bool, error) {
	ok, err := afero.Exists(c.fs, filepath.Join(c.path, doneSentinel))
	if err != nil {
		return false, core.PersistenceError("CHECKPOINT_CHECK_FAILED", "could not check checkpoint completion", err, map[string]any{"path": c.path})
	}
	return ok, nil
}

func (c *Continuable) MarkComplete() error {
	if err := c.fs.MkdirAll(c.path, 0o755); err != nil {
		return core.PersistenceError("MARK_COMPLETE_FAILED", "could not create checkpoint directory", err, map[string]any{"path": c.path})
	}
	f, err := c.fs.OpenFile(filepath.Join(c.path, doneSentinel), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return core.PersistenceError("MARK_COMPLETE_FAILED", "could not write `.done` sentinel", err, map[string]any{"path": c.path})
	}
	return f.Close()
}

// Exists for a continuable artifact means "complete", not merely
// "directory present" — a partially checkpointed directory must not be
// mistaken for a reusable artifact.
func (c *Continuable) Exists() (bool, error) {
	return c.IsComplete()
}
