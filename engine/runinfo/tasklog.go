package runinfo

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/core"
)

// TaskLog is a per-task scoped logger: every message a task writes
// during one evaluation critical section is written to a sibling `.log`
// file next to its persisted artifact, then the file is closed when
// the section ends, per SPEC_FULL.md §9a.
type TaskLog struct {
	*log.Logger
	file afero.File
}

// OpenTaskLog opens (creating if absent, appending if present) the log
// file at path and returns a logger writing to it.
func OpenTaskLog(fs afero.Fs, path string) (*TaskLog, error) {
	f, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, core.PersistenceError("TASK_LOG_OPEN_FAILED", "could not open per-task log file", err, map[string]any{"path": path})
	}
	logger := log.NewWithOptions(f, log.Options{ReportTimestamp: true})
	return &TaskLog{Logger: logger, file: f}, nil
}

// Close flushes and closes the underlying log file. Safe to call on a
// nil *TaskLog.
func (t *TaskLog) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	return t.file.Close()
}
