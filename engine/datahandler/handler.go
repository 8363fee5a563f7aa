// Package datahandler implements the polymorphic persistence
// strategies of spec.md §4.6: an in-memory handler, a single-artifact
// handler, a directory handler, a continuable (checkpoint-resumable)
// handler, and a streamed (JSON-Lines) handler, each selected by a
// TaskClass's declared data type.
package datahandler

import (
	"github.com/spf13/afero"
)

// Handler is the minimum persistence contract every data handler
// family implements: check whether an artifact already exists at this
// task's fingerprinted path, load it, or save a freshly computed value.
type Handler interface {
	// Exists reports whether a persisted artifact is already present.
	Exists() (bool, error)
	// Load reads the persisted artifact back into memory.
	Load() (any, error)
	// Save writes value as this task's artifact.
	Save(value any) error
	// Path is the artifact's location, used to delete a forced
	// artifact and by CreateReadableFilenames. Run-info and the lock
	// use their own paths.
	Path() string
}

// ContinuableHandler extends Handler with checkpoint/resume semantics
// for tasks that persist partial progress before completing, per
// spec.md §4.6's `continuable` family.
type ContinuableHandler interface {
	Handler
	// IsComplete reports whether the `.done` sentinel is present.
	IsComplete() (bool, error)
	// MarkComplete writes the `.done` sentinel once a checkpoint
	// directory represents a finished artifact.
	MarkComplete() error
	// CheckpointDir is the directory a task may write partial
	// progress into before calling MarkComplete.
	CheckpointDir() string
}

// StreamedHandler extends Handler with lazy, line-at-a-time iteration
// for artifacts too large to hold in memory at once, per spec.md
// §4.6's `streamed` family.
type StreamedHandler interface {
	Handler
	// Append writes one record to the stream, encoding it with Codec.
	Append(record any) error
	// Iterate lazily decodes each record in file order, calling fn for
	// each until fn returns false or the stream is exhausted.
	Iterate(fn func(record any) (bool, error)) error
	// IsFinished reports whether the stream's completion sentinel is
	// present, per spec.md §4.6's `is_finished(path)`.
	IsFinished() (bool, error)
	// MarkFinished writes the completion sentinel, per spec.md §4.6's
	// `mark_finished(path)`.
	MarkFinished() error
}

// New builds the handler family named by kind, rooted at path on fs.
// kind is one of "memory", "single", "directory", "continuable",
// "streamed" — the TaskClass-declared data type of spec.md §3's
// TaskClass attribute table.
func New(kind string, fs afero.Fs, path string, codec Codec) (Handler, error) {
	switch kind {
	case "memory":
		return NewMemory(), nil
	case "single":
		return NewSingle(fs, path, codec), nil
	case "directory":
		return NewDirectory(fs, path), nil
	case "continuable":
		return NewContinuable(fs, path), nil
	case "streamed":
		return NewStreamed(fs, path, codec), nil
	default:
		return nil, errUnknownKind(kind)
	}
}
