package datahandler

import (
	"bufio"
	"bytes"
	"os"

	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/core"
)

// streamedFinishedSuffix names the sentinel file that marks a streamed
// artifact complete, mirroring Continuable's `.done` directory sentinel
// but suffixed onto the stream's own file path since a streamed
// artifact is a single file, not a directory.
const streamedFinishedSuffix = ".done"

// Streamed is the `streamed` data handler family: a JSON-Lines
// artifact appended to record-at-a-time and read back lazily, for
// datasets too large to hold fully in memory, per spec.md §4.6.
type Streamed struct {
	fs    afero.Fs
	path  string
	codec Codec
}

func NewStreamed(fs afero.Fs, path string, codec Codec) *Streamed {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Streamed{fs: fs, path: path, codec: codec}
}

// Exists for a streamed artifact means "finished", not merely "file
// present" — a stream still being appended to (or abandoned mid-write
// by a crashed process) must not be mistaken for a reusable artifact,
// the same rule Continuable applies to its checkpoint directory.
func (s *Streamed) Exists() (bool, error) {
	return s.IsFinished()
}

// IsFinished reports whether the stream's `.done` sentinel is present.
func (s *Streamed) IsFinished() (bool, error) {
	ok, err := afero.Exists(s.fs, s.path+streamedFinishedSuffix)
	if err != nil {
		return false, core.PersistenceError("EXISTS_CHECK_FAILED", "could not check streamed artifact completion", err, map[string]any{"path": s.path})
	}
	return ok, nil
}

// MarkFinished writes the `.done` sentinel once every record has been
// appended (or Save has written the stream in one shot).
func (s *Streamed) MarkFinished() error {
	if err := s.fs.MkdirAll(parentDir(s.path), 0o755); err != nil {
		return core.PersistenceError("MARK_FINISHED_FAILED", "could not create artifact directory", err, map[string]any{"path": s.path})
	}
	f, err := s.fs.OpenFile(s.path+streamedFinishedSuffix, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return core.PersistenceError("MARK_FINISHED_FAILED", "could not write `.done` sentinel", err, map[string]any{"path": s.path})
	}
	return f.Close()
}

// Load reads every record into memory as a []any; callers that need
// lazy access should use Iterate instead.
func (s *Streamed) Load() (any, error) {
	var out []any
	err := s.Iterate(func(record any) (bool, error) {
		out = append(out, record)
		return true, nil
	})
	return out, err
}

// Save replaces the stream with the records in value, which must be a
// slice, and marks it finished since a Save writes the whole artifact
// in one shot; tasks that stream incrementally should prefer Append
// followed by an explicit MarkFinished once the last record is
// written.
func (s *Streamed) Save(value any) error {
	records, ok := value.([]any)
	if !ok {
		return core.PersistenceError("INVALID_STREAMED_VALUE", "streamed handler expects a []any of records", nil, nil)
	}
	if err := s.fs.MkdirAll(parentDir(s.path), 0o755); err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not create artifact directory", err, map[string]any{"path": s.path})
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not open streamed artifact for writing", err, map[string]any{"path": s.path})
	}
	for _, record := range records {
		if err := s.writeRecord(f, record); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not close streamed artifact", err, map[string]any{"path": s.path})
	}
	return s.MarkFinished()
}

// Append writes one record to the end of the stream, creating it if
// absent.
func (s *Streamed) Append(record any) error {
	if err := s.fs.MkdirAll(parentDir(s.path), 0o755); err != nil {
		return core.PersistenceError("APPEND_FAILED", "could not create artifact directory", err, map[string]any{"path": s.path})
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return core.PersistenceError("APPEND_FAILED", "could not open streamed artifact for appending", err, map[string]any{"path": s.path})
	}
	defer f.Close()
	return s.writeRecord(f, record)
}

func (s *Streamed) writeRecord(f afero.File, record any) error {
	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, record); err != nil {
		return core.PersistenceError("ENCODE_FAILED", "could not encode streamed record", err, nil)
	}
	line := bytes.TrimRight(buf.Bytes(), "\n")
	if _, err := f.Write(append(line, '\n')); err != nil {
		return core.PersistenceError("APPEND_FAILED", "could not write streamed record", err, map[string]any{"path": s.path})
	}
	return nil
}

// Iterate lazily decodes each line of the stream, calling fn for each
// record until fn returns false or an error, or the stream ends.
func (s *Streamed) Iterate(fn func(record any) (bool, error)) error {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return core.PersistenceError("LOAD_FAILED", "could not open streamed artifact for reading", err, map[string]any{"path": s.path})
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		record, err := s.codec.Decode(bytes.NewReader(line))
		if err != nil {
			return err
		}
		cont, err := fn(record)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return core.PersistenceError("LOAD_FAILED", "could not read streamed artifact", err, map[string]any{"path": s.path})
	}
	return nil
}

func (s *Streamed) Path() string { return s.path }
