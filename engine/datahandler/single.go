package datahandler

import (
	"os"

	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/core"
)

// Single is the `single`-artifact data handler family: one encoded
// file per task, written through a Codec (JSON by default; external
// packages plug in their own Codec for `.pd`/`.npy`/figure formats, per
// spec.md §4.6).
type Single struct {
	fs    afero.Fs
	path  string
	codec Codec
}

func NewSingle(fs afero.Fs, path string, codec Codec) *Single {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Single{fs: fs, path: path, codec: codec}
}

func (s *Single) Exists() (bool, error) {
	ok, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return false, core.PersistenceError("EXISTS_CHECK_FAILED", "could not check artifact existence", err, map[string]any{"path": s.path})
	}
	return ok, nil
}

func (s *Single) Load() (any, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, core.PersistenceError("LOAD_FAILED", "could not open artifact for reading", err, map[string]any{"path": s.path})
	}
	defer f.Close()
	return s.codec.Decode(f)
}

func (s *Single) Save(value any) error {
	if err := s.fs.MkdirAll(parentDir(s.path), 0o755); err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not create artifact directory", err, map[string]any{"path": s.path})
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not open artifact for writing", err, map[string]any{"path": s.path})
	}
	defer f.Close()
	if err := s.codec.Encode(f, value); err != nil {
		return core.PersistenceError("ENCODE_FAILED", "could not encode artifact", err, map[string]any{"path": s.path})
	}
	return nil
}

func (s *Single) Path() string { return s.path }
