package core

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Path is the declared-type target for parameters coerced from a plain
// string into a filesystem path, per spec.md §4.3 ("for filesystem-path
// types: string -> typed path").
type Path string

func (p Path) String() string { return string(p) }

// CWD anchors relative path resolution for one ConfigNode, mirroring the
// Python original's `Config.base_dir` / `PathCWD` convention used by the
// teacher's engine/core/cwd.go.
type CWD struct {
	dir string
}

func NewCWD(dir string) (*CWD, error) {
	if dir == "" {
		return nil, errors.New("cwd cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve cwd")
	}
	return &CWD{dir: abs}, nil
}

func (c *CWD) String() string { return c.dir }

// Join resolves a relative path against the CWD, rejecting attempts to
// escape it via `..` traversal.
func (c *CWD) Join(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return rel, nil
	}
	joined := filepath.Join(c.dir, rel)
	relCheck, err := filepath.Rel(c.dir, joined)
	if err != nil || relCheck == ".." || strings.HasPrefix(relCheck, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("path %q escapes cwd %q", rel, c.dir)
	}
	return joined, nil
}
