package datahandler

import (
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/core"
)

// DirData is the value a `directory`/`continuable` task produces: the
// root of a directory tree it has already populated at a scratch
// location, to be promoted into the handler's final path.
type DirData struct {
	Root string
}

// Directory is the `directory` data handler family: an artifact that
// is itself a tree of files a task writes directly, rather than one
// encoded value, per spec.md §4.6.
type Directory struct {
	fs   afero.Fs
	path string
}

func NewDirectory(fs afero.Fs, path string) *Directory {
	return &Directory{fs: fs, path: path}
}

// Dir returns the path a task should treat as its artifact root.
func (d *Directory) Dir() string { return d.path }

func (d *Directory) Exists() (bool, error) {
	info, err := d.fs.Stat(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, core.PersistenceError("EXISTS_CHECK_FAILED", "could not stat artifact directory", err, map[string]any{"path": d.path})
	}
	return info.IsDir(), nil
}

func (d *Directory) Load() (any, error) {
	return DirData{Root: d.path}, nil
}

// Save promotes a scratch directory (value must be a DirData or a
// plain string path) into this handler's final path. The scratch
// source always lives on the real OS filesystem — a task populates it
// with ordinary file operations before returning — but d.fs, the
// destination, may be an in-memory afero.Fs under test, so only the
// real-OS production path uses github.com/otiai10/copy directly;
// anything else (afero.NewMemMapFs() in tests) walks the source with
// the standard library and writes each file through d.fs, so Exists
// and Load see exactly what Save wrote regardless of which afero.Fs
// the handler was built with.
func (d *Directory) Save(value any) error {
	src, err := dirDataSource(value)
	if err != nil {
		return err
	}
	if err := d.fs.MkdirAll(parentDir(d.path), 0o755); err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not create parent of artifact directory", err, map[string]any{"path": d.path})
	}
	if _, ok := d.fs.(*afero.OsFs); ok {
		if err := copy.Copy(src, d.path); err != nil {
			return core.PersistenceError("SAVE_FAILED", "could not promote directory artifact", err, map[string]any{"path": d.path, "source": src})
		}
		return nil
	}
	if err := copyIntoFs(d.fs, src, d.path); err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not promote directory artifact", err, map[string]any{"path": d.path, "source": src})
	}
	return nil
}

// copyIntoFs walks src on the real OS filesystem and re-creates it
// under destPath on destFs, used whenever destFs isn't the real OS
// filesystem itself (github.com/otiai10/copy has no such fallback,
// since it only ever operates on os.* calls).
func copyIntoFs(destFs afero.Fs, src, destPath string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destPath, rel)
		if info.IsDir() {
			return destFs.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return afero.WriteFile(destFs, target, data, info.Mode())
	})
}

func (d *Directory) Path() string { return d.path }

func dirDataSource(value any) (string, error) {
	switch v := value.(type) {
	case DirData:
		return v.Root, nil
	case string:
		return v, nil
	default:
		return "", core.PersistenceError("INVALID_DIRECTORY_VALUE", "directory handler expects a DirData or path string", nil, nil)
	}
}
