package chain

import (
	"context"
	"path/filepath"

	"github.com/gosimple/slug"
	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/config"
	"github.com/flowerchecker/taskchain/engine/core"
)

// ReadableOptions controls CreateReadableFilenames.
type ReadableOptions struct {
	// Names overrides the human-readable name for specific tasks,
	// keyed by full name. Highest-priority source, per
	// original_source/chain.py's explicit-name parameter to
	// `create_readable_filenames`.
	Names map[string]string
	// KeepExisting leaves an already-present symlink untouched instead
	// of replacing it, mirroring `keep_existing` in the same function.
	KeepExisting bool
}

// createReadableFilenames implements
// `_create_softlink_to_task_data`/`create_readable_filenames`: for
// every task instance with a persisted artifact, it creates a symlink
// named after (in priority order) an explicit override, the owning
// config's `human_readable_data_name`, or the config's own name,
// placed alongside the artifact itself.
func createReadableFilenames(ctx context.Context, c *Chain, opts ReadableOptions) error {
	for full, inst := range c.tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		meta := c.meta[full]
		if meta == nil {
			continue
		}
		exists, err := meta.handler.Exists()
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		name := readableNameFor(inst.Node, opts.Names[full])
		if name == "" {
			continue
		}

		artifactPath := meta.handler.Path()
		if artifactPath == "" {
			continue
		}
		linkPath := filepath.Join(filepath.Dir(artifactPath), slug.Make(name)+filepath.Ext(artifactPath))

		if err := createSoftlink(c.fs, linkPath, artifactPath, opts.KeepExisting); err != nil {
			return err
		}
	}
	return nil
}

func readableNameFor(node *config.Node, override string) string {
	if override != "" {
		return override
	}
	if name, ok := node.HumanReadableDataName(); ok && name != "" {
		return name
	}
	return node.Name
}

func createSoftlink(fs afero.Fs, linkPath, target string, keepExisting bool) error {
	linker, ok := fs.(afero.Linker)
	if !ok {
		// Symlinks aren't representable on this filesystem (e.g. an
		// in-memory afero.Fs used in tests) — nothing to do.
		return nil
	}
	exists, err := afero.Exists(fs, linkPath)
	if err != nil {
		return core.PersistenceError("READABLE_LINK_STAT_FAILED", err.Error(), err, map[string]any{"path": linkPath})
	}
	if exists {
		if keepExisting {
			return nil
		}
		if err := fs.Remove(linkPath); err != nil {
			return core.PersistenceError("READABLE_LINK_REMOVE_FAILED", err.Error(), err, map[string]any{"path": linkPath})
		}
	}
	if err := linker.SymlinkIfPossible(target, linkPath); err != nil {
		return core.PersistenceError("READABLE_LINK_CREATE_FAILED", err.Error(), err, map[string]any{"path": linkPath, "target": target})
	}
	return nil
}
