package chain

import (
	"context"
	"sort"

	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/flowerchecker/taskchain/engine/link"
	"github.com/flowerchecker/taskchain/engine/task"
)

// Tasks returns every TaskInstance keyed by full name, per
// SPEC_FULL.md §6.
func (c *Chain) Tasks() map[string]*task.Instance {
	out := make(map[string]*task.Instance, len(c.tasks))
	for k, v := range c.tasks {
		out[k] = v
	}
	return out
}

// Task looks a single TaskInstance up by any reference grammar
// engine/link understands: bare name, `group:name`,
// `namespace::group:name`, or `~~`-unscoped; a registry class name
// (`group.Class`) is not matched. An unqualified query
// (bare name or `group:name`, no explicit namespace) matches a task
// inside any namespace, per link.Resolver.ResolveLenient — the caller
// has no namespace of its own to disambiguate against, unlike an
// internal dependency reference already scoped by
// link.ScopeToNamespace.
func (c *Chain) Task(ref string) (*task.Instance, error) {
	full, err := c.resolver().ResolveLenient(ref)
	if err != nil {
		return nil, core.ResolutionError("TASK_NOT_FOUND", "no task in this chain matches `"+ref+"`", err, map[string]any{"ref": ref})
	}
	return c.tasks[full], nil
}

func (c *Chain) resolver() *link.Resolver {
	fullNames := make([]string, 0, len(c.tasks))
	for full := range c.tasks {
		fullNames = append(fullNames, full)
	}
	return link.NewResolver(fullNames)
}

// TasksTable returns a tabular summary of every TaskInstance, sorted by
// full name — the Go generalization of the Python original's
// `tasks_df`, per SPEC_FULL.md §6.
func (c *Chain) TasksTable() []TaskRow {
	rows := make([]TaskRow, 0, len(c.tasks))
	for full, inst := range c.tasks {
		// meta is nil for an instance replaced by MultiChain's
		// fingerprint merge (engine/chain/merge.go's Replace deletes
		// this chain's own meta entry once the instance is shared with
		// another member chain); skip it here the same way
		// readable.go's createReadableFilenames does — its data is
		// reported by the member chain the shared instance actually
		// belongs to.
		meta := c.meta[full]
		if meta == nil {
			continue
		}
		exists := false
		if ok, err := meta.handler.Exists(); err == nil {
			exists = ok
		}
		rows = append(rows, TaskRow{
			FullName:    full,
			Group:       inst.Entry.Group,
			Namespace:   inst.Node.Namespace,
			Fingerprint: inst.Fingerprint,
			DataKind:    meta.dataKind,
			HasData:     exists,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FullName < rows[j].FullName })
	return rows
}

// Force marks every named task (any engine/link reference grammar) for
// forced recomputation, optionally cascading to every transitive
// dependent when opts.Recompute is set — so a forced upstream task's
// consumers are not left holding stale cached values, per spec.md §8's
// forced-recomputation propagation property.
func (c *Chain) Force(refs []string, opts task.ForceOptions) error {
	targets := map[string]bool{}
	for _, ref := range refs {
		inst, err := c.Task(ref)
		if err != nil {
			return err
		}
		targets[inst.FullName] = true
	}

	if opts.Recompute {
		for full := range targets {
			c.collectDependents(full, targets)
		}
	}

	for full := range targets {
		c.tasks[full].Force(opts)
		c.valueCache.Del(full)
	}
	return nil
}

func (c *Chain) collectDependents(full string, into map[string]bool) {
	for _, dep := range c.dependents[full] {
		if into[dep] {
			continue
		}
		into[dep] = true
		c.collectDependents(dep, into)
	}
}

// CreateReadableFilenames creates a human-readable symlink next to
// every task's persisted artifact, named (in priority order) from an
// explicit name, the owning config's `human_readable_data_name`, or
// the owning config's own name, per spec.md §6 and
// `Chain.create_readable_filenames`/`_create_softlink_to_task_data` in
// original_source/chain.py.
func (c *Chain) CreateReadableFilenames(ctx context.Context, opts ReadableOptions) error {
	return createReadableFilenames(ctx, c, opts)
}
