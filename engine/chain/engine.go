package chain

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/flowerchecker/taskchain/engine/runinfo"
	"github.com/flowerchecker/taskchain/engine/task"
	"github.com/flowerchecker/taskchain/pkg/fslock"
)

// Engine implements task.Evaluator: the `value(task)` algorithm of
// spec.md §4.7 — in-memory cache check, cross-process lock, recursive
// input evaluation, run dispatch, and persistence.
type Engine struct {
	chain *Chain
}

// Evaluate runs the full value(task) algorithm for inst.
func (e *Engine) Evaluate(ctx context.Context, inst *task.Instance) (any, error) {
	if !inst.IsForced() {
		if v, ok := e.chain.valueCache.Get(inst.FullName); ok {
			return v, nil
		}
	}

	meta := e.chain.meta[inst.FullName]

	var result any
	lockOpts := fslock.Options{Timeout: e.chain.lockTimeout, Logger: e.chain.logger, HolderID: e.chain.id}
	err := fslock.WithLock(ctx, meta.lockPath, lockOpts, func() error {
		v, err := e.evaluateLocked(ctx, inst, meta)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.chain.valueCache.Set(inst.FullName, result, 1)
	// Set applies through Ristretto's internal ring buffer and is not
	// guaranteed visible to a subsequent Get until the buffer drains;
	// Wait blocks until it has, so the very next value(task) call sees
	// this result rather than racing a cache miss and recomputing a
	// distinct object, per spec.md's "two consecutive calls to
	// value(T) return the same object" guarantee.
	e.chain.valueCache.Wait()
	return result, nil
}

func (e *Engine) evaluateLocked(ctx context.Context, inst *task.Instance, meta *taskMeta) (any, error) {
	if inst.ShouldDeleteData() {
		if err := deleteArtifact(e.chain.fs, meta.handler.Path()); err != nil {
			return nil, err
		}
	}

	forced := inst.IsForced()
	if !forced {
		exists, err := meta.handler.Exists()
		if err != nil {
			return nil, err
		}
		if exists {
			return loadWithRetry(ctx, meta.handler)
		}
	}

	inputValues, err := e.resolveInputValues(ctx, inst)
	if err != nil {
		return nil, err
	}

	runner, ok := inst.Descriptor.(task.Runner)
	if !ok {
		return nil, core.New(core.StageRun, "TASK_NOT_RUNNABLE", "task class `"+inst.Entry.FullName+"` does not implement task.Runner", nil, map[string]any{"class": inst.Entry.FullName})
	}

	taskLog, err := runinfo.OpenTaskLog(e.chain.fs, meta.runInfoPath+".log")
	if err != nil {
		e.chain.logger.Warn("could not open per-task log file", "task", inst.FullName, "error", err)
	}
	defer taskLog.Close()

	started := e.now()
	var taskLogger *log.Logger
	if taskLog != nil {
		taskLogger = taskLog.Logger
	}
	value, runErr := runner.Run(ctx, &task.RunContext{Params: inst.Params, Inputs: inputValues, Logger: taskLogger})
	if runErr != nil {
		return nil, core.RunError(runErr, map[string]any{"task": inst.FullName})
	}
	finished := e.now()

	if err := saveWithRetry(ctx, meta.handler, value); err != nil {
		return nil, err
	}

	e.writeRunInfo(inst, meta, started, finished)
	inst.ClearForce()
	return value, nil
}

// resolveInputValues recursively evaluates every declared input of
// inst before inst itself can run, following the DAG, per spec.md
// §4.7's "recursive topological evaluation of inputs".
func (e *Engine) resolveInputValues(ctx context.Context, inst *task.Instance) (map[string]any, error) {
	out := make(map[string]any, len(inst.Inputs))
	for name, v := range inst.Inputs {
		switch t := v.(type) {
		case *task.Instance:
			val, err := t.Value(ctx)
			if err != nil {
				return nil, err
			}
			out[name] = val
		case []*task.Instance:
			values := make([]any, 0, len(t))
			for _, sub := range t {
				val, err := sub.Value(ctx)
				if err != nil {
					return nil, err
				}
				values = append(values, val)
			}
			out[name] = values
		default:
			out[name] = v
		}
	}
	return out, nil
}

const maxPersistenceAttempts = 3

func loadWithRetry(ctx context.Context, h interface{ Load() (any, error) }) (any, error) {
	base := retry.NewExponential(50 * time.Millisecond)
	backoff := retry.WithMaxRetries(maxPersistenceAttempts, base)
	var value any
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := h.Load()
		if err != nil {
			return retry.RetryableError(err)
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, core.PersistenceError("LOAD_FAILED", "could not load persisted artifact after retrying", err, nil)
	}
	return value, nil
}

func saveWithRetry(ctx context.Context, h interface{ Save(any) error }, value any) error {
	base := retry.NewExponential(50 * time.Millisecond)
	backoff := retry.WithMaxRetries(maxPersistenceAttempts, base)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := h.Save(value); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return core.PersistenceError("SAVE_FAILED", "could not persist artifact after retrying", err, nil)
	}
	return nil
}

func deleteArtifact(fs afero.Fs, path string) error {
	if path == "" {
		return nil
	}
	if err := fs.RemoveAll(path); err != nil {
		return core.PersistenceError("DELETE_FAILED", "could not delete existing artifact", err, map[string]any{"path": path})
	}
	return nil
}

func (e *Engine) writeRunInfo(inst *task.Instance, meta *taskMeta, started, finished time.Time) {
	b := runinfo.NewBuilder(started, inst.Entry.FullName, inst.FullName, inst.Node.Name, inst.Node.Namespace)
	params := map[string]string{}
	for _, bp := range paramEntries(inst.Params) {
		params[bp.name] = bp.repr
	}
	b.SetParameters(params)

	fps := map[string]string{}
	for name, v := range inst.Inputs {
		if t, ok := v.(*task.Instance); ok {
			fps[name] = t.Fingerprint
		}
	}
	b.SetInputFingerprints(fps)

	record := b.Finish(finished)
	if err := runinfo.Write(e.chain.fs, meta.runInfoPath, record); err != nil {
		e.chain.logger.Warn("could not write run-info sidecar", "task", inst.FullName, "error", err)
	}
}

// now is a seam for deterministic testing; production code only ever
// calls time.Now.
func (e *Engine) now() time.Time { return time.Now() }

type namedRepr struct {
	name string
	repr string
}

func paramEntries(set *task.ParameterSet) []namedRepr {
	if set == nil {
		return nil
	}
	var out []namedRepr
	for _, name := range set.Names() {
		out = append(out, namedRepr{name: name, repr: set.ReprOf(name)})
	}
	return out
}
