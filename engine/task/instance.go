package task

import (
	"context"
	"sync"

	"github.com/flowerchecker/taskchain/engine/config"
	"github.com/flowerchecker/taskchain/engine/registry"
)

// Evaluator is implemented by the chain's execution engine, injected
// into every Instance so Instance.Value can trigger the full
// `value(task)` algorithm (cache check, lock, recursive input
// evaluation, persistence) without this package importing the chain
// package that orchestrates it.
type Evaluator interface {
	Evaluate(ctx context.Context, inst *Instance) (any, error)
}

// Instance is one TaskInstance: a TaskClass paired with the ConfigNode
// that selected it, plus everything resolved for it — bound
// parameters, linked inputs, and (once computed) its fingerprint and
// value. Grounded on Task.__init__ in
// original_source/src/taskchain/task.py.
type Instance struct {
	Entry    registry.Entry
	Node     *config.Node
	FullName string

	Descriptor any // implements Descriptor, usually also Runner and optionally DataKinder

	Params *ParameterSet

	// Inputs holds each declared InputSpec's resolved instance(s): a
	// bare entry for a single-target reference, a []*Instance for a
	// regex reference that matched several.
	Inputs map[string]any

	Fingerprint string

	engine Evaluator

	mu       sync.Mutex
	forced   bool
	deleteOn bool
}

// SetEvaluator wires the Instance to the engine that will actually run
// it; called once during chain construction.
func (i *Instance) SetEvaluator(e Evaluator) { i.engine = e }

// Value triggers the `value(task)` algorithm: an in-memory cache
// check, a cross-process lock, recursive evaluation of this
// instance's inputs, running the task if no valid artifact exists, and
// persisting the result. Per spec.md §4.7.
func (i *Instance) Value(ctx context.Context) (any, error) {
	return i.engine.Evaluate(ctx, i)
}

// ForceOptions controls Force's behavior.
type ForceOptions struct {
	// Recompute, when true, also forces every transitive dependent of
	// the forced instance(s) — propagating the recomputation forward
	// through the DAG rather than leaving stale consumers in place.
	Recompute bool
	// DeleteData also removes the instance's persisted artifact; the
	// removal happens at the start of its next evaluation, under the
	// task's lock, before it is recomputed.
	DeleteData bool
}

// Force marks the instance to recompute on its next Value call even
// if a matching artifact already exists, per spec.md §4.7/§6 `.force`.
func (i *Instance) Force(opts ForceOptions) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forced = true
	i.deleteOn = opts.DeleteData
}

// IsForced reports whether Force has been called and not yet consumed
// by an Evaluate pass.
func (i *Instance) IsForced() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.forced
}

// ShouldDeleteData reports whether the pending force also requested
// deleting the existing artifact outright.
func (i *Instance) ShouldDeleteData() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.deleteOn
}

// ClearForce resets the forced flag once the engine has honored it.
func (i *Instance) ClearForce() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.forced = false
	i.deleteOn = false
}
