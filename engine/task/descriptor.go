// Package task implements the declarative task surface that replaces
// the Python original's reflected `run(*args)` signature: every task
// class declares its Params() and Inputs() up front, and the binder
// resolves both against a ConfigNode tree, per spec.md §3/§9's Go
// realization of TaskClass.
package task

import (
	"context"
	"reflect"

	"github.com/charmbracelet/log"
)

// ParamSpec is one declared, non-input parameter of a task class,
// grounded on Parameter in original_source/src/taskchain/parameter.py.
type ParamSpec struct {
	// Name is how the task refers to the bound value.
	Name string
	// NameInConfig is the key searched for in the owning config's
	// ancestor chain; defaults to Name when empty.
	NameInConfig string
	// Default is used when the key is absent from config. HasDefault
	// distinguishes "no default" (required) from "default is nil".
	Default    any
	HasDefault bool
	// Type, when set, is the Go type the raw config value is coerced
	// into via mapstructure (weakly-typed: string "3" -> int 3, etc).
	Type reflect.Type
	// ValidateTag, when non-empty, is a go-playground/validator/v10
	// single-value expression checked after coercion (e.g. "min=1").
	ValidateTag string
	// IgnorePersistence excludes this parameter from the fingerprint
	// entirely — for parameters with no influence on produced data.
	IgnorePersistence bool
	// DontPersistDefaultValue excludes this parameter from the
	// fingerprint when its bound value equals Default, so adding a new
	// parameter with a default does not invalidate existing artifacts.
	DontPersistDefaultValue bool
}

func (p ParamSpec) configKey() string {
	if p.NameInConfig != "" {
		return p.NameInConfig
	}
	return p.Name
}

// InputSpec is one declared input-task reference of a task class,
// grounded on InputTaskParameter in the same module. Identifier follows
// the reference grammar resolved by engine/link: bare name,
// `group:name`, `namespace::group:name`, a `~~`-prefixed unscoped name,
// or an `re:`-prefixed regex. A registry class name (`group.Class`) is
// not a recognised reference form.
type InputSpec struct {
	Name       string
	Identifier string
	Default    any
	HasDefault bool
}

// Descriptor is implemented by every task class (typically via an
// embedded base struct) to declare its static parameter and input
// shape without reflecting over a run-method signature.
type Descriptor interface {
	Params() []ParamSpec
	Inputs() []InputSpec
}

// Base embeds into a concrete task struct to provide a zero-value
// Descriptor; concrete tasks override Params()/Inputs() as needed.
type Base struct{}

func (Base) Params() []ParamSpec { return nil }
func (Base) Inputs() []InputSpec { return nil }

// RunContext is what a task's Run method receives: its already-bound
// Params and its already-evaluated Inputs, keyed by the Name each
// InputSpec declared. A name resolved via a regex reference (spec.md
// §4.4) is present as a []any of every matching input's value, sorted
// by the inputs' full names; every other name is present as the bare
// value.
type RunContext struct {
	Params *ParameterSet
	Inputs map[string]any
	// Logger is scoped to this one evaluation, writing to the task's
	// sibling .log file (memory-only tasks included); nil when that log
	// file could not be opened.
	Logger *log.Logger
}

// Runner is implemented by every concrete task class to produce its
// output value — the Go replacement for the Python original's
// reflected `run(*args)` dispatch, driven instead by the declarative
// Params()/Inputs() descriptors.
type Runner interface {
	Run(ctx context.Context, rc *RunContext) (any, error)
}

// DataKinder lets a task class declare which datahandler family
// persists its output ("memory", "single", "directory", "continuable",
// "streamed"); a task that does not implement it defaults to "single".
type DataKinder interface {
	DataKind() string
}

// DataKindOf returns v's declared data kind, or "single" when v does
// not implement DataKinder.
func DataKindOf(v any) string {
	if dk, ok := v.(DataKinder); ok {
		return dk.DataKind()
	}
	return "single"
}
