// Package core holds types shared across every TaskChain component: the
// typed error taxonomy, the canonical hashing primitive used by the
// fingerprint engine, and small path helpers.
package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stage identifies the lifecycle point at which an error surfaced, per the
// error-handling table in the specification.
type Stage string

const (
	StageLoad       Stage = "load"
	StageResolve    Stage = "resolve"
	StageBind       Stage = "bind"
	StageLink       Stage = "link"
	StageFingerprint Stage = "fingerprint"
	StageRun        Stage = "run"
	StagePersist    Stage = "persist"
)

// Error is the common shape of every typed TaskChain error: a stage, a
// stable machine-readable code, a human message, structured details for
// logging, and an optional wrapped cause.
type Error struct {
	Stage   Stage
	Code    string
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Stage, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error, wrapping cause with pkg/errors when present so
// stack traces survive across component boundaries.
func New(stage Stage, code, message string, cause error, details map[string]any) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Stage: stage, Code: code, Message: message, Details: details, Cause: cause}
}

// ConfigError is a load-time error from the Config Loader: unresolved
// placeholder, cyclic uses, missing part, malformed overlay. An unknown
// task class is not detected at load time; engine/resolve reports it as
// a ResolutionError during Chain construction.
func ConfigError(code, message string, cause error, details map[string]any) *Error {
	return New(StageLoad, code, message, cause, details)
}

// ResolutionError surfaces during Chain construction: ambiguous task
// reference, DAG cycle, unknown parameter name.
func ResolutionError(code, message string, cause error, details map[string]any) *Error {
	return New(StageResolve, code, message, cause, details)
}

// ParameterError surfaces during Chain construction: missing required
// parameter, type coercion failure.
func ParameterError(code, message string, cause error, details map[string]any) *Error {
	return New(StageBind, code, message, cause, details)
}

// TypeMismatchError surfaces at the requesting value() call when a
// run-method result does not match the declared return type.
func TypeMismatchError(code, message string, details map[string]any) *Error {
	return New(StageRun, code, message, nil, details)
}

// RunError wraps a panic/error raised inside a task's run-method.
func RunError(cause error, details map[string]any) *Error {
	return New(StageRun, "RUN_FAILED", "task run-method failed", cause, details)
}

// PersistenceError wraps a write/load I/O failure.
func PersistenceError(code, message string, cause error, details map[string]any) *Error {
	return New(StagePersist, code, message, cause, details)
}

// Is allows errors.Is(err, core.ErrCycle) style sentinel comparisons by
// code rather than by message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors usable with errors.Is via the Code-based Is() above.
var (
	ErrCycle           = &Error{Code: "CYCLE"}
	ErrAmbiguous       = &Error{Code: "AMBIGUOUS_TASK_REFERENCE"}
	ErrNotFound        = &Error{Code: "TASK_NOT_FOUND"}
	ErrReservedName    = &Error{Code: "RESERVED_PARAMETER_NAME"}
	ErrMissingRequired = &Error{Code: "MISSING_REQUIRED_PARAMETER"}
)
