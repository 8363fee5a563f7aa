package task

import (
	"sort"
	"sync"

	"github.com/flowerchecker/taskchain/engine/core"
)

// ParameterObject is implemented by any value that may appear in a
// config as `{class: ..., args: [...], kwargs: {...}}`: a parameter
// whose identity for fingerprinting purposes is its own Repr(), not a
// generic value dump. Grounded on ParameterObject/AutoParameterObject
// in original_source/src/taskchain/parameter.py.
type ParameterObject interface {
	Repr() string
}

// ParameterObjectFactory builds one ParameterObject from the `args`/
// `kwargs` of its config entry.
type ParameterObjectFactory func(args []any, kwargs map[string]any) (ParameterObject, error)

var (
	paramObjectMu    sync.RWMutex
	paramObjectClass = map[string]ParameterObjectFactory{}
)

// RegisterParameterObject makes class constructible from a config's
// `{class: <name>, args:, kwargs:}` parameter form. This is the Go
// replacement for importing the class by dotted path at bind time.
func RegisterParameterObject(class string, factory ParameterObjectFactory) {
	paramObjectMu.Lock()
	defer paramObjectMu.Unlock()
	paramObjectClass[class] = factory
}

// BuildParameterObject instantiates a registered ParameterObject class
// from a decoded `{class:, args:, kwargs:}` config entry.
func BuildParameterObject(raw map[string]any) (ParameterObject, error) {
	className, _ := raw["class"].(string)
	if className == "" {
		return nil, core.ParameterError("INVALID_PARAMETER_OBJECT", "parameter object is missing `class`", nil, nil)
	}
	paramObjectMu.RLock()
	factory, ok := paramObjectClass[className]
	paramObjectMu.RUnlock()
	if !ok {
		return nil, core.ParameterError("PARAMETER_OBJECT_NOT_FOUND", "parameter object class `"+className+"` is not registered", nil, map[string]any{
			"class": className,
		})
	}
	args, _ := raw["args"].([]any)
	kwargs, _ := raw["kwargs"].(map[string]any)
	return factory(args, kwargs)
}

// isParameterObjectShape reports whether raw looks like a
// `{class:, args:, kwargs:}` parameter object entry rather than a plain
// mapping value.
func isParameterObjectShape(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, ok = m["class"].(string)
	return m, ok
}

// autoRepr builds a stable "Class(k=v, ...)" representation for
// ParameterObject implementations that do not need a hand-written
// Repr(), following AutoParameterObject's contract: callers pass every
// constructor argument that participates in the object's identity.
func autoRepr(className string, fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := className + "("
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k + "=" + string(core.StableJSONBytes(fields[k]))
	}
	return out + ")"
}
