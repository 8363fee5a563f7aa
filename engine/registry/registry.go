// Package registry replaces the dotted-import-string task lookup of the
// Python original with compile-time registration: every task class
// calls Register from its own init(), and engine/resolve resolves
// `tasks:`/`excluded_tasks:` selectors against the resulting table
// instead of importing modules by string.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/flowerchecker/taskchain/engine/core"
)

// Factory builds a fresh, zero-valued task instance for one registered
// class. The returned value must implement task.Descriptor (checked by
// the caller, not here, to avoid an import cycle between registry and
// task).
type Factory func() any

// Entry is one registered task class.
type Entry struct {
	// FullName is "<group>.<ClassName>", the identifier used by
	// `tasks:`/`excluded_tasks:` selectors and by get_full_name in the
	// original.
	FullName string
	Group    string
	Class    string
	Abstract bool
	New      Factory
}

// registry is the process-wide table populated by every task package's
// init(). There is exactly one per process, mirroring the single
// dotted-import namespace of the Python original.
type registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var global = &registry{entries: map[string]Entry{}}

// Register adds one task class under group.Class. abstract marks a base
// class meant only to be embedded, never directly selected by `tasks:` —
// the Go equivalent of the Python original's `abstract = True` class
// attribute.
func Register(group, class string, abstract bool, factory Factory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	full := group + "." + class
	if _, exists := global.entries[full]; exists {
		panic("registry: duplicate task class " + full)
	}
	global.entries[full] = Entry{
		FullName: full,
		Group:    group,
		Class:    class,
		Abstract: abstract,
		New:      factory,
	}
}

// Lookup returns the entry registered under fullName.
func Lookup(fullName string) (Entry, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	e, ok := global.entries[fullName]
	return e, ok
}

// All returns every registered entry, sorted by FullName for
// deterministic iteration.
func All() []Entry {
	global.mu.RLock()
	defer global.mu.RUnlock()
	out := make([]Entry, 0, len(global.entries))
	for _, e := range global.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

// Concrete returns every registered, non-abstract entry.
func Concrete() []Entry {
	all := All()
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if !e.Abstract {
			out = append(out, e)
		}
	}
	return out
}

// ByGroup returns every concrete entry whose Group matches.
func ByGroup(group string) []Entry {
	out := []Entry{}
	for _, e := range Concrete() {
		if e.Group == group {
			out = append(out, e)
		}
	}
	return out
}

// reset clears the registry. It is unexported and nothing in this
// module calls it; registry_test is an external test package and
// cannot reach it.
func reset() {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.entries = map[string]Entry{}
}

// SplitFullName splits "<group>.<Class>" back into its parts, erroring
// on a selector with no group separator.
func SplitFullName(fullName string) (group, class string, err error) {
	idx := strings.LastIndex(fullName, ".")
	if idx < 0 {
		return "", "", core.ResolutionError("INVALID_TASK_CLASS", "task class `"+fullName+"` is missing a `group.Class` separator", nil, map[string]any{
			"full_name": fullName,
		})
	}
	return fullName[:idx], fullName[idx+1:], nil
}
