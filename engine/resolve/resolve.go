// Package resolve expands a ConfigNode's `tasks`/`excluded_tasks`
// selectors into the set of registered task classes it names, and
// derives each task's slugname and full chain-visible name.
package resolve

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/flowerchecker/taskchain/engine/registry"
)

// camelBoundary matches a lowercase letter or digit followed by an
// uppercase letter; Slugname inserts `_` between the two. A run of
// consecutive capitals is not split (`HTTPTask` becomes `httptask`),
// unlike the Python original's `re.sub(r'(?<!^)(?=[A-Z])', '_', name)`.
var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// Slugname derives a task's bare name from its registry class name:
// CamelCase to snake_case, with a trailing `_task` suffix stripped.
// When group is non-empty the result is prefixed "<group>:<name>", per
// spec.md §4.2's group-assignment rule.
func Slugname(e registry.Entry) string {
	name := camelBoundary.ReplaceAllString(e.Class, "${1}_${2}")
	name = strings.ToLower(name)
	name = strings.TrimSuffix(name, "_task")
	if e.Group != "" {
		return e.Group + ":" + name
	}
	return name
}

// FullName assembles a TaskInstance's full chain-visible name,
// "<namespace>::<group>:<name>", collapsing the separator when the
// namespace is empty, per spec.md §4.2.
func FullName(namespace string, e registry.Entry) string {
	slug := Slugname(e)
	if namespace == "" {
		return slug
	}
	return namespace + "::" + slug
}

// Expand resolves one ConfigNode's `tasks`/`excluded_tasks` selector
// pair against the registry: each entry either names a class exactly
// or, with a trailing `.*`, every concrete class registered under that
// prefix, per spec.md §4.2.
func Expand(tasksSelectors, excludedSelectors []string) ([]registry.Entry, error) {
	included, err := expandSelectors(tasksSelectors)
	if err != nil {
		return nil, err
	}
	excluded, err := expandSelectors(excludedSelectors)
	if err != nil {
		return nil, err
	}
	excludedNames := map[string]bool{}
	for _, e := range excluded {
		excludedNames[e.FullName] = true
	}
	out := make([]registry.Entry, 0, len(included))
	seen := map[string]bool{}
	for _, e := range included {
		if excludedNames[e.FullName] || seen[e.FullName] {
			continue
		}
		seen[e.FullName] = true
		out = append(out, e)
	}
	return out, nil
}

func expandSelectors(selectors []string) ([]registry.Entry, error) {
	var out []registry.Entry
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if strings.HasSuffix(sel, ".*") {
			prefix := strings.TrimSuffix(sel, ".*")
			matched := false
			for _, e := range registry.Concrete() {
				if e.Group == prefix || strings.HasPrefix(e.FullName, prefix+".") {
					out = append(out, e)
					matched = true
				}
			}
			if !matched {
				return nil, core.ResolutionError("NO_TASKS_MATCHED", "wildcard selector `"+sel+"` matched no registered task class", nil, map[string]any{
					"selector": sel,
				})
			}
			continue
		}
		if strings.Contains(sel, "*") {
			matchedAny := false
			for _, e := range registry.Concrete() {
				ok, err := doublestar.Match(sel, e.FullName)
				if err != nil {
					return nil, core.ResolutionError("INVALID_SELECTOR", "malformed wildcard selector `"+sel+"`", err, map[string]any{"selector": sel})
				}
				if ok {
					out = append(out, e)
					matchedAny = true
				}
			}
			if !matchedAny {
				return nil, core.ResolutionError("NO_TASKS_MATCHED", "wildcard selector `"+sel+"` matched no registered task class", nil, map[string]any{
					"selector": sel,
				})
			}
			continue
		}
		entry, ok := registry.Lookup(sel)
		if !ok {
			return nil, core.ResolutionError("TASK_CLASS_NOT_FOUND", "task class `"+sel+"` is not registered", nil, map[string]any{
				"selector": sel,
			})
		}
		if entry.Abstract {
			return nil, core.ResolutionError("ABSTRACT_TASK_SELECTED", "task class `"+sel+"` is abstract and cannot be selected directly", nil, map[string]any{
				"selector": sel,
			})
		}
		out = append(out, entry)
	}
	return out, nil
}
