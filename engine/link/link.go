// Package link resolves declared input-task references to concrete
// TaskInstance full names and checks the resulting dependency graph for
// cycles, grounded on InputTasks/_find_task_full_name in
// original_source/src/taskchain/task.py.
package link

import (
	"regexp"
	"strings"

	"github.com/flowerchecker/taskchain/engine/core"
)

// unscopedPrefix disables namespace scoping during a name search, per
// spec.md §4.4's "double-tilde prefix explicitly ignores namespace
// scoping during search".
const unscopedPrefix = "~~"

// regexPrefix marks a reference as a regular expression matching every
// TaskInstance whose full name satisfies it, per spec.md §4.4.
const regexPrefix = "re:"

// Resolver matches input-task references against a fixed universe of
// TaskInstance full names ("<namespace>::<group>:<name>").
type Resolver struct {
	fullNames []string
}

// NewResolver builds a Resolver over every TaskInstance full name in a
// chain.
func NewResolver(fullNames []string) *Resolver {
	return &Resolver{fullNames: append([]string{}, fullNames...)}
}

// ScopeToNamespace prepends the requesting TaskInstance's own namespace
// to an unqualified identifier before it reaches Resolve, mirroring
// `Chain._get_task`'s "add current config to reference" step in
// original_source/src/taskchain/chain.py (lines ~275-276): a task
// declared inside a namespace that names a dependency by bare name or
// by `group:name` resolves it against its own namespace first, so
// `train::taskA` and `test::taskA` don't collide when a sibling in
// `train` refers to `taskA` by its bare name. Explicit qualification
// (already starting with `namespace::`, or with some other
// namespace), the `~~` unscoped marker, and `re:` regex references are
// left untouched.
func ScopeToNamespace(identifier, namespace string) string {
	if namespace == "" || identifier == "" {
		return identifier
	}
	if strings.HasPrefix(identifier, unscopedPrefix) || strings.HasPrefix(identifier, regexPrefix) {
		return identifier
	}
	if strings.Contains(identifier, "::") {
		return identifier
	}
	return namespace + "::" + identifier
}

// Resolve matches a single-target reference (bare name, `group:name`,
// or `namespace::group:name`; a registry class name such as
// `group.Class` is not matched) to exactly one full name,
// always enforcing a namespace comparison even when ref itself is
// unqualified. This mirrors `_process_dependencies`'s internal call to
// `_find_task_full_name(..., determine_namespace=False)` in
// original_source/src/taskchain/chain.py: it is meant for identifiers
// that engine/chain/build.go's linkInputs has already pre-scoped with
// ScopeToNamespace, so an unqualified query at this point genuinely
// means "no namespace", not "any namespace".
func (r *Resolver) Resolve(ref string) (string, error) {
	return r.resolve(ref, true)
}

// ResolveLenient matches the same reference grammar as Resolve but, for
// an unqualified query, skips the namespace comparison entirely instead
// of requiring an exact match against the empty namespace. This mirrors
// `_find_task_full_name`'s own default `determine_namespace=True`,
// used by the Python original's public `Chain.__getitem__`/`get` —
// unlike the internal dependency-linking path, an external caller
// asking for a task by bare name has no namespace of its own to compare
// against, so the lookup falls through to whichever namespace(s)
// actually hold a matching task. Chain.Task uses this variant.
func (r *Resolver) ResolveLenient(ref string) (string, error) {
	return r.resolve(ref, false)
}

func (r *Resolver) resolve(ref string, enforceNamespace bool) (string, error) {
	name := ref
	if strings.HasPrefix(name, unscopedPrefix) {
		name = strings.TrimPrefix(name, unscopedPrefix)
		enforceNamespace = false
	}

	matches := matchTaskNames(name, r.fullNames, enforceNamespace)
	if len(matches) > 1 {
		if priority := suffixPriority(matches); priority != "" {
			return priority, nil
		}
		return "", core.ResolutionError("AMBIGUOUS_TASK_REFERENCE", "ambiguous task reference `"+ref+"`", nil, map[string]any{
			"ref":     ref,
			"matches": matches,
		})
	}
	if len(matches) == 0 {
		return "", core.ResolutionError("TASK_NOT_FOUND", "task reference `"+ref+"` does not match any task in the chain", nil, map[string]any{
			"ref": ref,
		})
	}
	return matches[0], nil
}

// ResolveMany matches a regex-marked reference (`re:<pattern>`) to
// every full name it matches, in the Resolver's declared order, per
// spec.md §4.4's "receiving task sees an ordered collection".
func (r *Resolver) ResolveMany(ref string) ([]string, error) {
	if !strings.HasPrefix(ref, regexPrefix) {
		single, err := r.Resolve(ref)
		if err != nil {
			return nil, err
		}
		return []string{single}, nil
	}
	pattern := strings.TrimPrefix(ref, regexPrefix)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, core.ResolutionError("INVALID_REGEX_REFERENCE", "malformed regex task reference `"+ref+"`", err, map[string]any{"ref": ref})
	}
	var out []string
	for _, full := range r.fullNames {
		if re.MatchString(full) {
			out = append(out, full)
		}
	}
	if len(out) == 0 {
		return nil, core.ResolutionError("TASK_NOT_FOUND", "regex task reference `"+ref+"` matched no task in the chain", nil, map[string]any{"ref": ref})
	}
	return out, nil
}

// matchTaskNames implements _task_name_match: it compares the
// namespace component only when the searched name carries one or
// enforceNamespace is requested, then compares the remaining
// `group:name`/`name` tail exactly, or (when the candidate has a group
// and the search term does not) by group-stripped suffix.
func matchTaskNames(name string, candidates []string, enforceNamespace bool) []string {
	var out []string
	for _, full := range candidates {
		if taskNameMatch(name, full, enforceNamespace) {
			out = append(out, full)
		}
	}
	return out
}

func taskNameMatch(name, fullName string, enforceNamespace bool) bool {
	namespace := namespaceOf(name)
	fullNamespace := namespaceOf(fullName)
	if (namespace != "" || enforceNamespace) && fullNamespace != namespace {
		return false
	}

	nameTail := tailOf(name)
	fullTail := tailOf(fullName)

	if fullTail == nameTail {
		return true
	}
	if strings.Contains(fullTail, ":") && !strings.Contains(nameTail, ":") {
		parts := strings.Split(fullTail, ":")
		return parts[len(parts)-1] == nameTail
	}
	return false
}

func namespaceOf(s string) string {
	idx := strings.LastIndex(s, "::")
	if idx < 0 {
		return ""
	}
	return s[:idx]
}

func tailOf(s string) string {
	idx := strings.LastIndex(s, "::")
	if idx < 0 {
		return s
	}
	return s[idx+2:]
}

// suffixPriority returns the one candidate that every other candidate
// ends with, if such a candidate exists — the disambiguation rule
// `_find_task_full_name` applies before declaring a name ambiguous.
func suffixPriority(matches []string) string {
	for _, candidate := range matches {
		allSuffix := true
		for _, other := range matches {
			if !strings.HasSuffix(other, candidate) {
				allSuffix = false
				break
			}
		}
		if allSuffix {
			return candidate
		}
	}
	return ""
}
