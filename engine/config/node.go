// Package config implements the TaskChain Config Loader: parsing one
// config description into a tree of Nodes, resolving `{NAME}` placeholder
// substitution, `uses` relations (with optional `as <namespace>`
// suffixes), multi-part files, and context overlays.
package config

import (
	"github.com/flowerchecker/taskchain/engine/core"
)

// Use describes one entry of a `uses:` list: a reference to another
// config (by file path, `#part`, or `path#part`), optionally imported
// under a namespace suffix.
type Use struct {
	Ref       string
	Namespace string // "as <namespace>"; empty when not given
}

// Node is one ConfigNode: a resolved, loaded config document together
// with its `uses` children, per spec.md §3.
type Node struct {
	Name      string
	Namespace string
	Data      map[string]any
	Uses      []*Node
	UseSpecs  []Use

	// Part is the multi-part selector that produced this node, if any.
	Part string

	// FilePath is the originating file, empty for in-memory configs.
	FilePath string

	// CWD anchors relative path resolution for this node.
	CWD *core.CWD

	// GlobalVars is the placeholder-substitution scope used at load time,
	// retained so TaskParameterConfig-equivalent hashing can replay it.
	GlobalVars map[string]any

	// ArtifactRoot is the root directory persisted artifacts are
	// written under (the Python original's `base_dir`), propagated
	// from the root Node to every node loaded under it.
	ArtifactRoot string
}

// FullName is "<namespace>::<name>", collapsing the separator when the
// namespace is empty, per spec.md §3's full-name convention.
func (n *Node) FullName() string {
	if n.Namespace == "" {
		return n.Name
	}
	return n.Namespace + "::" + n.Name
}

// Get looks up a top-level key in this node's data.
func (n *Node) Get(key string) (any, bool) {
	if n.Data == nil {
		return nil, false
	}
	v, ok := n.Data[key]
	return v, ok
}

// Tasks returns the raw `tasks` selector list (string or []string both
// normalized to []string), per spec.md §6 config file format.
func (n *Node) Tasks() []string {
	return stringListField(n.Data, "tasks")
}

// ExcludedTasks returns the raw `excluded_tasks` selector list.
func (n *Node) ExcludedTasks() []string {
	return stringListField(n.Data, "excluded_tasks")
}

// HumanReadableDataName returns the optional human_readable_data_name.
func (n *Node) HumanReadableDataName() (string, bool) {
	v, ok := n.Get("human_readable_data_name")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Ancestors returns every Node reachable from n via `uses`, breadth-first,
// nearest first — the search order the Parameter Binder relies on.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	seen := map[*Node]bool{n: true}
	queue := append([]*Node{}, n.Uses...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, cur.Uses...)
	}
	return out
}

// stringListField normalizes a field declared as either a bare string or
// a list of strings, per spec.md §6: "`tasks`: string or list".
func stringListField(data map[string]any, key string) []string {
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
