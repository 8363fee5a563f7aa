package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/flowerchecker/taskchain/engine/core"
	"gopkg.in/yaml.v3"
)

// Source names where a config document comes from: a file on disk or an
// in-memory mapping, per spec.md §6 ("file path, in-memory mapping").
type Source struct {
	FilePath string
	Data     map[string]any
}

// FromFile builds a Source that reads filePath, which may carry a
// `#part` suffix to select one entry of a multi-part file.
func FromFile(filePath string) Source { return Source{FilePath: filePath} }

// FromMap builds a Source from an already-decoded mapping.
func FromMap(data map[string]any) Source { return Source{Data: data} }

// Options controls one Load call: the placeholder scope, composed
// context overlays, and an explicit multi-part selector.
type Options struct {
	GlobalVars   map[string]any
	Contexts     []Source
	Part         string
	ArtifactRoot string
}

// Load parses src into a fully resolved Node tree: part selection,
// context overlay, placeholder substitution, and recursive `uses`
// resolution, per spec.md §4.1.
func Load(src Source, opts Options) (*Node, error) {
	overlay, err := loadContexts(opts.Contexts, opts.GlobalVars)
	if err != nil {
		return nil, err
	}
	visited := map[string]bool{}
	return loadNode(src, "", opts.Part, opts.GlobalVars, opts.ArtifactRoot, overlay, visited)
}

// loadNode loads one node (its own document) and recursively loads every
// `uses` child, threading namespace, global vars, context overlay and
// cycle detection through the whole tree.
func loadNode(
	src Source,
	namespace string,
	part string,
	globalVars map[string]any,
	artifactRoot string,
	overlay *contextOverlay,
	visited map[string]bool,
) (*Node, error) {
	raw, name, filePath, resolvedPart, cwd, err := readDocument(src, part)
	if err != nil {
		return nil, err
	}

	visitKey := visitIdentity(filePath, resolvedPart, src.Data)
	if visited[visitKey] {
		return nil, core.ConfigError("USES_CYCLE", "cyclic `uses` detected at "+visitKey, nil, map[string]any{
			"ref": visitKey,
		})
	}
	visited[visitKey] = true
	defer delete(visited, visitKey)

	if overlay != nil {
		if err := overlay.applyTo(raw, namespace); err != nil {
			return nil, err
		}
	}

	if err := validateStructure(raw); err != nil {
		return nil, err
	}

	substituted, err := substitutePlaceholders(raw, globalVars)
	if err != nil {
		return nil, err
	}
	raw = substituted.(map[string]any)

	uses, err := parseUses(raw)
	if err != nil {
		return nil, err
	}

	node := &Node{
		Name:         name,
		Namespace:    namespace,
		Data:         raw,
		Part:         resolvedPart,
		FilePath:     filePath,
		CWD:          cwd,
		GlobalVars:   globalVars,
		ArtifactRoot: artifactRoot,
		UseSpecs:     uses,
	}

	for _, use := range uses {
		childNamespace := joinNamespace(namespace, use.Namespace)
		childSrc, childPart, err := resolveUseRef(use.Ref, filePath)
		if err != nil {
			return nil, err
		}
		child, err := loadNode(childSrc, childNamespace, childPart, globalVars, artifactRoot, overlay, visited)
		if err != nil {
			return nil, err
		}
		node.Uses = append(node.Uses, child)
	}

	return node, nil
}

// readDocument loads the raw map for one Source, honoring an explicit
// `#part` suffix/selector and the `configs` multi-part container.
func readDocument(src Source, part string) (raw map[string]any, name, filePath, resolvedPart string, cwd *core.CWD, err error) {
	if src.Data != nil {
		raw = cloneMap(src.Data)
		if part == "" {
			if p, ok := raw["part"].(string); ok {
				part = p
			}
		}
		raw, resolvedPart, err = selectPart(raw, part)
		return raw, "", "", resolvedPart, nil, err
	}

	ref := src.FilePath
	path, refPart := splitRefPart(ref)
	if refPart != "" {
		part = refPart
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", "", "", nil, core.ConfigError("FILE_NOT_FOUND", "could not read config file "+path, err, map[string]any{"path": path})
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", "", "", nil, core.ConfigError("MALFORMED_CONFIG", "could not parse config file "+path, err, map[string]any{"path": path})
	}

	raw, resolvedPart, err = selectPart(doc, part)
	if err != nil {
		return nil, "", "", "", nil, err
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name = strings.TrimSuffix(base, ext)

	cwdDir := filepath.Dir(path)
	cwdObj, cerr := core.NewCWD(cwdDir)
	if cerr != nil {
		return nil, "", "", "", nil, core.ConfigError("INVALID_CWD", "could not resolve cwd for "+path, cerr, nil)
	}

	absPath, aerr := filepath.Abs(path)
	if aerr != nil {
		absPath = path
	}

	return raw, name, absPath, resolvedPart, cwdObj, nil
}

// selectPart implements the multi-part file rule of spec.md §4.1: a
// document whose top level contains `configs` treats each sub-entry as
// an independent node, defaulting to the single entry marked
// `main_part: true` when no part is requested.
func selectPart(doc map[string]any, part string) (map[string]any, string, error) {
	configsField, ok := doc["configs"]
	if !ok {
		return doc, "", nil
	}
	parts, ok := configsField.(map[string]any)
	if !ok {
		return nil, "", core.ConfigError("MALFORMED_CONFIG", "`configs` must be a mapping of part name to part data", nil, nil)
	}

	if part != "" {
		sub, ok := parts[part]
		if !ok {
			return nil, "", core.ConfigError("PART_NOT_FOUND", "part `"+part+"` not found in multi-part config", nil, map[string]any{"part": part})
		}
		subMap, ok := sub.(map[string]any)
		if !ok {
			return nil, "", core.ConfigError("MALFORMED_CONFIG", "part `"+part+"` is not a mapping", nil, nil)
		}
		return subMap, part, nil
	}

	mainCount := 0
	var mainName string
	var mainData map[string]any
	for partName, sub := range parts {
		subMap, ok := sub.(map[string]any)
		if !ok {
			continue
		}
		if isTrue(subMap["main_part"]) {
			mainCount++
			mainName = partName
			mainData = subMap
		}
	}
	if mainCount > 1 {
		return nil, "", core.ConfigError("MULTIPLE_MAIN_PARTS", "more than one part of multi-part config marked main_part", nil, nil)
	}
	if mainCount == 0 {
		return nil, "", core.ConfigError("PART_REQUIRED", "no part specified for multi-part config and no main_part declared", nil, nil)
	}
	return mainData, mainName, nil
}

func isTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// splitRefPart splits a `path#part` reference into its path and part.
func splitRefPart(ref string) (path, part string) {
	if idx := strings.Index(ref, "#"); idx >= 0 {
		return ref[:idx], ref[idx+1:]
	}
	return ref, ""
}

// resolveUseRef turns one `uses` entry's ref into a loadable Source plus
// part selector. A bare `#part` ref (no path) is relative to the same
// multi-part file as the referencing node. A relative path ref is
// resolved against the referencing file's own directory, not the
// process's working directory, so `uses: [../shared/base.yaml]` behaves
// the same regardless of where the chain is built from.
func resolveUseRef(ref, ownerFilePath string) (Source, string, error) {
	path, part := splitRefPart(ref)
	if path == "" {
		if ownerFilePath == "" {
			return Source{}, "", core.ConfigError("INVALID_USES_REF", "bare `#part` uses ref requires an owning file", nil, map[string]any{"ref": ref})
		}
		path = ownerFilePath
	} else if !filepath.IsAbs(path) && ownerFilePath != "" {
		path = filepath.Join(filepath.Dir(ownerFilePath), path)
	}
	return FromFile(path), part, nil
}

func joinNamespace(parent, child string) string {
	if child == "" {
		return parent
	}
	if parent == "" {
		return child
	}
	return parent + "::" + child
}

func visitIdentity(filePath, part string, inlineData map[string]any) string {
	if filePath == "" {
		return core.Digest128(inlineData)
	}
	if part == "" {
		return filePath
	}
	return filePath + "#" + part
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// validateStructure checks the shape of the `uses`/`tasks`/`excluded_tasks`
// fields, per spec.md §4.1 failure modes.
func validateStructure(data map[string]any) error {
	for _, key := range []string{"uses", "tasks", "excluded_tasks"} {
		v, ok := data[key]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case string, []string, []any:
			continue
		default:
			return core.ConfigError("MALFORMED_CONFIG", "`"+key+"` must be a string or list of strings", nil, map[string]any{"field": key})
		}
	}
	return nil
}
