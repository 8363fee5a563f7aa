package config

import (
	"dario.cat/mergo"
	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/mohae/deepcopy"
)

// contextOverlay is a composed stack of context documents, applied to
// every node loaded under a Load call, per spec.md §4.1's context
// overlay mechanism.
type contextOverlay struct {
	layers []contextLayer
}

type contextLayer struct {
	plain        map[string]any
	forNamespace map[string]map[string]any
}

// rejectedOverlayKeys are reserved structural keys an overlay may not set
// directly. `uses` is intentionally excluded: overlays may add `uses`
// entries of their own, scoped the same way a config's own `uses` is.
var rejectedOverlayKeys = map[string]bool{
	"tasks":                    true,
	"excluded_tasks":           true,
	"configs":                  true,
	"human_readable_data_name": true,
	"for_namespaces":           true,
}

// loadContexts loads each context Source as a plain document (no nested
// context of its own) and splits it into its global and per-namespace
// halves.
func loadContexts(sources []Source, globalVars map[string]any) (*contextOverlay, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	overlay := &contextOverlay{}
	for _, src := range sources {
		raw, _, _, _, _, err := readDocument(src, "")
		if err != nil {
			return nil, err
		}
		substituted, err := substitutePlaceholders(raw, globalVars)
		if err != nil {
			return nil, err
		}
		raw = substituted.(map[string]any)

		layer, err := splitContextLayer(raw)
		if err != nil {
			return nil, err
		}
		overlay.layers = append(overlay.layers, layer)
	}
	return overlay, nil
}

func splitContextLayer(raw map[string]any) (contextLayer, error) {
	layer := contextLayer{
		plain:        map[string]any{},
		forNamespace: map[string]map[string]any{},
	}
	for key, value := range raw {
		if key == "for_namespaces" {
			nsMap, ok := value.(map[string]any)
			if !ok {
				return layer, core.ConfigError("MALFORMED_CONTEXT", "`for_namespaces` must be a mapping of namespace to overrides", nil, nil)
			}
			for ns, sub := range nsMap {
				subMap, ok := sub.(map[string]any)
				if !ok {
					return layer, core.ConfigError("MALFORMED_CONTEXT", "`for_namespaces` entry for `"+ns+"` must be a mapping", nil, nil)
				}
				if err := checkOverlayKeys(subMap); err != nil {
					return layer, err
				}
				layer.forNamespace[ns] = subMap
			}
			continue
		}
		if rejectedOverlayKeys[key] {
			return layer, core.ConfigError("RESERVED_CONTEXT_KEY", "context overlay may not set reserved key `"+key+"`", nil, map[string]any{
				"key": key,
			})
		}
		layer.plain[key] = value
	}
	return layer, nil
}

func checkOverlayKeys(m map[string]any) error {
	for key := range m {
		if rejectedOverlayKeys[key] {
			return core.ConfigError("RESERVED_CONTEXT_KEY", "context overlay may not set reserved key `"+key+"` under for_namespaces", nil, map[string]any{
				"key": key,
			})
		}
	}
	return nil
}

// applyTo merges every layer into raw, in order, scoping each layer's
// for_namespaces entry to namespace when it matches. Later layers win
// over earlier ones and over the node's own values, matching the
// "overlay overrides config" precedence spec.md §4.1 requires.
func (o *contextOverlay) applyTo(raw map[string]any, namespace string) error {
	for _, layer := range o.layers {
		if len(layer.plain) > 0 {
			if err := mergeOverride(raw, layer.plain); err != nil {
				return err
			}
		}
		if sub, ok := layer.forNamespace[namespace]; ok && namespace != "" {
			if err := mergeOverride(raw, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func mergeOverride(dst, src map[string]any) error {
	copied := deepcopy.Copy(src).(map[string]any)
	if err := mergo.Merge(&dst, copied, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return core.ConfigError("CONTEXT_MERGE_FAILED", "could not merge context overlay", err, nil)
	}
	return nil
}
