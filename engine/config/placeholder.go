package config

import (
	"encoding/json"
	"regexp"

	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/tidwall/gjson"
)

// placeholderPattern matches `{NAME}` and `{nested.path}` tokens, grounded
// on `search_and_replace_placeholders` in the Python original
// (original_source/src/taskchain/utils/data.py).
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.]+)\}`)

// substitutePlaceholders walks every string value reachable from v
// (including inside map values, list elements, and `uses` ref strings)
// and replaces `{NAME}` tokens with the corresponding entry from
// globalVars. Nested dotted lookups (`{region.name}`) are resolved via
// gjson path queries over globalVars marshaled to JSON, so global_vars
// may itself be a nested mapping rather than only a flat map.
//
// Returns an error naming the first unresolved placeholder, per spec.md
// §4.1's "unresolved placeholder fails loading" failure mode.
func substitutePlaceholders(v any, globalVars map[string]any) (any, error) {
	var varsJSON []byte
	if len(globalVars) > 0 {
		b, err := json.Marshal(globalVars)
		if err != nil {
			return nil, core.ConfigError("INVALID_GLOBAL_VARS", "global_vars is not serializable", err, nil)
		}
		varsJSON = b
	}
	return substituteValue(v, varsJSON)
}

func substituteValue(v any, varsJSON []byte) (any, error) {
	switch t := v.(type) {
	case string:
		return substituteString(t, varsJSON)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			nv, err := substituteValue(val, varsJSON)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			nv, err := substituteValue(val, varsJSON)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}

func substituteString(s string, varsJSON []byte) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}
	var out []byte
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		name := s[m[2]:m[3]]
		out = append(out, s[last:start]...)
		value, ok := lookupGlobalVar(name, varsJSON)
		if !ok {
			return "", core.ConfigError("UNRESOLVED_PLACEHOLDER", "placeholder `{"+name+"}` not found in global_vars", nil, map[string]any{
				"placeholder": name,
			})
		}
		out = append(out, value...)
		last = end
	}
	out = append(out, s[last:]...)
	return string(out), nil
}

func lookupGlobalVar(path string, varsJSON []byte) (string, bool) {
	if len(varsJSON) == 0 {
		return "", false
	}
	result := gjson.GetBytes(varsJSON, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}
