package config

import (
	"regexp"
	"strings"

	"github.com/flowerchecker/taskchain/engine/core"
)

// usesAsPattern matches `<ref> as <namespace>`, grounded on the
// `(.*) as (.*)` match in Chain._process_config of the Python original.
var usesAsPattern = regexp.MustCompile(`^(.*) as (.*)$`)

// parseUses normalizes the `uses` field into a list of Use entries,
// splitting the `as <namespace>` suffix off each ref.
func parseUses(data map[string]any) ([]Use, error) {
	refs := stringListField(data, "uses")
	out := make([]Use, 0, len(refs))
	for _, raw := range refs {
		ref := strings.TrimSpace(raw)
		if ref == "" {
			continue
		}
		if m := usesAsPattern.FindStringSubmatch(ref); m != nil {
			out = append(out, Use{Ref: strings.TrimSpace(m[1]), Namespace: strings.TrimSpace(m[2])})
			continue
		}
		out = append(out, Use{Ref: ref})
	}
	if err := checkDuplicateNamespaces(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkDuplicateNamespaces rejects two `uses` entries importing different
// refs under the same namespace suffix, which would make FullName lookups
// ambiguous.
func checkDuplicateNamespaces(uses []Use) error {
	seen := map[string]string{}
	for _, u := range uses {
		if u.Namespace == "" {
			continue
		}
		if prevRef, ok := seen[u.Namespace]; ok && prevRef != u.Ref {
			return core.ConfigError("DUPLICATE_NAMESPACE", "namespace `"+u.Namespace+"` is used by more than one `uses` entry", nil, map[string]any{
				"namespace": u.Namespace,
			})
		}
		seen[u.Namespace] = u.Ref
	}
	return nil
}
