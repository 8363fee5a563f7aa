package config

// NewOptions is the top-level entry point's construction surface, per
// SPEC_FULL.md §6's Go surface shape: an artifact root, a config
// source, a placeholder scope, an optional single context overlay, and
// a multi-part selector.
type NewOptions struct {
	ArtifactRoot string
	Source       Source
	GlobalVars   map[string]any
	Context      Source
	Part         string
}

// ContextFromFile is FromFile under the name the Go surface shape
// calls it with when building a single context overlay.
func ContextFromFile(filePath string) Source { return FromFile(filePath) }

// New loads opts.Source into a root Node, matching the ergonomic
// surface `config.New(config.NewOptions{...})` shown in SPEC_FULL.md §6.
func New(opts NewOptions) (*Node, error) {
	var contexts []Source
	if opts.Context.FilePath != "" || opts.Context.Data != nil {
		contexts = []Source{opts.Context}
	}
	return Load(opts.Source, Options{
		GlobalVars:   opts.GlobalVars,
		Contexts:     contexts,
		Part:         opts.Part,
		ArtifactRoot: opts.ArtifactRoot,
	})
}
