// Package chain implements the Execution Engine and Chain surface:
// building a set of TaskInstances from a ConfigNode tree, linking their
// inputs, fingerprinting them, and evaluating them on demand, per
// spec.md §4.2-§4.7.
package chain

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/config"
	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/flowerchecker/taskchain/engine/datahandler"
	"github.com/flowerchecker/taskchain/engine/fingerprint"
	"github.com/flowerchecker/taskchain/engine/link"
	"github.com/flowerchecker/taskchain/engine/resolve"
	"github.com/flowerchecker/taskchain/engine/task"
)

// TaskRow is one row of Chain.TasksTable()'s tabular summary — the Go
// generalization of the Python original's pandas `tasks_df`, per
// SPEC_FULL.md §6.
type TaskRow struct {
	FullName    string
	Group       string
	Namespace   string
	Fingerprint string
	DataKind    string
	HasData     bool
}

type taskMeta struct {
	handler     datahandler.Handler
	lockPath    string
	runInfoPath string
	dataKind    string
}

// Chain is the in-memory set of linked, fingerprinted TaskInstances
// built from one root ConfigNode, per spec.md §3's Chain type.
type Chain struct {
	id         string
	root       *config.Node
	fs         afero.Fs
	logger     *log.Logger
	valueCache *ristretto.Cache[string, any]

	tasks       map[string]*task.Instance
	order       []string // topological order, dependencies first
	dependents  map[string][]string
	meta        map[string]*taskMeta
	lockTimeout time.Duration
}

// ID is a process-local identifier minted when the chain was built,
// carried on every log line the chain's engine emits so log entries
// from concurrently-built chains in the same process don't interleave
// unattributably.
func (c *Chain) ID() string { return c.id }

// Options controls chain construction.
type Options struct {
	// Fs is the filesystem artifacts are persisted to; defaults to the
	// real OS filesystem via afero.NewOsFs when nil.
	Fs afero.Fs
	// Logger defaults to a new charmbracelet/log logger when nil.
	Logger *log.Logger
	// Codec overrides the default JSON codec for `single`/`streamed`
	// handlers.
	Codec datahandler.Codec
	// Engine is the engine's own small typed configuration (artifact
	// root override, lock timeout, parameter mode, log level); the
	// zero value is filled in with DefaultEngineOptions().
	Engine EngineOptions
}

// New builds a Chain from root: it walks every ConfigNode reachable
// via `uses`, expands each node's task selectors against the compile-
// time registry, binds parameters, links declared inputs, computes
// fingerprints, and wires a datahandler per instance. Per spec.md
// §4.2-§4.5's pipeline.
func New(root *config.Node, opts Options) (*Chain, error) {
	engineOpts, err := DecodeEngineOptions(nil)
	if err != nil {
		return nil, err
	}
	if opts.Engine.LockTimeout > 0 {
		engineOpts.LockTimeout = opts.Engine.LockTimeout
	}
	if opts.Engine.ArtifactRoot != "" {
		engineOpts.ArtifactRoot = opts.Engine.ArtifactRoot
	}
	if opts.Engine.ParameterMode != "" {
		engineOpts.ParameterMode = opts.Engine.ParameterMode
	}
	if opts.Engine.LogLevel != "" {
		engineOpts.LogLevel = opts.Engine.LogLevel
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if lvl, err := log.ParseLevel(engineOpts.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	logger = logger.With("component", "chain", "chain_id", id)
	valueCache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, core.New(core.StageRun, "VALUE_CACHE_INIT_FAILED", "could not initialize in-memory value cache", err, nil)
	}

	nodes := collectNodes(root)

	instances, err := instantiateTasks(nodes, engineOpts.ParameterMode == "lenient")
	if err != nil {
		return nil, err
	}

	fullNames := make([]string, 0, len(instances))
	for full := range instances {
		fullNames = append(fullNames, full)
	}
	sort.Strings(fullNames)
	resolver := link.NewResolver(fullNames)

	deps, err := linkInputs(instances, resolver)
	if err != nil {
		return nil, err
	}

	order, err := link.TopoSort(fullNames, deps)
	if err != nil {
		return nil, err
	}

	fpEngine := fingerprint.NewEngine(len(instances) * 2)
	if err := computeFingerprints(instances, order, fpEngine); err != nil {
		return nil, err
	}

	artifactRoot := root.ArtifactRoot
	if engineOpts.ArtifactRoot != "" {
		artifactRoot = engineOpts.ArtifactRoot
	}

	ch := &Chain{
		id:          id,
		root:        root,
		fs:          fs,
		logger:      logger,
		valueCache:  valueCache,
		tasks:       instances,
		order:       order,
		dependents:  invertDeps(deps),
		meta:        map[string]*taskMeta{},
		lockTimeout: engineOpts.LockTimeout,
	}

	codec := opts.Codec
	if codec == nil {
		codec = datahandler.JSONCodec{}
	}
	for full, inst := range instances {
		kind := task.DataKindOf(inst.Descriptor)
		artifactPath := artifactPathFor(inst, artifactRoot, codec)
		handler, err := datahandler.New(kind, fs, artifactPath, codec)
		if err != nil {
			return nil, err
		}
		ch.meta[full] = &taskMeta{
			handler:     handler,
			dataKind:    kind,
			lockPath:    artifactPath + ".lock",
			runInfoPath: artifactPath + ".run.yaml",
		}
	}

	engine := &Engine{chain: ch}
	for _, inst := range instances {
		inst.SetEvaluator(engine)
	}

	return ch, nil
}

// collectNodes walks root and every node reachable via `uses`, once
// each, in breadth-first order.
func collectNodes(root *config.Node) []*config.Node {
	var out []*config.Node
	seen := map[*config.Node]bool{}
	queue := []*config.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		queue = append(queue, n.Uses...)
	}
	return out
}

// instantiateTasks expands every node's `tasks`/`excluded_tasks`
// selectors and binds parameters for each resulting TaskInstance, per
// spec.md §4.2-§4.3. lenient relaxes a missing required parameter
// from a bind-time error to a nil-valued bind, per EngineOptions'
// "lenient" parameter_mode.
func instantiateTasks(nodes []*config.Node, lenient bool) (map[string]*task.Instance, error) {
	instances := map[string]*task.Instance{}
	var bindOpts []task.BindOption
	if lenient {
		bindOpts = append(bindOpts, task.Lenient())
	}
	for _, node := range nodes {
		entries, err := resolve.Expand(node.Tasks(), node.ExcludedTasks())
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			full := resolve.FullName(node.Namespace, entry)
			if existing, ok := instances[full]; ok && existing.Node != node {
				return nil, core.ResolutionError("DUPLICATE_TASK", "task `"+full+"` is claimed by more than one config node", nil, map[string]any{
					"full_name": full,
				})
			}

			descriptor := entry.New()
			descAsTask, ok := descriptor.(task.Descriptor)
			if !ok {
				return nil, core.ResolutionError("INVALID_TASK_CLASS", "task class `"+entry.FullName+"` does not implement task.Descriptor", nil, map[string]any{
					"class": entry.FullName,
				})
			}

			params, err := task.Bind(node, descAsTask.Params(), bindOpts...)
			if err != nil {
				return nil, err
			}

			instances[full] = &task.Instance{
				Entry:      entry,
				Node:       node,
				FullName:   full,
				Descriptor: descriptor,
				Params:     params,
				Inputs:     map[string]any{},
			}
		}
	}
	return instances, nil
}

// linkInputs resolves every instance's declared Inputs() against the
// full universe of instances and returns the dependency edges used for
// topological sorting, per spec.md §4.4.
func linkInputs(instances map[string]*task.Instance, resolver *link.Resolver) (map[string][]string, error) {
	deps := map[string][]string{}
	for full, inst := range instances {
		descTask := inst.Descriptor.(task.Descriptor)
		for _, spec := range descTask.Inputs() {
			if strings.HasPrefix(spec.Identifier, "re:") {
				matches, err := resolver.ResolveMany(spec.Identifier)
				if err != nil {
					if spec.HasDefault {
						inst.Inputs[spec.Name] = spec.Default
						continue
					}
					return nil, err
				}
				var targets []*task.Instance
				for _, m := range matches {
					targets = append(targets, instances[m])
					deps[full] = append(deps[full], m)
				}
				inst.Inputs[spec.Name] = targets
				continue
			}

			identifier := link.ScopeToNamespace(spec.Identifier, inst.Node.Namespace)
			matched, err := resolver.Resolve(identifier)
			if err != nil {
				if spec.HasDefault {
					inst.Inputs[spec.Name] = spec.Default
					continue
				}
				return nil, err
			}
			inst.Inputs[spec.Name] = instances[matched]
			deps[full] = append(deps[full], matched)
		}
	}
	return deps, nil
}

// computeFingerprints walks instances in topological order so every
// input's fingerprint is already known, per spec.md §4.5.
func computeFingerprints(instances map[string]*task.Instance, order []string, fp *fingerprint.Engine) error {
	for _, full := range order {
		inst := instances[full]
		descTask := inst.Descriptor.(task.Descriptor)

		var inputFps []string
		for _, spec := range descTask.Inputs() {
			switch v := inst.Inputs[spec.Name].(type) {
			case *task.Instance:
				inputFps = append(inputFps, v.Fingerprint)
			case []*task.Instance:
				for _, t := range v {
					inputFps = append(inputFps, t.Fingerprint)
				}
			}
		}

		inst.Fingerprint = fp.Digest(full, fingerprint.Input{
			ClassFullName:     inst.Entry.FullName,
			ParameterRepr:     inst.Params.Repr(),
			InputFingerprints: inputFps,
		})
	}
	return nil
}

func invertDeps(deps map[string][]string) map[string][]string {
	out := map[string][]string{}
	for node, inputs := range deps {
		for _, dep := range inputs {
			out[dep] = append(out[dep], node)
		}
	}
	return out
}

// artifactPathFor derives an instance's artifact path from its group,
// slugname and fingerprint, mirroring the directory layout of
// `task.path`/`task.data_path` in original_source/chain.py (slugname
// with `:` replaced by a path separator, fingerprint-qualified file).
func artifactPathFor(inst *task.Instance, artifactRoot string, codec datahandler.Codec) string {
	slug := resolve.Slugname(inst.Entry)
	dir := filepath.Join(artifactRoot, strings.ReplaceAll(slug, ":", string(filepath.Separator)))
	ext := ""
	if codec != nil {
		ext = codec.Ext()
	}
	return filepath.Join(dir, inst.Fingerprint+ext)
}
