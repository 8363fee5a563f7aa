// Package multichain implements the MultiChain Coordinator: building
// several Chains from several root ConfigNodes and merging
// TaskInstances that share a fingerprint into one shared instance, so
// the shared computation runs (and is cached) exactly once across every
// member chain, per spec.md §4.8.
package multichain

import (
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/flowerchecker/taskchain/engine/chain"
	"github.com/flowerchecker/taskchain/engine/config"
	"github.com/flowerchecker/taskchain/engine/core"
	"github.com/flowerchecker/taskchain/engine/datahandler"
	"github.com/flowerchecker/taskchain/engine/task"
)

// Options controls member chain construction: the Fs, Logger and Codec
// fields of chain.Options (not Engine), applied uniformly to every
// member.
type Options struct {
	Fs     afero.Fs
	Logger *log.Logger
	Codec  datahandler.Codec
}

// MultiChain is a set of member Chains, indexed by their root config's
// name, with identical-fingerprint TaskInstances merged into one shared
// instance across members.
type MultiChain struct {
	members map[string]*chain.Chain
	order   []string // insertion order, for deterministic iteration
	shared  map[string]*task.Instance
}

// New builds one Chain per root, rejecting duplicate root config names,
// then merges every TaskInstance sharing a fingerprint across members
// into a single shared *task.Instance, per spec.md §4.8.
func New(roots []*config.Node, opts Options) (*MultiChain, error) {
	chainOpts := chain.Options{Fs: opts.Fs, Logger: opts.Logger, Codec: opts.Codec}

	mc := &MultiChain{
		members: map[string]*chain.Chain{},
		shared:  map[string]*task.Instance{},
	}

	for _, root := range roots {
		name := root.Name
		if _, dup := mc.members[name]; dup {
			return nil, core.ResolutionError("DUPLICATE_ROOT_CONFIG_NAME", "root config `"+name+"` is claimed by more than one member chain", nil, map[string]any{
				"name": name,
			})
		}
		ch, err := chain.New(root, chainOpts)
		if err != nil {
			return nil, err
		}
		mc.members[name] = ch
		mc.order = append(mc.order, name)
	}

	mc.mergeByFingerprint()
	return mc, nil
}

// mergeByFingerprint walks every member chain's tasks and, for each
// fingerprint seen more than once, replaces every later instance with
// the first one encountered — so every member chain holding a task of
// that fingerprint shares the same *task.Instance, and therefore the
// same in-memory cached value once it's computed.
func (mc *MultiChain) mergeByFingerprint() {
	byFingerprint := map[string]*task.Instance{}

	for _, name := range mc.order {
		ch := mc.members[name]
		for full, inst := range ch.Tasks() {
			canonical, seen := byFingerprint[inst.Fingerprint]
			if !seen {
				byFingerprint[inst.Fingerprint] = inst
				mc.shared[inst.Fingerprint] = inst
				continue
			}
			ch.Replace(full, canonical)
		}
	}
}

// Member returns the member chain registered under a root config name.
func (mc *MultiChain) Member(name string) (*chain.Chain, bool) {
	ch, ok := mc.members[name]
	return ch, ok
}

// Members returns every member chain, in construction order.
func (mc *MultiChain) Members() []*chain.Chain {
	out := make([]*chain.Chain, 0, len(mc.order))
	for _, name := range mc.order {
		out = append(out, mc.members[name])
	}
	return out
}

// SharedTaskCount returns the number of distinct fingerprints shared
// across two or more member chains — useful for diagnostics and tests.
func (mc *MultiChain) SharedTaskCount() int {
	counts := map[string]int{}
	for _, name := range mc.order {
		for _, inst := range mc.members[name].Tasks() {
			counts[inst.Fingerprint]++
		}
	}
	shared := 0
	for _, n := range counts {
		if n > 1 {
			shared++
		}
	}
	return shared
}

// MemberNames returns every member chain's root config name, sorted.
func (mc *MultiChain) MemberNames() []string {
	out := append([]string{}, mc.order...)
	sort.Strings(out)
	return out
}

// SharedInstance returns the canonical *task.Instance registered for a
// fingerprint, if any member chain has a task with that fingerprint.
func (mc *MultiChain) SharedInstance(fingerprint string) (*task.Instance, bool) {
	inst, ok := mc.shared[fingerprint]
	return inst, ok
}
