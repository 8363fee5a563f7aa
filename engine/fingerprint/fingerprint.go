// Package fingerprint computes the content-addressed identity of a
// TaskInstance: a 128-bit digest over its task class, its
// persistence-relevant parameters, and the fingerprints of its inputs,
// in that fixed order, per spec.md §4.5. It memoizes per-key digests
// with an LRU so a diamond-shaped dependency graph hashes each shared
// ancestor once rather than once per descendant path.
package fingerprint

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/flowerchecker/taskchain/engine/core"
)

// Input is everything the digest is computed over for one TaskInstance.
type Input struct {
	// ClassFullName is the task's registry full name ("group.Class"),
	// standing in for the Python original's dotted import path.
	ClassFullName string
	// ParameterRepr is ParameterSet.Repr(), already ordered by
	// parameter name.
	ParameterRepr string
	// InputFingerprints is the already-computed digest of every
	// declared input task, in the task's declared Inputs() order — not
	// sorted, since argument order is part of a task's identity.
	InputFingerprints []string
}

// Engine memoizes Digest by cache key for the Engine's own lifetime.
// engine/chain creates a fresh Engine for every chain it builds, so
// digests are not carried over from one chain build to the next.
type Engine struct {
	cache *lru.Cache[string, string]
}

// NewEngine builds a fingerprint Engine with room for capacity
// memoized digests.
func NewEngine(capacity int) *Engine {
	cache, err := lru.New[string, string](capacity)
	if err != nil {
		panic("fingerprint: invalid cache capacity: " + err.Error())
	}
	return &Engine{cache: cache}
}

// Digest returns the 32-hex-character fingerprint for in, memoized by
// cacheKey (typically the TaskInstance's full name within its chain).
func (e *Engine) Digest(cacheKey string, in Input) string {
	if d, ok := e.cache.Get(cacheKey); ok {
		return d
	}
	d := Compute(in)
	e.cache.Add(cacheKey, d)
	return d
}

// Invalidate drops a memoized digest so the next Digest call for
// cacheKey recomputes it.
func (e *Engine) Invalidate(cacheKey string) {
	e.cache.Remove(cacheKey)
}

// Compute derives the digest directly, with no memoization — the
// canonical structural representation described by spec.md §4.5.
func Compute(in Input) string {
	return core.Digest128(map[string]any{
		"class":  in.ClassFullName,
		"params": in.ParameterRepr,
		"inputs": in.InputFingerprints,
	})
}
