package link

import (
	"sort"

	"github.com/flowerchecker/taskchain/engine/core"
)

// TopoSort orders nodes so every dependency precedes its dependents,
// using Kahn's algorithm, per spec.md §4.4's "DAG is acyclic" invariant
// and §3's "DAG via topological sort" Chain requirement. deps maps a
// node to the nodes it depends on (its declared inputs).
func TopoSort(nodes []string, deps map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		indegree[n] = 0
	}
	for n, inputs := range deps {
		for _, dep := range inputs {
			indegree[n]++
			dependents[dep] = append(dependents[dep], n)
		}
	}

	var ready []string
	for _, n := range nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		next := append([]string{}, dependents[n]...)
		sort.Strings(next)
		for _, m := range next {
			indegree[m]--
			if indegree[m] == 0 {
				ready = insertSorted(ready, m)
			}
		}
	}

	if len(order) != len(nodes) {
		var cyclic []string
		for _, n := range nodes {
			if indegree[n] > 0 {
				cyclic = append(cyclic, n)
			}
		}
		return nil, core.ResolutionError("CYCLE", "cyclic task dependency detected", nil, map[string]any{
			"remaining": cyclic,
		})
	}
	return order, nil
}

func insertSorted(sorted []string, v string) []string {
	i := 0
	for i < len(sorted) && sorted[i] < v {
		i++
	}
	sorted = append(sorted, "")
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = v
	return sorted
}
