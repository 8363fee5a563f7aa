package chain

import "github.com/flowerchecker/taskchain/engine/task"

// Replace swaps the TaskInstance registered under fullName for
// canonical, rewiring every other instance's already-resolved Inputs
// that pointed at the original one. Used by the MultiChain Coordinator
// to merge identical-fingerprint instances across member chains into a
// single shared instance, per spec.md §4.8 — canonical keeps whichever
// Evaluator its home chain wired, so every chain that shares it also
// shares its in-memory cache entry and its file lock.
func (c *Chain) Replace(fullName string, canonical *task.Instance) {
	old, ok := c.tasks[fullName]
	if !ok || old == canonical {
		return
	}
	c.tasks[fullName] = canonical
	delete(c.meta, fullName)

	for _, inst := range c.tasks {
		for name, v := range inst.Inputs {
			switch t := v.(type) {
			case *task.Instance:
				if t == old {
					inst.Inputs[name] = canonical
				}
			case []*task.Instance:
				for i, sub := range t {
					if sub == old {
						t[i] = canonical
					}
				}
			}
		}
	}
}
