package gate

import (
	"sort"
)

// topoSort orders ids so every rule follows the rules it depends on, using
// Kahn's algorithm. Dependencies outside ids are ignored. Among rules that are
// ready at the same time the highest priority goes first, then the smallest
// id, so the order is deterministic. A nil priority treats every id alike.
// The second return value lists the ids that could not be ordered because
// they sit on or behind a cycle.
func topoSort(ids []string, deps func(id string) []string, priority func(id string) int) (order []string, cyclic []string) {
	if priority == nil {
		priority = func(string) int { return 0 }
	}
	byPriority := func(ready []string) {
		sort.Slice(ready, func(i, j int) bool {
			pi, pj := priority(ready[i]), priority(ready[j])
			if pi != pj {
				return pi > pj
			}
			return ready[i] < ready[j]
		})
	}

	inSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		inSet[id] = struct{}{}
	}

	inDegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		inDegree[id] += 0
		seen := make(map[string]struct{})
		for _, dep := range deps(id) {
			if _, ok := inSet[dep]; !ok {
				continue
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	byPriority(ready)

	order = make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var unblocked []string
		for _, d := range dependents[id] {
			inDegree[d]--
			if inDegree[d] == 0 {
				unblocked = append(unblocked, d)
			}
		}
		if len(unblocked) > 0 {
			ready = append(ready, unblocked...)
			byPriority(ready)
		}
	}

	if len(order) != len(inDegree) {
		for id, deg := range inDegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		sort.Strings(cyclic)
	}
	return order, cyclic
}
