package depgraph

// queueEntry is a node waiting in the BFS queue together with the depth it
// was discovered at.
type queueEntry struct {
	id    int64
	depth int
}

// MinimumDepths computes, for every dependency reachable from a root, the
// minimum number of edges from any root to that dependency. Roots are depth
// 0. Nodes absent from the result have unknown depth and callers must not
// assume zero.
//
// A fully cyclic graph has no roots; in that case every node is reported at
// depth 0 and fallback is true so callers can surface the condition.
func (g *Graph) MinimumDepths() (depths map[string]int, fallback bool) {
	if g.Len() == 0 {
		return map[string]int{}, false
	}

	roots, allCyclic := g.Roots()
	if allCyclic {
		depths = make(map[string]int, len(g.keys))
		for name := range g.keys {
			depths[name] = 0
		}
		return depths, true
	}

	byID := make(map[int64]int, g.Len())
	queue := make([]queueEntry, 0, len(roots))
	for _, root := range roots {
		id := g.ids[root]
		byID[id] = 0
		queue = append(queue, queueEntry{id: id, depth: 0})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		// A node can be queued more than once; only the freshest (shortest)
		// depth is worth expanding.
		if depth, seen := byID[current.id]; seen && depth < current.depth {
			continue
		}

		children := g.graph.From(current.id)
		for children.Next() {
			childID := children.Node().ID()
			if depth, seen := byID[childID]; !seen || depth > current.depth+1 {
				byID[childID] = current.depth + 1
				queue = append(queue, queueEntry{id: childID, depth: current.depth + 1})
			}
		}
	}

	depths = make(map[string]int, len(byID))
	for id, depth := range byID {
		depths[g.names[id]] = depth
	}
	return depths, false
}
