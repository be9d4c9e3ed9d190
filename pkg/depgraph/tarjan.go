package depgraph

import "sort"

// tarjan runs Tarjan's strongly connected components algorithm over the
// dependency graph.
type tarjan struct {
	g       *Graph
	index   int
	stack   []int64
	onStack map[int64]bool
	indices map[int64]int
	lowLink map[int64]int
	sccs    [][]int64
}

// CyclicComponents returns the groups of dependencies that form dependency
// cycles (strongly connected components with more than one member). A
// rootless graph is explained by these components.
func (g *Graph) CyclicComponents() [][]string {
	t := &tarjan{
		g:       g,
		onStack: make(map[int64]bool),
		indices: make(map[int64]int),
		lowLink: make(map[int64]int),
	}

	nodes := g.graph.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		if _, visited := t.indices[id]; !visited {
			t.strongConnect(id)
		}
	}

	components := make([][]string, 0, len(t.sccs))
	for _, scc := range t.sccs {
		names := make([]string, 0, len(scc))
		for _, id := range scc {
			names = append(names, g.names[id])
		}
		sort.Strings(names)
		components = append(components, names)
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}

func (t *tarjan) strongConnect(id int64) {
	t.indices[id] = t.index
	t.lowLink[id] = t.index
	t.index++

	t.stack = append(t.stack, id)
	t.onStack[id] = true

	successors := t.g.graph.From(id)
	for successors.Next() {
		succ := successors.Node().ID()
		if _, visited := t.indices[succ]; !visited {
			t.strongConnect(succ)
			t.lowLink[id] = min(t.lowLink[id], t.lowLink[succ])
		} else if t.onStack[succ] {
			t.lowLink[id] = min(t.lowLink[id], t.indices[succ])
		}
	}

	if t.lowLink[id] == t.indices[id] {
		scc := make([]int64, 0)
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == id {
				break
			}
		}
		// Single nodes are not cycles.
		if len(scc) > 1 {
			t.sccs = append(t.sccs, scc)
		}
	}
}
