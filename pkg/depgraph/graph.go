// Package depgraph analyzes the resolved dependency graph of a package
// version: root detection, minimum dependency depth, and root-to-target
// path enumeration.
package depgraph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// Graph is a directed dependency graph. Edges point from a dependency to
// the dependencies it pulls in, so roots are the directly declared
// dependencies of the package version.
type Graph struct {
	graph *simple.DirectedGraph
	ids   map[string]int64 // dependency name -> gonum node ID
	names map[int64]string // gonum node ID -> dependency name

	keys     map[string]bool // names that appeared as adjacency keys
	children map[string]bool // names that appeared in any child list

	nextID int64
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{
		graph:    simple.NewDirectedGraph(),
		ids:      make(map[string]int64),
		names:    make(map[int64]string),
		keys:     make(map[string]bool),
		children: make(map[string]bool),
	}
}

// FromAdjacency builds a graph from the raw parent->children adjacency of an
// API PackageVersion. A nil or empty map yields an empty graph. Duplicate
// children and self-references are tolerated.
func FromAdjacency(adjacency map[string][]string) *Graph {
	g := New()
	for parent, kids := range adjacency {
		g.addNode(parent)
		g.keys[parent] = true
		for _, child := range kids {
			g.addNode(child)
			g.children[child] = true
			if child == parent {
				// Self-references count for root detection but are not
				// useful edges to traverse.
				continue
			}
			g.addEdge(parent, child)
		}
	}
	return g
}

func (g *Graph) addNode(name string) {
	if _, exists := g.ids[name]; exists {
		return
	}
	id := g.nextID
	g.nextID++
	g.ids[name] = id
	g.names[id] = name
	g.graph.AddNode(simple.Node(id))
}

func (g *Graph) addEdge(parent, child string) {
	from := g.ids[parent]
	to := g.ids[child]
	if !g.graph.HasEdgeFromTo(from, to) {
		g.graph.SetEdge(g.graph.NewEdge(g.graph.Node(from), g.graph.Node(to)))
	}
}

// Len returns the number of distinct dependencies in the graph.
func (g *Graph) Len() int {
	return len(g.ids)
}

// Has reports whether the named dependency appears anywhere in the graph,
// as a key or as somebody's child.
func (g *Graph) Has(name string) bool {
	_, ok := g.ids[name]
	return ok
}

// Children returns the direct dependencies of the named dependency, sorted.
func (g *Graph) Children(name string) []string {
	return g.neighbors(name, false)
}

// Parents returns the dependencies that directly pull in the named
// dependency, sorted.
func (g *Graph) Parents(name string) []string {
	return g.neighbors(name, true)
}

func (g *Graph) neighbors(name string, reverse bool) []string {
	id, ok := g.ids[name]
	if !ok {
		return nil
	}
	iter := g.graph.From(id)
	if reverse {
		iter = g.graph.To(id)
	}
	var out []string
	for iter.Next() {
		out = append(out, g.names[iter.Node().ID()])
	}
	sort.Strings(out)
	return out
}

// Roots returns the dependencies that never appear as a child of another
// dependency, i.e. the directly declared (depth 0) dependencies. When the
// graph is non-empty but every node is somebody's child, the graph is fully
// cyclic and allCyclic is true with an empty root slice; callers choose the
// fallback behavior.
func (g *Graph) Roots() (roots []string, allCyclic bool) {
	for name := range g.keys {
		if !g.children[name] {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots, len(roots) == 0 && g.Len() > 0
}
