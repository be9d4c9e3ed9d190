package depgraph

// PathStep is one element of a dependency path annotated with the
// public/private visibility of the dependency in the package version's
// declared dependency list.
type PathStep struct {
	DependencyName string `json:"dependency_name"`
	Public         bool   `json:"public"`
}

// AllPathsTo enumerates every acyclic chain from a root dependency down to
// target. The stored edges point parent->child, so the walk runs backward:
// from the target up through every parent until a parentless dependency is
// reached. Paths are returned target-first; reverse for root-to-target
// order.
//
// A dependency with several parents contributes one path per distinct
// ancestor chain. Cycles are pruned with a per-path visited set: a parent
// already on the current path is not re-entered, and a branch whose only
// continuations are cyclic is dropped rather than recorded.
func (g *Graph) AllPathsTo(target string) [][]string {
	if !g.Has(target) {
		return nil
	}

	var paths [][]string
	onPath := make(map[string]bool)

	var climb func(node string, path []string)
	climb = func(node string, path []string) {
		// Copy per branch so sibling parents do not share backing arrays.
		path = append(append(make([]string, 0, len(path)+1), path...), node)
		onPath[node] = true
		defer delete(onPath, node)

		extended := false
		for _, parent := range g.Parents(node) {
			if onPath[parent] {
				continue
			}
			extended = true
			climb(parent, path)
		}
		if !extended && len(g.Parents(node)) == 0 {
			paths = append(paths, path)
		}
	}

	climb(target, nil)
	return paths
}

// AnnotatePaths attaches the public flag to every path element. The public
// map comes from the package version's declared dependency records, keyed by
// exact dependency name; names without a record default to private.
func AnnotatePaths(paths [][]string, public map[string]bool) [][]PathStep {
	annotated := make([][]PathStep, 0, len(paths))
	for _, path := range paths {
		steps := make([]PathStep, 0, len(path))
		for _, name := range path {
			steps = append(steps, PathStep{
				DependencyName: name,
				Public:         public[name],
			})
		}
		annotated = append(annotated, steps)
	}
	return annotated
}
