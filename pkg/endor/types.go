package endor

import "encoding/json"

// Meta is the common metadata envelope on Endor Labs API objects.
type Meta struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ParentUUID  string   `json:"parent_uuid,omitempty"`
}

// Project is a monitored repository in a namespace.
type Project struct {
	UUID string      `json:"uuid"`
	Meta Meta        `json:"meta"`
	Spec ProjectSpec `json:"spec"`
}

// ProjectSpec carries the subset of project spec fields the toolkit reads.
type ProjectSpec struct {
	Git *GitSpec `json:"git,omitempty"`
}

// GitSpec identifies the repository behind a project.
type GitSpec struct {
	FullName string `json:"full_name,omitempty"`
}

// DisplayName returns the project name, falling back to the UUID.
func (p *Project) DisplayName() string {
	if p.Meta.Name != "" {
		return p.Meta.Name
	}
	return p.UUID
}

// DeclaredDependency is one entry of a package version's declared dependency
// list, carrying the public/private visibility used for path annotation.
type DeclaredDependency struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

// Adjacency is the parent->children dependency graph of a package version.
// Malformed entries are dropped rather than failing the whole object: a
// non-mapping graph decodes as empty, a non-list child entry as no children.
type Adjacency map[string][]string

func (a *Adjacency) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		*a = nil
		return nil
	}
	out := make(Adjacency, len(raw))
	for parent, rawChildren := range raw {
		var children []string
		if err := json.Unmarshal(rawChildren, &children); err != nil {
			children = nil
		}
		out[parent] = children
	}
	*a = out
	return nil
}

// ResolvedDependencies holds the resolved dependency data of a package
// version: the declared dependency records and the full adjacency graph.
type ResolvedDependencies struct {
	Dependencies    []DeclaredDependency `json:"dependencies,omitempty"`
	DependencyGraph Adjacency            `json:"dependency_graph,omitempty"`
}

// PackageVersionSpec carries the subset of spec fields the toolkit reads.
type PackageVersionSpec struct {
	ProjectUUID          string                `json:"project_uuid,omitempty"`
	RelativePath         string                `json:"relative_path,omitempty"`
	ResolvedDependencies *ResolvedDependencies `json:"resolved_dependencies,omitempty"`
}

// PackageVersion is one scanned version of a package within a project.
type PackageVersion struct {
	UUID string             `json:"uuid"`
	Meta Meta               `json:"meta"`
	Spec PackageVersionSpec `json:"spec"`
}

// DisplayName returns the package version name, falling back to the UUID.
func (pv *PackageVersion) DisplayName() string {
	if pv.Meta.Name != "" {
		return pv.Meta.Name
	}
	return pv.UUID
}

// DependencyGraph returns the adjacency map, or nil when the package version
// has no resolved dependencies.
func (pv *PackageVersion) DependencyGraph() map[string][]string {
	if pv.Spec.ResolvedDependencies == nil {
		return nil
	}
	return pv.Spec.ResolvedDependencies.DependencyGraph
}

// PublicByName maps each declared dependency name to its public flag, for
// annotating dependency paths. Undeclared names are simply absent.
func (pv *PackageVersion) PublicByName() map[string]bool {
	if pv.Spec.ResolvedDependencies == nil {
		return nil
	}
	public := make(map[string]bool, len(pv.Spec.ResolvedDependencies.Dependencies))
	for _, dep := range pv.Spec.ResolvedDependencies.Dependencies {
		public[dep.Name] = dep.Public
	}
	return public
}

// FindingSpec carries the subset of finding spec fields the toolkit reads.
type FindingSpec struct {
	TargetDependencyPackageName string `json:"target_dependency_package_name,omitempty"`
}

// Finding is a security finding attached to a package version.
type Finding struct {
	UUID string      `json:"uuid"`
	Meta Meta        `json:"meta"`
	Spec FindingSpec `json:"spec"`
}

// DependencyGroup is one aggregation bucket from the grouped
// dependency-metadata listing.
type DependencyGroup struct {
	AggregationCount struct {
		Count int `json:"count"`
	} `json:"aggregation_count"`
}

// GroupKeyPart is one element of a JSON-encoded group key, e.g.
// {"key":"meta.name","value":"pypi://urllib3@1.26.20"}.
type GroupKeyPart struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
