// Package endortest provides an in-memory fake of the Endor Labs API for
// tests. It serves the same envelopes and pagination protocol as the real
// API and records every tag update it receives.
package endortest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
)

// Token is the bearer token the fake auth endpoint hands out.
const Token = "endortest-token"

var (
	projectUUIDFilter = regexp.MustCompile(`spec\.project_uuid==([^\s]+)`)
	fullNameFilter    = regexp.MustCompile(`spec\.git\.full_name=="([^"]+)"`)
	testPathMatcher   = regexp.MustCompile(`(?i)(tests?|testing|testdata)`)
)

// Server is a fake API for one namespace.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	Namespace string
	PageSize  int // objects per page; 0 serves everything at once

	Projects                 []endor.Project
	PackageVersionsByProject map[string][]endor.PackageVersion
	FindingsByProject        map[string][]endor.Finding
	DependencyGroups         map[string]endor.DependencyGroup

	// TagUpdates records tags from PATCH calls, keyed by object UUID.
	TagUpdates map[string][]string
	// FailTagUpdates lists object UUIDs whose PATCH should return 500.
	FailTagUpdates map[string]bool

	// DeletedPackageVersions records UUIDs from DELETE calls, in order.
	DeletedPackageVersions []string
	// FailDeletes lists package version UUIDs whose DELETE should return 500.
	FailDeletes map[string]bool
}

// New starts a fake server for the given namespace. Callers populate the
// exported fields before issuing client calls and must Close it when done.
func New(namespace string) *Server {
	s := &Server{
		Namespace:                namespace,
		PackageVersionsByProject: map[string][]endor.PackageVersion{},
		FindingsByProject:        map[string][]endor.Finding{},
		DependencyGroups:         map[string]endor.DependencyGroup{},
		TagUpdates:               map[string][]string{},
		FailTagUpdates:           map[string]bool{},
		FailDeletes:              map[string]bool{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/auth/api-key", s.handleAuth).Methods(http.MethodPost)
	r.HandleFunc("/namespaces/{namespace}/projects", s.handleListProjects).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{namespace}/projects", s.handleUpdateTags).Methods(http.MethodPatch)
	r.HandleFunc("/namespaces/{namespace}/projects/{uuid}", s.handleGetProject).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{namespace}/package-versions", s.handleListPackageVersions).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{namespace}/package-versions/{uuid}", s.handleGetPackageVersion).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{namespace}/findings", s.handleListFindings).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{namespace}/findings", s.handleUpdateTags).Methods(http.MethodPatch)
	r.HandleFunc("/namespaces/{namespace}/findings/{uuid}", s.handleGetFinding).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{namespace}/dependency-metadata", s.handleDependencyMetadata).Methods(http.MethodGet)
	r.HandleFunc("/namespaces/{namespace}/queries", s.handleQueries).Methods(http.MethodPost)
	r.HandleFunc("/namespaces/{namespace}/package-versions/{uuid}", s.handleDeletePackageVersion).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(r)
	return s
}

// Options returns client options pointed at the fake, authenticated with
// its static token.
func (s *Server) Options() endor.Options {
	return endor.Options{
		BaseURL:     s.URL,
		Namespace:   s.Namespace,
		Credentials: endor.Credentials{Token: Token},
		HTTPClient:  s.Server.Client(),
	}
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Key    string `json:"key"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Key == "" || creds.Secret == "" {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"token": Token})
}

func (s *Server) checkNamespace(w http.ResponseWriter, r *http.Request) bool {
	if mux.Vars(r)["namespace"] != s.Namespace {
		http.Error(w, "unknown namespace", http.StatusNotFound)
		return false
	}
	return true
}

// page slices objects according to PageSize and the page_id query parameter
// (an offset in this fake), returning the slice and the next page ID.
func page[T any](s *Server, r *http.Request, objects []T) ([]T, string) {
	if s.PageSize <= 0 {
		return objects, ""
	}
	offset := 0
	if pageID := r.URL.Query().Get("list_parameters.page_id"); pageID != "" {
		offset, _ = strconv.Atoi(pageID)
	}
	if offset >= len(objects) {
		return nil, ""
	}
	end := offset + s.PageSize
	if end >= len(objects) {
		return objects[offset:], ""
	}
	return objects[offset:end], strconv.Itoa(end)
}

func writeList[T any](s *Server, w http.ResponseWriter, r *http.Request, objects []T) {
	pageObjects, nextPageID := page(s, r, objects)
	writeJSON(w, map[string]any{
		"list": map[string]any{
			"objects": pageObjects,
			"response": map[string]any{
				"next_page_id": nextPageID,
			},
		},
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	projects := s.Projects
	if m := fullNameFilter.FindStringSubmatch(r.URL.Query().Get("list_parameters.filter")); m != nil {
		projects = nil
		for _, p := range s.Projects {
			if p.Spec.Git != nil && p.Spec.Git.FullName == m[1] {
				projects = append(projects, p)
			}
		}
	}
	writeList(s, w, r, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.Projects {
		if p.UUID == mux.Vars(r)["uuid"] {
			writeJSON(w, p)
			return
		}
	}
	http.Error(w, "no such project", http.StatusNotFound)
}

func (s *Server) handleListPackageVersions(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pvs []endor.PackageVersion
	if m := projectUUIDFilter.FindStringSubmatch(r.URL.Query().Get("list_parameters.filter")); m != nil {
		pvs = s.PackageVersionsByProject[m[1]]
	}
	writeList(s, w, r, pvs)
}

func (s *Server) handleGetPackageVersion(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pvs := range s.PackageVersionsByProject {
		for _, pv := range pvs {
			if pv.UUID == mux.Vars(r)["uuid"] {
				writeJSON(w, pv)
				return
			}
		}
	}
	http.Error(w, "no such package version", http.StatusNotFound)
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var findings []endor.Finding
	if m := projectUUIDFilter.FindStringSubmatch(r.URL.Query().Get("list_parameters.filter")); m != nil {
		findings = s.FindingsByProject[m[1]]
	}
	writeList(s, w, r, findings)
}

func (s *Server) handleGetFinding(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, findings := range s.FindingsByProject {
		for _, f := range findings {
			if f.UUID == mux.Vars(r)["uuid"] {
				writeJSON(w, f)
				return
			}
		}
	}
	http.Error(w, "no such finding", http.StatusNotFound)
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}

	var update struct {
		Request struct {
			UpdateMask string `json:"update_mask"`
		} `json:"request"`
		Object struct {
			UUID string `json:"uuid"`
			Meta struct {
				Tags []string `json:"tags"`
			} `json:"meta"`
		} `json:"object"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update payload", http.StatusBadRequest)
		return
	}
	if update.Request.UpdateMask != "meta.tags" {
		http.Error(w, "unexpected update mask", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTagUpdates[update.Object.UUID] {
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}
	s.TagUpdates[update.Object.UUID] = update.Object.Meta.Tags
	writeJSON(w, map[string]any{})
}

// handleQueries serves the two package-version queries the client issues: the
// orphan query (joined against Project references) and the test-path query
// (filtered on spec.relative_path).
func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}

	var query struct {
		Spec struct {
			QuerySpec struct {
				Kind           string `json:"kind"`
				ListParameters struct {
					Filter string `json:"filter"`
				} `json:"list_parameters"`
				References []json.RawMessage `json:"references"`
			} `json:"query_spec"`
		} `json:"spec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		http.Error(w, "bad query payload", http.StatusBadRequest)
		return
	}
	if query.Spec.QuerySpec.Kind != "PackageVersion" {
		http.Error(w, "unsupported query kind", http.StatusBadRequest)
		return
	}
	pathQuery := strings.Contains(query.Spec.QuerySpec.ListParameters.Filter, "spec.relative_path matches")
	joinProjects := len(query.Spec.QuerySpec.References) > 0

	s.mu.Lock()
	defer s.mu.Unlock()

	projectExists := map[string]bool{}
	for _, p := range s.Projects {
		projectExists[p.UUID] = true
	}

	var objects []map[string]any
	for _, pvs := range s.PackageVersionsByProject {
		for _, pv := range pvs {
			if pathQuery && !testPathMatcher.MatchString(pv.Spec.RelativePath) {
				continue
			}
			object := map[string]any{
				"uuid":        pv.UUID,
				"tenant_meta": map[string]any{"namespace": s.Namespace},
				"spec": map[string]any{
					"project_uuid":  pv.Spec.ProjectUUID,
					"relative_path": pv.Spec.RelativePath,
				},
			}
			if joinProjects {
				refs := []map[string]any{}
				if projectExists[pv.Spec.ProjectUUID] {
					refs = append(refs, map[string]any{"uuid": pv.Spec.ProjectUUID})
				}
				object["meta"] = map[string]any{
					"references": map[string]any{
						"Project": map[string]any{
							"list": map[string]any{"objects": refs},
						},
					},
				}
			}
			objects = append(objects, object)
		}
	}

	writeJSON(w, map[string]any{
		"spec": map[string]any{
			"query_response": map[string]any{
				"list": map[string]any{
					"objects":  objects,
					"response": map[string]any{"next_page_token": ""},
				},
			},
		},
	})
}

func (s *Server) handleDeletePackageVersion(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	uuid := mux.Vars(r)["uuid"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDeletes[uuid] {
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}
	s.DeletedPackageVersions = append(s.DeletedPackageVersions, uuid)
	writeJSON(w, map[string]any{})
}

func (s *Server) handleDependencyMetadata(w http.ResponseWriter, r *http.Request) {
	if !s.checkNamespace(w, r) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, map[string]any{
		"group_response": map[string]any{
			"groups": s.DependencyGroups,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
