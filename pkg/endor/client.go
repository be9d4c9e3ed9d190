// Package endor is a typed client for the Endor Labs REST API, covering the
// handful of resources the operational tasks touch: projects, package
// versions, findings, and grouped dependency metadata.
package endor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.endorlabs.com/v1"

// pageSize is the page size used for all paginated listings.
const pageSize = 500

var errNotFound = errors.New("not found")

// Options configures a Client.
type Options struct {
	BaseURL     string
	Namespace   string
	Credentials Credentials
	Timeout     time.Duration
	RateLimit   int // requests per second; 0 disables client-side limiting
	HTTPClient  *http.Client
}

// Client issues authenticated requests against one namespace. It is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	namespace  string
	token      string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewClient resolves the credentials and returns a ready client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	token, err := opts.Credentials.Resolve(ctx, httpClient, baseURL)
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		namespace:  opts.Namespace,
		token:      token,
		timeout:    timeout,
		limiter:    limiter,
	}, nil
}

// Namespace returns the namespace the client operates on.
func (c *Client) Namespace() string {
	return c.namespace
}

func (c *Client) namespaceURL(endpoint string) string {
	return fmt.Sprintf("%s/namespaces/%s/%s", c.baseURL, c.namespace, endpoint)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/jsoncompact")
	req.Header.Set("Request-Timeout", strconv.Itoa(int(c.timeout.Seconds())))
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	c.setHeaders(req)

	logging.DebugContext(ctx, "api request", "method", method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", rawURL, err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, payload)
	}
}

// listEnvelope is the response wrapper of paginated list endpoints.
type listEnvelope[T any] struct {
	List struct {
		Objects  []T `json:"objects"`
		Response struct {
			NextPageID string `json:"next_page_id"`
		} `json:"response"`
	} `json:"list"`
}

// listAll walks a paginated endpoint until next_page_id runs out.
func listAll[T any](ctx context.Context, c *Client, endpoint string, params url.Values) ([]T, error) {
	var all []T
	pageID := ""
	for {
		query := url.Values{}
		for key, values := range params {
			query[key] = values
		}
		query.Set("list_parameters.page_size", strconv.Itoa(pageSize))
		if pageID != "" {
			query.Set("list_parameters.page_id", pageID)
		}

		var envelope listEnvelope[T]
		if err := c.do(ctx, http.MethodGet, c.namespaceURL(endpoint), query, nil, &envelope); err != nil {
			return nil, err
		}
		all = append(all, envelope.List.Objects...)

		pageID = envelope.List.Response.NextPageID
		if pageID == "" {
			return all, nil
		}
	}
}

// ListProjects lists all projects in the namespace.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	params := url.Values{}
	params.Set("list_parameters.mask", "uuid,meta.name")
	return listAll[Project](ctx, c, "projects", params)
}

// GetProject fetches one project by UUID. A missing project yields nil, not
// an error.
func (c *Client) GetProject(ctx context.Context, projectUUID string) (*Project, error) {
	query := url.Values{}
	query.Set("get_parameters.mask", "uuid,meta.name")

	var project Project
	err := c.do(ctx, http.MethodGet, c.namespaceURL("projects/"+projectUUID), query, nil, &project)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// FindProjectByFullName looks a project up by its git full name
// (e.g. "my-org/my-repo"). A missing project yields nil.
func (c *Client) FindProjectByFullName(ctx context.Context, fullName string) (*Project, error) {
	params := url.Values{}
	params.Set("list_parameters.filter", fmt.Sprintf("spec.git.full_name==%q", fullName))
	params.Set("list_parameters.mask", "uuid,meta.name,meta.tags")

	projects, err := listAll[Project](ctx, c, "projects", params)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}
	return &projects[0], nil
}

// ListPackageVersions lists the CONTEXT_TYPE_MAIN package versions of a
// project, including their dependency graphs.
func (c *Client) ListPackageVersions(ctx context.Context, projectUUID string) ([]PackageVersion, error) {
	params := url.Values{}
	params.Set("list_parameters.filter",
		fmt.Sprintf("spec.project_uuid==%s and context.type==CONTEXT_TYPE_MAIN", projectUUID))
	params.Set("list_parameters.mask", "uuid,meta.name,spec.resolved_dependencies.dependency_graph")
	return listAll[PackageVersion](ctx, c, "package-versions", params)
}

// GetPackageVersion fetches one package version with its full resolved
// dependency data. A missing package version yields nil.
func (c *Client) GetPackageVersion(ctx context.Context, packageVersionUUID string) (*PackageVersion, error) {
	query := url.Values{}
	query.Set("get_parameters.mask",
		"uuid,meta.name,spec.resolved_dependencies.dependency_graph,spec.resolved_dependencies.dependencies")

	var pv PackageVersion
	err := c.do(ctx, http.MethodGet, c.namespaceURL("package-versions/"+packageVersionUUID), query, nil, &pv)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pv, nil
}

// GetFinding fetches one finding by UUID. A missing finding yields nil.
func (c *Client) GetFinding(ctx context.Context, findingUUID string) (*Finding, error) {
	var finding Finding
	err := c.do(ctx, http.MethodGet, c.namespaceURL("findings/"+findingUUID), nil, nil, &finding)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &finding, nil
}

// ListVulnerabilityFindings lists all CONTEXT_TYPE_MAIN vulnerability
// findings of a project in one paginated pass. Callers group the result by
// meta.parent_uuid to associate findings with package versions; fetching per
// package version is much slower against the API indexes.
func (c *Client) ListVulnerabilityFindings(ctx context.Context, projectUUID string) ([]Finding, error) {
	params := url.Values{}
	params.Set("list_parameters.filter", fmt.Sprintf(
		"spec.project_uuid==%s and context.type==CONTEXT_TYPE_MAIN and "+
			"spec.finding_categories contains [FINDING_CATEGORY_VULNERABILITY]", projectUUID))
	params.Set("list_parameters.mask",
		"uuid,meta.description,meta.tags,meta.parent_uuid,spec.target_dependency_package_name")
	return listAll[Finding](ctx, c, "findings", params)
}

// updateRequest is the envelope of update-mask PATCH calls; only the fields
// named in the mask are overwritten server-side.
type updateRequest struct {
	Request struct {
		UpdateMask string `json:"update_mask"`
	} `json:"request"`
	Object any `json:"object"`
}

type taggedObject struct {
	UUID string `json:"uuid"`
	Meta struct {
		Tags []string `json:"tags"`
	} `json:"meta"`
}

func (c *Client) updateTags(ctx context.Context, endpoint, objectUUID string, tags []string) error {
	var update updateRequest
	update.Request.UpdateMask = "meta.tags"

	var object taggedObject
	object.UUID = objectUUID
	object.Meta.Tags = tags
	if object.Meta.Tags == nil {
		object.Meta.Tags = []string{}
	}
	update.Object = object

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encoding tag update: %w", err)
	}
	return c.do(ctx, http.MethodPatch, c.namespaceURL(endpoint), nil, body, nil)
}

// UpdateFindingTags overwrites the tags of a finding, leaving every other
// field untouched.
func (c *Client) UpdateFindingTags(ctx context.Context, findingUUID string, tags []string) error {
	return c.updateTags(ctx, "findings", findingUUID, tags)
}

// UpdateProjectTags overwrites the tags of a project, leaving every other
// field untouched.
func (c *Client) UpdateProjectTags(ctx context.Context, projectUUID string, tags []string) error {
	return c.updateTags(ctx, "projects", projectUUID, tags)
}

// groupEnvelope is the response wrapper of grouped list endpoints; the next
// page token shows up under list.response or group_response.response
// depending on the endpoint.
type groupEnvelope struct {
	List struct {
		Response struct {
			NextPageToken string `json:"next_page_token"`
		} `json:"response"`
	} `json:"list"`
	GroupResponse struct {
		Groups   map[string]DependencyGroup `json:"groups"`
		Response struct {
			NextPageToken string `json:"next_page_token"`
		} `json:"response"`
	} `json:"group_response"`
}

// ListDependencyGroups fetches the dependency-metadata listing grouped by
// dependency name and package version, across both MAIN and SBOM contexts,
// merging group buckets across pages.
func (c *Client) ListDependencyGroups(ctx context.Context) (map[string]DependencyGroup, error) {
	merged := map[string]DependencyGroup{}
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("list_parameters.filter", `context.type in ["CONTEXT_TYPE_MAIN","CONTEXT_TYPE_SBOM"]`)
		query.Set("list_parameters.traverse", "true")
		query.Set("list_parameters.count", "false")
		query.Set("list_parameters.group.aggregation_paths",
			"meta.name,spec.dependency_data.package_version_uuid,spec.importer_data.package_version_uuid")
		query.Set("list_parameters.group.show_aggregation_uuids", "true")
		query.Set("list_parameters.page_size", strconv.Itoa(pageSize))
		if pageToken != "" {
			query.Set("list_parameters.page_token", pageToken)
		}

		var envelope groupEnvelope
		if err := c.do(ctx, http.MethodGet, c.namespaceURL("dependency-metadata"), query, nil, &envelope); err != nil {
			return nil, err
		}
		for key, group := range envelope.GroupResponse.Groups {
			merged[key] = group
		}

		pageToken = envelope.List.Response.NextPageToken
		if pageToken == "" {
			pageToken = envelope.GroupResponse.Response.NextPageToken
		}
		if pageToken == "" {
			return merged, nil
		}
	}
}
