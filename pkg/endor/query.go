package endor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// testPathPattern matches package versions scanned out of test directories.
const testPathPattern = `(?i).*(tests?|testing|testdata).*`

// StalePackageVersion is one candidate for deletion found by the queries
// endpoint. Namespace is the tenant the package version lives in, which can
// differ from the client's namespace when the query traverses child
// namespaces.
type StalePackageVersion struct {
	UUID         string
	Namespace    string
	ProjectUUID  string
	RelativePath string
}

// queryListParameters is the list_parameters block of a query_spec.
type queryListParameters struct {
	Filter    string `json:"filter"`
	Mask      string `json:"mask"`
	Traverse  bool   `json:"traverse"`
	PageToken string `json:"page_token,omitempty"`
}

// queryReference joins the queried objects against another resource kind.
type queryReference struct {
	ConnectFrom string `json:"connect_from"`
	ConnectTo   string `json:"connect_to"`
	QuerySpec   struct {
		Kind           string `json:"kind"`
		ListParameters struct {
			Filter string `json:"filter"`
			Mask   string `json:"mask"`
		} `json:"list_parameters"`
	} `json:"query_spec"`
}

// queryRequest is the payload of POST /namespaces/{ns}/queries.
type queryRequest struct {
	TenantMeta struct {
		Namespace string `json:"namespace"`
	} `json:"tenant_meta"`
	Meta struct {
		Name string `json:"name"`
	} `json:"meta"`
	Spec struct {
		QuerySpec struct {
			Kind           string              `json:"kind"`
			ListParameters queryListParameters `json:"list_parameters"`
			References     []queryReference    `json:"references,omitempty"`
		} `json:"query_spec"`
	} `json:"spec"`
}

// queriedPackageVersion is one object of a query response, including the
// joined project references when the query asked for them.
type queriedPackageVersion struct {
	UUID       string `json:"uuid"`
	TenantMeta struct {
		Namespace string `json:"namespace"`
	} `json:"tenant_meta"`
	Meta struct {
		References struct {
			Project struct {
				List struct {
					Objects []json.RawMessage `json:"objects"`
				} `json:"list"`
			} `json:"Project"`
		} `json:"references"`
	} `json:"meta"`
	Spec struct {
		ProjectUUID  string `json:"project_uuid"`
		RelativePath string `json:"relative_path"`
	} `json:"spec"`
}

type queryResponse struct {
	Spec struct {
		QueryResponse struct {
			List struct {
				Objects  []queriedPackageVersion `json:"objects"`
				Response struct {
					NextPageToken string `json:"next_page_token"`
				} `json:"response"`
			} `json:"list"`
		} `json:"query_response"`
	} `json:"spec"`
}

// queryPackageVersions walks the queries endpoint for every page of package
// versions matching filter. withProjectRef joins each result against its
// project so callers can detect orphans.
func (c *Client) queryPackageVersions(ctx context.Context, name, filter, mask string, withProjectRef bool) ([]queriedPackageVersion, error) {
	var request queryRequest
	request.Meta.Name = name
	request.Spec.QuerySpec.Kind = "PackageVersion"
	request.Spec.QuerySpec.ListParameters = queryListParameters{
		Filter:   filter,
		Mask:     mask,
		Traverse: true,
	}
	if withProjectRef {
		var ref queryReference
		ref.ConnectFrom = "spec.project_uuid"
		ref.ConnectTo = "uuid"
		ref.QuerySpec.Kind = "Project"
		ref.QuerySpec.ListParameters.Filter = "uuid != NULL"
		ref.QuerySpec.ListParameters.Mask = "uuid"
		request.Spec.QuerySpec.References = []queryReference{ref}
	}

	var all []queriedPackageVersion
	for {
		body, err := json.Marshal(request)
		if err != nil {
			return nil, fmt.Errorf("encoding query: %w", err)
		}

		var response queryResponse
		if err := c.do(ctx, http.MethodPost, c.namespaceURL("queries"), nil, body, &response); err != nil {
			return nil, err
		}
		all = append(all, response.Spec.QueryResponse.List.Objects...)

		next := response.Spec.QueryResponse.List.Response.NextPageToken
		if next == "" {
			return all, nil
		}
		request.Spec.QuerySpec.ListParameters.PageToken = next
	}
}

func toStale(pv queriedPackageVersion) StalePackageVersion {
	return StalePackageVersion{
		UUID:         pv.UUID,
		Namespace:    pv.TenantMeta.Namespace,
		ProjectUUID:  pv.Spec.ProjectUUID,
		RelativePath: pv.Spec.RelativePath,
	}
}

// ListOrphanedPackageVersions finds CONTEXT_TYPE_MAIN package versions whose
// parent project no longer exists.
func (c *Client) ListOrphanedPackageVersions(ctx context.Context) ([]StalePackageVersion, error) {
	results, err := c.queryPackageVersions(ctx, "Get all packages",
		"context.type==CONTEXT_TYPE_MAIN",
		"uuid,spec.project_uuid,tenant_meta",
		true)
	if err != nil {
		return nil, err
	}

	var orphaned []StalePackageVersion
	for _, pv := range results {
		if len(pv.Meta.References.Project.List.Objects) == 0 {
			orphaned = append(orphaned, toStale(pv))
		}
	}
	return orphaned, nil
}

// ListTestPackageVersions finds CONTEXT_TYPE_MAIN package versions that were
// scanned out of test directories, judged by their relative path.
func (c *Client) ListTestPackageVersions(ctx context.Context) ([]StalePackageVersion, error) {
	results, err := c.queryPackageVersions(ctx, "Get all test packages",
		fmt.Sprintf("context.type==CONTEXT_TYPE_MAIN and spec.relative_path matches '%s'", testPathPattern),
		"uuid,spec.project_uuid,spec.relative_path,tenant_meta",
		false)
	if err != nil {
		return nil, err
	}

	stale := make([]StalePackageVersion, 0, len(results))
	for _, pv := range results {
		stale = append(stale, toStale(pv))
	}
	return stale, nil
}

// DeletePackageVersion deletes one package version. The namespace is taken
// from the object's tenant, not the client, because traversing queries can
// return package versions from child namespaces.
func (c *Client) DeletePackageVersion(ctx context.Context, namespace, packageVersionUUID string) error {
	rawURL := fmt.Sprintf("%s/namespaces/%s/package-versions/%s", c.baseURL, namespace, packageVersionUUID)
	return c.do(ctx, http.MethodDelete, rawURL, nil, nil, nil)
}
