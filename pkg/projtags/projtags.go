// Package projtags applies tags to projects from a CSV file. Each row names
// a repository and the tags to add; existing tags on the project are kept.
package projtags

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

// Row is one CSV entry: a repository name and the tags to apply to it.
type Row struct {
	ProjectName string
	Tags        []string
}

// Stats summarizes an Apply run.
type Stats struct {
	Updated   int
	Unchanged int
	NotFound  int
	Errors    int
}

// ParseCSV reads tagging rows from r. Rows with fewer than two fields are
// skipped. The second field holds a comma-separated tag list; two-word tags
// have their space replaced with an underscore so they survive as a single
// tag.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if len(record) < 2 {
			continue
		}

		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}

		var tags []string
		for _, tag := range strings.Split(strings.Trim(strings.TrimSpace(record[1]), `"`), ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if len(strings.Fields(tag)) == 2 {
				tag = strings.ReplaceAll(tag, " ", "_")
			}
			tags = append(tags, tag)
		}
		if len(tags) == 0 {
			continue
		}

		rows = append(rows, Row{ProjectName: name, Tags: tags})
	}
	return rows, nil
}

// ParseCSVFile reads tagging rows from the file at path.
func ParseCSVFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// Apply looks up each row's project by its Git full name and merges the
// row's tags into the project's existing tags. Bare repository names are
// prefixed with gitOrg. Missing projects are skipped, and projects whose
// tags already cover the row are left untouched.
func Apply(ctx context.Context, client *endor.Client, gitOrg string, rows []Row) Stats {
	var stats Stats

	for _, row := range rows {
		fullName := row.ProjectName
		if gitOrg != "" && !strings.Contains(fullName, "/") {
			fullName = gitOrg + "/" + fullName
		}

		project, err := client.FindProjectByFullName(ctx, fullName)
		if err != nil {
			logging.ErrorContext(ctx, "failed to look up project", "project", fullName, "error", err)
			stats.Errors++
			continue
		}
		if project == nil {
			logging.WarnContext(ctx, "no project found, skipping", "project", fullName)
			stats.NotFound++
			continue
		}

		merged, changed := mergeTags(project.Meta.Tags, row.Tags)
		if !changed {
			logging.DebugContext(ctx, "tags already present", "project", fullName)
			stats.Unchanged++
			continue
		}

		if err := client.UpdateProjectTags(ctx, project.UUID, merged); err != nil {
			logging.ErrorContext(ctx, "failed to update project tags", "project", fullName, "error", err)
			stats.Errors++
			continue
		}
		logging.InfoContext(ctx, "tags applied", "project", fullName, "tags", strings.Join(merged, ","))
		stats.Updated++
	}

	return stats
}

// mergeTags unions existing and added tags. The result is sorted so
// repeated runs produce identical updates.
func mergeTags(existing, added []string) (merged []string, changed bool) {
	seen := make(map[string]bool, len(existing)+len(added))
	for _, tag := range existing {
		if !seen[tag] {
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	for _, tag := range added {
		if !seen[tag] {
			seen[tag] = true
			merged = append(merged, tag)
			changed = true
		}
	}
	sort.Strings(merged)
	return merged, changed
}
