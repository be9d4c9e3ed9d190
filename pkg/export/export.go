// Package export produces the unique-dependency usage report: every
// dependency name in the namespace with the number of package versions that
// pull it in.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/endorlabs-cs/endor-ops/pkg/endor"
	"github.com/endorlabs-cs/endor-ops/pkg/logging"
)

// DependencyCount is one row of the report.
type DependencyCount struct {
	Name string
	// PackageVersionUUID is a representative dependency package version,
	// the one with the highest usage tally.
	PackageVersionUUID string
	// ImporterPackageVersionUUID is a representative importer, chosen the
	// same way.
	ImporterPackageVersionUUID string
	Count                      int
}

// UniqueDependencies fetches the grouped dependency metadata of the
// namespace and aggregates it into one row per dependency name, sorted by
// count descending then name.
func UniqueDependencies(ctx context.Context, client *endor.Client) ([]DependencyCount, error) {
	groups, err := client.ListDependencyGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing dependency groups: %w", err)
	}
	logging.InfoContext(ctx, "aggregating dependency groups", "groups", len(groups))

	rows := CountsFromGroups(groups)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

// tally tracks usage counts per candidate UUID while aggregating.
type tally struct {
	row           DependencyCount
	pkgCounts     map[string]int
	importerCount map[string]int
}

// CountsFromGroups converts the raw group buckets into aggregated rows. Each
// bucket key is a JSON-encoded array of key/value parts; buckets whose key
// cannot be parsed or that carry no dependency name are dropped.
func CountsFromGroups(groups map[string]endor.DependencyGroup) []DependencyCount {
	byName := map[string]*tally{}

	for rawKey, group := range groups {
		var parts []endor.GroupKeyPart
		if err := json.Unmarshal([]byte(rawKey), &parts); err != nil {
			continue
		}

		var name, pkgUUID, importerUUID string
		for _, part := range parts {
			switch part.Key {
			case "meta.name":
				name = part.Value
			case "spec.dependency_data.package_version_uuid":
				pkgUUID = part.Value
			case "spec.importer_data.package_version_uuid":
				importerUUID = part.Value
			}
		}
		if name == "" {
			continue
		}

		agg, exists := byName[name]
		if !exists {
			agg = &tally{
				row:           DependencyCount{Name: name},
				pkgCounts:     map[string]int{},
				importerCount: map[string]int{},
			}
			byName[name] = agg
		}

		count := group.AggregationCount.Count
		agg.row.Count += count
		if pkgUUID != "" {
			agg.pkgCounts[pkgUUID] += count
		}
		if importerUUID != "" {
			agg.importerCount[importerUUID] += count
		}
	}

	rows := make([]DependencyCount, 0, len(byName))
	for _, agg := range byName {
		agg.row.PackageVersionUUID = heaviest(agg.pkgCounts)
		agg.row.ImporterPackageVersionUUID = heaviest(agg.importerCount)
		rows = append(rows, agg.row)
	}
	return rows
}

// heaviest returns the key with the highest count, ties broken by name for
// stable output.
func heaviest(counts map[string]int) string {
	best := ""
	for key, count := range counts {
		if best == "" || count > counts[best] || (count == counts[best] && key < best) {
			best = key
		}
	}
	return best
}

// WriteCSV writes the report rows with a header.
func WriteCSV(w io.Writer, rows []DependencyCount) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "count", "package_version_uuid", "importer_package_version_uuid"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Name,
			strconv.Itoa(row.Count),
			row.PackageVersionUUID,
			row.ImporterPackageVersionUUID,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
