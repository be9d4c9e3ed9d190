package tagger

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync"
)

// auditHeaders are the columns of the audit CSV, matching the change record
// field order.
var auditHeaders = []string{
	"finding_uuid",
	"project_uuid",
	"project_name",
	"package_version_uuid",
	"package_version_name",
	"target_dependency",
	"depth",
	"status",
	"change",
	"current_tags",
	"new_tags",
	"finding_description",
}

// AuditWriter writes change records as CSV rows. Writes are serialized so
// concurrent producers cannot interleave rows.
type AuditWriter struct {
	mu     sync.Mutex
	writer *csv.Writer
}

// NewAuditWriter wraps w and writes the header row immediately.
func NewAuditWriter(w io.Writer) (*AuditWriter, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(auditHeaders); err != nil {
		return nil, err
	}
	writer.Flush()
	return &AuditWriter{writer: writer}, writer.Error()
}

// Write appends one record.
func (a *AuditWriter) Write(record ChangeRecord) error {
	depth := "unknown"
	if record.Depth != nil {
		depth = strconv.Itoa(*record.Depth)
	}

	row := []string{
		record.FindingUUID,
		record.ProjectUUID,
		record.ProjectName,
		record.PackageVersionUUID,
		record.PackageVersionName,
		record.TargetDependency,
		depth,
		record.Status,
		record.Change,
		strings.Join(record.CurrentTags, ";"),
		strings.Join(record.NewTags, ";"),
		record.FindingDescription,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writer.Write(row); err != nil {
		return err
	}
	a.writer.Flush()
	return a.writer.Error()
}

// WriteAll appends every record in order.
func (a *AuditWriter) WriteAll(records []ChangeRecord) error {
	for _, record := range records {
		if err := a.Write(record); err != nil {
			return err
		}
	}
	return nil
}
