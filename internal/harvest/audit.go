package harvest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// AuditWriter keeps a copy of every harvested report on disk
type AuditWriter struct {
	dir string
}

// NewAuditWriter writes into dir. An empty dir disables auditing.
func NewAuditWriter(dir string) *AuditWriter {
	return &AuditWriter{dir: dir}
}

// Enabled reports whether reports are persisted
func (a *AuditWriter) Enabled() bool {
	return a != nil && a.dir != ""
}

// Prepare creates the audit directory
func (a *AuditWriter) Prepare() error {
	if !a.Enabled() {
		return nil
	}
	return os.MkdirAll(a.dir, 0o755)
}

// AuditFileName is the per-repository report file name, unique per target
func AuditFileName(t domain.Target) string {
	return fmt.Sprintf("%s_%s_report.json", t.Owner, t.Name)
}

// Write stores the report for t and returns the file path
func (a *AuditWriter) Write(t domain.Target, report *domain.Report) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	data, err := report.Indented()
	if err != nil {
		return "", fmt.Errorf("failed to format report: %w", err)
	}
	path := filepath.Join(a.dir, AuditFileName(t))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
