package reporting

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"network-kpi/internal/domain"
	"network-kpi/internal/logger"
)

// Output file names.
const (
	PivotFile  = "pivot.csv"
	DetailFile = "detail.csv"
	ReportFile = "report.md"
)

// Artifact is one rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Body        []byte
}

// Render produces every output artifact of run.
func Render(run *domain.Run) []Artifact {
	pivot := run.Pivot
	if pivot == nil {
		pivot = &domain.PivotTable{}
	}
	return []Artifact{
		{Name: PivotFile, ContentType: "text/csv", Body: []byte(RenderPivotCSV(pivot))},
		{Name: DetailFile, ContentType: "text/csv", Body: []byte(RenderDetailCSV(run.Detail))},
		{Name: ReportFile, ContentType: "text/markdown", Body: []byte(RenderMarkdown(NewReport(run)))},
	}
}

// Writer writes artifacts to a directory.
type Writer struct {
	dir string
	log *slog.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, log *slog.Logger) *Writer {
	return &Writer{dir: dir, log: logger.OrDiscard(log)}
}

// Write creates dir if needed and writes each artifact into it, returning the
// written paths.
func (w *Writer) Write(artifacts []Artifact) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path := filepath.Join(w.dir, a.Name)
		if err := os.WriteFile(path, a.Body, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", a.Name, err)
		}
		w.log.Info("reporting: wrote artifact", "path", path, "bytes", len(a.Body))
		paths = append(paths, path)
	}
	return paths, nil
}
