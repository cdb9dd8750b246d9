package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/results"
)

// Document is the JSON output: every suite report plus a combined summary.
type Document struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     schemas.Summary   `json:"summary"`
	Reports     []*schemas.Report `json:"reports"`
}

// JSONReporter buffers reports and encodes one Document on Close.
type JSONReporter struct {
	writer io.WriteCloser
	now    func() time.Time

	mu      sync.Mutex
	reports []*schemas.Report
	closed  bool
}

// NewJSONReporter takes ownership of writer.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer, now: time.Now}
}

func (r *JSONReporter) Write(report *schemas.Report) error {
	if report == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("json reporter is closed")
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	doc := Document{
		GeneratedAt: r.now().UTC(),
		Summary:     Combined(r.reports),
		Reports:     r.reports,
	}
	if doc.Reports == nil {
		doc.Reports = []*schemas.Report{}
	}

	encoder := json.ConfigCompatibleWithStandardLibrary.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	encErr := encoder.Encode(doc)
	closeErr := r.writer.Close()
	if encErr != nil {
		return fmt.Errorf("failed to encode json report: %w", encErr)
	}
	return closeErr
}

// Combined recounts the outcomes of every report into one summary.
func Combined(reports []*schemas.Report) schemas.Summary {
	var all []schemas.TestOutcome
	for _, rep := range reports {
		all = append(all, rep.Outcomes...)
	}
	return results.Tally(all)
}
