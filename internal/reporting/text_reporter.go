package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

const detailWidth = 100

// TextReporter renders each report as a human-readable table as it arrives.
type TextReporter struct {
	writer io.WriteCloser

	mu      sync.Mutex
	reports []*schemas.Report
}

// NewTextReporter takes ownership of writer.
func NewTextReporter(writer io.WriteCloser) *TextReporter {
	return &TextReporter{writer: writer}
}

func (r *TextReporter) Write(report *schemas.Report) error {
	if report == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return renderText(r.writer, report)
}

// Close prints a combined line when more than one suite ran.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if len(r.reports) > 1 {
		_, err = fmt.Fprintf(r.writer, "ALL SUITES: %s\n", summaryLine(Combined(r.reports)))
	}
	if cerr := r.writer.Close(); err == nil {
		err = cerr
	}
	return err
}

func renderText(w io.Writer, report *schemas.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (run %s) ==\n", report.Suite, report.RunID)

	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rows = append(rows, []string{
			o.ScenarioID,
			strings.ToUpper(string(o.Status)),
			formatDuration(o),
			truncate(oneLine(o.Details), detailWidth),
		})
	}
	renderTable(&b, []string{"Scenario", "Status", "Duration", "Details"}, rows)

	fmt.Fprintf(&b, "Summary: %s\n", summaryLine(report.Summary))
	if !report.StartedAt.IsZero() && !report.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Elapsed: %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}

	if len(report.Artifacts) > 0 {
		b.WriteString("Artifacts:\n")
		for _, a := range report.Artifacts {
			fmt.Fprintf(&b, "  %s\n", a)
		}
	}

	for _, d := range report.Diagnostics {
		if len(d.ConsoleTail) == 0 && len(d.PageErrors) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Session %s (%s), %d API call(s):\n", d.SessionID, strings.Join(d.Scenarios, ", "), d.APICalls)
		for _, line := range d.ConsoleTail {
			fmt.Fprintf(&b, "  console %s\n", truncate(oneLine(line), detailWidth))
		}
		for _, pe := range d.PageErrors {
			fmt.Fprintf(&b, "  page error: %s\n", truncate(oneLine(pe.Message), detailWidth))
		}
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

func summaryLine(s schemas.Summary) string {
	parts := []string{fmt.Sprintf("%d total", s.Total)}
	for _, st := range schemas.AllStatuses {
		if n := s.Count(st); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, st))
		}
	}
	return strings.Join(parts, ", ")
}

func formatDuration(o schemas.TestOutcome) string {
	d := o.Duration
	if d == 0 && o.DurationMS > 0 {
		d = time.Duration(o.DurationMS) * time.Millisecond
	}
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
