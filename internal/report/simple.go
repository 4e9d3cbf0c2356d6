package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every exported page instead of the first few.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every exported page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// shortPageList is the number of pages listed without verbose output.
const shortPageList = 10

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePages(&sb, report)
	w.writeFailures(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *RunReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Site:       %s\n", report.Site)
	if report.RunID != "" {
		fmt.Fprintf(sb, "Run:        %s\n", report.RunID)
	}
	fmt.Fprintf(sb, "Start URL:  %s\n", report.StartURL)
	fmt.Fprintf(sb, "Output:     %s\n", report.Output)
	fmt.Fprintf(sb, "Started:    %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(report))
	fmt.Fprintf(sb, "Assets:     %d downloaded, %d failed\n", report.Assets.Downloaded, report.Assets.Failed)
	sb.WriteString(report.Summary())
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *RunReport) {
	if len(report.Pages) == 0 {
		return
	}

	sb.WriteString("\nPAGES\n")
	pages := report.Pages
	if !w.verbose && len(pages) > shortPageList {
		pages = pages[:shortPageList]
	}
	for _, page := range pages {
		fmt.Fprintf(sb, "  %-30s %s\n", page.Path, page.URL)
	}
	if hidden := len(report.Pages) - len(pages); hidden > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use -v to list all)\n", hidden)
	}
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *RunReport) {
	if len(report.Failed) == 0 && len(report.Assets.FailedRefs) == 0 {
		return
	}

	if len(report.Failed) > 0 {
		sb.WriteString("\nFAILED PAGES\n")
		for _, u := range report.Failed {
			fmt.Fprintf(sb, "  - %s\n", u)
		}
	}
	if len(report.Assets.FailedRefs) > 0 {
		sb.WriteString("\nFAILED ASSETS\n")
		for _, ref := range report.Assets.FailedRefs {
			fmt.Fprintf(sb, "  - %s\n", ref)
		}
	}
}

// statusText returns the status line of a report.
func statusText(report *RunReport) string {
	if report.Error != "" && !report.Complete() {
		return fmt.Sprintf("%s (%s)", report.Status, report.Error)
	}
	return string(report.Status)
}

// FormatDuration renders d rounded to the second.
func FormatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
