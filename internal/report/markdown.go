package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is written next to the mirrored site for sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables, alerts and mermaid charts without
// hand-written escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeAssets(md, report)
	w.writePages(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title, the run properties and the status alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *RunReport) {
	md.H1("Mirror Report: " + report.Site)
	md.PlainText("")

	rows := [][]string{
		{"Start URL", report.StartURL},
		{"Output", "`" + report.Output + "`"},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", FormatDuration(report.Elapsed)},
		{"Pages Exported", strconv.Itoa(len(report.Pages))},
		{"Status", markdownStatus(report)},
	}
	if report.RunID != "" {
		rows = append([][]string{{"Run ID", "`" + report.RunID + "`"}}, rows...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, report)
}

// markdownStatus returns the status cell of the properties table.
func markdownStatus(report *RunReport) string {
	switch {
	case report.Complete():
		return "✅ Complete"
	case report.Error != "":
		return "⚠️ " + string(report.Status) + " - " + report.Error
	default:
		return "⚠️ " + string(report.Status)
	}
}

// writeAlert writes an alert matching the worst problem of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *RunReport) {
	switch {
	case !report.Complete():
		md.Cautionf("The run stopped early (%s). The mirror is partial.", report.Status)
	case len(report.Failed) > 0:
		md.Warningf("%d page(s) could not be rendered and are missing from the mirror.", len(report.Failed))
	case report.Assets.Failed > 0:
		md.Importantf("%d asset reference(s) still point at the live site.", report.Assets.Failed)
	default:
		md.Tip("Every page and asset was mirrored.")
	}
	md.PlainText("")
}

// writeAssets writes the asset counters and their distribution.
func (w *MarkdownWriter) writeAssets(md *markdown.Markdown, report *RunReport) {
	a := report.Assets
	md.H2("Assets")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Result", "Count"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(a.Downloaded)},
			{"Already cached", strconv.Itoa(a.Hits)},
			{"Copied from disk", strconv.Itoa(a.Copied)},
			{"Failed", strconv.Itoa(a.Failed)},
		},
	})
	md.PlainText("")

	if a.Downloaded+a.Hits+a.Copied+a.Failed == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Asset Cache Results"),
		piechart.WithShowData(true),
	)
	for _, slice := range []struct {
		label string
		value int
	}{
		{"Downloaded", a.Downloaded},
		{"Already cached", a.Hits},
		{"Copied", a.Copied},
		{"Failed", a.Failed},
	} {
		if slice.value > 0 {
			chart.LabelAndIntValue(slice.label, uint64(slice.value))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writePages writes the table of exported pages.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *RunReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages were exported.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, page := range report.Pages {
		rows[i] = []string{
			"`" + page.Path + "`",
			truncateString(page.URL, 80),
			strconv.Itoa(page.Links),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"File", "URL", "Links"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures lists failed pages and assets.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *RunReport) {
	if len(report.Failed) == 0 && len(report.Assets.FailedRefs) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")
	if len(report.Failed) > 0 {
		md.PlainText("Pages that could not be rendered:")
		md.PlainText("")
		md.BulletList(report.Failed...)
		md.PlainText("")
	}
	if len(report.Assets.FailedRefs) > 0 {
		refs := ""
		for _, ref := range report.Assets.FailedRefs {
			refs += "- " + ref + "\n"
		}
		md.Details("Asset references left unchanged ("+strconv.Itoa(len(report.Assets.FailedRefs))+")", refs)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitemirror](https://github.com/nao1215/sitemirror)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
