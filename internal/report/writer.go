package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Writer renders a run report in one output format.
type Writer interface {
	// Write renders report and returns the number of bytes written.
	Write(report *RunReport) (int, error)
}

// baseWriter holds the destination shared by every format.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// WriterFor returns the writer matching the extension of path: JSON for
// ".json", Markdown for anything else.
func WriterFor(path string, output io.Writer, version string) Writer {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version))
	}
	return NewMarkdownWriter(output)
}

// WriteFile writes report to path, creating missing parent directories.
// The format follows the extension, see WriterFor.
func WriteFile(path string, report *RunReport, version string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // report path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if _, err := WriterFor(path, f, version).Write(report); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
