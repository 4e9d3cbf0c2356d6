package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs reports as a single JSON document, for CI jobs that
// archive or diff mirror runs.
type JSONWriter struct {
	baseWriter
	pretty  bool
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents the document by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.pretty = true
	}
}

// WithVersion records the sitemirror version next to the report.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// jsonDocument is the top-level object of the JSON format.
type jsonDocument struct {
	Version string     `json:"version,omitempty"`
	Run     *RunReport `json:"run"`
}

// Write encodes the report followed by a newline.
// URLs are written verbatim, without escaping '&' as \u0026.
func (w *JSONWriter) Write(report *RunReport) (int, error) {
	cw := &countingWriter{w: w.output}
	enc := json.NewEncoder(cw)
	enc.SetEscapeHTML(false)
	if w.pretty {
		enc.SetIndent("", "  ")
	}
	err := enc.Encode(jsonDocument{Version: w.version, Run: report})
	return cw.n, err
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
