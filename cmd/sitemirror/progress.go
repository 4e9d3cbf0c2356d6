package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/nao1215/sitemirror/internal/crawler"
)

// progressLine shows the page being processed on a single terminal line.
// A nil progressLine, or one created for a writer that is not a terminal,
// does nothing.
type progressLine struct {
	s *spinner.Spinner
}

// newProgressLine creates a progress line writing to w. The spinner only
// animates when w is a terminal file.
func newProgressLine(w io.Writer, enabled bool) *progressLine {
	f, ok := w.(*os.File)
	if !enabled || !ok {
		return &progressLine{}
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond,
		spinner.WithWriterFile(f),
		spinner.WithHiddenCursor(true),
	)
	return &progressLine{s: s}
}

// Start starts the animation.
func (p *progressLine) Start() {
	if p == nil || p.s == nil {
		return
	}
	p.s.Start()
}

// Stop stops the animation and clears the line.
func (p *progressLine) Stop() {
	if p == nil || p.s == nil {
		return
	}
	p.s.Stop()
}

// Update replaces the text next to the spinner.
func (p *progressLine) Update(pr crawler.Progress) {
	if p == nil || p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = formatProgress(pr)
	p.s.Unlock()
}

// formatProgress renders a progress update as the spinner suffix.
func formatProgress(pr crawler.Progress) string {
	return fmt.Sprintf(" %-10s %d exported, %d queued  %s",
		pr.State, pr.Exported, pr.Pending, truncate(pr.URL, 60))
}

// truncate shortens s to maxLen characters with an ellipsis.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
