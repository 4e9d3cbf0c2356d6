package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sitemirror/internal/config"
)

// TestNewPage tests parsing and serialization of a page.
func TestNewPage(t *testing.T) {
	t.Parallel()

	markup := "<!DOCTYPE html><html><head><title>Home</title></head><body><p>hi</p></body></html>"
	page, err := NewPage("https://example.com/", "index.html", markup, config.PageSettings{})
	require.NoError(t, err)

	assert.Equal(t, StatePending, page.State)
	assert.Equal(t, "Home", page.Doc.Find("title").Text())

	got, err := page.HTML()
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html><html><head><title>Home</title></head><body><p>hi</p></body></html>", got)
}

// TestPage_Ref tests references made relative to the page directory.
func TestPage_Ref(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		outputPath string
		target     string
		want       string
	}{
		{name: "top level page", outputPath: "index.html", target: "0a1b.png", want: "0a1b.png"},
		{name: "nested page", outputPath: "blog/post", target: "0a1b.png", want: "../0a1b.png"},
		{name: "deeply nested page", outputPath: "a/b/c.html", target: "fonts.css", want: "../../fonts.css"},
		{name: "target in same directory", outputPath: "blog/post", target: "blog/other", want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := &Page{OutputPath: tt.outputPath}
			assert.Equal(t, tt.want, page.Ref(tt.target))
		})
	}
}

// TestState_String tests the state names used in logs.
func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StatePending, "pending", false},
		{StateRendering, "rendering", false},
		{StateTransforming, "transforming", false},
		{StateExporting, "exporting", false},
		{StateDone, "done", true},
		{StateFailed, "failed", true},
		{State(42), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
		})
	}
}
