package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
)

//go:embed templates/sitemirror.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a site configuration file",
		Long: `Init writes a commented sitemirror.yaml to the current directory.

The generated file documents every key: the starting page, output root,
cleanup rules, meta tags, fonts, injected tags and per-page tables.

Examples:
  # Create sitemirror.yaml in the current directory
  sitemirror init

  # Start from a specific page
  sitemirror init --page https://example.notion.site/Home-0123

  # Write to another path, overwriting an existing file
  sitemirror init -o sites/blog.yaml -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().String("page", "",
		"Starting page written into the file")

	return cmd
}

// templatePage is the placeholder starting page of the template.
const templatePage = "https://example.notion.site/Home-0123456789abcdef"

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	page, err := cmd.Flags().GetString("page")
	if err != nil {
		return err
	}

	if page != "" && !config.IsURL(page) {
		return fmt.Errorf("%w: %q", config.ErrInvalidStartPage, page)
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/sitemirror.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}
	if page != "" {
		content = []byte(strings.Replace(string(content), templatePage, page, 1))
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit 'page' and the site settings, then run:")
	fmt.Fprintf(out, "  sitemirror mirror %s\n", outputPath)

	return nil
}
