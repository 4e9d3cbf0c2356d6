package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/report"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show previous mirror runs",
		Long: `History lists the runs recorded in the history database, newest first.

With a run ID (or a unique prefix of one) it shows the details of that run,
including every exported page and every asset that could not be mirrored.

Examples:
  # List the latest runs
  sitemirror history

  # List the runs of one site
  sitemirror history --site example.notion.site

  # Show one run as JSON
  sitemirror history 1f3a --json

  # Forget a run
  sitemirror history 1f3a --delete`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("site", "", "Only list runs of this site")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 lists all)")
	cmd.Flags().Bool("json", false, "Print the run as JSON")
	cmd.Flags().Bool("delete", false, "Delete the run instead of showing it")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	if len(args) == 0 {
		site, err := flags.GetString("site")
		if err != nil {
			return err
		}
		limit, err := flags.GetInt("limit")
		if err != nil {
			return err
		}
		return listRuns(cmd, db, site, limit)
	}

	del, err := flags.GetBool("delete")
	if err != nil {
		return err
	}
	if del {
		if err := db.DeleteRun(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", args[0])
		return nil
	}

	asJSON, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	return showRun(cmd, db, args[0], asJSON)
}

// listRuns prints a table of recorded runs.
func listRuns(cmd *cobra.Command, db *database.HistoryDB, site string, limit int) error {
	runs, err := db.ListRuns(cmd.Context(), site, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Site,
			string(run.Status),
			strconv.Itoa(run.Pages),
			report.FormatDuration(run.Elapsed),
		}
	}

	return markdown.NewMarkdown(out).
		Table(markdown.TableSet{
			Header: []string{"ID", "Started", "Site", "Status", "Pages", "Duration"},
			Rows:   rows,
		}).
		Build()
}

// showRun prints the details of one run.
func showRun(cmd *cobra.Command, db *database.HistoryDB, id string, asJSON bool) error {
	run, err := db.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	pages, err := db.ListPages(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	runReport := report.FromHistory(run, pages)

	var w report.Writer
	if asJSON {
		w = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint(), report.WithVersion(getVersion()))
	} else {
		w = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(getVerboseFlag(cmd)))
	}
	_, err = w.Write(runReport)
	return err
}

// shortID returns the first eight characters of a run ID.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
