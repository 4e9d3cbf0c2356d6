package report

import (
	"time"

	"github.com/nao1215/sitemirror/internal/assetcache"
	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/model"
)

// RunReport is the data rendered by every Writer.
type RunReport struct {
	// RunID is the history identifier of the run. Empty when the run was
	// not recorded.
	RunID string `json:"run_id,omitempty"`

	// Site is the display name of the site.
	Site string `json:"site"`

	// StartURL is the starting page.
	StartURL string `json:"start_url"`

	// Output is the output root.
	Output string `json:"output"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the run duration.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Status is the outcome of the run.
	Status model.RunStatus `json:"status"`

	// Error is the message of the error that ended the run.
	Error string `json:"error,omitempty"`

	// Pages lists the exported pages in export order.
	Pages []model.ExportedPage `json:"pages"`

	// Failed lists the pages that could not be rendered or exported.
	Failed []string `json:"failed,omitempty"`

	// Assets are the asset cache counters.
	Assets Assets `json:"assets"`
}

// Assets summarizes the asset cache work of a run.
type Assets struct {
	Downloaded int      `json:"downloaded"`
	Hits       int      `json:"hits"`
	Copied     int      `json:"copied"`
	Failed     int      `json:"failed"`
	FailedRefs []string `json:"failed_refs,omitempty"`
}

// NewRunReport builds the report of a run that just finished.
// runErr is the error returned by the crawler, if any.
func NewRunReport(site *config.Site, result *crawler.Result, startedAt time.Time, runErr error) *RunReport {
	r := &RunReport{
		Site:      site.SiteName(),
		StartURL:  site.Page,
		Output:    site.OutputDir(),
		StartedAt: startedAt,
		Status:    crawler.StatusOf(runErr),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if result != nil {
		r.Output = result.Output
		r.Elapsed = result.Elapsed
		r.Pages = result.Pages
		r.Failed = result.Failed
		r.Assets = assetsOf(result.Assets)
	}
	return r
}

// FromHistory builds the report of a recorded run.
func FromHistory(run *database.Run, pages []model.ExportedPage) *RunReport {
	return &RunReport{
		RunID:     run.ID,
		Site:      run.Site,
		StartURL:  run.StartURL,
		Output:    run.Output,
		StartedAt: run.StartedAt,
		Elapsed:   run.Elapsed,
		Status:    run.Status,
		Error:     run.Error,
		Pages:     pages,
		Failed:    run.FailedURLs,
		Assets: Assets{
			Downloaded: run.AssetsDownloaded,
			Failed:     run.AssetsFailed,
		},
	}
}

// ToHistory converts the report into a history record. siteYAML is the site
// configuration of the run, serialized as YAML.
func (r *RunReport) ToHistory(siteYAML string) *database.Run {
	return &database.Run{
		ID:               r.RunID,
		Site:             r.Site,
		StartURL:         r.StartURL,
		Output:           r.Output,
		StartedAt:        r.StartedAt,
		Elapsed:          r.Elapsed,
		Pages:            len(r.Pages),
		AssetsDownloaded: r.Assets.Downloaded,
		AssetsFailed:     r.Assets.Failed,
		FailedURLs:       r.Failed,
		Status:           r.Status,
		Error:            r.Error,
		Config:           siteYAML,
	}
}

// Summary returns the one line summary printed at the end of a run.
func (r *RunReport) Summary() string {
	result := crawler.Result{Pages: r.Pages, Elapsed: r.Elapsed}
	return result.Summary()
}

// Complete reports whether the run processed every reachable page.
func (r *RunReport) Complete() bool {
	return r.Status == model.RunCompleted
}

func assetsOf(s assetcache.Stats) Assets {
	return Assets{
		Downloaded: s.Downloaded,
		Hits:       s.Hits,
		Copied:     s.Copied,
		Failed:     s.Failed,
		FailedRefs: s.FailedRefs,
	}
}
