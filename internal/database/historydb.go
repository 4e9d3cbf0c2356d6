package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemirror/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "sitemirror.db"

// HistoryDB provides SQLite-based storage for mirror runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a mirror first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per mirror invocation
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		start_url TEXT NOT NULL,
		output TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		assets_downloaded INTEGER NOT NULL DEFAULT 0,
		assets_failed INTEGER NOT NULL DEFAULT 0,
		failed_urls TEXT,
		status TEXT NOT NULL,
		error TEXT,
		config TEXT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Pages exported by a run, in export order
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		links INTEGER NOT NULL DEFAULT 0,
		exported_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is a recorded mirror run.
type Run struct {
	// ID is the run identifier, a random UUID.
	ID string

	// Site is the display name of the mirrored site.
	Site string

	// StartURL is the starting page of the crawl.
	StartURL string

	// Output is the output root.
	Output string

	// StartedAt is when the run started.
	StartedAt time.Time

	// Elapsed is the run duration.
	Elapsed time.Duration

	// Pages is the number of exported pages.
	Pages int

	// AssetsDownloaded is the number of assets written to the cache.
	AssetsDownloaded int

	// AssetsFailed is the number of asset references left unchanged.
	AssetsFailed int

	// FailedURLs lists the pages that could not be rendered or exported.
	FailedURLs []string

	// Status is the outcome of the run.
	Status model.RunStatus

	// Error is the message of the error that ended the run, if any.
	Error string

	// Config is the site configuration of the run, as YAML.
	Config string

	// RecordedAt is when the row was written.
	RecordedAt time.Time
}

// NewRunID returns a new run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// SaveRun stores run and its exported pages in one transaction.
// An empty run ID is replaced by a new one.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *Run, pages []model.ExportedPage) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}

	failedJSON, err := json.Marshal(run.FailedURLs)
	if err != nil {
		return fmt.Errorf("failed to serialize failed URLs: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO runs (id, site, start_url, output, started_at, elapsed_ms, pages,
		assets_downloaded, assets_failed, failed_urls, status, error, config)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		run.Site,
		run.StartURL,
		run.Output,
		run.StartedAt.UnixNano(),
		run.Elapsed.Milliseconds(),
		run.Pages,
		run.AssetsDownloaded,
		run.AssetsFailed,
		string(failedJSON),
		string(run.Status),
		run.Error,
		run.Config,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, url, path, links, exported_at)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, page := range pages {
		if _, err := stmt.ExecContext(ctx, run.ID, page.URL, page.Path, page.Links, page.ExportedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", page.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, site, start_url, output, started_at, elapsed_ms, pages,
	assets_downloaded, assets_failed, failed_urls, status, error, config, recorded_at`

// ListRuns returns the most recent runs first. An empty site lists every
// site; limit <= 0 means no limit.
func (hdb *HistoryDB) ListRuns(ctx context.Context, site string, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	args := make([]any, 0, 2)

	if site != "" {
		query += " AND site = ?"
		args = append(args, site)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the run whose ID is id or starts with id.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}

	query := "SELECT " + runColumns + " FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2"
	rows, err := hdb.db.QueryContext(ctx, query, id, stripWildcards(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, id)
	}
}

// ListPages returns the pages exported by a run, in export order.
func (hdb *HistoryDB) ListPages(ctx context.Context, runID string) ([]model.ExportedPage, error) {
	query := `
	SELECT url, path, links, exported_at
	FROM pages
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []model.ExportedPage
	for rows.Next() {
		var page model.ExportedPage
		var exportedAt int64
		if err := rows.Scan(&page.URL, &page.Path, &page.Links, &exportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.ExportedAt = time.Unix(0, exportedAt)
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// DeleteRun removes a run and its pages.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, id string) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run        Run
		startedAt  int64
		elapsedMS  int64
		status     string
		failedJSON sql.NullString
		errText    sql.NullString
		config     sql.NullString
		recordedAt string
	)
	err := row.Scan(
		&run.ID,
		&run.Site,
		&run.StartURL,
		&run.Output,
		&startedAt,
		&elapsedMS,
		&run.Pages,
		&run.AssetsDownloaded,
		&run.AssetsFailed,
		&failedJSON,
		&status,
		&errText,
		&config,
		&recordedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.StartedAt = time.Unix(0, startedAt)
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	run.Status = model.RunStatus(status)
	run.Error = errText.String
	run.Config = config.String
	run.RecordedAt = parseTimestamp(recordedAt)
	if failedJSON.Valid && failedJSON.String != "" {
		if err := json.Unmarshal([]byte(failedJSON.String), &run.FailedURLs); err != nil {
			run.FailedURLs = nil
		}
	}
	return &run, nil
}

// stripWildcards removes the LIKE wildcards from a user supplied prefix.
// Run IDs never contain them.
func stripWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
