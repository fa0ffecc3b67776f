// Package qstore is the embedded relational cache for quality scan
// results: an incremental, scan-versioned SQLite database with bounded
// retention and cascade deletes. It never leaves the machine it runs on
// and is fully rebuildable from the source tree plus git history.
package qstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

// Retention windows. scan_meta and complexity_trend keep the N most
// recent scans; files and file_metrics keep the M most recent (M <= N),
// since only those are needed for delta reporting between consecutive
// scans. Resolved as configuration constants, not behavioural ones.
const (
	DefaultScanRetention = 5
	DefaultFileRetention = 2
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

CREATE TABLE IF NOT EXISTS scan_meta (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scanned_at  TEXT NOT NULL,
	git_head    TEXT NOT NULL,
	files_count INTEGER,
	duration_ms INTEGER
);

CREATE TABLE IF NOT EXISTS files (
	path                  TEXT NOT NULL,
	scan_id               INTEGER NOT NULL,
	language              TEXT,
	loc                   INTEGER,
	cyclomatic_complexity REAL,
	function_count        INTEGER,
	max_nesting           INTEGER,
	avg_function_length   REAL,
	essential_complexity  REAL,
	indent_sd             REAL,
	FOREIGN KEY(scan_id) REFERENCES scan_meta(id) ON DELETE CASCADE,
	PRIMARY KEY(path, scan_id)
);

CREATE TABLE IF NOT EXISTS file_metrics (
	path    TEXT NOT NULL,
	scan_id INTEGER NOT NULL,
	metric  TEXT NOT NULL,
	value   REAL,
	FOREIGN KEY(scan_id) REFERENCES scan_meta(id) ON DELETE CASCADE,
	PRIMARY KEY(path, scan_id, metric)
);

CREATE TABLE IF NOT EXISTS function_cc (
	path                  TEXT NOT NULL,
	scan_id               INTEGER NOT NULL,
	function_name         TEXT NOT NULL,
	line_start            INTEGER,
	line_end              INTEGER,
	complexity            INTEGER,
	essential_complexity  INTEGER,
	is_dispatch           INTEGER,
	FOREIGN KEY(scan_id) REFERENCES scan_meta(id) ON DELETE CASCADE,
	PRIMARY KEY(path, scan_id, function_name, line_start)
);

CREATE TABLE IF NOT EXISTS complexity_trend (
	path                 TEXT NOT NULL,
	scan_id              INTEGER NOT NULL,
	scanned_at           TEXT NOT NULL,
	complexity           REAL,
	essential_complexity REAL,
	FOREIGN KEY(scan_id) REFERENCES scan_meta(id) ON DELETE CASCADE,
	PRIMARY KEY(path, scan_id)
);

CREATE TABLE IF NOT EXISTS git_stats (
	path               TEXT PRIMARY KEY,
	churn              INTEGER,
	authors            INTEGER,
	age_days           INTEGER,
	hotspot            REAL,
	ownership_fraction REAL,
	minor_contributors INTEGER
);

CREATE TABLE IF NOT EXISTS co_change (
	path_a TEXT NOT NULL,
	path_b TEXT NOT NULL,
	count  INTEGER,
	PRIMARY KEY(path_a, path_b)
);

CREATE TABLE IF NOT EXISTS file_state (
	path     TEXT PRIMARY KEY,
	mtime    INTEGER,
	git_blob TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_scan ON files(scan_id);
CREATE INDEX IF NOT EXISTS idx_files_complexity ON files(cyclomatic_complexity DESC);
CREATE INDEX IF NOT EXISTS idx_fm_scan ON file_metrics(scan_id);
CREATE INDEX IF NOT EXISTS idx_fcc_scan ON function_cc(scan_id);
CREATE INDEX IF NOT EXISTS idx_ct_scan ON complexity_trend(scan_id);
CREATE INDEX IF NOT EXISTS idx_gs_hotspot ON git_stats(hotspot DESC);
`

// Store wraps the quality.db connection with the retention policy active
// for this process.
type Store struct {
	db            *sql.DB
	scanRetention int
	fileRetention int
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithScanRetention overrides DefaultScanRetention.
func WithScanRetention(n int) Option { return func(s *Store) { s.scanRetention = n } }

// WithFileRetention overrides DefaultFileRetention.
func WithFileRetention(n int) Option { return func(s *Store) { s.fileRetention = n } }

// Open creates (if needed) and opens quality.db at path, applying schema
// and PRAGMAs. The caller must Close the returned Store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("qstore: open %s: %w", path, err)
	}
	// A single connection keeps WAL-mode writes serialized without an
	// extra mutex; concurrent scans are excluded at a higher level by
	// pkg/scanlock, so this is not a contention point.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("qstore: apply schema: %w", err)
	}

	s := &Store{db: db, scanRetention: DefaultScanRetention, fileRetention: DefaultFileRetention}
	for _, opt := range opts {
		opt(s)
	}
	if s.fileRetention > s.scanRetention {
		s.fileRetention = s.scanRetention
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying connection for callers that need a
// transaction spanning multiple qstore operations (the scanner
// orchestrator does, to make each scan atomic).
func (s *Store) DB() *sql.DB { return s.db }

// BeginScan records a new scan row and prunes scan_meta (and, via cascade,
// files/file_metrics/function_cc/complexity_trend) beyond retention.
// Pruning happens before the new scan is populated, per the retention
// contract: a crash between BeginScan and FinishScan leaves at most one
// incomplete scan row, never a retention-window violation.
func (s *Store) BeginScan(tx *sql.Tx, gitHead string) (int64, error) {
	res, err := tx.Exec(
		"INSERT INTO scan_meta (scanned_at, git_head) VALUES (?, ?)",
		time.Now().UTC().Format(time.RFC3339), gitHead,
	)
	if err != nil {
		return 0, fmt.Errorf("qstore: begin scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("qstore: begin scan: %w", err)
	}

	if err := s.pruneScans(tx, scanID); err != nil {
		return 0, err
	}
	return scanID, nil
}

// pruneScans deletes scan_meta rows beyond the scan retention window,
// cascading to files/file_metrics/function_cc. complexity_trend rows
// beyond the scan retention window are deleted the same way (it shares
// scan_meta's FK), and files/file_metrics additionally respect the
// (tighter) file retention window via a second, narrower delete.
func (s *Store) pruneScans(tx *sql.Tx, latestScanID int64) error {
	if _, err := tx.Exec(
		`DELETE FROM scan_meta WHERE id NOT IN (
			SELECT id FROM scan_meta ORDER BY id DESC LIMIT ?
		)`, s.scanRetention,
	); err != nil {
		return fmt.Errorf("qstore: prune scan_meta: %w", err)
	}

	if s.fileRetention < s.scanRetention {
		for _, table := range []string{"files", "file_metrics", "function_cc"} {
			q := fmt.Sprintf(
				`DELETE FROM %s WHERE scan_id NOT IN (
					SELECT id FROM scan_meta ORDER BY id DESC LIMIT ?
				)`, table)
			if _, err := tx.Exec(q, s.fileRetention); err != nil {
				return fmt.Errorf("qstore: prune %s: %w", table, err)
			}
		}
	}
	return nil
}

// FinishScan finalises a scan with its observed file count and duration.
func (s *Store) FinishScan(tx *sql.Tx, scanID int64, filesCount int, duration time.Duration) error {
	_, err := tx.Exec(
		"UPDATE scan_meta SET files_count = ?, duration_ms = ? WHERE id = ?",
		filesCount, duration.Milliseconds(), scanID,
	)
	if err != nil {
		return fmt.Errorf("qstore: finish scan: %w", err)
	}
	return nil
}

// LatestScan returns the most recent scan, or (zero, false) if none exist.
func (s *Store) LatestScan() (qmodel.ScanMeta, bool, error) {
	return s.scanAtOffset(0)
}

// PreviousScan returns the second-most-recent scan, for delta reports.
func (s *Store) PreviousScan() (qmodel.ScanMeta, bool, error) {
	return s.scanAtOffset(1)
}

func (s *Store) scanAtOffset(offset int) (qmodel.ScanMeta, bool, error) {
	rows, err := s.db.Query("SELECT id, scanned_at, git_head, files_count, duration_ms FROM scan_meta ORDER BY id DESC LIMIT ? OFFSET ?", 1, offset)
	if err != nil {
		return qmodel.ScanMeta{}, false, fmt.Errorf("qstore: scan lookup: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return qmodel.ScanMeta{}, false, nil
	}
	m, err := scanScanMeta(rows)
	return m, true, err
}

func scanScanMeta(rows *sql.Rows) (qmodel.ScanMeta, error) {
	var (
		m          qmodel.ScanMeta
		scannedAt  string
		filesCount sql.NullInt64
		durationMS sql.NullInt64
	)
	if err := rows.Scan(&m.ID, &scannedAt, &m.GitHead, &filesCount, &durationMS); err != nil {
		return qmodel.ScanMeta{}, fmt.Errorf("qstore: scan row: %w", err)
	}
	t, err := time.Parse(time.RFC3339, scannedAt)
	if err != nil {
		t = time.Time{}
	}
	m.ScannedAt = t
	m.FilesCount = int(filesCount.Int64)
	m.DurationMS = durationMS.Int64
	return m, nil
}

// UpsertFileEntry writes or replaces a files row for (path, scan_id).
func UpsertFileEntry(tx *sql.Tx, e qmodel.FileEntry) error {
	_, err := tx.Exec(`
		INSERT INTO files (path, scan_id, language, loc, cyclomatic_complexity,
			function_count, max_nesting, avg_function_length, essential_complexity, indent_sd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, scan_id) DO UPDATE SET
			language=excluded.language, loc=excluded.loc,
			cyclomatic_complexity=excluded.cyclomatic_complexity,
			function_count=excluded.function_count, max_nesting=excluded.max_nesting,
			avg_function_length=excluded.avg_function_length,
			essential_complexity=excluded.essential_complexity, indent_sd=excluded.indent_sd
	`, e.Path, e.ScanID, string(e.Language), e.LOC, e.CyclomaticComplexity,
		e.FunctionCount, e.MaxNesting, e.AvgFunctionLength, e.EssentialComplexity, e.IndentSD)
	if err != nil {
		return fmt.Errorf("qstore: upsert file entry %s: %w", e.Path, err)
	}
	return nil
}

// GetFileEntries returns files rows for a scan, optionally filtered to a
// single path.
func (s *Store) GetFileEntries(scanID int64, path string) ([]qmodel.FileEntry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if path != "" {
		rows, err = s.db.Query(`SELECT path, scan_id, language, loc, cyclomatic_complexity,
			function_count, max_nesting, avg_function_length, essential_complexity, indent_sd
			FROM files WHERE scan_id = ? AND path = ?`, scanID, path)
	} else {
		rows, err = s.db.Query(`SELECT path, scan_id, language, loc, cyclomatic_complexity,
			function_count, max_nesting, avg_function_length, essential_complexity, indent_sd
			FROM files WHERE scan_id = ?`, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("qstore: get file entries: %w", err)
	}
	defer rows.Close()

	var out []qmodel.FileEntry
	for rows.Next() {
		var (
			e        qmodel.FileEntry
			language string
		)
		if err := rows.Scan(&e.Path, &e.ScanID, &language, &e.LOC, &e.CyclomaticComplexity,
			&e.FunctionCount, &e.MaxNesting, &e.AvgFunctionLength, &e.EssentialComplexity, &e.IndentSD); err != nil {
			return nil, fmt.Errorf("qstore: scan file entry: %w", err)
		}
		e.Language = qmodel.Language(language)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertCKMetrics writes a CKMetrics's EAV rows for (path, scan_id).
func UpsertCKMetrics(tx *sql.Tx, ck qmodel.CKMetrics) error {
	for _, row := range ck.Rows() {
		if _, err := tx.Exec(`
			INSERT INTO file_metrics (path, scan_id, metric, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path, scan_id, metric) DO UPDATE SET value=excluded.value
		`, row.Path, row.ScanID, row.Metric, row.Value); err != nil {
			return fmt.Errorf("qstore: upsert ck metric %s/%s: %w", row.Path, row.Metric, err)
		}
	}
	return nil
}

// GetCKMetrics reassembles the CK metric set for a file in a scan.
func (s *Store) GetCKMetrics(scanID int64, path string) (qmodel.CKMetrics, bool, error) {
	rows, err := s.db.Query(
		"SELECT path, scan_id, metric, value FROM file_metrics WHERE scan_id = ? AND path = ?",
		scanID, path,
	)
	if err != nil {
		return qmodel.CKMetrics{}, false, fmt.Errorf("qstore: get ck metrics: %w", err)
	}
	defer rows.Close()

	var out []qmodel.CKMetricRow
	for rows.Next() {
		var r qmodel.CKMetricRow
		if err := rows.Scan(&r.Path, &r.ScanID, &r.Metric, &r.Value); err != nil {
			return qmodel.CKMetrics{}, false, fmt.Errorf("qstore: scan ck metric: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return qmodel.CKMetrics{}, false, err
	}
	ck, ok := qmodel.CKFromRows(out)
	return ck, ok, nil
}

// UpsertFunctionCC writes a per-function complexity row.
func UpsertFunctionCC(tx *sql.Tx, f qmodel.FunctionCC) error {
	dispatch := 0
	if f.IsDispatch {
		dispatch = 1
	}
	_, err := tx.Exec(`
		INSERT INTO function_cc (path, scan_id, function_name, line_start, line_end,
			complexity, essential_complexity, is_dispatch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, scan_id, function_name, line_start) DO UPDATE SET
			line_end=excluded.line_end, complexity=excluded.complexity,
			essential_complexity=excluded.essential_complexity, is_dispatch=excluded.is_dispatch
	`, f.Path, f.ScanID, f.FunctionName, f.LineStart, f.LineEnd,
		f.Complexity, f.EssentialComplexity, dispatch)
	if err != nil {
		return fmt.Errorf("qstore: upsert function cc %s/%s: %w", f.Path, f.FunctionName, err)
	}
	return nil
}

// GetFunctionCCs returns per-function complexity rows for a file in a
// scan, sorted by complexity descending.
func (s *Store) GetFunctionCCs(scanID int64, path string) ([]qmodel.FunctionCC, error) {
	rows, err := s.db.Query(`
		SELECT path, scan_id, function_name, line_start, line_end, complexity,
			essential_complexity, is_dispatch
		FROM function_cc WHERE scan_id = ? AND path = ?
		ORDER BY complexity DESC
	`, scanID, path)
	if err != nil {
		return nil, fmt.Errorf("qstore: get function ccs: %w", err)
	}
	defer rows.Close()

	var out []qmodel.FunctionCC
	for rows.Next() {
		var (
			f        qmodel.FunctionCC
			dispatch int
		)
		if err := rows.Scan(&f.Path, &f.ScanID, &f.FunctionName, &f.LineStart, &f.LineEnd,
			&f.Complexity, &f.EssentialComplexity, &dispatch); err != nil {
			return nil, fmt.Errorf("qstore: scan function cc: %w", err)
		}
		f.IsDispatch = dispatch != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpsertComplexityTrend writes one trend data point.
func UpsertComplexityTrend(tx *sql.Tx, t qmodel.ComplexityTrend) error {
	_, err := tx.Exec(`
		INSERT INTO complexity_trend (path, scan_id, scanned_at, complexity, essential_complexity)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, scan_id) DO UPDATE SET
			complexity=excluded.complexity, essential_complexity=excluded.essential_complexity
	`, t.Path, t.ScanID, t.ScannedAt.UTC().Format(time.RFC3339), t.Complexity, t.EssentialComplexity)
	if err != nil {
		return fmt.Errorf("qstore: upsert complexity trend %s: %w", t.Path, err)
	}
	return nil
}

// GetComplexityTrend returns a path's retained trend history, oldest
// first, suitable for slope fitting.
func (s *Store) GetComplexityTrend(path string) ([]qmodel.ComplexityTrend, error) {
	rows, err := s.db.Query(`
		SELECT path, scan_id, scanned_at, complexity, essential_complexity
		FROM complexity_trend WHERE path = ? ORDER BY scan_id ASC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("qstore: get complexity trend: %w", err)
	}
	defer rows.Close()

	var out []qmodel.ComplexityTrend
	for rows.Next() {
		var (
			t         qmodel.ComplexityTrend
			scannedAt string
		)
		if err := rows.Scan(&t.Path, &t.ScanID, &scannedAt, &t.Complexity, &t.EssentialComplexity); err != nil {
			return nil, fmt.Errorf("qstore: scan complexity trend: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, scannedAt); err == nil {
			t.ScannedAt = parsed
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertGitStats writes or replaces a file's current-state history
// metrics. NOT scan-versioned.
func UpsertGitStats(tx *sql.Tx, g qmodel.GitStats) error {
	_, err := tx.Exec(`
		INSERT INTO git_stats (path, churn, authors, age_days, hotspot, ownership_fraction, minor_contributors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			churn=excluded.churn, authors=excluded.authors, age_days=excluded.age_days,
			hotspot=excluded.hotspot, ownership_fraction=excluded.ownership_fraction,
			minor_contributors=excluded.minor_contributors
	`, g.Path, g.Churn, g.Authors, g.AgeDays, g.Hotspot, g.OwnershipFraction, g.MinorContributors)
	if err != nil {
		return fmt.Errorf("qstore: upsert git stats %s: %w", g.Path, err)
	}
	return nil
}

// GetGitStats returns every tracked path's current-state history metrics.
func (s *Store) GetGitStats() ([]qmodel.GitStats, error) {
	rows, err := s.db.Query("SELECT path, churn, authors, age_days, hotspot, ownership_fraction, minor_contributors FROM git_stats")
	if err != nil {
		return nil, fmt.Errorf("qstore: get git stats: %w", err)
	}
	defer rows.Close()

	var out []qmodel.GitStats
	for rows.Next() {
		var g qmodel.GitStats
		if err := rows.Scan(&g.Path, &g.Churn, &g.Authors, &g.AgeDays, &g.Hotspot, &g.OwnershipFraction, &g.MinorContributors); err != nil {
			return nil, fmt.Errorf("qstore: scan git stats: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// TopHotspots returns the N highest-hotspot git_stats rows with hotspot
// strictly above threshold, descending.
func (s *Store) TopHotspots(topN int, threshold float64) ([]qmodel.GitStats, error) {
	rows, err := s.db.Query(`
		SELECT path, churn, authors, age_days, hotspot, ownership_fraction, minor_contributors
		FROM git_stats WHERE hotspot > ? ORDER BY hotspot DESC LIMIT ?
	`, threshold, topN)
	if err != nil {
		return nil, fmt.Errorf("qstore: top hotspots: %w", err)
	}
	defer rows.Close()

	var out []qmodel.GitStats
	for rows.Next() {
		var g qmodel.GitStats
		if err := rows.Scan(&g.Path, &g.Churn, &g.Authors, &g.AgeDays, &g.Hotspot, &g.OwnershipFraction, &g.MinorContributors); err != nil {
			return nil, fmt.Errorf("qstore: scan hotspot: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ReplaceCoChanges clears and repopulates the entire co_change table,
// since co-change is recomputed in full from history on every scan.
func ReplaceCoChanges(tx *sql.Tx, pairs []qmodel.CoChange) error {
	if _, err := tx.Exec("DELETE FROM co_change"); err != nil {
		return fmt.Errorf("qstore: clear co_change: %w", err)
	}
	for _, p := range pairs {
		if _, err := tx.Exec(
			"INSERT INTO co_change (path_a, path_b, count) VALUES (?, ?, ?)",
			p.PathA, p.PathB, p.Count,
		); err != nil {
			return fmt.Errorf("qstore: insert co_change %s/%s: %w", p.PathA, p.PathB, err)
		}
	}
	return nil
}

// GetCoChanges returns co-change pairs, optionally filtered to those
// involving path, descending by count.
func (s *Store) GetCoChanges(path string, topN int) ([]qmodel.CoChange, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if path != "" {
		rows, err = s.db.Query(
			"SELECT path_a, path_b, count FROM co_change WHERE path_a = ? OR path_b = ? ORDER BY count DESC LIMIT ?",
			path, path, topN,
		)
	} else {
		rows, err = s.db.Query("SELECT path_a, path_b, count FROM co_change ORDER BY count DESC LIMIT ?", topN)
	}
	if err != nil {
		return nil, fmt.Errorf("qstore: get co_changes: %w", err)
	}
	defer rows.Close()

	var out []qmodel.CoChange
	for rows.Next() {
		var c qmodel.CoChange
		if err := rows.Scan(&c.PathA, &c.PathB, &c.Count); err != nil {
			return nil, fmt.Errorf("qstore: scan co_change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertFileState writes or replaces incremental-scan tracking for path.
func UpsertFileState(tx *sql.Tx, fs qmodel.FileState) error {
	_, err := tx.Exec(`
		INSERT INTO file_state (path, mtime, git_blob) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET mtime=excluded.mtime, git_blob=excluded.git_blob
	`, fs.Path, fs.Mtime, fs.GitBlob)
	if err != nil {
		return fmt.Errorf("qstore: upsert file state %s: %w", fs.Path, err)
	}
	return nil
}

// GetFileState returns a path's tracking row, or (zero, false) if untracked.
func (s *Store) GetFileState(path string) (qmodel.FileState, bool, error) {
	row := s.db.QueryRow("SELECT path, mtime, git_blob FROM file_state WHERE path = ?", path)
	var fs qmodel.FileState
	err := row.Scan(&fs.Path, &fs.Mtime, &fs.GitBlob)
	if err == sql.ErrNoRows {
		return qmodel.FileState{}, false, nil
	}
	if err != nil {
		return qmodel.FileState{}, false, fmt.Errorf("qstore: get file state %s: %w", path, err)
	}
	return fs, true, nil
}

// AllFileStates returns the full incremental-tracking set, keyed by path.
func (s *Store) AllFileStates() (map[string]qmodel.FileState, error) {
	rows, err := s.db.Query("SELECT path, mtime, git_blob FROM file_state")
	if err != nil {
		return nil, fmt.Errorf("qstore: all file states: %w", err)
	}
	defer rows.Close()

	out := make(map[string]qmodel.FileState)
	for rows.Next() {
		var fs qmodel.FileState
		if err := rows.Scan(&fs.Path, &fs.Mtime, &fs.GitBlob); err != nil {
			return nil, fmt.Errorf("qstore: scan file state: %w", err)
		}
		out[fs.Path] = fs
	}
	return out, rows.Err()
}

// FileChanged reports whether path should be re-scanned: true if it has
// no recorded state, or its blob/mtime differ from the recorded state.
// Blob identity is authoritative when both sides have one; mtime is the
// fallback for untracked files with no blob hash.
func FileChanged(state qmodel.FileState, tracked bool, currentMtime int64, currentBlob string) bool {
	if !tracked {
		return true
	}
	if currentBlob != "" && state.GitBlob != "" {
		return currentBlob != state.GitBlob
	}
	return currentMtime != state.Mtime
}

// RowCount returns the number of rows table currently holds; used by
// tests asserting retention pruning.
func (s *Store) RowCount(table string) (int, error) {
	var n int64
	// table is always one of the fixed schema identifiers above, never
	// user input, so string formatting here is not an injection risk.
	row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("qstore: row count %s: %w", table, err)
	}
	return int(n), nil
}
