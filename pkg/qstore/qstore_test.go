package qstore

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quality.db")
	store, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func withTx(t *testing.T, store *Store, fn func(tx *sql.Tx) error) {
	t.Helper()

	tx, err := store.DB().Begin()
	require.NoError(t, err)
	require.NoError(t, fn(tx))
	require.NoError(t, tx.Commit())
}

func TestBeginScanAndRetention(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, WithScanRetention(2), WithFileRetention(2))

	var scanIDs []int64
	for i := 0; i < 4; i++ {
		withTx(t, store, func(tx *sql.Tx) error {
			id, err := store.BeginScan(tx, "head")
			if err != nil {
				return err
			}
			scanIDs = append(scanIDs, id)
			require.NoError(t, UpsertFileEntry(tx, qmodel.FileEntry{Path: "a.py", ScanID: id, CyclomaticComplexity: 1}))
			return store.FinishScan(tx, id, 1, time.Millisecond)
		})
	}

	n, err := store.RowCount("scan_meta")
	require.NoError(t, err)
	require.Equal(t, 2, n, "scan_meta should retain only the newest 2 scans")

	entries, err := store.GetFileEntries(scanIDs[len(scanIDs)-1], "")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = store.GetFileEntries(scanIDs[0], "")
	require.NoError(t, err)
	require.Empty(t, entries, "pruned scan's files rows should be cascade-deleted")
}

func TestFileRetentionTighterThanScanRetention(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, WithScanRetention(5), WithFileRetention(2))

	var lastID int64
	for i := 0; i < 5; i++ {
		withTx(t, store, func(tx *sql.Tx) error {
			id, err := store.BeginScan(tx, "head")
			if err != nil {
				return err
			}
			lastID = id
			require.NoError(t, UpsertFileEntry(tx, qmodel.FileEntry{Path: "a.py", ScanID: id}))
			return store.FinishScan(tx, id, 1, 0)
		})
	}

	scans, err := store.RowCount("scan_meta")
	require.NoError(t, err)
	require.Equal(t, 5, scans)

	files, err := store.RowCount("files")
	require.NoError(t, err)
	require.Equal(t, 2, files, "files retains only the tighter file-retention window")

	require.NotZero(t, lastID)
}

func TestCKMetricsUpsertAndGet(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	var scanID int64
	withTx(t, store, func(tx *sql.Tx) error {
		id, err := store.BeginScan(tx, "head")
		scanID = id
		if err != nil {
			return err
		}
		return UpsertCKMetrics(tx, qmodel.CKMetrics{
			Path: "a.py", ScanID: id,
			Metrics: map[string]float64{"wmc": 5, "cbo": 2},
		})
	})

	ck, ok, err := store.GetCKMetrics(scanID, "a.py")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5.0, ck.Metrics["wmc"])
	require.Equal(t, 2.0, ck.Metrics["cbo"])
}

func TestFileStateTracksChanges(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	_, tracked, err := store.GetFileState("a.py")
	require.NoError(t, err)
	require.False(t, tracked)
	require.True(t, FileChanged(qmodel.FileState{}, tracked, 100, "blob1"))

	withTx(t, store, func(tx *sql.Tx) error {
		return UpsertFileState(tx, qmodel.FileState{Path: "a.py", Mtime: 100, GitBlob: "blob1"})
	})

	state, tracked, err := store.GetFileState("a.py")
	require.NoError(t, err)
	require.True(t, tracked)
	require.False(t, FileChanged(state, tracked, 100, "blob1"))
	require.True(t, FileChanged(state, tracked, 100, "blob2"))
}

func TestCoChangeReplace(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	withTx(t, store, func(tx *sql.Tx) error {
		return ReplaceCoChanges(tx, []qmodel.CoChange{
			{PathA: "a.py", PathB: "b.py", Count: 3},
			{PathA: "a.py", PathB: "c.py", Count: 1},
		})
	})

	pairs, err := store.GetCoChanges("a.py", 10)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	require.Equal(t, "b.py", pairs[0].PathB, "results sorted by count descending")

	withTx(t, store, func(tx *sql.Tx) error {
		return ReplaceCoChanges(tx, []qmodel.CoChange{{PathA: "x.py", PathB: "y.py", Count: 9}})
	})
	pairs, err = store.GetCoChanges("", 10)
	require.NoError(t, err)
	require.Len(t, pairs, 1, "replace clears the previous co_change rows wholesale")
}
