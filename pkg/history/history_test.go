package history_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/weave-dev/weave-quality/pkg/history"
)

// testRepo wraps a throwaway repository for integration testing,
// mirroring the fixture pkg/gitlib's own tests build against libgit2
// directly rather than shelling out to the git binary.
type testRepo struct {
	t    *testing.T
	path string
	repo *git2go.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, repo: repo}
}

func (tr *testRepo) writeFile(name, content string) {
	tr.t.Helper()
	path := filepath.Join(tr.path, name)
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

func (tr *testRepo) commitAs(author, message string, when time.Time) {
	tr.t.Helper()

	index, err := tr.repo.Index()
	require.NoError(tr.t, err)
	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.repo.LookupTree(treeID)
	require.NoError(tr.t, err)
	defer tree.Free()

	sig := &git2go.Signature{Name: author, Email: author + "@example.com", When: when}

	var parents []*git2go.Commit
	if head, err := tr.repo.Head(); err == nil {
		headCommit, lookupErr := tr.repo.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)
		parents = append(parents, headCommit)
		head.Free()
	}

	_, err = tr.repo.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)
	for _, p := range parents {
		p.Free()
	}
}

func TestMinePerFileChurnAndAuthors(t *testing.T) {
	tr := newTestRepo(t)

	now := time.Now()
	tr.writeFile("a.py", "x = 1\n")
	tr.commitAs("alice", "add a", now.Add(-72*time.Hour))

	tr.writeFile("a.py", "x = 2\n")
	tr.commitAs("bob", "tweak a", now.Add(-24*time.Hour))

	tr.writeFile("b.py", "y = 1\n")
	tr.commitAs("alice", "add b", now)

	m, err := history.Open(tr.path)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	result, err := m.Mine(context.Background(), now)
	require.NoError(t, err)

	byPath := make(map[string]int)
	for _, s := range result.Stats {
		byPath[s.Path] = s.Churn
	}
	require.Equal(t, 2, byPath["a.py"])
	require.Equal(t, 1, byPath["b.py"])
}

func TestMineOwnershipFractionSingleAuthorIsFull(t *testing.T) {
	tr := newTestRepo(t)

	now := time.Now()
	tr.writeFile("solo.py", "x = 1\n")
	tr.commitAs("alice", "solo commit", now)

	m, err := history.Open(tr.path)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	result, err := m.Mine(context.Background(), now)
	require.NoError(t, err)

	for _, s := range result.Stats {
		if s.Path == "solo.py" {
			require.Equal(t, 1.0, s.OwnershipFraction)
		}
	}
}

func TestMineBlobIdentitiesCoverHeadFiles(t *testing.T) {
	tr := newTestRepo(t)

	tr.writeFile("tracked.py", "x = 1\n")
	tr.commitAs("alice", "add tracked", time.Now())

	m, err := history.Open(tr.path)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	result, err := m.Mine(context.Background(), time.Now())
	require.NoError(t, err)

	if _, ok := result.BlobIdentities["tracked.py"]; !ok {
		t.Error("expected tracked.py to have a blob identity at HEAD")
	}
}

func TestMineCoChangeCountsFilesTouchedTogether(t *testing.T) {
	tr := newTestRepo(t)

	now := time.Now()
	tr.writeFile("a.py", "x = 1\n")
	tr.writeFile("b.py", "y = 1\n")
	tr.commitAs("alice", "add both", now.Add(-time.Hour))

	tr.writeFile("a.py", "x = 2\n")
	tr.writeFile("b.py", "y = 2\n")
	tr.commitAs("alice", "touch both again", now)

	m, err := history.Open(tr.path)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	result, err := m.Mine(context.Background(), now)
	require.NoError(t, err)

	var found bool
	for _, cc := range result.CoChanges {
		if (cc.PathA == "a.py" && cc.PathB == "b.py") || (cc.PathA == "b.py" && cc.PathB == "a.py") {
			found = true
			if cc.Count != 2 {
				t.Errorf("co-change count = %d, want 2", cc.Count)
			}
		}
	}
	if !found {
		t.Fatal("expected a.py/b.py co-change pair")
	}
}
