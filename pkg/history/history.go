// Package history mines per-file churn, authorship, age, ownership, and
// co-change statistics from a repository's commit log in a bounded
// single pass. It is built directly on pkg/gitlib's libgit2 bindings,
// the same layer the rest of this module uses for blob and tree access,
// rather than shelling out to a `git log` subprocess.
package history

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weave-dev/weave-quality/pkg/gitlib"
	"github.com/weave-dev/weave-quality/pkg/qmodel"
)

const (
	// CoChangeMaxCommits bounds the second, co-change pass to the most
	// recent commits regardless of how far back CoChangeHorizon reaches.
	CoChangeMaxCommits = 500
	// CoChangeHorizon is the time window the co-change pass considers.
	CoChangeHorizon = 6 * 30 * 24 * time.Hour

	// MinorContributorShare is the commit-share threshold below which an
	// author counts as a minor contributor.
	MinorContributorShare = 0.05
	// MinorContributorMinAuthors is the minimum author count at which
	// minor-contributor counting kicks in at all.
	MinorContributorMinAuthors = 3

	// TopNNeighbors bounds the per-file co-occurring-paths list.
	TopNNeighbors = 10
)

// Miner wraps a repository handle for one bounded history-mining pass.
type Miner struct {
	repo *gitlib.Repository
}

// Open opens the repository at repoPath for mining.
func Open(repoPath string) (*Miner, error) {
	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		return nil, err
	}
	return &Miner{repo: repo}, nil
}

// Close releases the underlying repository handle.
func (m *Miner) Close() {
	m.repo.Free()
}

// Result is everything one Mine call produces.
type Result struct {
	Stats          []qmodel.GitStats
	CoChanges      []qmodel.CoChange
	Neighbors      map[string][]string
	BlobIdentities map[string]gitlib.Hash
	CoChangeFailed bool
}

type fileAccum struct {
	commits    int
	authors    map[string]int
	mostRecent time.Time
}

// Mine runs both bounded passes plus the blob-identity batch fetch. The
// per-file pass and the co-change pass are independent bounded single
// passes over the same commit log, so they run concurrently via
// errgroup; neither mutates shared state and nothing downstream needs
// them ordered with respect to each other. A failure in the co-change
// pass is swallowed into Result.CoChangeFailed rather than propagated
// (it never returns an error to the group, so it can't cancel the
// per-file pass), matching the "history-query-failure: scan continues"
// policy; a failure in the per-file pass or the blob batch is returned,
// since those feed every file's GitStats row.
func (m *Miner) Mine(ctx context.Context, now time.Time) (Result, error) {
	var (
		perFile   map[string]*fileAccum
		coChanges []qmodel.CoChange
		neighbors map[string][]string
		ccErr     error
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		perFile, err = m.minePerFileStats(ctx)
		return err
	})
	g.Go(func() error {
		coChanges, neighbors, ccErr = m.mineCoChange(ctx, now)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	blobs, err := m.mineBlobIdentities()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Stats:          buildGitStats(perFile, now),
		CoChanges:      coChanges,
		Neighbors:      neighbors,
		BlobIdentities: blobs,
		CoChangeFailed: ccErr != nil,
	}, nil
}

func (m *Miner) minePerFileStats(ctx context.Context) (map[string]*fileAccum, error) {
	iter, err := m.repo.Log(&gitlib.LogOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	accum := make(map[string]*fileAccum)

	err = iter.ForEach(func(c *gitlib.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		paths, err := changedPaths(m.repo, c)
		if err != nil {
			return err
		}

		when := c.Author().When
		author := c.Author().Email
		for _, p := range paths {
			a, ok := accum[p]
			if !ok {
				a = &fileAccum{authors: make(map[string]int)}
				accum[p] = a
			}
			a.commits++
			a.authors[author]++
			if a.mostRecent.IsZero() || when.After(a.mostRecent) {
				a.mostRecent = when
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accum, nil
}

func changedPaths(repo *gitlib.Repository, c *gitlib.Commit) ([]string, error) {
	newTree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	defer newTree.Free()

	var changes gitlib.Changes
	if c.NumParents() == 0 {
		changes, err = gitlib.InitialTreeChanges(repo, newTree)
	} else {
		parent, perr := c.Parent(0)
		if perr != nil {
			return nil, perr
		}
		defer parent.Free()

		oldTree, terr := parent.Tree()
		if terr != nil {
			return nil, terr
		}
		defer oldTree.Free()

		changes, err = gitlib.TreeDiff(repo, oldTree, newTree)
	}
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(changes))
	seen := make(map[string]bool, len(changes))
	for _, ch := range changes {
		p := ch.To.Name
		if p == "" {
			p = ch.From.Name
		}
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func buildGitStats(accum map[string]*fileAccum, now time.Time) []qmodel.GitStats {
	stats := make([]qmodel.GitStats, 0, len(accum))
	for path, a := range accum {
		ageDays := int(math.Floor(now.Sub(a.mostRecent).Hours() / 24))
		if ageDays < 0 {
			ageDays = 0
		}

		ownership, minor := ownershipStats(a.authors)

		stats = append(stats, qmodel.GitStats{
			Path:              path,
			Churn:             a.commits,
			Authors:           len(a.authors),
			AgeDays:           ageDays,
			OwnershipFraction: ownership,
			MinorContributors: minor,
		})
	}
	return stats
}

func ownershipStats(authors map[string]int) (ownership float64, minor int) {
	if len(authors) < 2 {
		return 1.0, 0
	}

	total := 0
	counts := make([]int, 0, len(authors))
	for _, c := range authors {
		total += c
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	ownership = float64(counts[0]) / float64(total)

	if len(authors) >= MinorContributorMinAuthors {
		for _, c := range counts {
			if float64(c)/float64(total) < MinorContributorShare {
				minor++
			}
		}
	}
	return ownership, minor
}

func (m *Miner) mineBlobIdentities() (map[string]gitlib.Hash, error) {
	head, err := m.repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := m.repo.LookupCommit(context.Background(), head)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	files, err := commit.Files()
	if err != nil {
		return nil, err
	}

	blobs := make(map[string]gitlib.Hash)
	err = files.ForEach(func(f *gitlib.File) error {
		blobs[f.Name] = f.Hash
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

func (m *Miner) mineCoChange(ctx context.Context, now time.Time) ([]qmodel.CoChange, map[string][]string, error) {
	since := now.Add(-CoChangeHorizon)
	iter, err := m.repo.Log(&gitlib.LogOptions{Since: &since})
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close()

	pairCounts := make(map[[2]string]int)
	neighborCounts := make(map[string]map[string]int)

	processed := 0
	walkErr := iter.ForEach(func(c *gitlib.Commit) error {
		if processed >= CoChangeMaxCommits {
			return errStopIteration
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.NumParents() > 1 {
			return nil // merge commit, excluded
		}

		paths, err := changedPaths(m.repo, c)
		if err != nil {
			return err
		}
		processed++

		sort.Strings(paths)
		for i := 0; i < len(paths); i++ {
			for j := i + 1; j < len(paths); j++ {
				pairCounts[[2]string{paths[i], paths[j]}]++
			}
		}
		for i, p := range paths {
			m, ok := neighborCounts[p]
			if !ok {
				m = make(map[string]int)
				neighborCounts[p] = m
			}
			for j, q := range paths {
				if i == j {
					continue
				}
				m[q]++
			}
		}
		return nil
	})
	if walkErr != nil && walkErr != errStopIteration {
		return nil, nil, walkErr
	}

	coChanges := make([]qmodel.CoChange, 0, len(pairCounts))
	for pair, count := range pairCounts {
		coChanges = append(coChanges, qmodel.CoChange{PathA: pair[0], PathB: pair[1], Count: count})
	}
	sort.Slice(coChanges, func(i, j int) bool { return coChanges[i].Count > coChanges[j].Count })

	neighbors := make(map[string][]string, len(neighborCounts))
	for path, counts := range neighborCounts {
		type scored struct {
			path  string
			count int
		}
		ranked := make([]scored, 0, len(counts))
		for p, c := range counts {
			ranked = append(ranked, scored{p, c})
		}
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })
		if len(ranked) > TopNNeighbors {
			ranked = ranked[:TopNNeighbors]
		}
		list := make([]string, len(ranked))
		for i, r := range ranked {
			list[i] = r.path
		}
		neighbors[path] = list
	}

	return coChanges, neighbors, nil
}

// errStopIteration is a sentinel used internally to break out of
// ForEach once the bounded commit cap is reached; it never escapes
// mineCoChange.
var errStopIteration = errStop{}

type errStop struct{}

func (errStop) Error() string { return "history: bounded iteration limit reached" }
