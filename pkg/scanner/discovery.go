package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/weave-dev/weave-quality/pkg/gitlib"
)

// hiddenOrVendorDirs are always skipped by the filesystem-walk fallback,
// regardless of exclude globs.
var hiddenOrVendorDirs = map[string]bool{
	"vendor": true, "node_modules": true, ".git": true, ".weave": true,
}

// ResolveRepoRoot picks the repository root: an explicit argument wins,
// then the REPO_ROOT environment variable, then the nearest ancestor of
// the current directory carrying a .git entry.
func ResolveRepoRoot(arg string) (string, error) {
	if arg != "" {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", err
		}

		return abs, nil
	}

	if env := os.Getenv("REPO_ROOT"); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return "", err
		}

		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if _, statErr := os.Stat(filepath.Join(dir, ".git")); statErr == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("scanner: no .git ancestor found from " + cwd)
		}

		dir = parent
	}
}

// candidateFile is one file discovered for analysis, with the blob hash
// already known when sourced from the repository tree.
type candidateFile struct {
	Path  string // repo-relative, forward-slash separated
	Blob  string // git blob hash hex, empty if untracked
	Mtime int64  // unix seconds, set only when Blob is empty (walk fallback)
}

// DiscoverFiles lists candidate files, preferring the repository's tracked
// tree (so ignored files are never considered and blob identities come for
// free) and falling back to a filesystem walk excluding hidden and vendor
// directories when the repository cannot be opened. excludeGlobs is applied
// to both sources.
func DiscoverFiles(ctx context.Context, repo *gitlib.Repository, root string, excludeGlobs []string) ([]candidateFile, error) {
	if repo != nil {
		files, err := discoverFromTree(repo)
		if err == nil {
			return filterCandidates(files, excludeGlobs), nil
		}
	}

	files, err := discoverFromWalk(ctx, root)
	if err != nil {
		return nil, err
	}

	return filterCandidates(files, excludeGlobs), nil
}

func discoverFromTree(repo *gitlib.Repository) ([]candidateFile, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, err
	}

	commit, err := repo.LookupCommit(context.Background(), head)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	iter := tree.Files()

	var out []candidateFile

	err = iter.ForEach(func(f *gitlib.File) error {
		out = append(out, candidateFile{Path: f.Name, Blob: f.Hash.String()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func discoverFromWalk(ctx context.Context, root string) ([]candidateFile, error) {
	var out []candidateFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || hiddenOrVendorDirs[name] {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		out = append(out, candidateFile{Path: filepath.ToSlash(rel), Mtime: info.ModTime().Unix()})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func filterCandidates(files []candidateFile, excludeGlobs []string) []candidateFile {
	if len(excludeGlobs) == 0 {
		return files
	}

	out := make([]candidateFile, 0, len(files))

	for _, f := range files {
		if !matchesAnyGlob(f.Path, excludeGlobs) {
			out = append(out, f)
		}
	}

	return out
}

// matchesAnyGlob reports whether path matches any of globs. Each glob is
// matched both against the full path and, for a "**/" prefixed glob,
// against every suffix of the path's path-separated components — the
// minimal support needed for patterns like "vendor/**" or "**/*.pb.go"
// without pulling in a doublestar-style dependency this module otherwise
// has no use for.
func matchesAnyGlob(path string, globs []string) bool {
	for _, g := range globs {
		if globMatch(g, path) {
			return true
		}
	}

	return false
}

// readFileFallback reads path directly from disk, for untracked files or
// when a blob lookup misses (e.g. a file discovered by the walk fallback).
func readFileFallback(root string, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
}

func globMatch(glob, path string) bool {
	if ok, err := filepath.Match(glob, path); err == nil && ok {
		return true
	}

	if strings.HasSuffix(glob, "/**") {
		prefix := strings.TrimSuffix(glob, "/**")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if strings.HasPrefix(glob, "**/") {
		suffix := strings.TrimPrefix(glob, "**/")

		segments := strings.Split(path, "/")
		for i := range segments {
			candidate := strings.Join(segments[i:], "/")
			if ok, err := filepath.Match(suffix, candidate); err == nil && ok {
				return true
			}
		}
	}

	return false
}
