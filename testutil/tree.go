// Package testutil contains helpers for testing code that reads and writes directory trees.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// WriteTree creates the files in files under dir.
// Keys are slash-separated paths relative to dir; values are file contents.
// Parent dirs are created as needed.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// ReadTree returns the contents of every regular file under dir,
// keyed by slash-separated path relative to dir.
// A missing dir yields an empty map.
func ReadTree(t *testing.T, dir string) map[string]string {
	t.Helper()

	result := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if errors.Is(err, os.ErrNotExist) && path == dir {
			return filepath.SkipDir
		}
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		result[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return result
}

// Snapshot is the state of a dir tree:
// the contents and modtimes of its regular files,
// and the set of its subdirs.
type Snapshot struct {
	Files   map[string]string
	ModTime map[string]time.Time
	Dirs    []string
}

// TakeSnapshot records the state of the tree under dir.
func TakeSnapshot(t *testing.T, dir string) Snapshot {
	t.Helper()

	snap := Snapshot{
		Files:   ReadTree(t, dir),
		ModTime: make(map[string]time.Time),
	}
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if errors.Is(err, os.ErrNotExist) && path == dir {
			return filepath.SkipDir
		}
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			snap.Dirs = append(snap.Dirs, rel)
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		snap.ModTime[rel] = info.ModTime()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(snap.Dirs)
	return snap
}

// Unchanged fails the test if the tree under dir no longer matches snap.
func Unchanged(t *testing.T, dir string, snap Snapshot) {
	t.Helper()

	if diff := cmp.Diff(snap, TakeSnapshot(t, dir)); diff != "" {
		t.Errorf("tree %s changed (-before +after):\n%s", dir, diff)
	}
}

// SetModTime sets the modtime of the file at path.
func SetModTime(t *testing.T, path string, when time.Time) {
	t.Helper()

	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatal(err)
	}
}
