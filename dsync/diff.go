package dsync

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// DefaultIgnore lists base names that are never compared or copied.
var DefaultIgnore = []string{"RCS", "CVS", "tags", ".git", ".hg", ".bzr", "_darcs", "__pycache__"}

// Diff is the result of comparing two directories, one level deep.
// All names are base names, sorted.
type Diff struct {
	// LeftOnly names the entries present only in the left dir.
	LeftOnly []string

	// DiffFiles names the regular files present in both dirs with differing content.
	DiffFiles []string

	// Subdirs names the dirs present in both.
	Subdirs []string
}

// Compare compares the dirs left and right.
// A missing right dir is treated as empty.
//
// In shallow mode (deep false),
// two files with the same type, size, and modtime are taken to be equal without reading them.
// Otherwise, and always in deep mode,
// their contents are compared.
//
// Names matched by exclude, or listed in DefaultIgnore, are omitted from every list.
// Entries of mismatched type (e.g. a file on one side and a dir on the other) are omitted too.
func Compare(left, right string, deep bool, exclude func(name string) bool) (*Diff, error) {
	lnames, err := readNames(left)
	if err != nil {
		return nil, err
	}
	rnames, err := readNames(right)
	if errors.Is(err, os.ErrNotExist) {
		rnames, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	rset := make(map[string]struct{}, len(rnames))
	for _, name := range rnames {
		rset[name] = struct{}{}
	}

	diff := new(Diff)
	for _, name := range lnames {
		if ignored(name) || (exclude != nil && exclude(name)) {
			continue
		}
		if _, ok := rset[name]; !ok {
			diff.LeftOnly = append(diff.LeftOnly, name)
			continue
		}

		lpath, rpath := filepath.Join(left, name), filepath.Join(right, name)
		linfo, err := os.Stat(lpath)
		if err != nil {
			return nil, errors.Wrapf(err, "statting %s", lpath)
		}
		rinfo, err := os.Stat(rpath)
		if err != nil {
			return nil, errors.Wrapf(err, "statting %s", rpath)
		}

		switch {
		case linfo.IsDir() && rinfo.IsDir():
			diff.Subdirs = append(diff.Subdirs, name)

		case linfo.Mode().IsRegular() && rinfo.Mode().IsRegular():
			same, err := filesEqual(lpath, linfo, rpath, rinfo, deep)
			if err != nil {
				return nil, err
			}
			if !same {
				diff.DiffFiles = append(diff.DiffFiles, name)
			}
		}
	}
	return diff, nil
}

func readNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading dir %s", dir)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func ignored(name string) bool {
	for _, ig := range DefaultIgnore {
		if name == ig {
			return true
		}
	}
	return false
}

func filesEqual(apath string, ainfo os.FileInfo, bpath string, binfo os.FileInfo, deep bool) (bool, error) {
	if ainfo.Size() != binfo.Size() {
		return false, nil
	}
	if !deep && ainfo.ModTime().Equal(binfo.ModTime()) && ainfo.Mode().Type() == binfo.Mode().Type() {
		return true, nil
	}

	a, err := os.Open(apath)
	if err != nil {
		return false, errors.Wrapf(err, "opening %s", apath)
	}
	defer a.Close()

	b, err := os.Open(bpath)
	if err != nil {
		return false, errors.Wrapf(err, "opening %s", bpath)
	}
	defer b.Close()

	return readersEqual(bufio.NewReader(a), bufio.NewReader(b))
}

const chunkSize = 32 * 1024

func readersEqual(a, b io.Reader) (bool, error) {
	abuf, bbuf := make([]byte, chunkSize), make([]byte, chunkSize)
	for {
		an, aerr := io.ReadFull(a, abuf)
		bn, berr := io.ReadFull(b, bbuf)
		if !bytes.Equal(abuf[:an], bbuf[:bn]) {
			return false, nil
		}
		aeof := aerr == io.EOF || aerr == io.ErrUnexpectedEOF
		beof := berr == io.EOF || berr == io.ErrUnexpectedEOF
		if aeof || beof {
			return aeof && beof, nil
		}
		if aerr != nil {
			return false, errors.Wrap(aerr, "reading")
		}
		if berr != nil {
			return false, errors.Wrap(berr, "reading")
		}
	}
}
