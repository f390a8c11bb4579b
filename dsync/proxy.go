package dsync

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

// BackupSuffix is appended to a file's path to name its backup.
const BackupSuffix = "~"

// Operation names passed to a Recorder.
const (
	OpCopy     = "copy"
	OpCopyTree = "copytree"
	OpRemove   = "remove"
	OpSet      = "set"
	OpClear    = "clear"
)

// Recorder receives a description of each mutation a Proxy performs (or, in dry-run mode, would perform).
// For document operations, src is the key (empty for OpClear) and dst is the document's filename.
type Recorder interface {
	Record(ctx context.Context, op, src, dst string, dryRun bool) error
}

// Proxy performs every mutation of the destination on behalf of a sync.
// It logs each one, passes it to the Recorder if there is one,
// and in dry-run mode performs nothing.
// A Proxy is safe for concurrent use.
type Proxy struct {
	dryRun bool
	rec    Recorder
	lg     logger
}

// NewProxy produces a new Proxy.
// The logger and recorder may be nil.
func NewProxy(dryRun bool, l *log.Logger, verbosity int, rec Recorder) *Proxy {
	return &Proxy{
		dryRun: dryRun,
		rec:    rec,
		lg:     newLogger(l, verbosity),
	}
}

// DryRun tells whether p is in dry-run mode.
func (p *Proxy) DryRun() bool {
	return p.dryRun
}

func (p *Proxy) record(ctx context.Context, op, src, dst string) error {
	if p.rec == nil {
		return nil
	}
	return errors.Wrapf(p.rec.Record(ctx, op, src, dst, p.dryRun), "recording %s", op)
}

// Copy copies the regular file src to dst, preserving its permission bits.
func (p *Proxy) Copy(ctx context.Context, src, dst string) error {
	p.lg.moref("Copy '%s' -> '%s'.", src, dst)
	if err := p.record(ctx, OpCopy, src, dst); err != nil {
		return err
	}
	if p.dryRun {
		return nil
	}
	_, err := copyFile(src, dst, false)
	return err
}

// CopyTree recursively copies the dir src to dst, which must not exist.
// It creates dst's parent dirs as needed.
// It preserves permission bits and modtimes,
// and copies symlinks as symlinks.
// CopyTree has the signature of a signac.CopyTreeFunc.
func (p *Proxy) CopyTree(ctx context.Context, src, dst string) error {
	return p.CopyTreeExcept(ctx, src, dst, nil)
}

// CopyTreeExcept is like CopyTree
// but skips the files and dirs whose base names satisfy exclude (if it is non-nil).
func (p *Proxy) CopyTreeExcept(ctx context.Context, src, dst string, exclude func(name string) bool) error {
	p.lg.moref("Copy tree '%s' -> '%s'.", src, dst)
	if err := p.record(ctx, OpCopyTree, src, dst); err != nil {
		return err
	}
	if p.dryRun {
		return nil
	}
	if _, err := os.Lstat(dst); err == nil {
		return errors.Wrapf(signac.ErrDestinationExists, "copying tree to %s", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", dst)
	}
	return copyTree(ctx, src, dst, exclude)
}

// Remove removes the file at path.
func (p *Proxy) Remove(ctx context.Context, path string) error {
	p.lg.moref("Remove '%s'.", path)
	if err := p.record(ctx, OpRemove, "", path); err != nil {
		return err
	}
	if p.dryRun {
		return nil
	}
	return errors.Wrapf(os.Remove(path), "removing %s", path)
}

// Set stores val under key in doc.
func (p *Proxy) Set(ctx context.Context, doc signac.Document, key string, val interface{}) error {
	p.lg.moref("Set '%s'=%s.", key, formatValue(val))
	if err := p.record(ctx, OpSet, key, doc.Filename()); err != nil {
		return err
	}
	if p.dryRun {
		return nil
	}
	return errors.Wrapf(doc.Set(key, val), "setting key %s", key)
}

// Clear removes every key from doc.
func (p *Proxy) Clear(ctx context.Context, doc signac.Document) error {
	p.lg.moref("Clear document '%s'.", doc.Filename())
	if err := p.record(ctx, OpClear, "", doc.Filename()); err != nil {
		return err
	}
	if p.dryRun {
		return nil
	}
	return errors.Wrap(doc.Clear(), "clearing document")
}

// FileBackup calls f with the file at path backed up.
// If f fails or panics, the file is restored from the backup.
// The backup is removed in any case.
// If a backup file is already present, presumably left by an earlier failed run,
// FileBackup refuses to proceed and returns an error wrapping signac.ErrStaleBackup.
func (p *Proxy) FileBackup(ctx context.Context, path string, f func() error) (err error) {
	backup := path + BackupSuffix
	if _, err := os.Lstat(backup); err == nil {
		return errors.Wrapf(signac.ErrStaleBackup, "backing up %s: remove %s and try again", path, backup)
	}

	p.lg.debugf("Create backup of '%s'.", path)
	if err = p.Copy(ctx, path, backup); err != nil {
		return errors.Wrapf(err, "backing up %s", path)
	}

	defer func() {
		r := recover()
		if err != nil || r != nil {
			p.lg.moref("Error occurred, restoring backup of '%s'...", path)
			if rerr := p.Copy(ctx, backup, path); rerr != nil {
				p.lg.infof("ERROR restoring %s from %s: %s", path, backup, rerr)
				if err != nil {
					err = errors.Wrapf(err, "(also failed to restore %s from %s: %s)", path, backup, rerr)
				}
				// Leave the backup where it is.
				if r != nil {
					panic(r)
				}
				return
			}
		}
		p.lg.debugf("Remove backup of '%s'.", path)
		if rerr := p.Remove(ctx, backup); rerr != nil && err == nil {
			err = rerr
		}
		if r != nil {
			panic(r)
		}
	}()

	return f()
}

// DocBackup calls f with a writable view of doc,
// restoring doc to its prior content if f fails or panics.
//
// A document with a backing file is protected with FileBackup,
// and reloaded from the restored file on failure.
// An empty document, or one held only in memory,
// is protected with an in-memory snapshot instead.
func (p *Proxy) DocBackup(ctx context.Context, doc signac.Document, f func(Mapping) error) (err error) {
	dst := &docMapping{p: p, doc: doc}

	n, err := doc.Len()
	if err != nil {
		return errors.Wrap(err, "reading document")
	}
	fn := doc.Filename()
	if n == 0 || fn == "" || !isRegular(fn) {
		return p.snapshotBackup(ctx, doc, func() error { return f(dst) })
	}

	defer func() {
		r := recover()
		if err != nil || r != nil {
			if rerr := doc.Reload(); rerr != nil {
				p.lg.infof("ERROR reloading %s: %s", fn, rerr)
			}
		}
		if r != nil {
			panic(r)
		}
	}()
	return p.FileBackup(ctx, fn, func() error { return f(dst) })
}

func (p *Proxy) snapshotBackup(ctx context.Context, doc signac.Document, f func() error) (err error) {
	snapshot, err := doc.Data()
	if err != nil {
		return errors.Wrap(err, "reading document")
	}
	p.lg.debugf("Create in-memory backup of document '%s'.", doc.Filename())

	defer func() {
		r := recover()
		if err != nil || r != nil {
			p.lg.moref("Error occurred, restoring in-memory backup of document '%s'...", doc.Filename())
			if rerr := p.restore(ctx, doc, snapshot); rerr != nil {
				p.lg.infof("ERROR restoring document %s: %s", doc.Filename(), rerr)
			}
		}
		if r != nil {
			panic(r)
		}
	}()

	return f()
}

func (p *Proxy) restore(ctx context.Context, doc signac.Document, snapshot map[string]interface{}) error {
	if err := p.Clear(ctx, doc); err != nil {
		return err
	}
	for _, key := range sortedKeys(snapshot) {
		if err := p.Set(ctx, doc, key, snapshot[key]); err != nil {
			return err
		}
	}
	return nil
}

// docMapping is the Mapping a DocSync writes to.
// Every write goes through the proxy.
type docMapping struct {
	p   *Proxy
	doc signac.Document
}

func (m *docMapping) Keys() ([]string, error) {
	return m.doc.Keys()
}

func (m *docMapping) Get(key string) (interface{}, bool, error) {
	return m.doc.Get(key)
}

func (m *docMapping) Set(ctx context.Context, key string, val interface{}) error {
	return m.p.Set(ctx, m.doc, key, val)
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func formatValue(val interface{}) string {
	s := fmt.Sprintf("%v", val)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

// copyFile copies the regular file src to dst.
// If keepTime is true, dst gets src's modtime.
func copyFile(src, dst string, keepTime bool) (os.FileInfo, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "statting %s", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s for writing", dst)
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return nil, errors.Wrapf(err, "copying %s to %s", src, dst)
	}
	if err = out.Close(); err != nil {
		return nil, errors.Wrapf(err, "closing %s", dst)
	}
	if err = os.Chmod(dst, info.Mode().Perm()); err != nil {
		return nil, errors.Wrapf(err, "setting mode of %s", dst)
	}
	if keepTime {
		err = os.Chtimes(dst, info.ModTime(), info.ModTime())
		return info, errors.Wrapf(err, "setting times of %s", dst)
	}
	return info, nil
}

func copyTree(ctx context.Context, src, dst string, exclude func(string) bool) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		if path != src && exclude != nil && (ignored(entry.Name()) || exclude(entry.Name())) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Wrapf(err, "relativizing %s", path)
		}
		target := filepath.Join(dst, rel)

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return errors.Wrapf(err, "reading link %s", path)
			}
			return errors.Wrapf(os.Symlink(link, target), "creating link %s", target)

		case entry.IsDir():
			info, err := entry.Info()
			if err != nil {
				return errors.Wrapf(err, "statting %s", path)
			}
			return errors.Wrapf(os.Mkdir(target, info.Mode().Perm()|0700), "creating dir %s", target)

		case entry.Type().IsRegular():
			_, err := copyFile(path, target, true)
			return err
		}

		// Skip sockets, devices, etc.
		return nil
	})
}
