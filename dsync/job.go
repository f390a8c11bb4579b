package dsync

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

type syncer struct {
	pol     Policy
	doc     DocSync
	exclude matcher
	proxy   *Proxy
	lg      logger
}

func newSyncer(pol Policy) (*syncer, error) {
	exclude, err := compileExclude(pol.Exclude)
	if err != nil {
		return nil, err
	}
	return &syncer{
		pol:     pol,
		doc:     pol.docSync(),
		exclude: exclude,
		proxy:   NewProxy(pol.DryRun, pol.Logger, pol.Verbosity, pol.Recorder),
		lg:      newLogger(pol.Logger, pol.Verbosity),
	}, nil
}

// SyncJobs synchronizes the job dst with the job src.
//
// Workspace files missing from dst are copied from src,
// and differing files are resolved by pol.Strategy.
// The manifest is never copied,
// nor is the document file unless pol.Doc is CopyDoc.
// The documents are then merged by pol.Doc,
// atomically: a failed merge leaves the dst document as it was.
// If src is not materialized, there is nothing to do.
//
// SyncJobs returns signac.ErrIdentical if src and dst are the same job on disk.
func SyncJobs(ctx context.Context, src, dst signac.Job, pol Policy) error {
	s, err := newSyncer(pol)
	if err != nil {
		return err
	}
	return s.syncJob(ctx, src, dst)
}

func (s *syncer) syncJob(ctx context.Context, src, dst signac.Job) error {
	if samePath(src.Workspace(), dst.Workspace()) {
		return errors.Wrapf(signac.ErrIdentical, "synchronizing job %s", src.ID())
	}
	if s.pol.DryRun {
		s.lg.debugf("Synchronizing job '%s' (dry run)...", src.ID())
	} else {
		s.lg.debugf("Synchronizing job '%s'...", src.ID())
	}

	if !src.IsMaterialized() {
		s.lg.debugf("Job '%s' is not materialized, nothing to do.", src.ID())
		return nil
	}

	exclude := append(matcher{literal(src.ManifestFilename())}, s.exclude...)
	if s.doc != CopyDoc {
		exclude = append(exclude, literal(src.DocumentFilename()))
	}

	if !s.pol.DryRun {
		if err := dst.Init(); err != nil {
			return errors.Wrapf(err, "initializing job %s", dst.ID())
		}
	}
	if err := s.syncWorkspaces(ctx, src, dst, exclude, ""); err != nil {
		return errors.Wrapf(err, "synchronizing workspace of job %s", src.ID())
	}

	if !merges(s.doc) {
		return nil
	}
	return errors.Wrapf(s.syncDoc(ctx, src.Document(), dst.Document()), "synchronizing document of job %s", src.ID())
}

func (s *syncer) syncDoc(ctx context.Context, src, dst signac.Document) error {
	data, err := src.Data()
	if err != nil {
		return errors.Wrap(err, "reading source document")
	}
	return s.proxy.DocBackup(ctx, dst, func(m Mapping) error {
		return s.doc.Sync(ctx, data, m)
	})
}

// samePath tells whether a and b name the same location
// once symlinks are resolved.
func samePath(a, b string) bool {
	return realPath(a) == realPath(b)
}

func realPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return filepath.Clean(path)
}
