package dsync

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/daico007/signac"
)

// Stats tallies the jobs handled by SyncProjects.
type Stats struct {
	// Cloned is the number of jobs copied wholesale into the destination.
	Cloned int

	// Merged is the number of jobs already in the destination that were synchronized.
	Merged int
}

// SyncProjects synchronizes the project dst with the project src.
//
// Unless pol.Force is set,
// it first checks that the state point schemas of the two projects agree
// (when both projects have jobs),
// returning a *signac.SchemaConflictError if not.
// It then merges the project documents
// and handles every job in src selected by pol.Selection:
// a job missing from dst is cloned,
// and a job present in both is synchronized with SyncJobs.
//
// With pol.Parallel set, jobs are handled concurrently.
// Every job is attempted,
// and the first failure in job order is returned.
// Sequentially, the first failure stops the sync.
//
// If dst implements signac.Locker it is locked for the duration
// (except in dry-run mode).
func SyncProjects(ctx context.Context, src, dst signac.Project, pol Policy) (Stats, error) {
	var stats Stats

	if samePath(src.Root(), dst.Root()) {
		return stats, errors.Wrapf(signac.ErrIdentical, "synchronizing project %s", src.Root())
	}

	s, err := newSyncer(pol)
	if err != nil {
		return stats, err
	}

	if l, ok := dst.(signac.Locker); ok && !pol.DryRun {
		if err = l.Lock(); err != nil {
			return stats, err
		}
		defer func() {
			if uerr := l.Unlock(); uerr != nil {
				s.lg.infof("ERROR unlocking %s: %s", dst.Root(), uerr)
			}
		}()
	}

	return s.syncProject(ctx, src, dst)
}

func (s *syncer) syncProject(ctx context.Context, src, dst signac.Project) (Stats, error) {
	var stats Stats

	if s.pol.DryRun {
		s.lg.infof("Synchronizing project '%s' to '%s' (dry run)...", src.Root(), dst.Root())
	} else {
		s.lg.infof("Synchronizing project '%s' to '%s'...", src.Root(), dst.Root())
	}
	s.lg.moref("Source: '%s'.", src.Root())
	s.lg.moref("Destination: '%s'.", dst.Root())
	s.lg.debugf("Sync strategy: '%s'.", s.strategyName())
	s.lg.debugf("Doc sync strategy: '%s'.", s.doc)
	if len(s.pol.Exclude) > 0 {
		s.lg.debugf("File name exclude pattern(s): %v", s.pol.Exclude)
	}

	if !s.pol.Force {
		if err := checkSchemas(src, dst); err != nil {
			return stats, err
		}
	}

	if merges(s.doc) {
		s.lg.moref("Synchronizing project document...")
		if err := s.syncDoc(ctx, src.Document(), dst.Document()); err != nil {
			return stats, errors.Wrap(err, "synchronizing project document")
		}
	}

	jobs, err := s.selectJobs(src)
	if err != nil {
		return stats, err
	}
	n := len(jobs)

	tally := func(i int, cloned bool) {
		if cloned {
			stats.Cloned++
		} else {
			stats.Merged++
		}
		s.lg.moref("Project sync progress: %d/%d", i+1, n)
	}

	if s.pol.Parallel == 0 {
		for i, job := range jobs {
			cloned, err := s.cloneOrSync(ctx, job, dst)
			if err != nil {
				return stats, err
			}
			tally(i, cloned)
		}
	} else {
		workers := s.pol.Parallel
		if workers < 0 {
			workers = runtime.NumCPU()
		}
		s.lg.moref("Parallelizing over %d threads for synchronization.", workers)

		type result struct {
			cloned bool
			err    error
		}
		results := make([]result, n)

		var g errgroup.Group
		g.SetLimit(workers)
		for i, job := range jobs {
			i, job := i, job
			g.Go(func() error {
				cloned, err := s.cloneOrSync(ctx, job, dst)
				results[i] = result{cloned: cloned, err: err}
				return nil
			})
		}
		g.Wait()

		for i, r := range results {
			if r.err != nil {
				return stats, r.err
			}
			tally(i, r.cloned)
		}
	}

	s.lg.infof("Cloned %d and synchronized %d job(s).", stats.Cloned, stats.Merged)
	return stats, nil
}

func (s *syncer) strategyName() string {
	if s.pol.Strategy == nil {
		return "none"
	}
	return s.pol.Strategy.String()
}

func checkSchemas(src, dst signac.Project) error {
	srcSchema, err := src.DetectSchema()
	if err != nil {
		return errors.Wrap(err, "detecting source schema")
	}
	dstSchema, err := dst.DetectSchema()
	if err != nil {
		return errors.Wrap(err, "detecting destination schema")
	}
	if srcSchema.Len() > 0 && dstSchema.Len() > 0 && srcSchema.Differs(dstSchema) {
		return &signac.SchemaConflictError{Source: srcSchema, Destination: dstSchema}
	}
	return nil
}

func (s *syncer) selectJobs(src signac.Project) ([]signac.Job, error) {
	jobs, err := src.Jobs()
	if err != nil {
		return nil, errors.Wrap(err, "listing source jobs")
	}
	if s.pol.Selection == nil {
		return jobs, nil
	}

	selected := make(map[string]bool, len(s.pol.Selection))
	for _, id := range s.pol.Selection {
		selected[id] = true
	}
	var result []signac.Job
	for _, job := range jobs {
		if selected[job.ID()] {
			result = append(result, job)
			delete(selected, job.ID())
		}
	}
	for _, id := range sortedKeys(selected) {
		s.lg.moref("Selected job '%s' is not in the source project.", id)
	}
	return result, nil
}

// cloneOrSync clones job into dst if it is not there yet,
// and otherwise synchronizes it with its dst counterpart.
// It reports whether it cloned.
func (s *syncer) cloneOrSync(ctx context.Context, job signac.Job, dst signac.Project) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := dst.Clone(ctx, job, s.proxy.CopyTree)
	if err == nil {
		s.lg.moref("Cloned job '%s'.", job.ID())
		return true, nil
	}
	if !errors.Is(err, signac.ErrDestinationExists) {
		return false, errors.Wrapf(err, "cloning job %s", job.ID())
	}
	dstJob, err := dst.OpenJob(job.ID())
	if err != nil {
		return false, errors.Wrapf(err, "opening destination job %s", job.ID())
	}
	if err = s.syncJob(ctx, job, dstJob); err != nil {
		return false, err
	}
	s.lg.moref("Synchronized job '%s'.", job.ID())
	return false, nil
}
