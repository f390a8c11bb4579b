// Package project implements signac.Project and signac.Job
// as a directory hierarchy.
//
// A project root contains a config file (signac.yaml),
// the project document (signac_project_document.json),
// and a workspace directory with one subdirectory per job,
// named by the job's ID.
// Each job directory contains a manifest (signac_statepoint.json)
// holding the job's state point,
// the job document (signac_job_document.json),
// and any other files the user puts there.
package project

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bobg/flock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/daico007/signac"
	"github.com/daico007/signac/document"
	"github.com/daico007/signac/schema"
)

var (
	_ signac.Project = &Project{}
	_ signac.Locker  = &Project{}
)

const (
	// DocumentFilename is the base name of the project document.
	DocumentFilename = "signac_project_document.json"

	lockFilename = ".signac_sync.lock"

	// Size of the ID->*Job cache.
	cacheSize = 1024
)

// ErrNotProject is the error returned by Open for a dir without a config file.
var ErrNotProject = errors.New("not a project")

// Project is a directory-based implementation of signac.Project.
type Project struct {
	root    string
	conf    Config
	doc     *document.File
	jobs    *lru.Cache // ID->*Job
	flocker flock.Locker
}

// Init creates a project in root with the given name,
// or opens the project already there.
func Init(root, name string) (*Project, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", root)
	}
	_, err := ReadConfig(root)
	if errors.Is(err, os.ErrNotExist) {
		err = WriteConfig(root, Config{Project: name, WorkspaceDir: DefaultWorkspaceDir})
	}
	if err != nil {
		return nil, err
	}
	return Open(root)
}

// Open opens the project in root.
func Open(root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", root)
	}
	conf, err := ReadConfig(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotProject, "opening %s", root)
	}
	if err != nil {
		return nil, err
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating job cache")
	}
	return &Project{
		root: abs,
		conf: conf,
		doc:  document.NewFile(filepath.Join(abs, DocumentFilename)),
		jobs: cache,
	}, nil
}

// Root implements signac.Project.
func (p *Project) Root() string {
	return p.root
}

// Config returns the project's configuration.
func (p *Project) Config() Config {
	return p.conf
}

// String is the project's name.
func (p *Project) String() string {
	if p.conf.Project != "" {
		return p.conf.Project
	}
	return filepath.Base(p.root)
}

// WorkspaceDir is the directory holding the job workspaces.
func (p *Project) WorkspaceDir() string {
	if filepath.IsAbs(p.conf.WorkspaceDir) {
		return p.conf.WorkspaceDir
	}
	return filepath.Join(p.root, p.conf.WorkspaceDir)
}

// Document implements signac.Project.
func (p *Project) Document() signac.Document {
	return p.doc
}

// NewJob returns the job for the given state point.
// The job is not materialized until its Init method is called.
func (p *Project) NewJob(sp signac.StatePoint) (*Job, error) {
	norm, err := signac.Normalize(sp)
	if err != nil {
		return nil, errors.Wrap(err, "normalizing state point")
	}
	m, ok := norm.(map[string]interface{})
	if !ok {
		m = make(map[string]interface{})
	}
	id, err := signac.CalcID(m)
	if err != nil {
		return nil, errors.Wrap(err, "computing job id")
	}
	if got, ok := p.jobs.Get(id); ok {
		return got.(*Job), nil
	}
	job := p.newJob(id, m)
	p.jobs.Add(id, job)
	return job, nil
}

func (p *Project) newJob(id string, sp signac.StatePoint) *Job {
	ws := filepath.Join(p.WorkspaceDir(), id)
	return &Job{
		project: p,
		id:      id,
		sp:      sp,
		ws:      ws,
		doc:     document.NewFile(filepath.Join(ws, JobDocumentFilename)),
	}
}

// OpenJob implements signac.Project.
func (p *Project) OpenJob(id string) (signac.Job, error) {
	return p.openJob(id)
}

func (p *Project) openJob(id string) (*Job, error) {
	if got, ok := p.jobs.Get(id); ok {
		job := got.(*Job)
		if job.IsMaterialized() {
			return job, nil
		}
	}

	if !signac.IsID(id) {
		return nil, errors.Wrapf(signac.ErrJobNotFound, "malformed job id %s", id)
	}

	manifest := filepath.Join(p.WorkspaceDir(), id, ManifestFilename)
	b, err := os.ReadFile(manifest)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(signac.ErrJobNotFound, "opening job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", manifest)
	}
	var sp signac.StatePoint
	if err = json.Unmarshal(b, &sp); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", manifest)
	}
	if sp == nil {
		sp = make(signac.StatePoint)
	}
	got, err := signac.CalcID(sp)
	if err != nil {
		return nil, errors.Wrapf(err, "computing id of job %s", id)
	}
	if got != id {
		return nil, errors.Errorf("manifest of job %s is corrupted: state point hashes to %s", id, got)
	}

	job := p.newJob(id, sp)
	p.jobs.Add(id, job)
	return job, nil
}

// Jobs implements signac.Project.
// Directories in the workspace that are not named like job IDs,
// or that have no manifest, are skipped.
func (p *Project) Jobs() ([]signac.Job, error) {
	entries, err := os.ReadDir(p.WorkspaceDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading dir %s", p.WorkspaceDir())
	}

	var result []signac.Job
	for _, entry := range entries {
		if !entry.IsDir() || !signac.IsID(entry.Name()) {
			continue
		}
		job, err := p.openJob(entry.Name())
		if errors.Is(err, signac.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, nil
}

// Clone implements signac.Project.
func (p *Project) Clone(ctx context.Context, src signac.Job, copyTree signac.CopyTreeFunc) (signac.Job, error) {
	dst := filepath.Join(p.WorkspaceDir(), src.ID())
	_, err := os.Stat(dst)
	if err == nil {
		return nil, errors.Wrapf(signac.ErrDestinationExists, "cloning job %s", src.ID())
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(err, "checking %s", dst)
	}

	// The copy is staged under a name that is not a job ID,
	// so Jobs skips it until the rename.
	// An interrupted clone leaves only the staging dir, which is safe to delete.
	// copyTree creates the workspace dir if needed.
	staging := filepath.Join(p.WorkspaceDir(), "."+src.ID()+"."+uuid.NewString())
	if err = copyTree(ctx, src.Workspace(), staging); err != nil {
		os.RemoveAll(staging)
		return nil, errors.Wrapf(err, "copying workspace of job %s", src.ID())
	}
	if _, err = os.Lstat(staging); errors.Is(err, os.ErrNotExist) {
		// Nothing was copied (dry run).
		return p.newJob(src.ID(), src.StatePoint()), nil
	}
	if err = os.Rename(staging, dst); err != nil {
		os.RemoveAll(staging)
		if _, serr := os.Stat(dst); serr == nil {
			return nil, errors.Wrapf(signac.ErrDestinationExists, "cloning job %s", src.ID())
		}
		return nil, errors.Wrapf(err, "moving %s to %s", staging, dst)
	}
	job := p.newJob(src.ID(), src.StatePoint())
	p.jobs.Add(job.id, job)
	return job, nil
}

// DetectSchema implements signac.Project.
func (p *Project) DetectSchema() (signac.Schema, error) {
	jobs, err := p.Jobs()
	if err != nil {
		return nil, err
	}
	sps := make([]signac.StatePoint, 0, len(jobs))
	for _, job := range jobs {
		sps = append(sps, job.StatePoint())
	}
	return schema.Detect(sps)
}

func (p *Project) lockPath() string {
	return filepath.Join(p.root, lockFilename)
}

// Lock implements signac.Locker.
// It takes an exclusive file lock in the project root,
// blocking until any other holder releases it.
func (p *Project) Lock() error {
	f, err := os.OpenFile(p.lockPath(), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating lock file %s", p.lockPath())
	}
	f.Close()
	return errors.Wrapf(p.flocker.Lock(p.lockPath()), "locking %s", p.lockPath())
}

// Unlock implements signac.Locker.
func (p *Project) Unlock() error {
	return errors.Wrapf(p.flocker.Unlock(p.lockPath()), "unlocking %s", p.lockPath())
}
