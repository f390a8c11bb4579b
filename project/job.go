package project

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
	"github.com/daico007/signac/document"
)

var _ signac.Job = &Job{}

const (
	// ManifestFilename is the base name of the file in a job workspace holding the state point.
	ManifestFilename = "signac_statepoint.json"

	// JobDocumentFilename is the base name of the job document's file.
	JobDocumentFilename = "signac_job_document.json"
)

// Job is a directory-based implementation of signac.Job.
type Job struct {
	project *Project
	id      string
	sp      signac.StatePoint
	ws      string
	doc     *document.File
}

// ID implements signac.Job.
func (j *Job) ID() string { return j.id }

func (j *Job) String() string { return j.id }

// Project is the project the job belongs to.
func (j *Job) Project() *Project { return j.project }

// StatePoint implements signac.Job.
func (j *Job) StatePoint() signac.StatePoint {
	v, err := signac.Normalize(j.sp)
	if err != nil {
		// j.sp was decoded from JSON or already normalized, so it always re-encodes.
		panic(err)
	}
	m, _ := v.(map[string]interface{})
	return m
}

// Workspace implements signac.Job.
func (j *Job) Workspace() string { return j.ws }

// Document implements signac.Job.
func (j *Job) Document() signac.Document { return j.doc }

// ManifestFilename implements signac.Job.
func (j *Job) ManifestFilename() string { return ManifestFilename }

// DocumentFilename implements signac.Job.
func (j *Job) DocumentFilename() string { return JobDocumentFilename }

// Fn is the path of the named file inside the job's workspace.
func (j *Job) Fn(name string) string {
	return filepath.Join(j.ws, name)
}

// IsMaterialized implements signac.Job.
func (j *Job) IsMaterialized() bool {
	info, err := os.Stat(j.ws)
	return err == nil && info.IsDir()
}

// Init implements signac.Job.
func (j *Job) Init() error {
	if err := os.MkdirAll(j.ws, 0755); err != nil {
		return errors.Wrapf(err, "creating workspace %s", j.ws)
	}

	manifest := j.Fn(ManifestFilename)
	if _, err := os.Stat(manifest); err == nil {
		return nil
	}
	b, err := json.MarshalIndent(j.sp, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encoding state point of job %s", j.id)
	}
	err = os.WriteFile(manifest, b, 0644)
	return errors.Wrapf(err, "writing %s", manifest)
}
