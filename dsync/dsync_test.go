package dsync

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"

	"github.com/daico007/signac"
	"github.com/daico007/signac/project"
	"github.com/daico007/signac/testutil"
)

func newProject(t *testing.T, name string) *project.Project {
	t.Helper()

	p, err := project.Init(filepath.Join(t.TempDir(), name), name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// newJob creates and initializes a job in p
// with the given workspace files and document content.
func newJob(t *testing.T, p *project.Project, sp signac.StatePoint, files map[string]string, doc map[string]interface{}) *project.Job {
	t.Helper()

	job, err := p.NewJob(sp)
	if err != nil {
		t.Fatal(err)
	}
	if err = job.Init(); err != nil {
		t.Fatal(err)
	}
	testutil.WriteTree(t, job.Workspace(), files)
	for k, v := range doc {
		if err = job.Document().Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	return job
}

func docData(t *testing.T, doc signac.Document) map[string]interface{} {
	t.Helper()

	if err := doc.Reload(); err != nil {
		t.Fatal(err)
	}
	data, err := doc.Data()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// normalized returns v in the form a document returns it.
func normalized(t *testing.T, v map[string]interface{}) map[string]interface{} {
	t.Helper()

	n, err := signac.Normalize(v)
	if err != nil {
		t.Fatal(err)
	}
	return n.(map[string]interface{})
}

func quietPolicy() Policy {
	return Policy{Logger: log.New(io.Discard, "", 0)}
}

type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) Record(_ context.Context, op, _, _ string, dryRun bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dryRun {
		op += " (dry run)"
	}
	r.ops = append(r.ops, op)
	return nil
}

func (r *opRecorder) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, o := range r.ops {
		if o == op {
			n++
		}
	}
	return n
}
