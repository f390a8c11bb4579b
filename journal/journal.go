// Package journal records the mutations performed by sync runs
// in a SQL database,
// so that what a sync did (or, in dry-run mode, would have done) can be reviewed later.
//
// Storage backends live in subpackages
// and register themselves with Register when imported.
package journal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Run describes one sync run.
type Run struct {
	ID          string
	Started     time.Time
	Source      string
	Destination string
	DryRun      bool
}

// Entry is one recorded mutation.
type Entry struct {
	Run    string
	Seq    int
	At     time.Time
	Op     string
	Src    string
	Dst    string
	DryRun bool
}

// Store is a journal backend.
type Store interface {
	// AddRun adds a run.
	AddRun(context.Context, Run) error

	// AddEntry adds an entry to an existing run.
	AddEntry(context.Context, Entry) error

	// Runs calls f on each run in order of start time, oldest first.
	Runs(ctx context.Context, f func(Run) error) error

	// Entries calls f on each entry of the given run, in sequence order.
	Entries(ctx context.Context, runID string, f func(Entry) error) error

	Close() error
}

// Factory opens a Store given a backend-specific connection string.
type Factory func(ctx context.Context, conn string) (Store, error)

var registry = make(map[string]Factory)

// Register makes a backend available to Open under the given name.
func Register(name string, f Factory) {
	registry[name] = f
}

// Open opens the Store at conn.
// A conn beginning with postgres:// or postgresql:// selects the "pg" backend;
// anything else is taken to be the path of a "sqlite3" database file.
// The chosen backend must have been registered.
func Open(ctx context.Context, conn string) (Store, error) {
	name := BackendFor(conn)
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("journal backend %s not registered", name)
	}
	return f(ctx, conn)
}

// BackendFor tells which backend Open uses for conn.
func BackendFor(conn string) string {
	if strings.HasPrefix(conn, "postgres://") || strings.HasPrefix(conn, "postgresql://") {
		return "pg"
	}
	return "sqlite3"
}

// Recorder records the mutations of a single run in a Store.
// It implements dsync.Recorder
// and is safe for concurrent use.
type Recorder struct {
	s   Store
	run string

	mu  sync.Mutex
	seq int
}

// Begin adds a new run to s and returns a Recorder for it.
func Begin(ctx context.Context, s Store, src, dst string, dryRun bool) (*Recorder, error) {
	run := Run{
		ID:          uuid.New().String(),
		Started:     time.Now(),
		Source:      src,
		Destination: dst,
		DryRun:      dryRun,
	}
	if err := s.AddRun(ctx, run); err != nil {
		return nil, errors.Wrap(err, "adding run")
	}
	return &Recorder{s: s, run: run.ID}, nil
}

// ID is the ID of the run.
func (r *Recorder) ID() string {
	return r.run
}

// Record adds an entry to the run.
func (r *Recorder) Record(ctx context.Context, op, src, dst string, dryRun bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e := Entry{
		Run:    r.run,
		Seq:    r.seq,
		At:     time.Now(),
		Op:     op,
		Src:    src,
		Dst:    dst,
		DryRun: dryRun,
	}
	return errors.Wrapf(r.s.AddEntry(ctx, e), "adding entry %d", e.Seq)
}
