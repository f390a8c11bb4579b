// Package pg implements a Postgresql-based journal store.
package pg

import (
	"context"
	"database/sql"
	"time"

	"github.com/bobg/sqlutil"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/daico007/signac/journal"
)

var _ journal.Store = &Store{}

// Store is a Postgresql-based journal store.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `runs` and `entries` tables if they do not exist.
// (If they do exist, they must have the columns, constraints, and indexing described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY NOT NULL,
  started TIMESTAMP WITH TIME ZONE NOT NULL,
  src TEXT NOT NULL,
  dst TEXT NOT NULL,
  dry_run BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
  run TEXT NOT NULL REFERENCES runs (id),
  seq INTEGER NOT NULL,
  at TIMESTAMP WITH TIME ZONE NOT NULL,
  op TEXT NOT NULL,
  src TEXT NOT NULL,
  dst TEXT NOT NULL,
  dry_run BOOLEAN NOT NULL,
  PRIMARY KEY (run, seq)
);

CREATE INDEX IF NOT EXISTS run_started_idx ON runs (started);
`

// New produces a new Store using `db` for storage.
// It expects to create tables `runs` and `entries`,
// or for those tables already to exist with the correct schema.
// (See variable Schema.)
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, errors.Wrap(err, "creating schema")
}

// AddRun implements journal.Store.
func (s *Store) AddRun(ctx context.Context, run journal.Run) error {
	const q = `INSERT INTO runs (id, started, src, dst, dry_run) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, q, run.ID, run.Started, run.Source, run.Destination, run.DryRun)
	return errors.Wrapf(err, "inserting run %s", run.ID)
}

// AddEntry implements journal.Store.
func (s *Store) AddEntry(ctx context.Context, e journal.Entry) error {
	const q = `INSERT INTO entries (run, seq, at, op, src, dst, dry_run) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, q, e.Run, e.Seq, e.At, e.Op, e.Src, e.Dst, e.DryRun)
	return errors.Wrapf(err, "inserting entry %d of run %s", e.Seq, e.Run)
}

// Runs implements journal.Store.
func (s *Store) Runs(ctx context.Context, f func(journal.Run) error) error {
	const q = `SELECT id, started, src, dst, dry_run FROM runs ORDER BY started, id`
	return sqlutil.ForQueryRows(ctx, s.db, q, func(id string, started time.Time, src, dst string, dryRun bool) error {
		return f(journal.Run{ID: id, Started: started, Source: src, Destination: dst, DryRun: dryRun})
	})
}

// Entries implements journal.Store.
func (s *Store) Entries(ctx context.Context, runID string, f func(journal.Entry) error) error {
	const q = `SELECT seq, at, op, src, dst, dry_run FROM entries WHERE run = $1 ORDER BY seq`
	return sqlutil.ForQueryRows(ctx, s.db, q, runID, func(seq int, at time.Time, op, src, dst string, dryRun bool) error {
		return f(journal.Entry{Run: runID, Seq: seq, At: at, Op: op, Src: src, Dst: dst, DryRun: dryRun})
	})
}

// Close implements journal.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func init() {
	journal.Register("pg", func(ctx context.Context, conn string) (journal.Store, error) {
		db, err := sql.Open("postgres", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		s, err := New(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	})
}
