// Package signac manages content-addressed collections of jobs.
//
// A job is a directory whose name is derived from a hash of its state point,
// an immutable mapping of parameters.
// The hash is computed from a canonical encoding of the state point,
// so two state points with the same keys and values
// always produce the same job ID,
// no matter in what order they were built.
// This ID is the job's identity for its whole lifetime.
//
// Each job owns a workspace,
// which holds arbitrary files,
// plus a small key-value document persisted next to them.
// A project is a root directory containing zero or more jobs
// and one project-level document.
//
// The interesting part is synchronizing two projects
// (see the dsync subpackage).
// Data only ever flows from a source to a destination.
// Files present only in the source are copied,
// files that differ are resolved by a strategy
// (or reported as conflicts),
// and documents are merged key by key.
// A failed document merge leaves the destination document exactly as it was.
//
// This package defines the identity function (CalcID),
// the interfaces the synchronization engine consumes
// (Job, Project, Document),
// and the errors it reports.
// Concrete implementations live in the project and document subpackages.
package signac
