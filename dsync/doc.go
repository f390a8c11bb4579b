// Package dsync synchronizes jobs and projects.
//
// Data flows one way, from a source to a destination,
// and is only ever added to the destination:
// files that exist only at the destination are left alone.
//
// Synchronizing two jobs copies every workspace file
// that the destination lacks.
// A file present on both sides with differing content is a conflict.
// A Strategy may resolve it
// (Always, Never, UpdateByTime, or an Interactive prompt);
// without one, the sync stops with a *signac.FileConflictError.
// Files copied before the conflict stay copied.
//
// Documents are merged by a DocSync:
// NoSync, CopyDoc (treat the document file like any other file),
// Update (overwrite every key),
// or ByKey (a recursive key-by-key merge).
// ByKey records every key-path whose values conflict
// and reports them all at once in a *signac.DocumentConflictError,
// unless a KeyPredicate says which of them may be overwritten.
// A document merge is atomic:
// on failure the destination document is restored from a backup.
//
// Synchronizing projects synchronizes the project documents
// and then each selected job,
// cloning jobs the destination lacks and merging the rest,
// optionally over a bounded pool of workers.
//
// Every mutation goes through a Proxy,
// which logs it, can record it in a journal,
// and in dry-run mode performs nothing at all.
package dsync
