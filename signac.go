package signac

import "context"

// Document is a small mutable key-value mapping attached to a job or project.
// It may be backed by a file or held only in memory.
// Values are JSON-shaped;
// nested mappings are map[string]interface{}.
type Document interface {
	// Keys returns the top-level keys in sorted order.
	Keys() ([]string, error)

	// Get returns the value stored under key and whether it was present.
	Get(key string) (interface{}, bool, error)

	// Set stores a value under key,
	// persisting it immediately if the document is file-backed.
	Set(key string, val interface{}) error

	// Clear removes every key.
	Clear() error

	// Len is the number of top-level keys.
	Len() (int, error)

	// Data returns a deep copy of the whole mapping.
	Data() (map[string]interface{}, error)

	// Filename is the path of the backing file,
	// or the empty string for a document held only in memory.
	Filename() string

	// Reload discards any cached state
	// so that subsequent reads see the backing file as it is now.
	Reload() error
}

// Job is a content-addressed unit of work:
// a workspace directory plus a document,
// identified by the hash of its state point.
type Job interface {
	// ID is the job's identity (see CalcID).
	ID() string

	// StatePoint returns a copy of the job's state point.
	StatePoint() StatePoint

	// Workspace is the path of the job's workspace directory.
	// The directory need not exist.
	Workspace() string

	// Document is the job document.
	Document() Document

	// ManifestFilename is the base name of the file
	// holding the state point inside the workspace.
	ManifestFilename() string

	// DocumentFilename is the base name of the document's backing file inside the workspace.
	DocumentFilename() string

	// IsMaterialized tells whether the job's workspace exists on disk.
	IsMaterialized() bool

	// Init materializes the job: creates its workspace and writes its manifest.
	// It is a no-op if the job is already materialized.
	Init() error
}

// CopyTreeFunc recursively copies the directory at src to dst,
// which must not already exist.
type CopyTreeFunc func(ctx context.Context, src, dst string) error

// Project is a root directory containing jobs and a project-level document.
type Project interface {
	// Root is the project's root directory.
	Root() string

	// Document is the project document.
	Document() Document

	// Jobs returns every materialized job in the project.
	Jobs() ([]Job, error)

	// OpenJob opens the job with the given ID.
	// It returns ErrJobNotFound if there is no such job.
	OpenJob(id string) (Job, error)

	// Clone copies src wholesale (workspace and document) into the project using copyTree.
	// It returns ErrDestinationExists if a job with the same ID is already present.
	Clone(ctx context.Context, src Job, copyTree CopyTreeFunc) (Job, error)

	// DetectSchema summarizes the state points of all jobs in the project.
	// The result is comparable with the result from another project.
	DetectSchema() (Schema, error)
}

// Schema is a comparable structural summary of a project's state points.
type Schema interface {
	// Len is the number of distinct key-paths in the summary.
	Len() int

	// Differs tells whether the two summaries disagree:
	// some key is present in one and absent from the other,
	// or the recorded value ranges for a key differ.
	Differs(other Schema) bool

	String() string
}

// Locker is implemented by projects that can be locked against concurrent synchronization.
type Locker interface {
	Lock() error
	Unlock() error
}
