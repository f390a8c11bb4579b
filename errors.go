package signac

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrIdentical is the error returned when the source and destination
	// of a synchronization resolve to the same location.
	ErrIdentical = errors.New("source and destination are identical")

	// ErrDestinationExists signals that a clone target is already present.
	// The project synchronizer uses it to fall back from cloning to merging.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrJobNotFound is the error returned when opening a job that does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrStaleBackup is the error returned when a backup file left behind
	// by an earlier, unclean run is in the way.
	ErrStaleBackup = errors.New("stale backup file exists")
)

// FileConflictError reports a differing file that could not be resolved.
type FileConflictError struct {
	// Path is the conflicting file, relative to the job workspace.
	Path string
}

func (e *FileConflictError) Error() string {
	return fmt.Sprintf("file conflict: %s", e.Path)
}

// DocumentConflictError reports document key-paths that could not be merged.
type DocumentConflictError struct {
	// Keys are dotted key-paths, sorted.
	Keys []string
}

func (e *DocumentConflictError) Error() string {
	return fmt.Sprintf("document conflict on key(s): %s", strings.Join(e.Keys, ", "))
}

// SchemaConflictError reports that two projects have differing state point schemas.
type SchemaConflictError struct {
	Source, Destination Schema
}

func (e *SchemaConflictError) Error() string {
	return "state point schemas of source and destination differ"
}
