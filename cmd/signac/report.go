package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

// Exit statuses.
const (
	exitOK = iota
	exitError
	exitIdentical
	exitFileConflict
	exitDocConflict
	exitSchemaConflict
)

// report writes a message for err to w
// and returns the process exit status for it.
func report(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}

	var (
		fileErr   *signac.FileConflictError
		docErr    *signac.DocumentConflictError
		schemaErr *signac.SchemaConflictError
	)

	switch {
	case errors.As(err, &fileErr):
		fmt.Fprintf(w, "Synchronization conflict occurred: no strategy defined to synchronize file %q.\n", fileErr.Path)
		fmt.Fprintln(w, "Use -strategy to specify a file synchronization strategy.")
		fmt.Fprintln(w, "Synchronization aborted.")
		return exitFileConflict

	case errors.As(err, &docErr):
		fmt.Fprintf(w, "Synchronization conflict occurred: no strategy defined to synchronize key(s) %s.\n", strings.Join(docErr.Keys, ", "))
		fmt.Fprintln(w, "Use -key to specify a key synchronization strategy, e.g. '.*' for all keys.")
		fmt.Fprintln(w, "Synchronization aborted.")
		return exitDocConflict

	case errors.As(err, &schemaErr):
		fmt.Fprintln(w, "WARNING: The detected schemas of the two projects differ! Use -force to ignore.")
		fmt.Fprintf(w, "Source schema:\n%s\n", schemaErr.Source)
		fmt.Fprintf(w, "Destination schema:\n%s\n", schemaErr.Destination)
		fmt.Fprintln(w, "Synchronization aborted.")
		return exitSchemaConflict

	case errors.Is(err, signac.ErrIdentical):
		fmt.Fprintf(w, "Source and destination are identical: %s\n", err)
		return exitIdentical
	}

	fmt.Fprintf(w, "Error: %s\n", err)
	return exitError
}
