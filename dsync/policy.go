package dsync

import (
	"log"
	"regexp"

	"github.com/pkg/errors"
)

// Policy is the set of choices governing one synchronization.
type Policy struct {
	// Strategy resolves file conflicts.
	// If nil, the first differing file stops the sync with a *signac.FileConflictError.
	Strategy Strategy

	// Doc merges documents.
	// If nil, ByKey(nil) is used.
	Doc DocSync

	// Exclude holds regular expressions matched against the start of each file and dir base name.
	// Matching entries are neither copied nor compared,
	// and matching dirs are not descended into.
	Exclude []string

	// Deep compares file contents even when the file sizes and modtimes agree.
	Deep bool

	// DryRun logs what would change without changing anything.
	DryRun bool

	// Force synchronizes projects even when their state point schemas differ.
	Force bool

	// Parallel is the number of jobs synchronized at once.
	// Zero means sequentially; a negative value means one per CPU.
	Parallel int

	// Selection restricts project synchronization to the jobs with these IDs.
	// A nil slice selects every job; an empty non-nil slice selects none.
	// IDs not in the source are ignored, and so are repeats.
	Selection []string

	// Logger receives progress messages.
	// If nil, the standard logger is used.
	Logger *log.Logger

	// Verbosity is the highest level (Info, More, Debug) that is logged.
	Verbosity int

	// Recorder, if non-nil, receives every mutation.
	Recorder Recorder
}

func (pol Policy) docSync() DocSync {
	if pol.Doc == nil {
		return ByKey(nil)
	}
	return pol.Doc
}

// matcher reports whether a base name is excluded.
type matcher []*regexp.Regexp

func compileExclude(patterns []string) (matcher, error) {
	var m matcher
	for _, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p + `)`)
		if err != nil {
			return nil, errors.Wrapf(err, "compiling exclude pattern %q", p)
		}
		m = append(m, re)
	}
	return m, nil
}

// literal returns a matcher entry for exactly the given name.
func literal(name string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `$`)
}

func (m matcher) match(name string) bool {
	for _, re := range m {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
