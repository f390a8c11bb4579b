package main

import (
	"context"
	"flag"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"

	"github.com/daico007/signac/dsync"
	"github.com/daico007/signac/journal"
	"github.com/daico007/signac/project"
)

func (c maincmd) sync(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		strategy, key, keyExpr, doc, journalConn string
		exclude, jobIDs                           stringsFlag

		dryRun   = fs.Bool("dry-run", false, "log what would change without changing anything")
		force    = fs.Bool("force", false, "synchronize even if the state point schemas differ")
		deep     = fs.Bool("deep", false, "compare file contents even when sizes and modtimes agree")
		parallel = fs.Int("parallel", 0, "number of jobs to synchronize at once (-1: one per CPU)")
	)
	fs.StringVar(&strategy, "strategy", "", "file conflict strategy: "+strings.Join(dsync.StrategyNames, ", "))
	fs.StringVar(&strategy, "s", "", "shorthand for -strategy")
	fs.Var(&exclude, "exclude", "exclude files and dirs whose names match this regex (repeatable)")
	fs.Var(&exclude, "x", "shorthand for -exclude")
	fs.StringVar(&key, "key", "", "document keys matching this regex may be overwritten")
	fs.StringVar(&key, "k", "", "shorthand for -key")
	fs.StringVar(&keyExpr, "key-expr", "", "document keys for which this boolean expression over `key` is true may be overwritten")
	fs.StringVar(&doc, "doc", "", "document strategy: "+strings.Join(dsync.DocSyncNames, ", "))
	fs.StringVar(&journalConn, "journal", "", "record every change in this journal (sqlite file or postgres:// URL)")
	fs.Var(&jobIDs, "job-id", "synchronize only the job with this ID (repeatable)")
	fs.BoolVar(dryRun, "n", false, "shorthand for -dry-run")
	fs.IntVar(parallel, "p", 0, "shorthand for -parallel")

	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var srcRoot, dstRoot string
	switch fs.NArg() {
	case 1:
		srcRoot, dstRoot = fs.Arg(0), c.root
	case 2:
		srcRoot, dstRoot = fs.Arg(0), fs.Arg(1)
	default:
		return errors.New("usage: signac sync [flags] SOURCE [DESTINATION]")
	}

	src, err := project.Open(srcRoot)
	if err != nil {
		return errors.Wrap(err, "opening source")
	}
	dst, err := project.Open(dstRoot)
	if err != nil {
		return errors.Wrap(err, "opening destination")
	}

	// Flags left unset take their values from the destination's config.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	conf := dst.Config().Sync
	if !set["strategy"] && !set["s"] {
		strategy = conf.Strategy
	}
	if !set["exclude"] && !set["x"] {
		exclude = conf.Exclude
	}
	if !set["key"] && !set["k"] && !set["key-expr"] {
		key, keyExpr = conf.Key, conf.KeyExpr
	}
	if !set["doc"] {
		doc = conf.Doc
	}
	if !set["parallel"] && !set["p"] {
		*parallel = conf.Parallel
	}
	if !set["deep"] {
		*deep = conf.Deep
	}
	if !set["journal"] {
		journalConn = conf.Journal
	}

	pol, err := buildPolicy(strategy, key, keyExpr, doc)
	if err != nil {
		return err
	}
	pol.Exclude = exclude
	pol.Deep = *deep
	pol.DryRun = *dryRun
	pol.Force = *force
	pol.Parallel = *parallel
	pol.Logger = c.logger
	pol.Verbosity = c.verbosity
	if set["job-id"] {
		pol.Selection = jobIDs
	}

	if journalConn != "" {
		store, err := journal.Open(ctx, journalConn)
		if err != nil {
			return errors.Wrapf(err, "opening journal %s", journalConn)
		}
		defer store.Close()

		rec, err := journal.Begin(ctx, store, src.Root(), dst.Root(), pol.DryRun)
		if err != nil {
			return err
		}
		pol.Recorder = rec
		c.printf("Journal run %s.", rec.ID())
	}

	c.printf("Merging %s -> %s...", src, dst)
	if pol.DryRun && c.verbosity < dsync.More {
		c.printf("WARNING: Performing dry run, consider increasing output verbosity with -v.")
	}

	stats, err := dsync.SyncProjects(ctx, src, dst, pol)
	if err != nil {
		return err
	}

	if b, ok := pol.Doc.(*dsync.ByKeySync); ok {
		if skipped := b.SkippedKeys(); len(skipped) > 0 {
			c.printf("Skipped key(s): %s", strings.Join(skipped, ", "))
		}
	}
	c.printf("Cloned %d and synchronized %d job(s).", stats.Cloned, stats.Merged)
	c.printf("Done.")
	return nil
}

// buildPolicy resolves the named file and document strategies.
func buildPolicy(strategy, key, keyExpr, doc string) (dsync.Policy, error) {
	var pol dsync.Policy

	s, err := dsync.StrategyByName(strategy, huhPrompter{})
	if err != nil {
		return pol, err
	}
	pol.Strategy = s

	if key != "" && keyExpr != "" {
		return pol, errors.New("at most one of -key and -key-expr may be given")
	}
	var pred dsync.KeyPredicate
	switch {
	case key != "":
		pred, err = dsync.KeyPattern(key)
	case keyExpr != "":
		pred, err = dsync.KeyExpr(keyExpr)
	}
	if err != nil {
		return pol, err
	}

	pol.Doc, err = dsync.DocSyncByName(doc, pred)
	return pol, err
}

// huhPrompter asks yes/no questions on the terminal.
type huhPrompter struct{}

func (huhPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	))
	err := form.RunWithContext(ctx)
	return ok, errors.Wrap(err, "prompting")
}
