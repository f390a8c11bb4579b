package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/daico007/signac/journal"
)

func (c maincmd) journal(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		runID = fs.String("run", "", "list the entries of this run (default: list runs)")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: signac journal [-run ID] CONN")
	}

	store, err := journal.Open(ctx, fs.Arg(0))
	if err != nil {
		return errors.Wrapf(err, "opening journal %s", fs.Arg(0))
	}
	defer store.Close()

	if *runID == "" {
		return store.Runs(ctx, func(r journal.Run) error {
			var dry string
			if r.DryRun {
				dry = " (dry run)"
			}
			fmt.Printf("%s %s %s -> %s%s\n", r.ID, r.Started.Format(time.RFC3339), r.Source, r.Destination, dry)
			return nil
		})
	}

	return store.Entries(ctx, *runID, func(e journal.Entry) error {
		var dry string
		if e.DryRun {
			dry = " (dry run)"
		}
		fmt.Printf("%d %s %s %s -> %s%s\n", e.Seq, e.At.Format(time.RFC3339Nano), e.Op, e.Src, e.Dst, dry)
		return nil
	})
}
