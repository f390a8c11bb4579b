// Command signac manages directory-based data spaces of jobs
// and synchronizes one project into another.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/bobg/subcmd"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "github.com/daico007/signac/journal/pg"
	_ "github.com/daico007/signac/journal/sqlite3"
)

type maincmd struct {
	root      string
	logger    *log.Logger
	verbosity int
	stderr    io.Writer
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		root      = flag.String("root", ".", "project root")
		logfile   = flag.String("logfile", "", "write the log to this file, rotating it as it grows")
		verbosity counter
	)
	flag.Var(&verbosity, "v", "increase verbosity (repeatable)")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *logfile != "" {
		lj := &lumberjack.Logger{
			Filename:   *logfile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
		defer lj.Close()
		logger.SetOutput(lj)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := maincmd{
		root:      *root,
		logger:    logger,
		verbosity: int(verbosity),
		stderr:    os.Stderr,
	}
	err := subcmd.Run(ctx, c, flag.Args())
	return report(os.Stderr, err)
}

func (c maincmd) Subcmds() subcmd.Map {
	return subcmd.Commands(
		"doc", withFlags("doc", c.doc), nil,
		"init", withFlags("init", c.initProject), nil,
		"job", withFlags("job", c.job), nil,
		"journal", withFlags("journal", c.journal), nil,
		"schema", withFlags("schema", c.schema), nil,
		"sync", withFlags("sync", c.sync), nil,
	)
}

// withFlags adapts a subcommand that defines and parses its own flags.
// Such a subcommand declares no subcmd.Params,
// so subcmd.Run passes it the raw args.
func withFlags(name string, f func(context.Context, *flag.FlagSet, []string) error) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		return f(ctx, flag.NewFlagSet(name, flag.ContinueOnError), args)
	}
}

func (c maincmd) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.stderr, format+"\n", args...)
}

// counter is a flag that counts its occurrences.
// An explicit value (-v=2) sets it.
type counter int

func (n *counter) String() string {
	if n == nil {
		return "0"
	}
	return strconv.Itoa(int(*n))
}

func (n *counter) Set(s string) error {
	if s == "true" {
		*n++
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = counter(v)
	return nil
}

func (n *counter) IsBoolFlag() bool { return true }

// stringsFlag is a repeatable string flag.
type stringsFlag []string

func (s *stringsFlag) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprint([]string(*s))
}

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}
