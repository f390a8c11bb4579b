package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
	"github.com/daico007/signac/project"
)

func (c maincmd) initProject(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		workspace = fs.String("workspace", project.DefaultWorkspaceDir, "workspace dir, relative to the project root")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: signac init [-workspace DIR] NAME")
	}

	p, err := project.Init(c.root, fs.Arg(0))
	if err != nil {
		return err
	}
	if *workspace != project.DefaultWorkspaceDir {
		conf := p.Config()
		conf.WorkspaceDir = *workspace
		if err = project.WriteConfig(c.root, conf); err != nil {
			return err
		}
	}
	c.printf("Initialized project %s.", p)
	return nil
}

func (c maincmd) job(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		create = fs.Bool("create", false, "materialize the job")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: signac job [-create] STATEPOINT")
	}

	var sp signac.StatePoint
	if err = json.Unmarshal([]byte(fs.Arg(0)), &sp); err != nil {
		return errors.Wrapf(err, "parsing state point %s", fs.Arg(0))
	}

	p, err := project.Open(c.root)
	if err != nil {
		return err
	}
	job, err := p.NewJob(sp)
	if err != nil {
		return err
	}
	if *create {
		if err = job.Init(); err != nil {
			return err
		}
	}
	fmt.Println(job.ID())
	return nil
}

func (c maincmd) doc(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		jobID = fs.String("job", "", "ID of job whose document to use (default: the project document)")
	)
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	p, err := project.Open(c.root)
	if err != nil {
		return err
	}

	doc := p.Document()
	if *jobID != "" {
		job, err := p.OpenJob(*jobID)
		if err != nil {
			return err
		}
		doc = job.Document()
	}

	switch fs.NArg() {
	case 0:
		data, err := doc.Data()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)

	case 2:
		var val interface{}
		if err = json.Unmarshal([]byte(fs.Arg(1)), &val); err != nil {
			return errors.Wrapf(err, "parsing value %s", fs.Arg(1))
		}
		return doc.Set(fs.Arg(0), val)
	}

	return errors.New("usage: signac doc [-job ID] [KEY VALUE]")
}

func (c maincmd) schema(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	p, err := project.Open(c.root)
	if err != nil {
		return err
	}
	s, err := p.DetectSchema()
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}
