package dsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

// Strategy decides whether a differing file in the destination is overwritten by its source counterpart.
type Strategy interface {
	// Overwrite tells whether the file at relpath
	// (relative to both job workspaces)
	// should be copied from src to dst.
	Overwrite(ctx context.Context, src, dst signac.Job, relpath string) (bool, error)

	// String is the name of the strategy.
	String() string
}

var (
	// Always overwrites every differing file.
	Always Strategy = always{}

	// Never keeps every differing destination file.
	Never Strategy = never{}

	// UpdateByTime overwrites a file when the source copy was modified more recently.
	UpdateByTime Strategy = byTime{}
)

type always struct{}

func (always) Overwrite(context.Context, signac.Job, signac.Job, string) (bool, error) { return true, nil }
func (always) String() string                                                          { return "always" }

type never struct{}

func (never) Overwrite(context.Context, signac.Job, signac.Job, string) (bool, error) { return false, nil }
func (never) String() string                                                          { return "never" }

type byTime struct{}

func (byTime) Overwrite(_ context.Context, src, dst signac.Job, relpath string) (bool, error) {
	srcPath := filepath.Join(src.Workspace(), relpath)
	dstPath := filepath.Join(dst.Workspace(), relpath)
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return false, errors.Wrapf(err, "statting %s", srcPath)
	}
	dstInfo, err := os.Stat(dstPath)
	if err != nil {
		return false, errors.Wrapf(err, "statting %s", dstPath)
	}
	return srcInfo.ModTime().After(dstInfo.ModTime()), nil
}

func (byTime) String() string { return "update" }

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// PrompterFunc is a function implementing Prompter.
type PrompterFunc func(ctx context.Context, question string) (bool, error)

// Confirm implements Prompter.
func (f PrompterFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

// Interactive is a Strategy that asks the user about each conflicting file.
// The answer for a given relative path is remembered
// and applied to every later job with a conflict on the same path.
// Prompts from concurrent workers are serialized.
type Interactive struct {
	p Prompter

	mu      sync.Mutex
	answers map[string]bool
}

// NewInteractive produces a new Interactive strategy asking p.
func NewInteractive(p Prompter) *Interactive {
	return &Interactive{p: p, answers: make(map[string]bool)}
}

// Overwrite implements Strategy.
func (s *Interactive) Overwrite(ctx context.Context, src, dst signac.Job, relpath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ans, ok := s.answers[relpath]; ok {
		return ans, nil
	}
	q := fmt.Sprintf("Overwrite files named '%s'?", relpath)
	ans, err := s.p.Confirm(ctx, q)
	if err != nil {
		return false, errors.Wrapf(err, "asking about %s", relpath)
	}
	s.answers[relpath] = ans
	return ans, nil
}

func (s *Interactive) String() string { return "Ask" }

// StrategyNames lists the names accepted by StrategyByName.
var StrategyNames = []string{"always", "never", "update", "Ask"}

// StrategyByName returns the strategy with the given name.
// The empty name yields a nil Strategy, meaning conflicts are errors.
// The prompter p is used only by "Ask".
func StrategyByName(name string, p Prompter) (Strategy, error) {
	switch name {
	case "":
		return nil, nil
	case "always":
		return Always, nil
	case "never":
		return Never, nil
	case "update":
		return UpdateByTime, nil
	case "Ask", "ask":
		if p == nil {
			return nil, errors.New("interactive strategy requires a prompter")
		}
		return NewInteractive(p), nil
	}
	return nil, errors.Errorf("unknown file strategy %q (want one of %s)", name, strings.Join(StrategyNames, ", "))
}

// syncWorkspaces copies files from the src workspace to the dst workspace,
// starting in subdir (relative to both).
func (s *syncer) syncWorkspaces(ctx context.Context, src, dst signac.Job, exclude matcher, subdir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	srcDir := filepath.Join(src.Workspace(), subdir)
	dstDir := filepath.Join(dst.Workspace(), subdir)
	diff, err := Compare(srcDir, dstDir, s.pol.Deep, exclude.match)
	if err != nil {
		return errors.Wrapf(err, "comparing %s with %s", srcDir, dstDir)
	}

	for _, name := range diff.LeftOnly {
		srcPath, dstPath := filepath.Join(srcDir, name), filepath.Join(dstDir, name)
		info, err := os.Stat(srcPath)
		if err != nil {
			return errors.Wrapf(err, "statting %s", srcPath)
		}
		if info.IsDir() {
			err = s.proxy.CopyTreeExcept(ctx, srcPath, dstPath, exclude.match)
		} else {
			err = s.proxy.Copy(ctx, srcPath, dstPath)
		}
		if err != nil {
			return err
		}
	}

	for _, name := range diff.DiffFiles {
		relpath := filepath.Join(subdir, name)
		if s.pol.Strategy == nil {
			return &signac.FileConflictError{Path: relpath}
		}
		ok, err := s.pol.Strategy.Overwrite(ctx, src, dst, relpath)
		if err != nil {
			return err
		}
		if !ok {
			s.lg.debugf("Skip file '%s'.", relpath)
			continue
		}
		if err = s.proxy.Copy(ctx, filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
			return err
		}
	}

	for _, name := range diff.Subdirs {
		if err := s.syncWorkspaces(ctx, src, dst, exclude, filepath.Join(subdir, name)); err != nil {
			return err
		}
	}
	return nil
}
