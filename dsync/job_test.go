package dsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/daico007/signac"
	"github.com/daico007/signac/testutil"
)

func TestSyncJobsAdditive(t *testing.T) {
	ctx := context.Background()

	var (
		srcProj = newProject(t, "src")
		dstProj = newProject(t, "dst")
		sp      = signac.StatePoint{"a": 1}
		src     = newJob(t, srcProj, sp, map[string]string{"a.txt": "A", "sub/b.txt": "B"}, map[string]interface{}{"x": 1})
		dst     = newJob(t, dstProj, sp, map[string]string{"c.txt": "C"}, map[string]interface{}{"y": 2})
	)

	manifest := filepath.Join(dst.Workspace(), dst.ManifestFilename())
	manifestBefore, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatal(err)
	}

	if err = SyncJobs(ctx, src, dst, quietPolicy()); err != nil {
		t.Fatal(err)
	}

	got := testutil.ReadTree(t, dst.Workspace())
	for name, want := range map[string]string{"a.txt": "A", "sub/b.txt": "B", "c.txt": "C"} {
		if got[name] != want {
			t.Errorf("got %q for %s, want %q", got[name], name, want)
		}
	}
	if got[dst.ManifestFilename()] != string(manifestBefore) {
		t.Errorf("manifest changed: %q", got[dst.ManifestFilename()])
	}

	wantDoc := normalized(t, map[string]interface{}{"x": 1, "y": 2})
	if diff := cmp.Diff(wantDoc, docData(t, dst.Document())); diff != "" {
		t.Errorf("doc mismatch (-want +got):\n%s", diff)
	}

	// Syncing again changes nothing.
	var rec opRecorder
	pol := quietPolicy()
	pol.Recorder = &rec
	snap := testutil.TakeSnapshot(t, dst.Workspace())
	if err = SyncJobs(ctx, src, dst, pol); err != nil {
		t.Fatal(err)
	}
	testutil.Unchanged(t, dst.Workspace(), snap)
	if n := rec.count(OpSet); n != 0 {
		t.Errorf("got %d document writes on second sync, want 0", n)
	}
	if n := rec.count(OpCopyTree); n != 0 {
		t.Errorf("got %d tree copies on second sync, want 0", n)
	}
}

func TestSyncJobsNoOp(t *testing.T) {
	ctx := context.Background()

	var (
		srcProj = newProject(t, "src")
		dstProj = newProject(t, "dst")
		job     = newJob(t, srcProj, signac.StatePoint{"a": 1}, map[string]string{"f": "1"}, nil)
	)

	err := SyncJobs(ctx, job, job, quietPolicy())
	if !errors.Is(err, signac.ErrIdentical) {
		t.Errorf("got error %v, want ErrIdentical", err)
	}

	// A job that was never initialized has nothing to contribute.
	unmaterialized, err := srcProj.NewJob(signac.StatePoint{"a": 2})
	if err != nil {
		t.Fatal(err)
	}
	dst := newJob(t, dstProj, signac.StatePoint{"a": 2}, map[string]string{"g": "2"}, map[string]interface{}{"k": "v"})
	snap := testutil.TakeSnapshot(t, dst.Workspace())
	if err = SyncJobs(ctx, unmaterialized, dst, quietPolicy()); err != nil {
		t.Fatal(err)
	}
	testutil.Unchanged(t, dst.Workspace(), snap)
}

func TestFileConflict(t *testing.T) {
	cases := []struct {
		strategy Strategy
		want     string
		wantErr  bool
	}{
		{strategy: nil, want: "dst", wantErr: true},
		{strategy: Always, want: "src!!"},
		{strategy: Never, want: "dst"},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%02d", i+1), func(t *testing.T) {
			ctx := context.Background()

			var (
				sp  = signac.StatePoint{"i": i}
				src = newJob(t, newProject(t, "src"), sp, map[string]string{"sub/x.txt": "src!!", "new.txt": "new"}, nil)
				dst = newJob(t, newProject(t, "dst"), sp, map[string]string{"sub/x.txt": "dst"}, nil)
			)

			pol := quietPolicy()
			pol.Strategy = c.strategy
			err := SyncJobs(ctx, src, dst, pol)

			var fcErr *signac.FileConflictError
			if c.wantErr {
				if !errors.As(err, &fcErr) {
					t.Fatalf("got error %v, want FileConflictError", err)
				}
				if want := filepath.Join("sub", "x.txt"); fcErr.Path != want {
					t.Errorf("got conflict on %s, want %s", fcErr.Path, want)
				}
			} else if err != nil {
				t.Fatal(err)
			}

			got := testutil.ReadTree(t, dst.Workspace())
			if got["sub/x.txt"] != c.want {
				t.Errorf("got %q, want %q", got["sub/x.txt"], c.want)
			}
			// Left-only files are copied before conflicts are considered.
			if got["new.txt"] != "new" {
				t.Errorf("new.txt not copied")
			}
		})
	}
}

func TestUpdateByTime(t *testing.T) {
	ctx := context.Background()

	var (
		sp  = signac.StatePoint{"a": 1}
		src = newJob(t, newProject(t, "src"), sp, map[string]string{"newer": "src-newer", "older": "src-older"}, nil)
		dst = newJob(t, newProject(t, "dst"), sp, map[string]string{"newer": "dst", "older": "dst"}, nil)

		t1 = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
		t2 = t1.Add(time.Hour)
	)

	testutil.SetModTime(t, src.Fn("newer"), t2)
	testutil.SetModTime(t, dst.Fn("newer"), t1)
	testutil.SetModTime(t, src.Fn("older"), t1)
	testutil.SetModTime(t, dst.Fn("older"), t2)

	pol := quietPolicy()
	pol.Strategy = UpdateByTime
	if err := SyncJobs(ctx, src, dst, pol); err != nil {
		t.Fatal(err)
	}

	got := testutil.ReadTree(t, dst.Workspace())
	if got["newer"] != "src-newer" {
		t.Errorf("newer: got %q, want %q", got["newer"], "src-newer")
	}
	if got["older"] != "dst" {
		t.Errorf("older: got %q, want %q", got["older"], "dst")
	}
}

func TestDeep(t *testing.T) {
	ctx := context.Background()
	when := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, deep := range []bool{false, true} {
		t.Run(fmt.Sprintf("deep_%v", deep), func(t *testing.T) {
			var (
				sp  = signac.StatePoint{"a": 1}
				src = newJob(t, newProject(t, "src"), sp, map[string]string{"f": "xy"}, nil)
				dst = newJob(t, newProject(t, "dst"), sp, map[string]string{"f": "yx"}, nil)
			)
			testutil.SetModTime(t, src.Fn("f"), when)
			testutil.SetModTime(t, dst.Fn("f"), when)

			pol := quietPolicy()
			pol.Strategy = Always
			pol.Deep = deep
			if err := SyncJobs(ctx, src, dst, pol); err != nil {
				t.Fatal(err)
			}

			want := "yx"
			if deep {
				want = "xy"
			}
			if got := testutil.ReadTree(t, dst.Workspace())["f"]; got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestInteractive(t *testing.T) {
	ctx := context.Background()

	var (
		srcProj = newProject(t, "src")
		dstProj = newProject(t, "dst")
		calls   int32
	)

	strategy := NewInteractive(PrompterFunc(func(context.Context, string) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}))

	pol := quietPolicy()
	pol.Strategy = strategy

	for i := 0; i < 3; i++ {
		sp := signac.StatePoint{"i": i}
		src := newJob(t, srcProj, sp, map[string]string{"x.txt": "from src"}, nil)
		dst := newJob(t, dstProj, sp, map[string]string{"x.txt": "dst"}, nil)
		if err := SyncJobs(ctx, src, dst, pol); err != nil {
			t.Fatal(err)
		}
		if got := testutil.ReadTree(t, dst.Workspace())["x.txt"]; got != "from src" {
			t.Errorf("job %d: got %q, want %q", i, got, "from src")
		}
	}

	if calls != 1 {
		t.Errorf("got %d prompts, want 1", calls)
	}
}

func TestStrategyByName(t *testing.T) {
	p := PrompterFunc(func(context.Context, string) (bool, error) { return false, nil })
	for _, name := range StrategyNames {
		s, err := StrategyByName(name, p)
		if err != nil {
			t.Fatal(err)
		}
		if s.String() != name {
			t.Errorf("got %s, want %s", s, name)
		}
	}
	if s, err := StrategyByName("", nil); err != nil || s != nil {
		t.Errorf("got %v, %v for empty name; want nil, nil", s, err)
	}
	if _, err := StrategyByName("sometimes", nil); err == nil {
		t.Error("got no error for unknown strategy")
	}
}

func TestExclude(t *testing.T) {
	ctx := context.Background()

	var (
		sp  = signac.StatePoint{"a": 1}
		src = newJob(t, newProject(t, "src"), sp, map[string]string{"tmp.dat": "1", "tmpdir/x": "2", "xtmp": "3", "sub/tmp.log": "4"}, nil)
		dst = newJob(t, newProject(t, "dst"), sp, nil, nil)
	)

	pol := quietPolicy()
	pol.Exclude = []string{"tmp"}
	if err := SyncJobs(ctx, src, dst, pol); err != nil {
		t.Fatal(err)
	}

	got := testutil.ReadTree(t, dst.Workspace())
	delete(got, dst.ManifestFilename())
	want := map[string]string{"xtmp": "3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDryRun(t *testing.T) {
	ctx := context.Background()

	var (
		sp      = signac.StatePoint{"a": 1}
		src     = newJob(t, newProject(t, "src"), sp, map[string]string{"a": "new", "b": "differs!", "d/e": "tree"}, map[string]interface{}{"k": 1, "n": map[string]interface{}{"m": 1}})
		dst     = newJob(t, newProject(t, "dst"), sp, map[string]string{"b": "dst"}, map[string]interface{}{"k": 2})
		rec     opRecorder
	)

	pol := quietPolicy()
	pol.DryRun = true
	pol.Strategy = Always
	pol.Doc = Update
	pol.Recorder = &rec

	snap := testutil.TakeSnapshot(t, dst.Workspace())
	if err := SyncJobs(ctx, src, dst, pol); err != nil {
		t.Fatal(err)
	}
	testutil.Unchanged(t, dst.Workspace(), snap)

	if n := rec.count("copy (dry run)"); n < 2 {
		t.Errorf("got %d dry-run copies, want at least 2", n)
	}
	if n := rec.count("set (dry run)"); n != 2 {
		t.Errorf("got %d dry-run document writes, want 2", n)
	}

	// A destination that does not exist yet is not created.
	dst2, err := newProject(t, "dst2").NewJob(sp)
	if err != nil {
		t.Fatal(err)
	}
	if err = SyncJobs(ctx, src, dst2, pol); err != nil {
		t.Fatal(err)
	}
	if dst2.IsMaterialized() {
		t.Error("dry run materialized the destination job")
	}
}

func TestStaleBackup(t *testing.T) {
	ctx := context.Background()

	var (
		sp  = signac.StatePoint{"a": 1}
		src = newJob(t, newProject(t, "src"), sp, nil, map[string]interface{}{"k": 1})
		dst = newJob(t, newProject(t, "dst"), sp, nil, map[string]interface{}{"j": 2})
	)

	stale := dst.Document().Filename() + BackupSuffix
	if err := os.WriteFile(stale, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	err := SyncJobs(ctx, src, dst, quietPolicy())
	if !errors.Is(err, signac.ErrStaleBackup) {
		t.Fatalf("got error %v, want ErrStaleBackup", err)
	}

	want := normalized(t, map[string]interface{}{"j": 2})
	if diff := cmp.Diff(want, docData(t, dst.Document())); diff != "" {
		t.Errorf("doc mismatch (-want +got):\n%s", diff)
	}
	if _, err = os.Stat(stale); err != nil {
		t.Errorf("stale backup disappeared: %s", err)
	}
}
