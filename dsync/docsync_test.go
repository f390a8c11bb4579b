package dsync

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/daico007/signac"
	"github.com/daico007/signac/document"
)

func TestDocumentConflictRollback(t *testing.T) {
	ctx := context.Background()

	var (
		sp  = signac.StatePoint{"a": 1}
		src = newJob(t, newProject(t, "src"), sp, nil, map[string]interface{}{
			"a": 1,
			"b": map[string]interface{}{"c": 2, "new": true},
			"d": 4,
		})
		dst = newJob(t, newProject(t, "dst"), sp, nil, map[string]interface{}{
			"a": 1,
			"b": map[string]interface{}{"c": 3},
		})
	)

	docFile := dst.Document().Filename()
	before, err := os.ReadFile(docFile)
	if err != nil {
		t.Fatal(err)
	}

	err = SyncJobs(ctx, src, dst, quietPolicy())
	var dcErr *signac.DocumentConflictError
	if !errors.As(err, &dcErr) {
		t.Fatalf("got error %v, want DocumentConflictError", err)
	}
	if diff := cmp.Diff([]string{"b.c"}, dcErr.Keys); diff != "" {
		t.Errorf("conflict keys mismatch (-want +got):\n%s", diff)
	}

	after, err := os.ReadFile(docFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("document file changed:\nbefore %s\nafter %s", before, after)
	}

	want := normalized(t, map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": 3}})
	if diff := cmp.Diff(want, docData(t, dst.Document())); diff != "" {
		t.Errorf("doc mismatch (-want +got):\n%s", diff)
	}

	if _, err = os.Stat(docFile + BackupSuffix); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("backup file left behind (stat error %v)", err)
	}
}

func TestByKeyPredicate(t *testing.T) {
	var (
		byPattern = func(p string) KeyPredicate {
			pred, err := KeyPattern(p)
			if err != nil {
				t.Fatal(err)
			}
			return pred
		}
		byExpr = func(e string) KeyPredicate {
			pred, err := KeyExpr(e)
			if err != nil {
				t.Fatal(err)
			}
			return pred
		}
	)

	cases := []struct {
		pred        KeyPredicate
		wantC       float64
		wantSkipped []string
	}{
		{pred: byPattern("b"), wantC: 2},
		{pred: byPattern(`b\.c`), wantC: 2},
		{pred: byPattern("c"), wantC: 3, wantSkipped: []string{"b.c"}},
		{pred: byExpr(`key == "b.c"`), wantC: 2},
		{pred: byExpr(`key startsWith "x"`), wantC: 3, wantSkipped: []string{"b.c"}},
		{pred: func(string) bool { return true }, wantC: 2},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%02d", i+1), func(t *testing.T) {
			ctx := context.Background()

			var (
				sp  = signac.StatePoint{"a": 1}
				src = newJob(t, newProject(t, "src"), sp, nil, map[string]interface{}{"b": map[string]interface{}{"c": 2}, "d": 4})
				dst = newJob(t, newProject(t, "dst"), sp, nil, map[string]interface{}{"b": map[string]interface{}{"c": 3, "e": 5}})
			)

			byKey := ByKey(c.pred)
			pol := quietPolicy()
			pol.Doc = byKey
			if err := SyncJobs(ctx, src, dst, pol); err != nil {
				t.Fatal(err)
			}

			want := normalized(t, map[string]interface{}{
				"b": map[string]interface{}{"c": c.wantC, "e": 5},
				"d": 4,
			})
			if diff := cmp.Diff(want, docData(t, dst.Document())); diff != "" {
				t.Errorf("doc mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(c.wantSkipped, byKey.SkippedKeys(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("skipped keys mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestByKeyNestedConflicts(t *testing.T) {
	ctx := context.Background()

	src := document.NewMem()
	dst := document.NewMem()
	for k, v := range map[string]interface{}{
		"x": map[string]interface{}{"y": map[string]interface{}{"z": 1, "w": 1}, "v": "a"},
		"s": "str",
	} {
		if err := src.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range map[string]interface{}{
		"x": map[string]interface{}{"y": map[string]interface{}{"z": 2}, "v": "b"},
		"s": map[string]interface{}{"not": "a string"},
	} {
		if err := dst.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	before, err := dst.Data()
	if err != nil {
		t.Fatal(err)
	}

	data, err := src.Data()
	if err != nil {
		t.Fatal(err)
	}
	proxy := NewProxy(false, quietPolicy().Logger, 0, nil)
	err = proxy.DocBackup(ctx, dst, func(m Mapping) error {
		return ByKey(nil).Sync(ctx, data, m)
	})

	var dcErr *signac.DocumentConflictError
	if !errors.As(err, &dcErr) {
		t.Fatalf("got error %v, want DocumentConflictError", err)
	}
	if diff := cmp.Diff([]string{"s", "x.v", "x.y.z"}, dcErr.Keys); diff != "" {
		t.Errorf("conflict keys mismatch (-want +got):\n%s", diff)
	}

	// In-memory documents are restored from a snapshot.
	after, err := dst.Data()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("doc not restored (-want +got):\n%s", diff)
	}
}

func TestDocStrategies(t *testing.T) {
	var (
		srcDoc = map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": 2}}
		dstDoc = map[string]interface{}{"b": map[string]interface{}{"c": 3, "e": 5}, "z": 0}
	)

	cases := []struct {
		doc      DocSync
		strategy Strategy
		want     map[string]interface{}
		wantErr  bool
	}{
		{doc: NoSync, want: dstDoc},
		{doc: Update, want: map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": 2}, "z": 0}},
		{doc: CopyDoc, strategy: Always, want: srcDoc},
		{doc: CopyDoc, strategy: Never, want: dstDoc},
		{doc: CopyDoc, want: dstDoc, wantErr: true},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%02d", i+1), func(t *testing.T) {
			ctx := context.Background()

			var (
				sp  = signac.StatePoint{"a": 1}
				src = newJob(t, newProject(t, "src"), sp, nil, srcDoc)
				dst = newJob(t, newProject(t, "dst"), sp, nil, dstDoc)
			)

			pol := quietPolicy()
			pol.Doc = c.doc
			pol.Strategy = c.strategy
			err := SyncJobs(ctx, src, dst, pol)
			if c.wantErr {
				var fcErr *signac.FileConflictError
				if !errors.As(err, &fcErr) {
					t.Fatalf("got error %v, want FileConflictError", err)
				}
				if fcErr.Path != dst.DocumentFilename() {
					t.Errorf("got conflict on %s, want %s", fcErr.Path, dst.DocumentFilename())
				}
			} else if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(normalized(t, c.want), docData(t, dst.Document())); diff != "" {
				t.Errorf("doc mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDocSyncByName(t *testing.T) {
	for _, name := range DocSyncNames {
		d, err := DocSyncByName(name, nil)
		if err != nil {
			t.Fatal(err)
		}
		if d.String() != name {
			t.Errorf("got %s, want %s", d, name)
		}
	}
	if _, err := DocSyncByName("merge-everything", nil); err == nil {
		t.Error("got no error for unknown document strategy")
	}
}

func TestKeyExprInvalid(t *testing.T) {
	if _, err := KeyExpr(`key +`); err == nil {
		t.Error("got no error for malformed expression")
	}
	if _, err := KeyExpr(`len(key)`); err == nil {
		t.Error("got no error for non-boolean expression")
	}
	if _, err := KeyPattern(`(`); err == nil {
		t.Error("got no error for malformed pattern")
	}
}
