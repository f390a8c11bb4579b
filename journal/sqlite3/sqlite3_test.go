package sqlite3

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/daico007/signac/journal"
)

func TestJournal(t *testing.T) {
	ctx := context.Background()

	s, err := journal.Open(ctx, filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rec1, err := journal.Begin(ctx, s, "/src", "/dst", false)
	if err != nil {
		t.Fatal(err)
	}
	rec2, err := journal.Begin(ctx, s, "/src", "/other", true)
	if err != nil {
		t.Fatal(err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec1.Record(ctx, "copy", fmt.Sprintf("/src/%d", i), fmt.Sprintf("/dst/%d", i), false); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if err = rec2.Record(ctx, "set", "key", "/other/doc.json", true); err != nil {
		t.Fatal(err)
	}

	var runs []journal.Run
	err = s.Runs(ctx, func(r journal.Run) error {
		runs = append(runs, r)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != rec1.ID() || runs[1].ID != rec2.ID() {
		t.Errorf("got runs %s, %s; want %s, %s", runs[0].ID, runs[1].ID, rec1.ID(), rec2.ID())
	}
	if runs[0].DryRun || !runs[1].DryRun {
		t.Errorf("got dry-run flags %v, %v; want false, true", runs[0].DryRun, runs[1].DryRun)
	}
	if runs[1].Destination != "/other" {
		t.Errorf("got destination %s, want /other", runs[1].Destination)
	}

	var seqs []int
	srcs := make(map[string]bool)
	err = s.Entries(ctx, rec1.ID(), func(e journal.Entry) error {
		seqs = append(seqs, e.Seq)
		srcs[e.Src] = true
		if e.Op != "copy" {
			t.Errorf("got op %s, want copy", e.Op)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	var wantSeqs []int
	for i := 1; i <= n; i++ {
		wantSeqs = append(wantSeqs, i)
	}
	if diff := cmp.Diff(wantSeqs, seqs); diff != "" {
		t.Errorf("seq mismatch (-want +got):\n%s", diff)
	}
	if len(srcs) != n {
		t.Errorf("got %d distinct sources, want %d", len(srcs), n)
	}

	var entries []journal.Entry
	err = s.Entries(ctx, rec2.ID(), func(e journal.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Op != "set" || !entries[0].DryRun {
		t.Errorf("got entries %+v, want one dry-run set", entries)
	}
}
