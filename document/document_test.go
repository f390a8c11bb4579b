package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/daico007/signac"
)

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	testDocument(t, NewFile(path))

	// A fresh File on the same path sees the persisted data.
	d2 := NewFile(path)
	got, err := d2.Data()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"a": 1.0,
		"b": map[string]interface{}{"c": "x"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFileReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	d := NewFile(path)
	if err := d.Set("a", 1); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"z":true}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := d.Reload(); err != nil {
		t.Fatal(err)
	}
	keys, err := d.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"z"}, keys); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFileMissing(t *testing.T) {
	d := NewFile(filepath.Join(t.TempDir(), "nope.json"))
	n, err := d.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("got %d keys, want 0", n)
	}
}

func TestMem(t *testing.T) {
	d := NewMem()
	if d.Filename() != "" {
		t.Errorf("got filename %q, want empty", d.Filename())
	}
	testDocument(t, d)
}

func testDocument(t *testing.T, d signac.Document) {
	t.Helper()

	if err := d.Set("a", 1); err != nil {
		t.Fatal(err)
	}
	if err := d.Set("b", map[string]interface{}{"c": "x"}); err != nil {
		t.Fatal(err)
	}

	n, err := d.Len()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("got %d keys, want 2", n)
	}

	val, ok, err := d.Get("b")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("key b not found")
	}

	// Mutating a returned value must not affect the document.
	val.(map[string]interface{})["c"] = "mutated"
	val2, _, err := d.Get("b")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]interface{}{"c": "x"}, val2); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	keys, err := d.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
