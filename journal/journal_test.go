package journal

import (
	"context"
	"testing"
)

func TestBackendFor(t *testing.T) {
	cases := map[string]string{
		"journal.db":                    "sqlite3",
		"/var/lib/signac/journal.db":    "sqlite3",
		"postgres://localhost/signac":   "pg",
		"postgresql://u@h:5432/journal": "pg",
	}
	for conn, want := range cases {
		if got := BackendFor(conn); got != want {
			t.Errorf("BackendFor(%s) = %s, want %s", conn, got, want)
		}
	}
}

func TestOpenUnregistered(t *testing.T) {
	if _, err := Open(context.Background(), "postgres://localhost/x"); err == nil {
		t.Error("got no error opening unregistered backend")
	}
}
