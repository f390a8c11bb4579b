// Package document implements signac.Document
// as a JSON file on disk (File) or as a plain in-memory mapping (Mem).
package document

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

var _ signac.Document = &File{}

// File is a document persisted as a JSON object in a single file.
// The file is read lazily on first access
// and rewritten atomically after every mutation.
// A missing file reads as an empty document.
type File struct {
	mu   sync.Mutex
	path string
	data map[string]interface{} // nil until loaded
}

// NewFile produces a File document backed by the file at path.
// Nothing is read or written until the document is used.
func NewFile(path string) *File {
	return &File{path: path}
}

// Filename implements signac.Document.
func (d *File) Filename() string {
	return d.path
}

// Caller must hold the lock.
func (d *File) load() error {
	if d.data != nil {
		return nil
	}
	b, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		d.data = make(map[string]interface{})
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading %s", d.path)
	}
	var m map[string]interface{}
	if err = json.Unmarshal(b, &m); err != nil {
		return errors.Wrapf(err, "decoding %s", d.path)
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	d.data = m
	return nil
}

// Caller must hold the lock.
func (d *File) save() error {
	b, err := json.Marshal(d.data)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", d.path)
	}

	// Write to a temp file in the same dir and rename over the original,
	// so readers never see a partial document.
	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", d.path)
	}
	tmpname := tmp.Name()
	if _, err = tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpname)
		return errors.Wrapf(err, "writing %s", tmpname)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpname)
		return errors.Wrapf(err, "closing %s", tmpname)
	}
	err = os.Rename(tmpname, d.path)
	return errors.Wrapf(err, "renaming %s to %s", tmpname, d.path)
}

// Keys implements signac.Document.
func (d *File) Keys() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.load(); err != nil {
		return nil, err
	}
	return sortedKeys(d.data), nil
}

// Get implements signac.Document.
func (d *File) Get(key string) (interface{}, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.load(); err != nil {
		return nil, false, err
	}
	val, ok := d.data[key]
	if !ok {
		return nil, false, nil
	}
	val, err := signac.Normalize(val) // a copy, so callers cannot mutate d.data
	return val, true, err
}

// Set implements signac.Document.
func (d *File) Set(key string, val interface{}) error {
	val, err := signac.Normalize(val)
	if err != nil {
		return errors.Wrapf(err, "normalizing value for key %s", key)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err = d.load(); err != nil {
		return err
	}
	d.data[key] = val
	if err = d.save(); err != nil {
		d.data = nil // force a reload from whatever is on disk
		return err
	}
	return nil
}

// Clear implements signac.Document.
func (d *File) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.data = make(map[string]interface{})
	if err := d.save(); err != nil {
		d.data = nil
		return err
	}
	return nil
}

// Len implements signac.Document.
func (d *File) Len() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.load(); err != nil {
		return 0, err
	}
	return len(d.data), nil
}

// Data implements signac.Document.
func (d *File) Data() (map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.load(); err != nil {
		return nil, err
	}
	return copyMap(d.data)
}

// Reload implements signac.Document.
func (d *File) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.data = nil
	return d.load()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyMap(m map[string]interface{}) (map[string]interface{}, error) {
	v, err := signac.Normalize(m)
	if err != nil {
		return nil, err
	}
	out, _ := v.(map[string]interface{})
	if out == nil {
		out = make(map[string]interface{})
	}
	return out, nil
}
