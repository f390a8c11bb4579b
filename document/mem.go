package document

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

var _ signac.Document = &Mem{}

// Mem is a document held only in memory.
type Mem struct {
	mu   sync.Mutex
	data map[string]interface{}
}

// NewMem produces a new, empty Mem document.
func NewMem() *Mem {
	return &Mem{data: make(map[string]interface{})}
}

// Filename implements signac.Document.
// It is always empty.
func (d *Mem) Filename() string { return "" }

// Reload implements signac.Document.
// It is a no-op.
func (d *Mem) Reload() error { return nil }

// Keys implements signac.Document.
func (d *Mem) Keys() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sortedKeys(d.data), nil
}

// Get implements signac.Document.
func (d *Mem) Get(key string) (interface{}, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	val, ok := d.data[key]
	if !ok {
		return nil, false, nil
	}
	val, err := signac.Normalize(val)
	return val, true, err
}

// Set implements signac.Document.
func (d *Mem) Set(key string, val interface{}) error {
	val, err := signac.Normalize(val)
	if err != nil {
		return errors.Wrapf(err, "normalizing value for key %s", key)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.data[key] = val
	return nil
}

// Clear implements signac.Document.
func (d *Mem) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.data = make(map[string]interface{})
	return nil
}

// Len implements signac.Document.
func (d *Mem) Len() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.data), nil
}

// Data implements signac.Document.
func (d *Mem) Data() (map[string]interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyMap(d.data)
}
