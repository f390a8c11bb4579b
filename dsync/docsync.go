package dsync

import (
	"context"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

// Mapping is the writable view of a destination document that a DocSync merges into.
type Mapping interface {
	Keys() ([]string, error)
	Get(key string) (interface{}, bool, error)
	Set(ctx context.Context, key string, val interface{}) error
}

// DocSync merges a source document into a destination document.
type DocSync interface {
	// Sync merges src into dst.
	Sync(ctx context.Context, src map[string]interface{}, dst Mapping) error

	// String is the name of the DocSync.
	String() string
}

var (
	// NoSync leaves the destination document alone.
	NoSync DocSync = noSync{}

	// CopyDoc treats the job document's file like any other workspace file,
	// subject to the file Strategy.
	// Project documents are left alone.
	CopyDoc DocSync = copyDoc{}

	// Update overwrites every destination key with its source value.
	// Keys present only in the destination are kept.
	Update DocSync = update{}
)

type noSync struct{}

func (noSync) Sync(context.Context, map[string]interface{}, Mapping) error { return nil }
func (noSync) String() string                                              { return "skip" }

type copyDoc struct{}

func (copyDoc) Sync(context.Context, map[string]interface{}, Mapping) error { return nil }
func (copyDoc) String() string                                              { return "copy" }

type update struct{}

func (update) Sync(ctx context.Context, src map[string]interface{}, dst Mapping) error {
	for _, key := range sortedKeys(src) {
		if err := dst.Set(ctx, key, src[key]); err != nil {
			return err
		}
	}
	return nil
}

func (update) String() string { return "update" }

// merges tells whether d writes through the document API
// (as opposed to doing nothing, or working at the file level).
func merges(d DocSync) bool {
	switch d.(type) {
	case noSync, copyDoc:
		return false
	}
	return true
}

// DocSyncNames lists the names accepted by DocSyncByName.
var DocSyncNames = []string{"skip", "copy", "update", "sync"}

// DocSyncByName returns the DocSync with the given name.
// The name "sync" (or "bykey", or the empty name) yields ByKey(pred).
func DocSyncByName(name string, pred KeyPredicate) (DocSync, error) {
	switch name {
	case "skip", "none":
		return NoSync, nil
	case "copy":
		return CopyDoc, nil
	case "update":
		return Update, nil
	case "", "sync", "bykey":
		return ByKey(pred), nil
	}
	return nil, errors.Errorf("unknown document strategy %q (want one of %s)", name, strings.Join(DocSyncNames, ", "))
}

// KeyPredicate decides whether the destination value at a dotted key-path may be overwritten.
type KeyPredicate func(key string) bool

// KeyPattern produces a KeyPredicate accepting the key-paths
// that match the given regular expression at their start.
func KeyPattern(pattern string) (KeyPredicate, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling key pattern %q", pattern)
	}
	return re.MatchString, nil
}

// KeyExpr produces a KeyPredicate from a boolean expression
// in which the variable key is the dotted key-path,
// e.g. `key startsWith "results." && key != "results.final"`.
// An expression that fails to evaluate rejects the key.
func KeyExpr(expression string) (KeyPredicate, error) {
	env := map[string]interface{}{"key": ""}
	prog, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, errors.Wrapf(err, "compiling key expression %q", expression)
	}
	return func(key string) bool {
		return runKeyExpr(prog, key)
	}, nil
}

func runKeyExpr(prog *vm.Program, key string) bool {
	out, err := expr.Run(prog, map[string]interface{}{"key": key})
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// ByKeySync is a recursive, key-by-key DocSync.
//
// A key present only in the source is copied.
// A key whose values are equal is left alone.
// A key whose values are both mappings is merged recursively.
// Any other differing key is a conflict,
// identified by its dotted key-path (e.g. "b.c").
// Conflicting key-paths accepted by the predicate are overwritten;
// the rest are left alone and recorded as skipped.
//
// With no predicate, any conflict makes Sync return a *signac.DocumentConflictError
// listing every conflicting key-path,
// in which case the caller is expected to roll back the partial merge.
// With a predicate, skipped keys are not an error;
// they are available from SkippedKeys.
type ByKeySync struct {
	pred KeyPredicate

	mu      sync.Mutex
	skipped map[string]struct{}
}

// ByKey produces a new ByKeySync.
// The predicate may be nil.
func ByKey(pred KeyPredicate) *ByKeySync {
	return &ByKeySync{
		pred:    pred,
		skipped: make(map[string]struct{}),
	}
}

func (b *ByKeySync) String() string { return "sync" }

// SkippedKeys returns the key-paths skipped over the lifetime of b, sorted.
func (b *ByKeySync) SkippedKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.skipped)
}

// Sync implements DocSync.
func (b *ByKeySync) Sync(ctx context.Context, src map[string]interface{}, dst Mapping) error {
	conflicts := make(map[string]struct{})
	if err := b.merge(ctx, src, dst, "", conflicts); err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}

	keys := sortedKeys(conflicts)

	b.mu.Lock()
	for _, k := range keys {
		b.skipped[k] = struct{}{}
	}
	b.mu.Unlock()

	if b.pred == nil {
		return &signac.DocumentConflictError{Keys: keys}
	}
	return nil
}

func (b *ByKeySync) merge(ctx context.Context, src map[string]interface{}, dst Mapping, prefix string, conflicts map[string]struct{}) error {
	for _, key := range sortedKeys(src) {
		if err := ctx.Err(); err != nil {
			return err
		}

		val := src[key]
		path := prefix + key

		dval, ok, err := dst.Get(key)
		if err != nil {
			return errors.Wrapf(err, "reading key %s", path)
		}
		if ok {
			if reflect.DeepEqual(dval, val) {
				continue
			}

			srcSub, srcIsMap := val.(map[string]interface{})
			dstSub, dstIsMap := dval.(map[string]interface{})
			if srcIsMap && dstIsMap {
				nested := &nestedMapping{m: dstSub}
				if err = b.merge(ctx, srcSub, nested, path+".", conflicts); err != nil {
					return err
				}
				if nested.changed {
					if err = dst.Set(ctx, key, dstSub); err != nil {
						return err
					}
				}
				continue
			}

			if b.pred == nil || !b.pred(path) {
				conflicts[path] = struct{}{}
				continue
			}
		}

		if err = dst.Set(ctx, key, val); err != nil {
			return err
		}
	}
	return nil
}

// nestedMapping is the Mapping for a nested value
// (a private copy, as returned by signac.Document.Get).
// The merged copy is written back to the document under its top-level key.
type nestedMapping struct {
	m       map[string]interface{}
	changed bool
}

func (n *nestedMapping) Keys() ([]string, error) {
	return sortedKeys(n.m), nil
}

func (n *nestedMapping) Get(key string) (interface{}, bool, error) {
	v, ok := n.m[key]
	return v, ok, nil
}

func (n *nestedMapping) Set(_ context.Context, key string, val interface{}) error {
	n.m[key] = val
	n.changed = true
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
