// Package schema summarizes the structure of a set of state points.
//
// A Schema maps each dotted key-path that appears in any state point
// to the types of value found there,
// and for each type to the set of distinct values.
// Two projects whose schemas differ probably hold unrelated data,
// which is why synchronization checks them first.
package schema

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/daico007/signac"
)

var _ signac.Schema = Schema{}

// Schema maps key-paths to type names to sets of canonically encoded values.
type Schema map[string]map[string]map[string]struct{}

// Detect computes the schema of the given state points.
func Detect(sps []signac.StatePoint) (Schema, error) {
	s := make(Schema)
	for _, sp := range sps {
		norm, err := signac.Normalize(sp)
		if err != nil {
			return nil, errors.Wrap(err, "normalizing state point")
		}
		m, _ := norm.(map[string]interface{})
		if err = s.add("", m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s Schema) add(prefix string, m map[string]interface{}) error {
	for k, v := range m {
		key := prefix + k
		if sub, ok := v.(map[string]interface{}); ok {
			if err := s.add(key+".", sub); err != nil {
				return err
			}
			continue
		}
		enc, err := signac.Canonical(v)
		if err != nil {
			return errors.Wrapf(err, "encoding value of %s", key)
		}
		types, ok := s[key]
		if !ok {
			types = make(map[string]map[string]struct{})
			s[key] = types
		}
		typ := typeName(v)
		vals, ok := types[typ]
		if !ok {
			vals = make(map[string]struct{})
			types[typ] = vals
		}
		vals[string(enc)] = struct{}{}
	}
	return nil
}

func typeName(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		if v == math.Trunc(v) {
			return "int"
		}
		return "float"
	case string:
		return "str"
	case []interface{}:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Len implements signac.Schema.
func (s Schema) Len() int {
	return len(s)
}

// Keys returns the schema's key-paths in sorted order.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Difference returns the sorted key-paths of a that are absent from b,
// or present in both with differing types or values.
func Difference(a, b Schema) []string {
	var result []string
	for key, atypes := range a {
		btypes, ok := b[key]
		if !ok || !sameTypes(atypes, btypes) {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result
}

func sameTypes(a, b map[string]map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for typ, avals := range a {
		bvals, ok := b[typ]
		if !ok || len(avals) != len(bvals) {
			return false
		}
		for v := range avals {
			if _, ok := bvals[v]; !ok {
				return false
			}
		}
	}
	return true
}

// Differs implements signac.Schema.
func (s Schema) Differs(other signac.Schema) bool {
	o, ok := other.(Schema)
	if !ok {
		return s.String() != other.String()
	}
	return len(Difference(s, o)) > 0 || len(Difference(o, s)) > 0
}

const maxValues = 5

// String renders one line per key-path, e.g.
//
//	a: int([1, 2, 3])
//	b.c: str(["x"]), null([null])
func (s Schema) String() string {
	var lines []string
	for _, key := range s.Keys() {
		types := s[key]
		typeNames := make([]string, 0, len(types))
		for typ := range types {
			typeNames = append(typeNames, typ)
		}
		sort.Strings(typeNames)

		var parts []string
		for _, typ := range typeNames {
			vals := make([]string, 0, len(types[typ]))
			for v := range types[typ] {
				vals = append(vals, v)
			}
			sort.Strings(vals)
			if len(vals) > maxValues {
				vals = append(vals[:maxValues], fmt.Sprintf("... (%d total)", len(types[typ])))
			}
			parts = append(parts, fmt.Sprintf("%s([%s])", typ, strings.Join(vals, ", ")))
		}
		lines = append(lines, fmt.Sprintf("%s: %s", key, strings.Join(parts, ", ")))
	}
	return strings.Join(lines, "\n")
}
