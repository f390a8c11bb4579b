package signac

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"
)

// StatePoint is the immutable parameter mapping that determines a job's identity.
type StatePoint = map[string]interface{}

// IDLength is the length of a job ID in hex digits.
const IDLength = 2 * md5.Size

var idRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// CalcID computes the job ID of a state point:
// the hex-encoded md5 hash of its canonical JSON encoding.
// Map keys are encoded in sorted order at every level of nesting,
// so the result does not depend on construction order.
func CalcID(sp StatePoint) (string, error) {
	b, err := Canonical(sp)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical produces the canonical JSON encoding of v.
func Canonical(v interface{}) ([]byte, error) {
	// encoding/json sorts map keys, which is all the canonicalization we need.
	b, err := json.Marshal(v)
	return b, errors.Wrap(err, "encoding state point")
}

// IsID tells whether s is well-formed as a job ID.
func IsID(s string) bool {
	return idRegex.MatchString(s)
}

// Normalize converts v to the shapes produced by decoding JSON:
// float64 for numbers, []interface{} for lists, map[string]interface{} for mappings.
// Values built in Go (ints, typed slices, nested maps) compare equal
// to their on-disk counterparts only after normalization.
func Normalize(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding value")
	}
	var out interface{}
	err = json.Unmarshal(b, &out)
	return out, errors.Wrap(err, "decoding value")
}
