// Package sound provides the identity and source description of a queued sound.
package sound

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ID identifies a sound within a queue.
// Numeric and string identifiers are distinct: IntID(1) != StringID("1").
type ID struct {
	str   string
	num   int64
	isNum bool
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{str: s}
}

// IntID returns a numeric identifier.
func IntID(n int64) ID {
	return ID{num: n, isNum: true}
}

// NewID returns a generated identifier.
func NewID() ID {
	return StringID(uuid.NewString())
}

// ParseID converts a loosely typed value (YAML, JSON, structpb) into an ID.
// Integral floats are treated as numeric ids since JSON numbers decode as float64.
func ParseID(v any) (ID, error) {
	switch x := v.(type) {
	case nil:
		return ID{}, nil
	case ID:
		return x, nil
	case string:
		return StringID(x), nil
	case int:
		return IntID(int64(x)), nil
	case int32:
		return IntID(int64(x)), nil
	case int64:
		return IntID(x), nil
	case uint:
		return IntID(int64(x)), nil
	case uint32:
		return IntID(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return ID{}, errors.Newf("sound id %d overflows int64", x)
		}
		return IntID(int64(x)), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return ID{}, errors.Newf("sound id %v is not an integer", x)
		}
		return IntID(int64(x)), nil
	default:
		return ID{}, errors.Newf("unsupported sound id type %T", v)
	}
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool {
	return id == ID{}
}

// IsNumeric reports whether the id was created from an integer.
func (id ID) IsNumeric() bool {
	return id.isNum
}

// String returns the textual form of the id.
func (id ID) String() string {
	if id.isNum {
		return strconv.FormatInt(id.num, 10)
	}
	return id.str
}

// Value returns the id as int64 or string, for serialization.
func (id ID) Value() any {
	if id.isNum {
		return id.num
	}
	return id.str
}
