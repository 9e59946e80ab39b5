package attr

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// dateLayouts are the string forms accepted for Date fields.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Validate checks a runtime value against a declared type tag and returns a
// diagnostic error on mismatch. No coercion is performed: a Number field
// given the string "42" fails, which keeps validation predictable for
// clients. Values are expected in their JSON-decoded forms (string, float64,
// bool, []interface{}, map[string]interface{}, nil).
func Validate(value interface{}, tag TypeTag) error {
	switch tag {
	case TypeMixed:
		return nil

	case TypeString:
		if _, ok := value.(string); !ok {
			return mismatch(tag, value, "expected a string")
		}
		return nil

	case TypeNumber:
		switch v := value.(type) {
		case float64:
			if math.IsNaN(v) {
				return mismatch(tag, value, "NaN is not a valid number")
			}
			return nil
		case float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return nil
		}
		return mismatch(tag, value, "expected a number")

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return mismatch(tag, value, "expected true or false")
		}
		return nil

	case TypeDate:
		switch v := value.(type) {
		case string:
			for _, layout := range dateLayouts {
				if _, err := time.Parse(layout, v); err == nil {
					return nil
				}
			}
			return mismatch(tag, value, "not a parseable date")
		case float64:
			// Epoch milliseconds. NaN and infinities never name a point in time.
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return mismatch(tag, value, "not a finite timestamp")
			}
			return nil
		case time.Time:
			return nil
		}
		return mismatch(tag, value, "expected a date string or epoch milliseconds")

	case TypeObjectID:
		s, ok := value.(string)
		if !ok {
			return mismatch(tag, value, "expected an id string")
		}
		if _, err := uuid.Parse(s); err != nil {
			return mismatch(tag, value, "not a valid id")
		}
		return nil

	case TypeArray:
		if value == nil {
			return mismatch(tag, value, "expected an array")
		}
		k := reflect.TypeOf(value).Kind()
		if k != reflect.Slice && k != reflect.Array {
			return mismatch(tag, value, "expected an array")
		}
		// Element-level typing is not enforced; arrays are flat, single level.
		return nil
	}

	return fmt.Errorf("unknown type tag %q", tag)
}

// TypeError reports a value that does not satisfy its declared type tag.
type TypeError struct {
	Tag    TypeTag
	Value  interface{}
	Reason string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("value %v does not satisfy type %s: %s", e.Value, e.Tag, e.Reason)
}

func mismatch(tag TypeTag, value interface{}, reason string) error {
	return &TypeError{Tag: tag, Value: value, Reason: reason}
}
