package mapping

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/leapstack-labs/leaporm/pkg/core"
)

// Type is the semantic type of a mapped column.
type Type = core.Type

// Semantic column types.
const (
	String  = core.TypeString
	Int     = core.TypeInt
	Float   = core.TypeFloat
	Bool    = core.TypeBool
	Time    = core.TypeTime
	Bytes   = core.TypeBytes
	UUID    = core.TypeUUID
	Decimal = core.TypeDecimal
)

// Scalar lists the Go types a field may have.
type Scalar interface {
	string |
		int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		bool |
		time.Time |
		[]byte |
		uuid.UUID |
		decimal.Decimal
}

var errNull = errors.New("null value for non-nullable column")

// semanticType returns the column type of V.
func semanticType[V Scalar]() Type {
	var zero V
	switch any(zero).(type) {
	case string:
		return String
	case float32, float64:
		return Float
	case bool:
		return Bool
	case time.Time:
		return Time
	case []byte:
		return Bytes
	case uuid.UUID:
		return UUID
	case decimal.Decimal:
		return Decimal
	default:
		return Int
	}
}

// canonical converts a field value into the value bound as a statement argument.
func canonical[V Scalar](v V) (any, error) {
	switch x := any(v).(type) {
	case string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("value %d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case bool:
		return x, nil
	case time.Time:
		return x, nil
	case []byte:
		return x, nil
	case uuid.UUID:
		return x.String(), nil
	case decimal.Decimal:
		return x.String(), nil
	default:
		return nil, fmt.Errorf("unsupported field type %T", v)
	}
}

// isZero reports whether v is the zero value of its type.
func isZero[V Scalar](v V) bool {
	switch x := any(v).(type) {
	case string:
		return x == ""
	case []byte:
		return len(x) == 0
	case time.Time:
		return x.IsZero()
	case uuid.UUID:
		return x == uuid.Nil
	case decimal.Decimal:
		return x.IsZero()
	case bool:
		return !x
	default:
		n, err := cast.ToFloat64E(x)
		return err == nil && n == 0
	}
}

// valueLength returns the length checked against Length(n), or -1 when the
// type has none.
func valueLength(v any) int {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x)
	case []byte:
		return len(x)
	default:
		return -1
	}
}

// assign coerces a driver value into dst. raw must not be nil.
func assign[V Scalar](dst *V, raw any) error {
	if b, ok := raw.([]byte); ok {
		if _, wantBytes := any(dst).(*[]byte); !wantBytes {
			raw = string(b)
		}
	}

	var err error
	switch p := any(dst).(type) {
	case *string:
		*p, err = cast.ToStringE(raw)
	case *int:
		*p, err = toSigned[int](raw, strconv.IntSize)
	case *int8:
		*p, err = toSigned[int8](raw, 8)
	case *int16:
		*p, err = toSigned[int16](raw, 16)
	case *int32:
		*p, err = toSigned[int32](raw, 32)
	case *int64:
		*p, err = toSigned[int64](raw, 64)
	case *uint:
		*p, err = toUnsigned[uint](raw, strconv.IntSize)
	case *uint8:
		*p, err = toUnsigned[uint8](raw, 8)
	case *uint16:
		*p, err = toUnsigned[uint16](raw, 16)
	case *uint32:
		*p, err = toUnsigned[uint32](raw, 32)
	case *uint64:
		*p, err = toUnsigned[uint64](raw, 64)
	case *float32:
		var f float64
		f, err = toFloat(raw)
		if err == nil && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			err = fmt.Errorf("value %v overflows float32", f)
		}
		*p = float32(f)
	case *float64:
		*p, err = toFloat(raw)
	case *bool:
		*p, err = cast.ToBoolE(raw)
	case *time.Time:
		*p, err = cast.ToTimeE(raw)
	case *[]byte:
		*p, err = toBytes(raw)
	case *uuid.UUID:
		*p, err = toUUID(raw)
	case *decimal.Decimal:
		*p, err = toDecimal(raw)
	default:
		err = fmt.Errorf("unsupported field type %T", dst)
	}
	return err
}

// toInt64 converts raw to an int64 without losing information. Floats must
// be integral and strings are read as base-10.
func toInt64(raw any) (int64, error) {
	switch x := raw.(type) {
	case uint:
		return uintToInt64(uint64(x))
	case uint64:
		return uintToInt64(x)
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unable to cast %q to integer: %w", x, err)
		}
		return n, nil
	default:
		return cast.ToInt64E(raw)
	}
}

func uintToInt64(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", n)
	}
	return int64(n), nil
}

// twoTo63 bounds the int64 range as an exact float64.
const twoTo63 = float64(1 << 63)

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	if f < -twoTo63 || f >= twoTo63 {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}

func toSigned[I int | int8 | int16 | int32 | int64](raw any, bits int) (I, error) {
	n, err := toInt64(raw)
	if err != nil {
		return 0, err
	}
	if bits < 64 {
		lo := int64(-1) << (bits - 1)
		if n < lo || n > -lo-1 {
			return 0, fmt.Errorf("value %d overflows int%d", n, bits)
		}
	}
	return I(n), nil
}

// toUint64 is toInt64 for unsigned targets; negative values are rejected.
func toUint64(raw any) (uint64, error) {
	switch x := raw.(type) {
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	case float32, float64:
		f := floatOf(x)
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, fmt.Errorf("value %v is not an integer", f)
		}
		if f < 0 || f >= 2*twoTo63 {
			return 0, fmt.Errorf("value %v overflows uint64", f)
		}
		return uint64(f), nil
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unable to cast %q to unsigned integer: %w", x, err)
		}
		return n, nil
	default:
		n, err := toInt64(raw)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("value %d is negative", n)
		}
		return uint64(n), nil
	}
}

func floatOf(v any) float64 {
	if f, ok := v.(float32); ok {
		return float64(f)
	}
	return v.(float64)
}

func toUnsigned[U uint | uint8 | uint16 | uint32 | uint64](raw any, bits int) (U, error) {
	n, err := toUint64(raw)
	if err != nil {
		return 0, err
	}
	if bits < 64 && n > uint64(1)<<bits-1 {
		return 0, fmt.Errorf("value %d overflows uint%d", n, bits)
	}
	return U(n), nil
}

// toFloat converts raw to a float64. Integers beyond 2^53 that would lose
// precision are rejected.
func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case int, int64:
		n := cast.ToInt64(x)
		if f := float64(n); f >= twoTo63 || int64(f) != n {
			return 0, fmt.Errorf("value %d is not exactly representable as float64", n)
		}
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("unable to cast %q to float: %w", x, err)
		}
		return f, nil
	default:
		return cast.ToFloat64E(raw)
	}
}

func toBytes(raw any) ([]byte, error) {
	switch x := raw.(type) {
	case []byte:
		return append([]byte(nil), x...), nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("unable to cast %#v of type %T to []byte", raw, raw)
	}
}

func toUUID(raw any) (uuid.UUID, error) {
	switch x := raw.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case string:
		return uuid.Parse(x)
	default:
		return uuid.Nil, fmt.Errorf("unable to cast %#v of type %T to uuid", raw, raw)
	}
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch x := raw.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		return decimal.NewFromString(x)
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	default:
		n, err := toInt64(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unable to cast %#v of type %T to decimal: %w", raw, raw, err)
		}
		return decimal.NewFromInt(n), nil
	}
}
