// Package common holds helpers shared by the schema model, the runtime
// compiled codecs and the source generator.
package common

import (
	"math"
	"reflect"
)

// FixedSize returns the byte width of a fixed-size primitive kind, or -1
// for any other kind.
func FixedSize(k reflect.Kind) int {
	switch k {
	case reflect.Bool, reflect.Int8, reflect.Uint8:
		return 1
	case reflect.Int16, reflect.Uint16:
		return 2
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return 4
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		return 8
	default:
		return -1
	}
}

// IsIntegerKind reports whether k is a signed or unsigned integer kind of
// fixed width.
func IsIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// IntRange returns the inclusive bounds of an integer kind. The upper bound
// of Uint64 is clamped to math.MaxInt64.
func IntRange(k reflect.Kind) (lo, hi int64) {
	switch k {
	case reflect.Int8:
		return math.MinInt8, math.MaxInt8
	case reflect.Int16:
		return math.MinInt16, math.MaxInt16
	case reflect.Int32:
		return math.MinInt32, math.MaxInt32
	case reflect.Int64:
		return math.MinInt64, math.MaxInt64
	case reflect.Uint8:
		return 0, math.MaxUint8
	case reflect.Uint16:
		return 0, math.MaxUint16
	case reflect.Uint32:
		return 0, math.MaxUint32
	case reflect.Uint64:
		return 0, math.MaxInt64
	}
	return 0, 0
}

// FromBits rebuilds a value of kind k from the low FixedSize(k) bytes of
// its wire bits. Floats are taken as IEEE-754 bit patterns.
func FromBits(bits uint64, k reflect.Kind) any {
	switch k {
	case reflect.Bool:
		return bits&0xff != 0
	case reflect.Int8:
		return int8(bits)
	case reflect.Uint8:
		return uint8(bits)
	case reflect.Int16:
		return int16(bits)
	case reflect.Uint16:
		return uint16(bits)
	case reflect.Int32:
		return int32(bits)
	case reflect.Uint32:
		return uint32(bits)
	case reflect.Int64:
		return int64(bits)
	case reflect.Uint64:
		return bits
	case reflect.Float32:
		return math.Float32frombits(uint32(bits))
	case reflect.Float64:
		return math.Float64frombits(bits)
	}
	return nil
}
