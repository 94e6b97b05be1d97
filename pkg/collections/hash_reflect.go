package collections

import (
	"encoding/binary"
	"math"
	"reflect"
)

// HasherKind is the strategy DefaultHasher picks for a key type.
type HasherKind int

const (
	// HasherScalar hashes integer and string keys by value.
	HasherScalar HasherKind = iota
	// HasherFlat hashes the key's memory. The type holds only integers and
	// bools and has no padding.
	HasherFlat
	// HasherFields walks the key with reflection.
	HasherFields
	// HasherFormatted hashes the %#v rendering of the key.
	HasherFormatted
)

func (k HasherKind) String() string {
	switch k {
	case HasherScalar:
		return "scalar"
	case HasherFlat:
		return "flat"
	case HasherFields:
		return "fields"
	case HasherFormatted:
		return "formatted"
	default:
		return "unknown"
	}
}

// DefaultHasherKind reports how DefaultHasher hashes K.
func DefaultHasherKind[K comparable]() HasherKind {
	var zero K
	switch any(zero).(type) {
	case int64, int, int32, uint64, uint32, string:
		return HasherScalar
	}
	return classify(reflect.TypeFor[K]())
}

func classify(t reflect.Type) HasherKind {
	if flatSize(t) == int(t.Size()) {
		return HasherFlat
	}
	if holdsInterface(t) {
		return HasherFormatted
	}
	return HasherFields
}

// flatSize sums the sizes of t's leaves when every leaf is an integer or a
// bool, and returns -1 otherwise. A result below t.Size() means padding.
func flatSize(t reflect.Type) int {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int(t.Size())
	case reflect.Array:
		n := flatSize(t.Elem())
		if n < 0 {
			return -1
		}
		return n * t.Len()
	case reflect.Struct:
		sum := 0
		for i := 0; i < t.NumField(); i++ {
			n := flatSize(t.Field(i).Type)
			if n < 0 {
				return -1
			}
			sum += n
		}
		return sum
	default:
		return -1
	}
}

func holdsInterface(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Array:
		return holdsInterface(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsInterface(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// appendValue encodes v so that equal values encode identically. Strings are
// length-prefixed and pointers encode their address.
func appendValue(dst []byte, v reflect.Value) []byte {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return append(dst, 1)
		}
		return append(dst, 0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.LittleEndian.AppendUint64(dst, uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return binary.LittleEndian.AppendUint64(dst, v.Uint())
	case reflect.Float32, reflect.Float64:
		return appendFloat(dst, v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		return appendFloat(appendFloat(dst, real(c)), imag(c))
	case reflect.String:
		s := v.String()
		dst = binary.LittleEndian.AppendUint64(dst, uint64(len(s)))
		return append(dst, s...)
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return binary.LittleEndian.AppendUint64(dst, uint64(v.Pointer()))
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			dst = appendValue(dst, v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			dst = appendValue(dst, v.Field(i))
		}
	}
	return dst
}

// appendFloat folds -0 into 0, which compares equal.
func appendFloat(dst []byte, f float64) []byte {
	if f == 0 {
		f = 0
	}
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
}
