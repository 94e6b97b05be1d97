package collections

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/zeebo/xxh3"
)

// HashUint64 hashes v with xxh3 and folds the result to 32 bits.
func HashUint64(v uint64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return fold(xxh3.Hash(buf[:]))
}

// HashInt64 hashes v.
func HashInt64(v int64) uint32 { return HashUint64(uint64(v)) }

// HashInt hashes v.
func HashInt(v int) uint32 { return HashUint64(uint64(v)) }

// HashUint32 hashes v.
func HashUint32(v uint32) uint32 { return HashUint64(uint64(v)) }

// HashString hashes s.
func HashString(s string) uint32 { return fold(xxh3.HashString(s)) }

func fold(h uint64) uint32 { return uint32(h) ^ uint32(h>>32) }

// DefaultHasher returns a hash function for K. Integer kinds and strings
// hash their value directly. Other types hash as DefaultHasherKind reports:
// their memory when it holds only integers and bools, their fields walked by
// reflection otherwise, and the %#v rendering only when a key can hold an
// interface value. Hot paths with struct keys should supply their own hasher.
func DefaultHasher[K comparable]() func(K) uint32 {
	var zero K
	switch any(zero).(type) {
	case int64:
		return func(k K) uint32 { return HashInt64(any(k).(int64)) }
	case int:
		return func(k K) uint32 { return HashInt(any(k).(int)) }
	case int32:
		return func(k K) uint32 { return HashInt64(int64(any(k).(int32))) }
	case uint64:
		return func(k K) uint32 { return HashUint64(any(k).(uint64)) }
	case uint32:
		return func(k K) uint32 { return HashUint32(any(k).(uint32)) }
	case string:
		return func(k K) uint32 { return HashString(any(k).(string)) }
	}

	t := reflect.TypeFor[K]()
	switch classify(t) {
	case HasherFlat:
		size := t.Size()
		return func(k K) uint32 {
			return fold(xxh3.Hash(unsafe.Slice((*byte)(unsafe.Pointer(&k)), size)))
		}
	case HasherFields:
		return func(k K) uint32 {
			var buf [64]byte
			return fold(xxh3.Hash(appendValue(buf[:0], reflect.ValueOf(&k).Elem())))
		}
	default:
		return func(k K) uint32 { return HashString(fmt.Sprintf("%#v", k)) }
	}
}
