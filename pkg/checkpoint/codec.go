package checkpoint

import (
	"encoding/binary"
	"math"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Codec encodes the used prefix of one column. Decode fills exactly
// len(dst) elements and fails on short or trailing input.
type Codec[T any] interface {
	Encode(dst []byte, src []T) []byte
	Decode(src []byte, dst []T) error
}

// FixedWidth is implemented by codecs whose elements always encode to the
// same number of bytes. Readers use it to bound block sizes.
type FixedWidth interface {
	ElementSize() int
}

func lengthError(kind string, got, want int) error {
	return trillerrors.Newf(trillerrors.ErrorTypeCodec, "%s block is %d bytes, want %d", kind, got, want).
		WithDetail("kind", kind)
}

// Int64Codec stores int64 values as 8 little-endian bytes.
type Int64Codec struct{}

func (Int64Codec) Encode(dst []byte, src []int64) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint64(dst, uint64(v))
	}
	return dst
}

func (Int64Codec) ElementSize() int { return 8 }

func (Int64Codec) Decode(src []byte, dst []int64) error {
	if len(src) != 8*len(dst) {
		return lengthError("int64", len(src), 8*len(dst))
	}
	for i := range dst {
		dst[i] = int64(binary.LittleEndian.Uint64(src[8*i:]))
	}
	return nil
}

// Uint64Codec stores uint64 values as 8 little-endian bytes.
type Uint64Codec struct{}

func (Uint64Codec) Encode(dst []byte, src []uint64) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint64(dst, v)
	}
	return dst
}

func (Uint64Codec) ElementSize() int { return 8 }

func (Uint64Codec) Decode(src []byte, dst []uint64) error {
	if len(src) != 8*len(dst) {
		return lengthError("uint64", len(src), 8*len(dst))
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(src[8*i:])
	}
	return nil
}

// Uint32Codec stores uint32 values as 4 little-endian bytes.
type Uint32Codec struct{}

func (Uint32Codec) Encode(dst []byte, src []uint32) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint32(dst, v)
	}
	return dst
}

func (Uint32Codec) ElementSize() int { return 4 }

func (Uint32Codec) Decode(src []byte, dst []uint32) error {
	if len(src) != 4*len(dst) {
		return lengthError("uint32", len(src), 4*len(dst))
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(src[4*i:])
	}
	return nil
}

// Float64Codec stores IEEE-754 bits, so NaN payloads survive unchanged.
type Float64Codec struct{}

func (Float64Codec) Encode(dst []byte, src []float64) []byte {
	for _, v := range src {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	}
	return dst
}

func (Float64Codec) ElementSize() int { return 8 }

func (Float64Codec) Decode(src []byte, dst []float64) error {
	if len(src) != 8*len(dst) {
		return lengthError("float64", len(src), 8*len(dst))
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[8*i:]))
	}
	return nil
}

// StringCodec stores each string as a uvarint length followed by its bytes.
type StringCodec struct{}

func (StringCodec) Encode(dst []byte, src []string) []byte {
	for _, s := range src {
		dst = binary.AppendUvarint(dst, uint64(len(s)))
		dst = append(dst, s...)
	}
	return dst
}

func (StringCodec) Decode(src []byte, dst []string) error {
	for i := range dst {
		n, k := binary.Uvarint(src)
		if k <= 0 || uint64(len(src)-k) < n {
			return trillerrors.Newf(trillerrors.ErrorTypeCodec, "string %d of %d is truncated", i, len(dst)).
				WithDetail("kind", "string")
		}
		src = src[k:]
		dst[i] = string(src[:n])
		src = src[n:]
	}
	if len(src) != 0 {
		return trillerrors.Newf(trillerrors.ErrorTypeCodec, "%d trailing bytes after %d strings", len(src), len(dst)).
			WithDetail("kind", "string")
	}
	return nil
}

// EmptyCodec stores nothing, for the trivial key type.
type EmptyCodec struct{}

func (EmptyCodec) Encode(dst []byte, _ []batch.Empty) []byte { return dst }

func (EmptyCodec) ElementSize() int { return 0 }

func (EmptyCodec) Decode(src []byte, dst []batch.Empty) error {
	if len(src) != 0 {
		return lengthError("empty", len(src), 0)
	}
	clear(dst)
	return nil
}

var (
	_ Codec[int64]       = Int64Codec{}
	_ Codec[uint64]      = Uint64Codec{}
	_ Codec[uint32]      = Uint32Codec{}
	_ Codec[float64]     = Float64Codec{}
	_ Codec[string]      = StringCodec{}
	_ Codec[batch.Empty] = EmptyCodec{}

	_ FixedWidth = Int64Codec{}
	_ FixedWidth = EmptyCodec{}
)
