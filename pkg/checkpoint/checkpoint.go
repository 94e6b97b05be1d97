// Package checkpoint writes sealed batches as self-describing column frames
// and reads them back into pooled batches.
//
// A frame is
//
//	magic   [4]byte "TRLB"
//	version uint8
//	algo    uint8   compression.Algorithm.ID
//	flags   uint8   deflated, payload, sealed
//	count   uint32
//	columns ...     (used uint32, size uint32, block [size]byte)
//
// with columns in the order vsync, vother, key, payload, hash, bitvector.
// Key and hash are absent from deflated frames and payload is absent when
// the batch had no payload column. Integers are little-endian.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"

	"github.com/microsoft/Trill-sub013/pkg/compression"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Version is the frame format version.
const Version = 1

var magic = [4]byte{'T', 'R', 'L', 'B'}

const headerSize = 4 + 1 + 1 + 1 + 4

const (
	flagDeflated = 1 << iota
	flagPayload
	flagSealed
)

type header struct {
	algo  compression.Algorithm
	flags byte
	count int
}

func (h header) has(flag byte) bool { return h.flags&flag != 0 }

func (h header) appendTo(dst []byte) []byte {
	dst = append(dst, magic[:]...)
	dst = append(dst, Version, h.algo.ID(), h.flags)
	return binary.LittleEndian.AppendUint32(dst, uint32(h.count))
}

func readHeader(r io.Reader) (header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return header{}, io.EOF
		}
		return header{}, trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "read frame header")
	}
	if [4]byte(buf[:4]) != magic {
		return header{}, trillerrors.Newf(trillerrors.ErrorTypeCodec, "bad frame magic %q", buf[:4])
	}
	if buf[4] != Version {
		return header{}, trillerrors.Newf(trillerrors.ErrorTypeCodec, "unsupported frame version %d", buf[4])
	}
	algo, err := compression.AlgorithmByID(buf[5])
	if err != nil {
		return header{}, err
	}
	return header{
		algo:  algo,
		flags: buf[6],
		count: int(binary.LittleEndian.Uint32(buf[7:])),
	}, nil
}

// block is one encoded column before or after compression.
type block struct {
	used int
	data []byte
}

func writeBlocks(w io.Writer, hdr header, blocks []block) (int, error) {
	out := hdr.appendTo(nil)
	for _, b := range blocks {
		out = binary.LittleEndian.AppendUint32(out, uint32(b.used))
		out = binary.LittleEndian.AppendUint32(out, uint32(len(b.data)))
		out = append(out, b.data...)
	}
	n, err := w.Write(out)
	if err != nil {
		return n, trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "write frame")
	}
	return n, nil
}

// readBlock reads one column block of at most limit bytes. The buffer grows
// with the bytes actually read, so a frame that claims more than it holds
// fails without allocating the claimed size.
func readBlock(r io.Reader, name string, limit int) (block, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return block{}, trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "read column header").
			WithDetail("column", name)
	}
	used := int(binary.LittleEndian.Uint32(buf[:4]))
	size := int64(binary.LittleEndian.Uint32(buf[4:]))
	if size > int64(limit) {
		return block{}, trillerrors.Newf(trillerrors.ErrorTypeCodec,
			"%s column block is %d bytes, at most %d allowed", name, size, limit).
			WithDetail("column", name)
	}

	var data bytes.Buffer
	if _, err := io.CopyN(&data, r, size); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return block{}, trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "read column block").
			WithDetail("column", name)
	}
	return block{used: used, data: data.Bytes()}, nil
}

// compressedBound is the largest block any supported algorithm produces for
// raw input bytes.
func compressedBound(raw int) int {
	return raw + raw/4 + 256
}

func columnCount(hdr header) int {
	n := 3 // vsync, vother, bitvector
	if !hdr.has(flagDeflated) {
		n += 2
	}
	if hdr.has(flagPayload) {
		n++
	}
	return n
}

func compressAll(ctx context.Context, cp *compression.CompressorPool, blocks []block) error {
	raw := make([][]byte, len(blocks))
	for i := range blocks {
		raw[i] = blocks[i].data
	}
	out, err := cp.CompressBlocks(ctx, raw)
	if err != nil {
		return err
	}
	for i := range blocks {
		blocks[i].data = out[i]
	}
	return nil
}

func decompressAll(ctx context.Context, cp *compression.CompressorPool, blocks []block) error {
	raw := make([][]byte, len(blocks))
	for i := range blocks {
		raw[i] = blocks[i].data
	}
	out, err := cp.DecompressBlocks(ctx, raw)
	if err != nil {
		return err
	}
	for i := range blocks {
		blocks[i].data = out[i]
	}
	return nil
}

func decodeInto[T any](codec Codec[T], b block, data []T, name string) error {
	if b.used > len(data) {
		return trillerrors.Newf(trillerrors.ErrorTypeCodec, "%s column holds %d rows, pool capacity is %d", name, b.used, len(data)).
			WithDetail("column", name)
	}
	if err := codec.Decode(b.data, data[:b.used]); err != nil {
		return trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "decode "+name+" column")
	}
	return nil
}
