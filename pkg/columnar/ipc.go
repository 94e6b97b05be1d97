package columnar

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/microsoft/Trill-sub013/pkg/compression"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// ipcCompression maps a block algorithm onto the codecs the Arrow IPC
// format defines. Only none, lz4 and zstd exist there.
func ipcCompression(algo compression.Algorithm) ([]ipc.Option, error) {
	switch algo {
	case compression.None, "":
		return nil, nil
	case compression.LZ4:
		return []ipc.Option{ipc.WithLZ4()}, nil
	case compression.Zstd:
		return []ipc.Option{ipc.WithZstd()}, nil
	}
	return nil, trillerrors.Newf(trillerrors.ErrorTypeConfig, "arrow ipc does not support %s compression", algo)
}

// WriteIPC writes recs as one Arrow IPC stream. Every record must share the
// first record's schema.
func WriteIPC(w io.Writer, algo compression.Algorithm, recs ...arrow.Record) error {
	if len(recs) == 0 {
		return trillerrors.New(trillerrors.ErrorTypeValidation, "no records to write")
	}
	opts, err := ipcCompression(algo)
	if err != nil {
		return err
	}
	schema := recs[0].Schema()
	opts = append(opts, ipc.WithSchema(schema))

	wr := ipc.NewWriter(w, opts...)
	for i, rec := range recs {
		if !rec.Schema().Equal(schema) {
			_ = wr.Close()
			return trillerrors.Newf(trillerrors.ErrorTypeValidation, "record %d schema differs from record 0", i)
		}
		if err := wr.Write(rec); err != nil {
			_ = wr.Close()
			return trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "write arrow record")
		}
	}
	if err := wr.Close(); err != nil {
		return trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "close arrow stream")
	}
	return nil
}

// ReadIPC reads every record of an Arrow IPC stream. The caller releases
// the records.
func ReadIPC(r io.Reader, alloc memory.Allocator) ([]arrow.Record, error) {
	if alloc == nil {
		alloc = memory.NewGoAllocator()
	}
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(alloc))
	if err != nil {
		return nil, trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "open arrow stream")
	}
	defer rdr.Release()

	var recs []arrow.Record
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		for _, rec := range recs {
			rec.Release()
		}
		return nil, trillerrors.Wrap(err, trillerrors.ErrorTypeCodec, "read arrow stream")
	}
	return recs, nil
}
