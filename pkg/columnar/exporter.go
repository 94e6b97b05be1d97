package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/microsoft/Trill-sub013/pkg/batch"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// Column names of the two time columns.
const (
	SyncTimeField  = "sync_time"
	OtherTimeField = "other_time"
)

// PayloadField describes one exported column of type T: its Arrow field and
// how to append a value to the matching builder. Keys use it too.
type PayloadField[T any] struct {
	Field  arrow.Field
	Append func(b array.Builder, v T)
}

// Int64Payload exports int64 values.
func Int64Payload(name string) PayloadField[int64] {
	return PayloadField[int64]{
		Field:  arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64},
		Append: func(b array.Builder, v int64) { b.(*array.Int64Builder).Append(v) },
	}
}

// Float64Payload exports float64 values.
func Float64Payload(name string) PayloadField[float64] {
	return PayloadField[float64]{
		Field:  arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64},
		Append: func(b array.Builder, v float64) { b.(*array.Float64Builder).Append(v) },
	}
}

// StringPayload exports string values.
func StringPayload(name string) PayloadField[string] {
	return PayloadField[string]{
		Field:  arrow.Field{Name: name, Type: arrow.BinaryTypes.String},
		Append: func(b array.Builder, v string) { b.(*array.StringBuilder).Append(v) },
	}
}

// Option configures an Exporter.
type Option[K comparable] func(*exporterOptions[K])

type exporterOptions[K comparable] struct {
	alloc memory.Allocator
	key   *PayloadField[K]
}

// WithAllocator sets the Arrow allocator. Defaults to a Go allocator.
func WithAllocator[K comparable](alloc memory.Allocator) Option[K] {
	return func(o *exporterOptions[K]) { o.alloc = alloc }
}

// WithKey exports the key column with field f. Without it keys are dropped.
func WithKey[K comparable](f PayloadField[K]) Option[K] {
	return func(o *exporterOptions[K]) { o.key = &f }
}

// Exporter converts batches of one key and payload type into Arrow records.
// It is safe for concurrent use; each Export builds its own record.
type Exporter[K comparable, P any] struct {
	alloc   memory.Allocator
	schema  *arrow.Schema
	key     *PayloadField[K]
	payload PayloadField[P]
}

// NewExporter creates an exporter for payload.
func NewExporter[K comparable, P any](payload PayloadField[P], opts ...Option[K]) *Exporter[K, P] {
	o := exporterOptions[K]{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.alloc == nil {
		o.alloc = memory.NewGoAllocator()
	}

	fields := []arrow.Field{
		{Name: SyncTimeField, Type: arrow.PrimitiveTypes.Int64},
		{Name: OtherTimeField, Type: arrow.PrimitiveTypes.Int64},
	}
	if o.key != nil {
		fields = append(fields, o.key.Field)
	}
	fields = append(fields, payload.Field)

	return &Exporter[K, P]{
		alloc:   o.alloc,
		schema:  arrow.NewSchema(fields, nil),
		key:     o.key,
		payload: payload,
	}
}

// Schema returns the record schema.
func (e *Exporter[K, P]) Schema() *arrow.Schema { return e.schema }

// Export builds a record from the live rows of b. The caller releases the
// record. Batches without a payload column cannot be exported, and a key
// field needs the key column, so deflated batches export without keys only.
func (e *Exporter[K, P]) Export(b *batch.Batch[K, P]) (arrow.Record, error) {
	if b.VSync == nil {
		return nil, trillerrors.New(trillerrors.ErrorTypeValidation, "export of an unallocated batch")
	}
	if b.Payload == nil {
		return nil, trillerrors.New(trillerrors.ErrorTypeValidation, "export of a batch without a payload column")
	}
	if e.key != nil && b.Key == nil {
		return nil, trillerrors.New(trillerrors.ErrorTypeValidation, "export of keys from a deflated batch")
	}

	rb := array.NewRecordBuilder(e.alloc, e.schema)
	defer rb.Release()
	rb.Reserve(b.ComputeCount())

	syncB := rb.Field(0).(*array.Int64Builder)
	otherB := rb.Field(1).(*array.Int64Builder)
	next := 2
	var keyB array.Builder
	if e.key != nil {
		keyB = rb.Field(next)
		next++
	}
	payloadB := rb.Field(next)

	for i := 0; i < b.Count; i++ {
		if b.IsFiltered(i) {
			continue
		}
		syncB.Append(b.VSync.Data[i])
		otherB.Append(b.VOther.Data[i])
		if keyB != nil {
			e.key.Append(keyB, b.Key.Data[i])
		}
		e.payload.Append(payloadB, b.Payload.Data[i])
	}
	return rb.NewRecord(), nil
}
