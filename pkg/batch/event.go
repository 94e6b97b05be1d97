package batch

import (
	"math"
)

// Sentinel time values.
const (
	// InfinitySyncTime is the largest representable time. Rows whose other
	// time is InfinitySyncTime never end.
	InfinitySyncTime int64 = math.MaxInt64
	// PunctuationOtherTime marks a punctuation row.
	PunctuationOtherTime int64 = math.MinInt64
	// LowWatermarkOtherTime marks a low-watermark row.
	LowWatermarkOtherTime int64 = math.MinInt64 + 1
)

// Empty is the key type of unpartitioned streams. Batches keyed by Empty
// carry no key information and can be deflated.
type Empty struct{}

// IsSentinel reports whether other is one of the control-row markers.
func IsSentinel(other int64) bool {
	return other == PunctuationOtherTime || other == LowWatermarkOtherTime
}

// Event is one ingress item.
type Event[K comparable, P any] struct {
	SyncTime  int64
	OtherTime int64
	Key       K
	Payload   P
}

// DataEvent returns a data event.
func DataEvent[K comparable, P any](sync, other int64, key K, payload P) Event[K, P] {
	return Event[K, P]{SyncTime: sync, OtherTime: other, Key: key, Payload: payload}
}

// PunctuationEvent returns a punctuation at sync for key.
func PunctuationEvent[K comparable, P any](sync int64, key K) Event[K, P] {
	return Event[K, P]{SyncTime: sync, OtherTime: PunctuationOtherTime, Key: key}
}

// LowWatermarkEvent returns a low watermark at sync.
func LowWatermarkEvent[K comparable, P any](sync int64) Event[K, P] {
	return Event[K, P]{SyncTime: sync, OtherTime: LowWatermarkOtherTime}
}

// IsData reports whether e carries data.
func (e Event[K, P]) IsData() bool { return !IsSentinel(e.OtherTime) }

// IsPunctuation reports whether e is a punctuation.
func (e Event[K, P]) IsPunctuation() bool { return e.OtherTime == PunctuationOtherTime }

// IsLowWatermark reports whether e is a low watermark.
func (e Event[K, P]) IsLowWatermark() bool { return e.OtherTime == LowWatermarkOtherTime }
