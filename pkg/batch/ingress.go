package batch

import (
	"fmt"
	"math"

	"github.com/microsoft/Trill-sub013/pkg/metrics"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// DisorderPolicy selects what bulk adds do with out-of-order events.
type DisorderPolicy int

const (
	// DisorderThrow rejects an event earlier than the last time seen for its
	// partition with an *OrderError.
	DisorderThrow DisorderPolicy = iota
	// DisorderNone performs no order checks.
	DisorderNone
)

// String returns the policy name.
func (p DisorderPolicy) String() string {
	switch p {
	case DisorderThrow:
		return "throw"
	case DisorderNone:
		return "none"
	}
	return fmt.Sprintf("DisorderPolicy(%d)", int(p))
}

// OrderError reports an ingress event that arrived earlier than its
// partition allows. It wraps a trillerrors error of type ingress_order.
type OrderError struct {
	Key      any
	SyncTime int64
	LastTime int64
	// Index is the position of the event in the source.
	Index int

	err *trillerrors.Error
}

func newOrderError(key any, sync, last int64, index int) *OrderError {
	metrics.IngressOrderFaults.Inc()
	return &OrderError{
		Key:      key,
		SyncTime: sync,
		LastTime: last,
		Index:    index,
		err: trillerrors.Newf(trillerrors.ErrorTypeIngressOrder,
			"event at %d precedes last seen time %d", sync, last).
			WithDetail("key", key).
			WithDetail("index", index),
	}
}

// Error implements error.
func (e *OrderError) Error() string { return e.err.Error() }

// Unwrap returns the underlying typed error.
func (e *OrderError) Unwrap() error { return e.err }

// OrderTracker remembers the last time seen globally or per partition key.
// It is single-writer, like the batch it feeds.
type OrderTracker[K comparable] struct {
	Policy DisorderPolicy

	partitioned  bool
	last         int64
	lastByKey    map[K]int64
	lowWatermark int64
}

// NewOrderTracker creates a tracker. Partitioned trackers check each key
// against its own history and against the latest low watermark.
func NewOrderTracker[K comparable](policy DisorderPolicy, partitioned bool) *OrderTracker[K] {
	t := &OrderTracker[K]{
		Policy:       policy,
		partitioned:  partitioned,
		last:         math.MinInt64,
		lowWatermark: math.MinInt64,
	}
	if partitioned {
		t.lastByKey = make(map[K]int64)
	}
	return t
}

// Last returns the last time observed for key.
func (t *OrderTracker[K]) Last(key K) int64 {
	if !t.partitioned {
		return t.last
	}
	last, ok := t.lastByKey[key]
	if !ok || last < t.lowWatermark {
		return t.lowWatermark
	}
	return last
}

// Check returns an *OrderError when an event for key at sync would violate
// the policy. It does not record the event.
func (t *OrderTracker[K]) Check(key K, sync int64, index int) error {
	if t == nil || t.Policy == DisorderNone {
		return nil
	}
	if last := t.Last(key); sync < last {
		return newOrderError(key, sync, last, index)
	}
	return nil
}

// Observe records an event for key at sync.
func (t *OrderTracker[K]) Observe(key K, sync int64) {
	if t == nil {
		return
	}
	if !t.partitioned {
		if sync > t.last {
			t.last = sync
		}
		return
	}
	if last, ok := t.lastByKey[key]; !ok || sync > last {
		t.lastByKey[key] = sync
	}
}

// ObserveLowWatermark records a low watermark, which applies to every
// partition.
func (t *OrderTracker[K]) ObserveLowWatermark(sync int64) {
	if t == nil {
		return
	}
	if sync > t.lowWatermark {
		t.lowWatermark = sync
	}
	if sync > t.last {
		t.last = sync
	}
}

func (t *OrderTracker[K]) observeEvent(key K, sync, other int64) {
	if other == LowWatermarkOtherTime {
		t.ObserveLowWatermark(sync)
		return
	}
	t.Observe(key, sync)
}

// AddEvents drains src into the batch. It stops when the batch is full,
// when an event fails the order check, or right after a punctuation or low
// watermark. Control events are consumed but not written; control reports
// that the last consumed item was one, so the caller can surface it before
// continuing with src[consumed:]. A rejected event is not consumed.
func (b *Batch[K, P]) AddEvents(src []Event[K, P], tracker *OrderTracker[K]) (consumed int, control bool, err error) {
	for i := range src {
		if b.IsFull() {
			return consumed, false, nil
		}
		e := &src[i]
		if err := tracker.Check(e.Key, e.SyncTime, i); err != nil {
			return consumed, false, err
		}
		tracker.observeEvent(e.Key, e.SyncTime, e.OtherTime)
		consumed++

		if !e.IsData() {
			return consumed, true, nil
		}
		if b.Add(e.SyncTime, e.OtherTime, e.Key, e.Payload) {
			return consumed, false, nil
		}
	}
	return consumed, false, nil
}

// AddRange drains rows [start, end) of src into the batch with the same
// stopping rules as AddEvents. Filtered data rows of src are consumed and
// skipped; control rows are consumed and end the call with control set.
func (b *Batch[K, P]) AddRange(src *Batch[K, P], start, end int, tracker *OrderTracker[K]) (consumed int, control bool, err error) {
	if end > src.Count {
		end = src.Count
	}
	var zeroKey K
	for i := start; i < end; i++ {
		if b.IsFull() {
			return consumed, false, nil
		}
		other := src.VOther.Data[i]
		sentinel := IsSentinel(other)
		if src.IsFiltered(i) && !sentinel {
			consumed++
			continue
		}

		key := zeroKey
		if src.Key != nil {
			key = src.Key.Data[i]
		}
		sync := src.VSync.Data[i]
		if err := tracker.Check(key, sync, i); err != nil {
			return consumed, false, err
		}
		tracker.observeEvent(key, sync, other)
		consumed++

		if sentinel {
			return consumed, true, nil
		}
		var payload P
		if src.Payload != nil {
			payload = src.Payload.Data[i]
		}
		if b.Add(sync, other, key, payload) {
			return consumed, false, nil
		}
	}
	return consumed, false, nil
}
