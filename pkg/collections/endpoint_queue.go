package collections

import (
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// EndPointQueue is a growable circular buffer of endpoints for the common
// case where endpoints arrive in non-decreasing time order. It does no
// reordering: out-of-order inserts are a caller error, detected only in
// trilldebug builds.
type EndPointQueue struct {
	times  []int64
	values []int
	head   int
	count  int
	last   int64
	limit  int
}

// NewEndPointQueue creates a queue with room for capacity entries.
func NewEndPointQueue(capacity int) *EndPointQueue {
	if capacity < 1 {
		capacity = defaultEndPointCapacity
	}
	return &EndPointQueue{
		times:  make([]int64, capacity),
		values: make([]int, capacity),
		limit:  MaxCapacity,
	}
}

// Count returns the number of entries.
func (q *EndPointQueue) Count() int { return q.count }

// IsEmpty reports whether the queue is empty.
func (q *EndPointQueue) IsEmpty() bool { return q.count == 0 }

// Insert appends an endpoint. time must not precede the previous insert.
func (q *EndPointQueue) Insert(time int64, value int) {
	if debugChecks && q.count > 0 && time < q.last {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition,
			"endpoint queue insert at %d after %d", time, q.last)
	}

	if q.count == len(q.times) {
		n := grownCapacity(len(q.times), q.limit)
		times := make([]int64, n)
		values := make([]int, n)
		for i := 0; i < q.count; i++ {
			j := (q.head + i) % len(q.times)
			times[i] = q.times[j]
			values[i] = q.values[j]
		}
		q.times, q.values, q.head = times, values, 0
	}

	tail := (q.head + q.count) % len(q.times)
	q.times[tail] = time
	q.values[tail] = value
	q.count++
	q.last = time
}

// TryPeekNext returns the oldest endpoint without removing it.
func (q *EndPointQueue) TryPeekNext() (int64, int, bool) {
	if q.count == 0 {
		return 0, 0, false
	}
	return q.times[q.head], q.values[q.head], true
}

// TryGetNext removes and returns the oldest endpoint.
func (q *EndPointQueue) TryGetNext() (int64, int, bool) {
	if q.count == 0 {
		return 0, 0, false
	}
	t, v := q.times[q.head], q.values[q.head]
	q.RemoveTop()
	return t, v, true
}

// TryGetNextInclusive removes the oldest endpoint if its time is at most
// maxTime.
func (q *EndPointQueue) TryGetNextInclusive(maxTime int64) (int64, int, bool) {
	if q.count == 0 || q.times[q.head] > maxTime {
		return 0, 0, false
	}
	return q.TryGetNext()
}

// TryGetNextExclusive removes the oldest endpoint if its time is below
// maxTime.
func (q *EndPointQueue) TryGetNextExclusive(maxTime int64) (int64, int, bool) {
	if q.count == 0 || q.times[q.head] >= maxTime {
		return 0, 0, false
	}
	return q.TryGetNext()
}

// RemoveTop removes the oldest endpoint. The queue must not be empty.
func (q *EndPointQueue) RemoveTop() {
	if q.count == 0 {
		emptyFault("RemoveTop")
	}
	q.head++
	if q.head == len(q.times) {
		q.head = 0
	}
	q.count--
}

// Clear removes every entry.
func (q *EndPointQueue) Clear() {
	q.head = 0
	q.count = 0
}
