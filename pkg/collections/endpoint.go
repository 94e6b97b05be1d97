package collections

import (
	"math"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// MaxCapacity is the largest number of entries an endpoint orderer can hold.
const MaxCapacity = math.MaxInt32

const defaultEndPointCapacity = 16

// EndPointOrderer yields (time, value) endpoints in non-decreasing time.
type EndPointOrderer interface {
	Insert(time int64, value int)
	TryPeekNext() (time int64, value int, ok bool)
	TryGetNext() (time int64, value int, ok bool)
	// TryGetNextInclusive pops the next endpoint if its time is <= maxTime.
	TryGetNextInclusive(maxTime int64) (time int64, value int, ok bool)
	// TryGetNextExclusive pops the next endpoint if its time is < maxTime.
	TryGetNextExclusive(maxTime int64) (time int64, value int, ok bool)
	RemoveTop()
	Count() int
	IsEmpty() bool
	Clear()
}

var (
	_ EndPointOrderer = (*EndPointHeap)(nil)
	_ EndPointOrderer = (*EndPointQueue)(nil)
	_ EndPointOrderer = (*RemovableEndPointHeap)(nil)
)

// grownCapacity doubles n, clamped to limit. It raises a capacity fault
// when n is already at the limit.
func grownCapacity(n, limit int) int {
	if n >= limit {
		trillerrors.Fail(trillerrors.ErrorTypeCapacity, "endpoint collection cannot grow past %d entries", limit)
	}
	next := 2 * n
	if next < defaultEndPointCapacity {
		next = defaultEndPointCapacity
	}
	if next > limit {
		next = limit
	}
	return next
}

func emptyFault(op string) {
	trillerrors.Fail(trillerrors.ErrorTypePrecondition, "%s on an empty endpoint collection", op)
}

// EndPointHeap is a binary min-heap on time over parallel time and value
// arrays.
type EndPointHeap struct {
	times  []int64
	values []int
	count  int
	limit  int
}

// NewEndPointHeap creates a heap with room for capacity entries.
func NewEndPointHeap(capacity int) *EndPointHeap {
	if capacity < 1 {
		capacity = defaultEndPointCapacity
	}
	return &EndPointHeap{
		times:  make([]int64, capacity),
		values: make([]int, capacity),
		limit:  MaxCapacity,
	}
}

// Count returns the number of entries.
func (h *EndPointHeap) Count() int { return h.count }

// IsEmpty reports whether the heap is empty.
func (h *EndPointHeap) IsEmpty() bool { return h.count == 0 }

// Insert adds an endpoint.
func (h *EndPointHeap) Insert(time int64, value int) {
	if h.count == len(h.times) {
		n := grownCapacity(len(h.times), h.limit)
		times := make([]int64, n)
		copy(times, h.times[:h.count])
		values := make([]int, n)
		copy(values, h.values[:h.count])
		h.times, h.values = times, values
	}

	i := h.count
	h.count++
	for i > 0 {
		parent := (i - 1) / 2
		if h.times[parent] <= time {
			break
		}
		h.times[i] = h.times[parent]
		h.values[i] = h.values[parent]
		i = parent
	}
	h.times[i] = time
	h.values[i] = value
}

// TryPeekNext returns the earliest endpoint without removing it.
func (h *EndPointHeap) TryPeekNext() (int64, int, bool) {
	if h.count == 0 {
		return 0, 0, false
	}
	return h.times[0], h.values[0], true
}

// TryGetNext removes and returns the earliest endpoint.
func (h *EndPointHeap) TryGetNext() (int64, int, bool) {
	if h.count == 0 {
		return 0, 0, false
	}
	t, v := h.times[0], h.values[0]
	h.RemoveTop()
	return t, v, true
}

// TryGetNextInclusive removes the earliest endpoint if its time is at most
// maxTime.
func (h *EndPointHeap) TryGetNextInclusive(maxTime int64) (int64, int, bool) {
	if h.count == 0 || h.times[0] > maxTime {
		return 0, 0, false
	}
	return h.TryGetNext()
}

// TryGetNextExclusive removes the earliest endpoint if its time is below
// maxTime.
func (h *EndPointHeap) TryGetNextExclusive(maxTime int64) (int64, int, bool) {
	if h.count == 0 || h.times[0] >= maxTime {
		return 0, 0, false
	}
	return h.TryGetNext()
}

// RemoveTop removes the earliest endpoint. The heap must not be empty.
func (h *EndPointHeap) RemoveTop() {
	if h.count == 0 {
		emptyFault("RemoveTop")
	}
	h.count--
	if h.count == 0 {
		return
	}
	t, v := h.times[h.count], h.values[h.count]
	i := 0
	for {
		child := 2*i + 1
		if child >= h.count {
			break
		}
		if right := child + 1; right < h.count && h.times[right] < h.times[child] {
			child = right
		}
		if t <= h.times[child] {
			break
		}
		h.times[i] = h.times[child]
		h.values[i] = h.values[child]
		i = child
	}
	h.times[i] = t
	h.values[i] = v
}

// Clear removes every entry.
func (h *EndPointHeap) Clear() { h.count = 0 }
