package collections

import (
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// RemovableEndPointHeap is a min-heap on time whose entries can be removed
// by handle. locations maps each live handle to its heap position and is
// patched on every swap; released handles go onto a free list.
type RemovableEndPointHeap struct {
	heap      []int
	times     []int64
	values    []int
	locations []int
	free      []int
	count     int
	limit     int
}

// NewRemovableEndPointHeap creates a heap with room for capacity entries.
func NewRemovableEndPointHeap(capacity int) *RemovableEndPointHeap {
	if capacity < 1 {
		capacity = defaultEndPointCapacity
	}
	return &RemovableEndPointHeap{
		heap:      make([]int, 0, capacity),
		times:     make([]int64, 0, capacity),
		values:    make([]int, 0, capacity),
		locations: make([]int, 0, capacity),
		limit:     MaxCapacity,
	}
}

// Count returns the number of entries.
func (h *RemovableEndPointHeap) Count() int { return h.count }

// IsEmpty reports whether the heap is empty.
func (h *RemovableEndPointHeap) IsEmpty() bool { return h.count == 0 }

// Insert adds an endpoint, discarding its handle.
func (h *RemovableEndPointHeap) Insert(time int64, value int) {
	h.InsertWithHandle(time, value)
}

// InsertWithHandle adds an endpoint and returns a handle for Remove.
func (h *RemovableEndPointHeap) InsertWithHandle(time int64, value int) int {
	var handle int
	if n := len(h.free); n > 0 {
		handle = h.free[n-1]
		h.free = h.free[:n-1]
		h.times[handle] = time
		h.values[handle] = value
	} else {
		if len(h.times) == cap(h.times) {
			h.reserve(grownCapacity(cap(h.times), h.limit))
		}
		handle = len(h.times)
		h.times = append(h.times, time)
		h.values = append(h.values, value)
		h.locations = append(h.locations, 0)
	}

	h.heap = append(h.heap, handle)
	h.locations[handle] = h.count
	h.count++
	h.up(h.count - 1)
	return handle
}

func (h *RemovableEndPointHeap) reserve(n int) {
	grow := func(s []int) []int { c := make([]int, len(s), n); copy(c, s); return c }
	times := make([]int64, len(h.times), n)
	copy(times, h.times)
	h.times = times
	h.values = grow(h.values)
	h.locations = grow(h.locations)
	h.heap = grow(h.heap)
}

func (h *RemovableEndPointHeap) less(i, j int) bool {
	return h.times[h.heap[i]] < h.times[h.heap[j]]
}

func (h *RemovableEndPointHeap) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.locations[h.heap[i]] = i
	h.locations[h.heap[j]] = j
}

func (h *RemovableEndPointHeap) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *RemovableEndPointHeap) down(i int) {
	for {
		child := 2*i + 1
		if child >= h.count {
			return
		}
		if right := child + 1; right < h.count && h.less(right, child) {
			child = right
		}
		if !h.less(child, i) {
			return
		}
		h.swap(i, child)
		i = child
	}
}

// removeAt drops heap position pos and frees its handle.
func (h *RemovableEndPointHeap) removeAt(pos int) {
	handle := h.heap[pos]
	last := h.count - 1
	if pos != last {
		h.swap(pos, last)
	}
	h.heap = h.heap[:last]
	h.count--
	h.locations[handle] = -1
	h.free = append(h.free, handle)

	if pos < h.count {
		h.down(pos)
		h.up(pos)
	}
}

// Remove removes the endpoint with the given handle. The handle must be
// live.
func (h *RemovableEndPointHeap) Remove(handle int) {
	if handle < 0 || handle >= len(h.locations) || h.locations[handle] < 0 {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "Remove of invalid endpoint handle %d", handle)
	}
	h.removeAt(h.locations[handle])
}

// Contains reports whether handle is live.
func (h *RemovableEndPointHeap) Contains(handle int) bool {
	return handle >= 0 && handle < len(h.locations) && h.locations[handle] >= 0
}

// TryPeekNext returns the earliest endpoint without removing it.
func (h *RemovableEndPointHeap) TryPeekNext() (int64, int, bool) {
	if h.count == 0 {
		return 0, 0, false
	}
	top := h.heap[0]
	return h.times[top], h.values[top], true
}

// TryGetNext removes and returns the earliest endpoint.
func (h *RemovableEndPointHeap) TryGetNext() (int64, int, bool) {
	t, v, ok := h.TryPeekNext()
	if ok {
		h.removeAt(0)
	}
	return t, v, ok
}

// TryGetNextInclusive removes the earliest endpoint if its time is at most
// maxTime.
func (h *RemovableEndPointHeap) TryGetNextInclusive(maxTime int64) (int64, int, bool) {
	if h.count == 0 || h.times[h.heap[0]] > maxTime {
		return 0, 0, false
	}
	return h.TryGetNext()
}

// TryGetNextExclusive removes the earliest endpoint if its time is below
// maxTime.
func (h *RemovableEndPointHeap) TryGetNextExclusive(maxTime int64) (int64, int, bool) {
	if h.count == 0 || h.times[h.heap[0]] >= maxTime {
		return 0, 0, false
	}
	return h.TryGetNext()
}

// RemoveTop removes the earliest endpoint. The heap must not be empty.
func (h *RemovableEndPointHeap) RemoveTop() {
	if h.count == 0 {
		emptyFault("RemoveTop")
	}
	h.removeAt(0)
}

// Clear removes every entry and invalidates every handle.
func (h *RemovableEndPointHeap) Clear() {
	h.heap = h.heap[:0]
	h.times = h.times[:0]
	h.values = h.values[:0]
	h.locations = h.locations[:0]
	h.free = h.free[:0]
	h.count = 0
}
