package collections

import (
	"fmt"
	"iter"
	"math/bits"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// ListKind names the list a FastMap or FastLinkedList handle belongs to.
type ListKind uint8

const (
	// ListFree holds recycled handles.
	ListFree ListKind = iota
	// ListVisible holds handles discoverable through Find.
	ListVisible
	// ListInvisible holds handles that Find skips.
	ListInvisible
)

// String returns the list name.
func (k ListKind) String() string {
	switch k {
	case ListFree:
		return "free"
	case ListVisible:
		return "visible"
	case ListInvisible:
		return "invisible"
	}
	return fmt.Sprintf("ListKind(%d)", uint8(k))
}

// link threads a slot through exactly one list. The list tag is explicit;
// prev and next are handles or -1.
type link struct {
	list ListKind
	prev int
	next int
}

// FastMap stores values under stable integer handles. Each handle is a
// member of exactly one of three intrusive lists: a visible chain in the
// bucket of its hash, the single invisible list, or the free list. Moving
// between lists and removal are O(1); growth reallocates the dense arrays
// and rebuilds the buckets.
//
// The map does not compare values: Find yields every visible handle with
// the same hash and the caller decides which ones match.
type FastMap[V any] struct {
	values      []V
	hashes      []uint32
	links       []link
	buckets     []int
	mask        uint32
	invisible   int
	free        int
	initialized int
	count       int
}

// NewFastMap creates a map with room for capacity handles before growing.
func NewFastMap[V any](capacity int) *FastMap[V] {
	m := &FastMap[V]{}
	m.reset(roundUpPow2(capacity))
	return m
}

func roundUpPow2(n int) int {
	if n < 2 {
		return 2
	}
	return 1 << bits.Len(uint(n-1))
}

func (m *FastMap[V]) reset(capacity int) {
	m.values = make([]V, capacity)
	m.hashes = make([]uint32, capacity)
	m.links = make([]link, capacity)
	m.buckets = newBuckets(capacity)
	m.mask = uint32(capacity - 1)
	m.invisible = -1
	m.free = -1
	m.initialized = 0
	m.count = 0
}

// Count returns the number of visible and invisible handles.
func (m *FastMap[V]) Count() int { return m.count }

// Capacity returns the length of the dense arrays.
func (m *FastMap[V]) Capacity() int { return len(m.values) }

// Initialized returns the high-water mark: every handle below it is in one
// of the three lists.
func (m *FastMap[V]) Initialized() int { return m.initialized }

func (m *FastMap[V]) alloc() int {
	if m.free >= 0 {
		h := m.free
		m.unlinkFree(h)
		return h
	}
	if m.initialized == len(m.values) {
		m.grow()
	}
	h := m.initialized
	m.initialized++
	return h
}

func (m *FastMap[V]) grow() {
	n := 2 * len(m.values)
	values := make([]V, n)
	copy(values, m.values)
	hashes := make([]uint32, n)
	copy(hashes, m.hashes)
	links := make([]link, n)
	copy(links, m.links)
	m.values, m.hashes, m.links = values, hashes, links

	m.buckets = newBuckets(n)
	m.mask = uint32(n - 1)
	for h := 0; h < m.initialized; h++ {
		if m.links[h].list == ListVisible {
			m.pushBucket(h)
		}
	}
}

func (m *FastMap[V]) pushBucket(h int) {
	b := m.hashes[h] & m.mask
	head := m.buckets[b]
	m.links[h] = link{list: ListVisible, prev: -1, next: head}
	if head >= 0 {
		m.links[head].prev = h
	}
	m.buckets[b] = h
}

func pushList(links []link, head *int, h int, kind ListKind) {
	links[h] = link{list: kind, prev: -1, next: *head}
	if *head >= 0 {
		links[*head].prev = h
	}
	*head = h
}

func unlinkList(links []link, head *int, h int) {
	l := links[h]
	if l.prev >= 0 {
		links[l.prev].next = l.next
	} else {
		*head = l.next
	}
	if l.next >= 0 {
		links[l.next].prev = l.prev
	}
}

func (m *FastMap[V]) unlinkFree(h int) { unlinkList(m.links, &m.free, h) }

func (m *FastMap[V]) unlink(h int) {
	switch m.links[h].list {
	case ListVisible:
		unlinkList(m.links, &m.buckets[m.hashes[h]&m.mask], h)
	case ListInvisible:
		unlinkList(m.links, &m.invisible, h)
	case ListFree:
		unlinkList(m.links, &m.free, h)
	}
}

func (m *FastMap[V]) expect(h int, kind ListKind, op string) {
	if h < 0 || h >= m.initialized || m.links[h].list != kind {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition,
			"%s of handle %d that is not %s", op, h, kind)
	}
}

// Insert stores value under hash in the visible list and returns its
// handle.
func (m *FastMap[V]) Insert(hash uint32, value V) int {
	h := m.alloc()
	m.values[h] = value
	m.hashes[h] = hash
	m.pushBucket(h)
	m.count++
	return h
}

// InsertInvisible stores value under hash in the invisible list.
func (m *FastMap[V]) InsertInvisible(hash uint32, value V) int {
	h := m.alloc()
	m.values[h] = value
	m.hashes[h] = hash
	pushList(m.links, &m.invisible, h, ListInvisible)
	m.count++
	return h
}

// MakeInvisible moves a visible handle to the invisible list.
func (m *FastMap[V]) MakeInvisible(h int) {
	if debugChecks {
		m.expect(h, ListVisible, "MakeInvisible")
	}
	m.unlink(h)
	pushList(m.links, &m.invisible, h, ListInvisible)
}

// MakeVisible moves an invisible handle back into its hash bucket.
func (m *FastMap[V]) MakeVisible(h int) {
	if debugChecks {
		m.expect(h, ListInvisible, "MakeVisible")
	}
	m.unlink(h)
	m.pushBucket(h)
}

// Remove returns a visible or invisible handle to the free list.
func (m *FastMap[V]) Remove(h int) {
	if debugChecks && (h < 0 || h >= m.initialized || m.links[h].list == ListFree) {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "Remove of handle %d that is free", h)
	}
	m.unlink(h)
	var zero V
	m.values[h] = zero
	pushList(m.links, &m.free, h, ListFree)
	m.count--
}

// ListOf returns the list h belongs to.
func (m *FastMap[V]) ListOf(h int) ListKind { return m.links[h].list }

// Hash returns the hash h was inserted under.
func (m *FastMap[V]) Hash(h int) uint32 { return m.hashes[h] }

// Get returns the value of h.
func (m *FastMap[V]) Get(h int) V { return m.values[h] }

// Set replaces the value of h.
func (m *FastMap[V]) Set(h int, value V) { m.values[h] = value }

// Ref returns a pointer to the value of h, valid until the next insert.
func (m *FastMap[V]) Ref(h int) *V { return &m.values[h] }

// Find returns a traverser over the visible handles inserted under hash.
func (m *FastMap[V]) Find(hash uint32) FindTraverser[V] {
	return FindTraverser[V]{m: m, hash: hash, next: m.buckets[hash&m.mask], current: -1}
}

// FindTraverser walks one bucket chain, yielding only exact hash matches.
type FindTraverser[V any] struct {
	m       *FastMap[V]
	hash    uint32
	next    int
	current int
}

// Next advances to the next handle with the traverser's hash.
func (t *FindTraverser[V]) Next() (int, bool) {
	for t.next >= 0 {
		h := t.next
		t.next = t.m.links[h].next
		if t.m.hashes[h] == t.hash {
			t.current = h
			return h, true
		}
	}
	t.current = -1
	return -1, false
}

// Remove removes the handle last returned by Next. Traversal continues
// unaffected.
func (t *FindTraverser[V]) Remove() {
	if t.current < 0 {
		trillerrors.Fail(trillerrors.ErrorTypePrecondition, "traverser Remove without a current handle")
	}
	t.m.Remove(t.current)
	t.current = -1
}

// Visible yields every visible handle and its value. Mutating the map
// during the walk is not supported.
func (m *FastMap[V]) Visible() iter.Seq2[int, V] {
	return func(yield func(int, V) bool) {
		for _, head := range m.buckets {
			for h := head; h >= 0; h = m.links[h].next {
				if !yield(h, m.values[h]) {
					return
				}
			}
		}
	}
}

// Invisible yields every invisible handle and its value.
func (m *FastMap[V]) Invisible() iter.Seq2[int, V] {
	return func(yield func(int, V) bool) {
		for h := m.invisible; h >= 0; h = m.links[h].next {
			if !yield(h, m.values[h]) {
				return
			}
		}
	}
}

// Free yields every handle on the free list.
func (m *FastMap[V]) Free() iter.Seq[int] {
	return func(yield func(int) bool) {
		for h := m.free; h >= 0; h = m.links[h].next {
			if !yield(h) {
				return
			}
		}
	}
}

// Clear empties the map, keeping its capacity.
func (m *FastMap[V]) Clear() {
	clear(m.values)
	for i := range m.buckets {
		m.buckets[i] = -1
	}
	m.invisible = -1
	m.free = -1
	m.initialized = 0
	m.count = 0
}
