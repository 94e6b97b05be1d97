package collections

import (
	"iter"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

type chainEntry[K comparable, V any] struct {
	key   K
	value V
	hash  uint32
	next  int
	live  bool
}

// FastDictionary2 is a chained hash table that supports removal. Buckets
// hold the head entry of a singly linked chain; removed entries go onto a
// free list and are reused by later inserts. Entry indices are stable:
// growing only rebuilds the bucket array.
type FastDictionary2[K comparable, V any] struct {
	hasher    func(K) uint32
	buckets   []int
	entries   []chainEntry[K, V]
	freeList  int
	freeCount int
	count     int
	resizes   int
}

// NewFastDictionary2 creates a table with GetPrime(capacity) buckets.
func NewFastDictionary2[K comparable, V any](hasher func(K) uint32, capacity int) *FastDictionary2[K, V] {
	if hasher == nil {
		hasher = DefaultHasher[K]()
	}
	d := &FastDictionary2[K, V]{hasher: hasher, freeList: -1}
	d.buckets = newBuckets(GetPrime(capacity))
	return d
}

func newBuckets(n int) []int {
	b := make([]int, n)
	for i := range b {
		b[i] = -1
	}
	return b
}

// Size returns the number of buckets.
func (d *FastDictionary2[K, V]) Size() int { return len(d.buckets) }

// Count returns the number of live entries.
func (d *FastDictionary2[K, V]) Count() int { return d.count }

// Resizes returns how many times the bucket array has grown.
func (d *FastDictionary2[K, V]) Resizes() int { return d.resizes }

// Lookup returns the entry index of key.
func (d *FastDictionary2[K, V]) Lookup(key K) (int, bool) {
	return d.LookupHash(key, d.hasher(key))
}

// LookupHash is Lookup with a precomputed hash.
func (d *FastDictionary2[K, V]) LookupHash(key K, hash uint32) (int, bool) {
	for i := d.buckets[hash%uint32(len(d.buckets))]; i >= 0; i = d.entries[i].next {
		if d.entries[i].hash == hash && d.entries[i].key == key {
			return i, true
		}
	}
	return -1, false
}

// Insert adds key, which must not be present, and returns its entry index.
func (d *FastDictionary2[K, V]) Insert(key K, value V) int {
	hash := d.hasher(key)
	if debugChecks {
		if _, found := d.LookupHash(key, hash); found {
			trillerrors.Fail(trillerrors.ErrorTypePrecondition, "insert of a key that is already present")
		}
	}

	var i int
	if d.freeCount > 0 {
		i = d.freeList
		d.freeList = d.entries[i].next
		d.freeCount--
	} else {
		i = len(d.entries)
		d.entries = append(d.entries, chainEntry[K, V]{})
	}

	b := hash % uint32(len(d.buckets))
	d.entries[i] = chainEntry[K, V]{key: key, value: value, hash: hash, next: d.buckets[b], live: true}
	d.buckets[b] = i
	d.count++

	if d.count > len(d.buckets)/2 {
		d.grow()
	}
	return i
}

func (d *FastDictionary2[K, V]) grow() {
	d.buckets = newBuckets(ExpandPrime(len(d.buckets)))
	for i := range d.entries {
		e := &d.entries[i]
		if !e.live {
			continue
		}
		b := e.hash % uint32(len(d.buckets))
		e.next = d.buckets[b]
		d.buckets[b] = i
	}
	d.resizes++
}

// Remove deletes key and reports whether it was present.
func (d *FastDictionary2[K, V]) Remove(key K) bool {
	hash := d.hasher(key)
	b := hash % uint32(len(d.buckets))
	prev := -1
	for i := d.buckets[b]; i >= 0; prev, i = i, d.entries[i].next {
		e := &d.entries[i]
		if e.hash != hash || e.key != key {
			continue
		}
		if prev < 0 {
			d.buckets[b] = e.next
		} else {
			d.entries[prev].next = e.next
		}
		*e = chainEntry[K, V]{next: d.freeList}
		d.freeList = i
		d.freeCount++
		d.count--
		return true
	}
	return false
}

// Key returns the key at entry index i.
func (d *FastDictionary2[K, V]) Key(i int) K { return d.entries[i].key }

// Value returns the value at entry index i.
func (d *FastDictionary2[K, V]) Value(i int) V { return d.entries[i].value }

// ValueRef returns a pointer to the value at entry index i, valid until the
// next insert.
func (d *FastDictionary2[K, V]) ValueRef(i int) *V { return &d.entries[i].value }

// SetValue replaces the value at entry index i.
func (d *FastDictionary2[K, V]) SetValue(i int, value V) { d.entries[i].value = value }

// Iterate advances *index to the next live entry.
func (d *FastDictionary2[K, V]) Iterate(index *int) bool {
	for i := *index + 1; i < len(d.entries); i++ {
		if d.entries[i].live {
			*index = i
			return true
		}
	}
	*index = len(d.entries)
	return false
}

// All yields every live entry in index order.
func (d *FastDictionary2[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := IteratorStart; d.Iterate(&i); {
			if !yield(d.entries[i].key, d.entries[i].value) {
				return
			}
		}
	}
}

// Clear removes every entry without shrinking the bucket array.
func (d *FastDictionary2[K, V]) Clear() {
	for i := range d.buckets {
		d.buckets[i] = -1
	}
	d.entries = d.entries[:0]
	d.freeList = -1
	d.freeCount = 0
	d.count = 0
}
