package collections

import (
	"iter"

	"github.com/microsoft/Trill-sub013/internal/bitvector"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// IteratorStart is the cursor value that starts an Iterate loop.
const IteratorStart = -1

// FastDictionary is an open-addressing hash table with linear probing over
// parallel key and value arrays. An occupancy bit-vector gates every probe,
// so no key value is reserved as empty and there are no tombstones; there is
// also no removal. Count never exceeds Size/2: the insert that crosses the
// threshold grows the table to ExpandPrime(Size) and rehashes every entry.
//
// Lookups return a slot. A failed lookup returns the empty slot where the
// key belongs, and Insert must be given exactly that slot:
//
//	slot, found := d.Lookup(k)
//	if !found {
//		slot = d.Insert(slot, k, v)
//	}
type FastDictionary[K comparable, V any] struct {
	hasher  func(K) uint32
	bits    []uint64
	dirty   []uint64
	keys    []K
	values  []V
	size    int
	count   int
	resizes int
}

// NewFastDictionary creates a table of GetPrime(capacity) slots.
func NewFastDictionary[K comparable, V any](hasher func(K) uint32, capacity int) *FastDictionary[K, V] {
	if hasher == nil {
		hasher = DefaultHasher[K]()
	}
	d := &FastDictionary[K, V]{hasher: hasher}
	d.init(GetPrime(capacity))
	return d
}

func (d *FastDictionary[K, V]) init(size int) {
	d.size = size
	d.bits = make([]uint64, bitvector.Words(size))
	d.keys = make([]K, size)
	d.values = make([]V, size)
	if d.dirty != nil {
		d.dirty = make([]uint64, bitvector.Words(size))
	}
}

// Size returns the number of slots.
func (d *FastDictionary[K, V]) Size() int { return d.size }

// Count returns the number of entries.
func (d *FastDictionary[K, V]) Count() int { return d.count }

// Resizes returns how many times the table has grown.
func (d *FastDictionary[K, V]) Resizes() int { return d.resizes }

// Lookup hashes key and calls LookupHash.
func (d *FastDictionary[K, V]) Lookup(key K) (int, bool) {
	return d.LookupHash(key, d.hasher(key))
}

// LookupHash probes from hash % Size for key. It returns the key's slot and
// true, or the first empty slot on the probe path and false.
func (d *FastDictionary[K, V]) LookupHash(key K, hash uint32) (int, bool) {
	i := int(hash % uint32(d.size))
	for {
		if !bitvector.Test(d.bits, i) {
			return i, false
		}
		if d.keys[i] == key {
			return i, true
		}
		i++
		if i == d.size {
			i = 0
		}
	}
}

// Insert stores key and value at slot, which must come from a failed Lookup
// of key with no insert in between. It returns the slot the entry ends up
// in, which differs from slot when the insert grew the table.
func (d *FastDictionary[K, V]) Insert(slot int, key K, value V) int {
	if debugChecks {
		if s, found := d.Lookup(key); found || s != slot {
			trillerrors.Fail(trillerrors.ErrorTypePrecondition,
				"insert at slot %d was not preceded by a failed lookup (found=%t, slot=%d)", slot, found, s)
		}
	}

	d.keys[slot] = key
	d.values[slot] = value
	bitvector.Set(d.bits, slot)
	if d.dirty != nil {
		bitvector.Set(d.dirty, slot)
	}
	d.count++

	if d.count > d.size/2 {
		d.grow()
		slot, _ = d.Lookup(key)
	}
	return slot
}

func (d *FastDictionary[K, V]) grow() {
	oldBits, oldDirty, oldKeys, oldValues := d.bits, d.dirty, d.keys, d.values
	d.init(ExpandPrime(d.size))

	for i := range oldKeys {
		if !bitvector.Test(oldBits, i) {
			continue
		}
		slot, _ := d.Lookup(oldKeys[i])
		d.keys[slot] = oldKeys[i]
		d.values[slot] = oldValues[i]
		bitvector.Set(d.bits, slot)
		if oldDirty != nil && bitvector.Test(oldDirty, i) {
			bitvector.Set(d.dirty, slot)
		}
	}
	d.resizes++
}

// Key returns the key at slot.
func (d *FastDictionary[K, V]) Key(slot int) K { return d.keys[slot] }

// Value returns the value at slot.
func (d *FastDictionary[K, V]) Value(slot int) V { return d.values[slot] }

// ValueRef returns a pointer to the value at slot, valid until the next
// insert.
func (d *FastDictionary[K, V]) ValueRef(slot int) *V { return &d.values[slot] }

// SetValue replaces the value at slot.
func (d *FastDictionary[K, V]) SetValue(slot int, value V) {
	d.values[slot] = value
	if d.dirty != nil {
		bitvector.Set(d.dirty, slot)
	}
}

// Iterate advances *index to the next occupied slot. Start with
// IteratorStart; it returns false once every slot has been visited.
func (d *FastDictionary[K, V]) Iterate(index *int) bool {
	next := bitvector.NextSet(d.bits, *index+1, d.size)
	if next < 0 {
		*index = d.size
		return false
	}
	*index = next
	return true
}

// All yields every entry in slot order.
func (d *FastDictionary[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := IteratorStart; d.Iterate(&i); {
			if !yield(d.keys[i], d.values[i]) {
				return
			}
		}
	}
}

// Clear removes every entry without shrinking.
func (d *FastDictionary[K, V]) Clear() {
	clear(d.bits)
	clear(d.keys)
	clear(d.values)
	if d.dirty != nil {
		clear(d.dirty)
	}
	d.count = 0
}

// FastDictionary3 is a FastDictionary that also tracks which entries were
// inserted or updated since the last Clean, so a checkpoint can visit only
// those. Dirty marks survive a resize.
type FastDictionary3[K comparable, V any] struct {
	FastDictionary[K, V]
}

// NewFastDictionary3 creates a dirty-tracking table of GetPrime(capacity)
// slots.
func NewFastDictionary3[K comparable, V any](hasher func(K) uint32, capacity int) *FastDictionary3[K, V] {
	if hasher == nil {
		hasher = DefaultHasher[K]()
	}
	d := &FastDictionary3[K, V]{FastDictionary[K, V]{hasher: hasher, dirty: []uint64{}}}
	d.init(GetPrime(capacity))
	return d
}

// SetDirty marks slot changed.
func (d *FastDictionary3[K, V]) SetDirty(slot int) { bitvector.Set(d.dirty, slot) }

// IsClean reports whether slot is unchanged since the last Clean.
func (d *FastDictionary3[K, V]) IsClean(slot int) bool { return !bitvector.Test(d.dirty, slot) }

// Clean marks every entry unchanged.
func (d *FastDictionary3[K, V]) Clean() { clear(d.dirty) }

// IterateDirty is Iterate restricted to changed slots.
func (d *FastDictionary3[K, V]) IterateDirty(index *int) bool {
	next := bitvector.NextSet(d.dirty, *index+1, d.size)
	if next < 0 {
		*index = d.size
		return false
	}
	*index = next
	return true
}

// Dirty yields every changed entry in slot order.
func (d *FastDictionary3[K, V]) Dirty() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := IteratorStart; d.IterateDirty(&i); {
			if !yield(d.keys[i], d.values[i]) {
				return
			}
		}
	}
}
