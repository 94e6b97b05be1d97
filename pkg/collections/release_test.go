//go:build !trilldebug

package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Release builds skip the precondition checks; misuse goes unreported.

func TestFastDictionaryDoubleInsertUnchecked(t *testing.T) {
	d := NewFastDictionary[int, string](func(k int) uint32 { return uint32(k) }, 8)
	slot, _ := d.Lookup(3)
	d.Insert(slot, 3, "a")
	assert.NotPanics(t, func() { d.Insert(slot, 3, "b") })
}

func TestEndPointQueueOutOfOrderUnchecked(t *testing.T) {
	q := NewEndPointQueue(4)
	q.Insert(10, 1)
	assert.NotPanics(t, func() { q.Insert(9, 2) })
	assert.Equal(t, 2, q.Count())
}

func TestFastMapListMembershipUnchecked(t *testing.T) {
	m := NewFastMap[string](8)
	visible := m.Insert(1, "v")
	invisible := m.InsertInvisible(2, "i")

	assert.NotPanics(t, func() { m.MakeVisible(visible) })
	assert.NotPanics(t, func() { m.MakeInvisible(invisible) })
	assert.Equal(t, ListVisible, m.ListOf(visible))
	assert.Equal(t, ListInvisible, m.ListOf(invisible))
}
