//go:build !trilldebug

package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddToSharedBatchUnchecked(t *testing.T) {
	_, mp := newPool[int64, int64](t, 16)
	src := mp.GetAllocated()
	src.Add(1, 2, 3, 4)

	dst := mp.Get()
	dst.CloneFrom(src, false)

	assert.NotPanics(t, func() { dst.Add(5, 6, 7, 8) })
	assert.Equal(t, 2, dst.Count)
	assert.Equal(t, int64(5), src.VSync.Data[1], "release builds write through the shared column")

	src.Free()
	dst.Free()
	assert.False(t, mp.Leaked())
}
