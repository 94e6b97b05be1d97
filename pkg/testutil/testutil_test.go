package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/microsoft/Trill-sub013/pkg/registry"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

func TestExpectFaultReturnsError(t *testing.T) {
	e := ExpectFault(t, trillerrors.ErrorTypeCapacity, func() {
		trillerrors.Fail(trillerrors.ErrorTypeCapacity, "column %s is full", "vsync")
	})
	assert.Equal(t, "column vsync is full", e.Message)
}

func TestNewRegistryTracksPools(t *testing.T) {
	reg := NewRegistry(t)
	p := registry.ColumnPool[int64](reg, 4)
	p.Get().Return()

	assert.Equal(t, 1, reg.Len())
	RequireNoLeaks(t, reg)
}

func TestContextIsLive(t *testing.T) {
	ctx := TestContext(t)
	_, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.NoError(t, ctx.Err())
}
