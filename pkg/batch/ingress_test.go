package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

func TestAddEventsStopsAtPunctuation(t *testing.T) {
	_, mp := newPool[Empty, int](t, 16)
	b := mp.GetAllocated()
	defer b.Free()

	src := []Event[Empty, int]{
		DataEvent(1, 5, Empty{}, 10),
		DataEvent(2, 6, Empty{}, 20),
		PunctuationEvent[Empty, int](3, Empty{}),
		DataEvent(4, 8, Empty{}, 40),
	}
	tracker := NewOrderTracker[Empty](DisorderThrow, false)

	consumed, control, err := b.AddEvents(src, tracker)
	require.NoError(t, err)
	assert.Equal(t, 3, consumed)
	assert.True(t, control)
	assert.Equal(t, 2, b.Count, "control events are not written")
	assert.True(t, src[consumed-1].IsPunctuation())

	consumed, control, err = b.AddEvents(src[consumed:], tracker)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.False(t, control)
	assert.Equal(t, 3, b.Count)
	assert.Equal(t, int64(4), tracker.Last(Empty{}))
}

func TestAddEventsStopsWhenFull(t *testing.T) {
	_, mp := newPool[Empty, int](t, 2)
	b := mp.GetAllocated()
	defer b.Free()

	src := []Event[Empty, int]{
		DataEvent(1, 2, Empty{}, 1),
		DataEvent(2, 3, Empty{}, 2),
		DataEvent(3, 4, Empty{}, 3),
	}
	consumed, control, err := b.AddEvents(src, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
	assert.False(t, control)
	assert.True(t, b.IsFull())

	consumed, _, err = b.AddEvents(src[2:], nil)
	require.NoError(t, err)
	assert.Zero(t, consumed)
}

func TestAddEventsOrderFault(t *testing.T) {
	_, mp := newPool[Empty, int](t, 16)
	b := mp.GetAllocated()
	defer b.Free()

	src := []Event[Empty, int]{
		DataEvent(5, 6, Empty{}, 1),
		DataEvent(7, 8, Empty{}, 2),
		DataEvent(6, 9, Empty{}, 3),
	}
	consumed, control, err := b.AddEvents(src, NewOrderTracker[Empty](DisorderThrow, false))
	require.Error(t, err)
	assert.Equal(t, 2, consumed, "the offending event is not consumed")
	assert.False(t, control)
	assert.Equal(t, 2, b.Count)

	var oe *OrderError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, int64(6), oe.SyncTime)
	assert.Equal(t, int64(7), oe.LastTime)
	assert.Equal(t, 2, oe.Index)
	assert.True(t, trillerrors.IsType(err, trillerrors.ErrorTypeIngressOrder))
	assert.False(t, trillerrors.IsFault(err))
}

func TestAddEventsDisorderNone(t *testing.T) {
	_, mp := newPool[Empty, int](t, 16)
	b := mp.GetAllocated()
	defer b.Free()

	src := []Event[Empty, int]{DataEvent(5, 6, Empty{}, 1), DataEvent(1, 2, Empty{}, 2)}
	consumed, _, err := b.AddEvents(src, NewOrderTracker[Empty](DisorderNone, false))
	require.NoError(t, err)
	assert.Equal(t, 2, consumed)
}

func TestPartitionedOrderTracker(t *testing.T) {
	tr := NewOrderTracker[string](DisorderThrow, true)
	tr.Observe("a", 10)
	tr.Observe("b", 3)

	assert.NoError(t, tr.Check("b", 4, 0), "partitions are independent")
	assert.Error(t, tr.Check("a", 9, 0))
	assert.NoError(t, tr.Check("c", 0, 0))

	tr.ObserveLowWatermark(5)
	assert.Error(t, tr.Check("b", 4, 0), "low watermark applies to every partition")
	assert.Error(t, tr.Check("c", 4, 0))
	assert.NoError(t, tr.Check("c", 5, 0))
	assert.Equal(t, int64(10), tr.Last("a"))
	assert.Equal(t, int64(5), tr.Last("b"))
}

func TestAddRange(t *testing.T) {
	_, mp := newPool[int64, string](t, 16, WithPartitioned())
	src := mp.GetAllocated()
	defer src.Free()
	src.Add(1, 5, 1, "a")
	src.Add(2, 5, 2, "b")
	src.SetFiltered(1)
	src.Add(3, 5, 1, "c")
	src.AddPartitionPunctuation(4, 1)
	src.Add(5, 6, 2, "e")
	src.Seal()

	dst := mp.GetAllocated()
	defer dst.Free()
	tracker := NewOrderTracker[int64](DisorderThrow, true)

	consumed, control, err := dst.AddRange(src, 0, src.Count, tracker)
	require.NoError(t, err)
	assert.Equal(t, 4, consumed)
	assert.True(t, control)
	assert.Equal(t, 2, dst.Count)
	assert.Equal(t, []string{"a", "c"}, dst.Payload.Data[:2])
	assert.Equal(t, int64(4), tracker.Last(1))

	consumed, control, err = dst.AddRange(src, 4, 99, tracker)
	require.NoError(t, err)
	assert.Equal(t, 1, consumed)
	assert.False(t, control)
	assert.Equal(t, "e", dst.Payload.Data[2])
	assert.Equal(t, mp.Hash(2), dst.Hash.Data[2])
}

func TestEventKinds(t *testing.T) {
	assert.True(t, DataEvent[Empty, int](1, 2, Empty{}, 0).IsData())
	assert.True(t, LowWatermarkEvent[Empty, int](1).IsLowWatermark())
	assert.False(t, LowWatermarkEvent[Empty, int](1).IsData())
	assert.True(t, IsSentinel(PunctuationOtherTime))
	assert.False(t, IsSentinel(InfinitySyncTime))
	assert.Equal(t, "throw", DisorderThrow.String())
	assert.Equal(t, "none", DisorderNone.String())
}
