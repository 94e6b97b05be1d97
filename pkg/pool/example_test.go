package pool_test

import (
	"fmt"

	"github.com/microsoft/Trill-sub013/pkg/pool"
)

// Example shows the basic get, share, copy-on-write and return cycle.
func Example() {
	p := pool.NewColumnPool[int64](4, pool.WithName("example"))

	col := p.Get()
	col.Data[0] = 42
	col.UsedLength = 1

	// A second batch shares the column.
	col.IncrementRefCount(1)
	fmt.Println("shared:", col.RefCount())

	// Before mutating, the first holder makes its copy exclusive.
	mine := col.MakeWritable(p)
	mine.Data[0] = 43
	fmt.Println("original:", col.Data[0], "copy:", mine.Data[0])

	col.Return()
	mine.Return()
	fmt.Println("leaked:", p.Leaked())

	// Output:
	// shared: 2
	// original: 42 copy: 43
	// leaked: false
}

// ExampleColumnPool_Free shows how memory-pressure handlers drop idle
// columns.
func ExampleColumnPool_Free() {
	p := pool.NewColumnPool[float64](1024, pool.WithName("example-free"))
	for i := 0; i < 3; i++ {
		p.Get().Return()
	}
	a, b := p.Get(), p.Get()
	a.Return()
	b.Return()

	fmt.Println(p.Status())
	p.Free(true)
	fmt.Println(p.Status())

	// Output:
	// example-free: capacity=1024 created=2 queued=2 leaked=false
	// example-free: capacity=1024 created=0 queued=0 leaked=false
}
