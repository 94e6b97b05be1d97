// Package pool implements the reference-counted, pooled column storage that
// every batch is built from.
//
// Architecture
//
// A Column[T] wraps one fixed-capacity []T together with a logical used
// length, a back-reference to the pool it came from and a reference count.
// Columns are shared between batches by incrementing the reference count
// rather than copying; a holder that needs to mutate a column it may share
// calls MakeWritable first, which copies only when the count says the column
// is shared.
//
// Core Types:
//
//   - Column[T]: fixed-capacity typed array with a reference count
//   - ColumnPool[T]: concurrent recycler of columns of one type and capacity
//   - ObjectPool[T]: generic created/queued-tracked recycler used by
//     ColumnPool and by the batch object pool
//
// Reference counting
//
// Return decrements the count under the column's own mutex and, when it
// reaches zero, clears the storage (if configured) and enqueues the column
// back to its pool while still holding that mutex. The "did it hit zero"
// decision and the hand-back are therefore one step. IncrementRefCount takes
// the same mutex.
//
// Leak detection
//
// Pools never refuse a Get: they allocate on a miss and count the creation.
// At a quiescent point every created column should be back in the queue with
// a zero count. Leaked reports a pool for which that does not hold, which
// means some column was never returned or was returned too often.
//
// Usage Patterns
//
//	p := pool.NewColumnPool[int64](4096, pool.WithName("column/int64/4096"))
//
//	col := p.Get()
//	col.Data[0] = 42
//
//	col.IncrementRefCount(1) // shared with a second batch
//	col = col.MakeWritable(p) // copies, col now exclusive
//	col.Return()
package pool
