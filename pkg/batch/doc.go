// Package batch implements the columnar event batch exchanged between
// stream operators, and the pools it is built from.
//
// A Batch holds parallel pooled columns: sync time, other time, key,
// payload, key hash and a deletion bit-vector. Rows are appended with Add
// until the batch is full, then the batch is sealed and handed downstream.
// Sharing a batch with another consumer clones column references and bumps
// their reference counts; a consumer that needs to mutate calls MakeWritable
// first. Release gives every column back and Free also returns the Batch
// object to its BatchPool.
//
// # Lifecycle
//
//	mp := batch.GetMemoryPool[batch.Empty, int64](reg)
//
//	b := mp.GetAllocated()
//	full := b.Add(10, batch.InfinitySyncTime, batch.Empty{}, 42)
//	_ = full
//	b.Seal()
//
//	downstream := mp.Get()
//	downstream.CloneFrom(b, false)
//	b.Free()
//	downstream.Free()
//
// # Control rows
//
// Punctuations and low watermarks occupy a row whose other time holds a
// sentinel and whose deletion bit is set, so ComputeCount never counts them
// as data.
//
// # Faults
//
// Adding to a sealed or full batch is a halting precondition or capacity
// fault (a panic carrying *trillerrors.Error). Out-of-order ingress is a
// returned *OrderError.
package batch
