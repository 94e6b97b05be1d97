// Package trill is the memory substrate of a streaming query engine: pooled,
// reference-counted columns assembled into fixed-capacity event batches.
//
// # Architecture
//
// Streaming operators exchange batches of events. Every batch holds parallel
// columns for sync time, other time, key, hash and payload, plus a bitvector
// that marks filtered rows. Columns are drawn from size-keyed pools, shared
// between batches by reference count and copied only when a holder needs to
// write to a shared column.
//
// The registry owns every pool in a process. It hands out memory pools per
// key and payload type, sweeps them under memory pressure and reports pools
// whose objects were not all returned.
//
// # Quick Start
//
//	reg := registry.New()
//	defer reg.Close()
//
//	mp := batch.GetMemoryPool[batch.Empty, int64](reg, batch.WithBatchSize(1024))
//	b := mp.GetAllocated()
//	b.Add(1, 2, batch.Empty{}, 42)
//	b.AddPunctuation(3)
//	b.Seal()
//	defer b.Free()
//
// # Key Packages
//
//	pkg/pool         - Column pools with reference-counted columns
//	pkg/registry     - Process-wide pool registry and leak report
//	pkg/batch        - Event batches, memory pools and ingress
//	pkg/collections  - Fast dictionaries, linked lists and endpoint orderers
//	pkg/lockfree     - Lock-free queue behind the pools
//	pkg/checkpoint   - Column frame codec for sealed batches
//	pkg/compression  - Block compression used by checkpoints
//	pkg/mmap         - Read-only mapped checkpoint files
//	pkg/columnar     - Arrow record export and IPC
//	pkg/memwatch     - Memory-pressure watcher that sweeps the registry
//	pkg/config       - YAML and environment configuration
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics for pools and throughput
//
// # Development
//
// The trillpool command drives a synthetic ingest workload:
//
//	go run ./cmd/trillpool bench --workers 8 --batches 500
//	go run ./cmd/trillpool report
package trill
