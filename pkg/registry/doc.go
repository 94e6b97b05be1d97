// Package registry maps a type-and-size fingerprint to the single shared
// pool instance for that fingerprint and offers the sweeping operations
// (Free, Report) that memory-pressure handlers and end-of-run diagnostics
// use.
//
// A Registry is an explicit object handed down the construction path.
// Nothing in this module keeps one in a package variable; a process that
// wants a single shared registry creates it at startup and Closes it at
// teardown.
//
// Lookups of an existing pool are a lock-free sync.Map load. The first
// creation for a key goes through a singleflight group keyed by the
// fingerprint, with a re-check inside, so the factory for a key runs at
// most once.
//
//	reg := registry.New()
//	defer reg.Close()
//
//	sync := registry.ColumnPool[int64](reg, 80000)
//	col := sync.Get()
//	defer col.Return()
package registry
