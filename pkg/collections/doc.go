// Package collections provides the low-allocation collections that windowing
// and join operators keep their live state in.
//
//   - FastDictionary, FastDictionary2, FastDictionary3: open-addressing and
//     chained hash tables over parallel arrays.
//   - FastMap, FastLinkedList: dense value arrays addressed by stable
//     integer handles, threaded by intrusive lists.
//   - EndPointHeap, EndPointQueue, RemovableEndPointHeap: (time, id)
//     orderers for scheduling expirations.
//
// Every instance is single-writer. None of the types here are safe for
// concurrent mutation.
//
// Contract violations that would cost a check on every call (inserting at a
// slot that was not returned by a failed lookup, moving a handle that is not
// in the expected list) are only verified when built with -tags trilldebug.
// Capacity and emptiness faults are always checked and panic with a
// *trillerrors.Error.
package collections
