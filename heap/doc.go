// Package heap provides linear-memory backends for the runtime's object heap
// and the allocator that carves object allocations out of them.
//
// Two backends implement the same contracts:
//
//   - Native: a growable in-process byte buffer. The default.
//   - Wazero: a WebAssembly linear memory owned by a wazero instance built
//     from a synthesized module. Heap contents are then confined to guest
//     memory, which keeps the object graph inspectable and sandboxed.
//
// The heap never shrinks. Freed blocks go on a free list and are reused by
// the allocator; this matches the grow-only semantics of WASM linear memory.
//
// Object header layout is fixed (stable layout, little-endian):
//
//	offset 0: refcount (u32)
//	offset 4: type id  (u32)
//	offset 8: payload
//
// Address 0 is reserved and acts as the null object reference.
package heap
