// Package interp implements the embedded object runtime the bridge binds to:
// a dynamically typed, reference-counted object model living in a linear
// memory heap.
//
// The package deliberately mirrors a C interpreter API, because everything
// above it (attach, object, cell, extend) is specified against that shape:
//
//   - Objects are u32 heap addresses (Ref). 0 is the null reference.
//   - Every object starts with a (refcount, type id) header.
//   - Protocol entry points return the null Ref (or -1 for int-returning
//     slots) on failure, with the runtime's pending-exception state set.
//     Callers must fetch-and-clear that state exactly once.
//   - Reference counts are not atomic; they are only touched while the
//     runtime's global lock is held.
//
// Variable-sized payloads (strings, list and dict state, embedded extension
// values) live in a per-runtime value store, addressed from the heap payload
// by a u32 rep word.
//
// The global lock is reentrant per goroutine: a goroutine already attached
// may re-enter Run without deadlocking, which is what makes call-ins from
// runtime slots back into Go safe. Goroutine attachment is tracked with gls.
//
// Cycle collection is a stop-the-world mark pass over tracked containers and
// extension instances, driven entirely by type traverse/clear slots. Those
// slots run without any attach machinery and must never unwind.
package interp
