// Package extend turns Go structs into runtime extension types.
//
// Register describes a struct once per process: name, optional single base
// type, frozen flag, constructor, and methods. Registration produces a
// descriptor with a fixed instance layout; the descriptor is then bound to
// each runtime the type is used with, producing the runtime's type table
// entry and its slot implementations.
//
// Instances embed the Go value in the runtime's value store, one store slot
// per inheritance layer, base layers first. Mutable chains reserve a single
// borrow flag word ahead of the layer slots; fully frozen chains omit it.
// Access to the embedded value goes through borrow guards typed as *T, so
// aliasing rules are enforced at runtime the same way for every caller.
//
// Slot implementations are trampolines: they translate the runtime's
// sentinel-and-pending-exception convention to Go errors on the way out and
// back on the way in, and they never let a panic unwind into the runtime.
// A panicking method or callback is either logged and suppressed or aborts
// the process, depending on SetPanicPolicy.
package extend
