// Package cell implements runtime borrow checking for Go values embedded
// in heap objects.
//
// An extension instance stores its Go value in the runtime's value store
// and keeps the store index (the rep word) in its heap payload. Mutable
// instances additionally carry a borrow flag word ahead of the rep words.
// The flag holds 0 when unborrowed, the shared reader count while read
// borrows are out, and the all-ones pattern while a write borrow is out.
//
// Frozen types have no flag word at all: their layout omits it, shared
// access is always granted, and write borrows always fail. A cleared
// instance (rep word nulled by the cycle collector) refuses all borrows
// with a typed error instead of handing out a dangling value.
//
// Borrow state lives in heap memory, not in Go, so it survives round trips
// through the runtime and is visible to every handle pointing at the same
// instance. All operations require the caller to hold the runtime lock.
package cell
