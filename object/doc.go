// Package object provides safe handles to runtime values.
//
// Two handle forms exist. Object is an owned handle: it holds one strong
// reference and stays valid across attachments, so it can be stored in Go
// structs and passed between goroutines. Bound is a token-scoped view of an
// Object: it is only valid while the goroutine that produced it holds the
// runtime lock, and it is where all protocol operations (attribute access,
// calls, items, repr) live.
//
// Protocol operations translate the runtime's calling convention into Go's.
// Inside the runtime a failed slot returns a sentinel and leaves an
// exception pending; Bound methods fetch that pending state exactly once
// and surface it as an *errors.Error, so callers never observe a sentinel
// or stale raised state.
//
// Dropping an owned handle requires the runtime lock. Drop attaches
// internally, which is reentrant, so it is safe to call both inside and
// outside an attachment.
package object
