// Package interpbridge provides a safety layer between Go and an embedded,
// dynamically typed, reference-counted object runtime.
//
// The runtime exposes a C-API-style object model: every object lives in a
// linear-memory heap behind a header of (refcount, type id), failures are
// signalled by a sentinel return value plus a pending-exception flag, and all
// mutation of shared runtime state happens under one global serialization
// lock. This library upholds those invariants on behalf of embedding code:
// reference counts are owned by handles, the lock is modeled as an explicit
// attach token, and Go values embedded inside runtime objects are guarded by
// runtime borrow checking.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	interpbridge/        Root package with core Memory and Allocator interfaces
//	├── interp/          The embedded object runtime: heap objects, type table,
//	│                    pending exceptions, global lock, cycle collector
//	├── heap/            Linear-memory heap backends (native and wazero-backed)
//	├── attach/          Access tokens proving the global lock is held
//	├── object/          Owned handles and token-scoped bound references
//	├── cell/            Borrow-checked storage for Go values embedded in
//	│                    runtime objects
//	├── extend/          Extension type registration: descriptors, slot tables,
//	│                    destroy/traverse/clear trampolines
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Create a runtime, attach, and work with objects:
//
//	rt, err := interp.New(interp.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	err = attach.With(rt, func(tok attach.Token) error {
//	    n, err := object.FromInt(tok, 42)
//	    if err != nil {
//	        return err
//	    }
//	    defer n.Drop()
//	    s, err := n.Bind(tok).Repr()
//	    fmt.Println(s) // "42"
//	    return err
//	})
//
// # Extension Types
//
// Go structs become runtime types through extend.Register. Instances embed
// the Go value directly in the runtime's heap allocation (via a rep slot into
// the runtime value store) and are subject to the runtime's own destruction
// and cycle-collection protocols.
//
// # Thread Safety
//
// Runtime state is guarded by the global lock. A Token must stay on the
// goroutine that acquired it. Owned handles may move between goroutines
// freely; dereferencing one requires a token. Token.Detach releases the lock
// so other goroutines can attach.
package interpbridge
