// Package attach controls entry to the interpreter runtime.
//
// Every call into the runtime requires the global runtime lock. A Token is
// proof on the type level that the calling goroutine holds it: APIs that
// touch runtime state take a Token parameter, so code that never attached
// cannot compile a call to them.
//
// With acquires the lock, runs a closure with a Token, and releases the lock
// when the closure returns. Acquisition is reentrant on the same goroutine,
// so helper functions may call With again without deadlocking. Token.Detach
// temporarily releases the lock around long-running pure Go work so other
// goroutines can attach in the meantime.
//
// Tokens are values tied to the dynamic extent of their With call. Do not
// store a Token or pass it to another goroutine; it is only meaningful on
// the goroutine that attached.
package attach
