package interp

import (
	"fmt"
)

// Pending is the runtime's in-flight exception state: the exception type and
// a message. While set, no entry points other than the exception accessors
// may be called.
type Pending struct {
	Type *TypeObject
	Msg  string
}

// Raise sets the pending exception. An already-pending exception is
// replaced; the replaced state is lost, matching the modeled C API.
func (r *Runtime) Raise(t *TypeObject, format string, args ...any) {
	r.assertAttached()
	if t == nil {
		t = r.ExcRuntime
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	r.pending = &Pending{Type: t, Msg: msg}
}

// Occurred returns the pending exception without clearing it, or nil.
func (r *Runtime) Occurred() *Pending {
	return r.pending
}

// FetchRaised returns and clears the pending exception. The single
// sanctioned way to consume the flag.
func (r *Runtime) FetchRaised() *Pending {
	p := r.pending
	r.pending = nil
	return p
}

// ClearRaised discards the pending exception.
func (r *Runtime) ClearRaised() {
	r.pending = nil
}

// RaisedMatches reports whether an exception is pending and its type is t or
// derived from t.
func (r *Runtime) RaisedMatches(t *TypeObject) bool {
	return r.pending != nil && r.pending.Type.IsSubtypeOf(t)
}

func (r *Runtime) initExceptions() {
	r.ExcBase = r.newType("Exception", kindException, nil)
	r.ExcType = r.newType("TypeError", kindException, r.ExcBase)
	r.ExcValue = r.newType("ValueError", kindException, r.ExcBase)
	r.ExcAttribute = r.newType("AttributeError", kindException, r.ExcBase)
	r.ExcKey = r.newType("KeyError", kindException, r.ExcBase)
	r.ExcIndex = r.newType("IndexError", kindException, r.ExcBase)
	r.ExcRuntime = r.newType("RuntimeError", kindException, r.ExcBase)
	r.ExcMemory = r.newType("MemoryError", kindException, r.ExcBase)
	r.ExcOverflow = r.newType("OverflowError", kindException, r.ExcBase)
	r.ExcInterrupt = r.newType("Interrupted", kindException, r.ExcBase)
}
