package object

import (
	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
)

// Object is an owned handle to a runtime value. It holds one strong
// reference until Drop is called. The zero Object is invalid.
type Object struct {
	rt  *interp.Runtime
	ref interp.Ref
}

// FromOwned takes ownership of a reference the runtime just handed out.
// A null ref means the producing operation failed; the pending exception,
// if any, is converted into the returned error.
func FromOwned(tok attach.Token, ref interp.Ref) (Object, error) {
	if ref == 0 {
		if err := tok.RaisedAsError(errors.PhaseConvert); err != nil {
			return Object{}, err
		}
		return Object{}, errors.NullPointer(errors.PhaseConvert, "null ref without pending exception")
	}
	return Object{rt: tok.Runtime(), ref: ref}, nil
}

// FromBorrowed makes an owned handle from a reference the caller does not
// own, incrementing the refcount.
func FromBorrowed(tok attach.Token, ref interp.Ref) (Object, error) {
	if ref == 0 {
		if err := tok.RaisedAsError(errors.PhaseConvert); err != nil {
			return Object{}, err
		}
		return Object{}, errors.NullPointer(errors.PhaseConvert, "null ref without pending exception")
	}
	tok.Runtime().IncRef(ref)
	return Object{rt: tok.Runtime(), ref: ref}, nil
}

// Valid reports whether the handle refers to a value.
func (o Object) Valid() bool { return o.ref != 0 }

// Ref exposes the raw reference. The caller does not own it.
func (o Object) Ref() interp.Ref { return o.ref }

// Runtime returns the owning runtime.
func (o Object) Runtime() *interp.Runtime { return o.rt }

// Clone returns a second owned handle to the same value.
func (o Object) Clone(tok attach.Token) Object {
	tok.Runtime().IncRef(o.ref)
	return o
}

// CloneDetached is Clone for callers that do not hold the lock. It attaches
// internally for the duration of the refcount bump.
func (o Object) CloneDetached() Object {
	o.rt.Run(func() {
		o.rt.IncRef(o.ref)
	})
	return o
}

// Drop releases the handle's reference. It attaches internally, which is
// reentrant, so Drop works both inside and outside an attachment. Dropping
// after the runtime finalized is a no-op: the heap is already gone.
func (o Object) Drop() {
	if o.ref == 0 || o.rt == nil || o.rt.Finalized() {
		return
	}
	o.rt.Run(func() {
		o.rt.DecRef(o.ref)
	})
}

// Is reports reference identity with another handle. Two handles are the
// same object only if they point at the same heap cell; value equality is
// a protocol concern, not an identity one.
func (o Object) Is(other Object) bool {
	return o.rt == other.rt && o.ref == other.ref
}

// Bind produces the token-scoped view that carries the protocol methods.
// Free: no refcount traffic.
func (o Object) Bind(tok attach.Token) Bound {
	return Bound{tok: tok, ref: o.ref}
}

// Downcast checks that the value's dynamic type is t or derived from it.
// On success the same handle is returned narrowed in meaning; on failure
// the handle comes back unchanged alongside a type mismatch error. Neither
// path touches the refcount.
func (o Object) Downcast(tok attach.Token, t *interp.TypeObject) (Object, error) {
	rt := tok.Runtime()
	actual := rt.TypeOf(o.ref)
	if actual != nil && actual.IsSubtypeOf(t) {
		return o, nil
	}
	name := "<unknown>"
	if actual != nil {
		name = actual.Name
	}
	return o, errors.TypeMismatch(errors.PhaseConvert, nil, t.Name, name)
}
