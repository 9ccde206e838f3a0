package extend

import (
	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

// Handle is an owned handle to an instance known to carry a T layer.
type Handle[T any] struct {
	obj object.Object
	d   *descriptor
}

// New allocates an instance of T's registered type embedding v. For types
// with bases, base-layer values may be supplied base-first; omitted layers
// are zero-initialized.
func New[T any](tok attach.Token, v *T, bases ...any) (Handle[T], error) {
	d := descriptorFor(GoTypeOf[T]())
	if d == nil {
		return Handle[T]{}, errors.NotFound(errors.PhaseAlloc, "extension type", GoTypeOf[T]().String())
	}
	if v == nil {
		return Handle[T]{}, errors.NullPointer(errors.PhaseAlloc, "nil value for "+d.name)
	}
	rt := tok.Runtime()
	ref, err := d.newInstance(rt, v, bases)
	if err != nil {
		return Handle[T]{}, err
	}
	obj, err := object.FromOwned(tok, ref)
	if err != nil {
		return Handle[T]{}, err
	}
	return Handle[T]{obj: obj, d: d}, nil
}

// Cast checks that o's instance carries a T layer and returns a typed
// handle sharing ownership with a fresh reference. o itself is untouched
// either way.
func Cast[T any](tok attach.Token, o object.Object) (Handle[T], error) {
	d := descriptorFor(GoTypeOf[T]())
	if d == nil {
		return Handle[T]{}, errors.NotFound(errors.PhaseConvert, "extension type", GoTypeOf[T]().String())
	}
	rt := tok.Runtime()
	dyn := descriptorOfBound(rt.TypeOf(o.Ref()))
	if dyn == nil {
		return Handle[T]{}, errors.TypeMismatch(errors.PhaseConvert, nil, d.name, rt.TypeOf(o.Ref()).Name)
	}
	if _, ok := dyn.layerIndex(d); !ok {
		return Handle[T]{}, errors.TypeMismatch(errors.PhaseConvert, nil, d.name, dyn.name)
	}
	return Handle[T]{obj: o.Clone(tok), d: d}, nil
}

// BoundType returns the runtime type object for T, binding it on first use.
func BoundType[T any](tok attach.Token) (*interp.TypeObject, error) {
	d := descriptorFor(GoTypeOf[T]())
	if d == nil {
		return nil, errors.NotFound(errors.PhaseRegister, "extension type", GoTypeOf[T]().String())
	}
	return d.bind(tok.Runtime())
}

// Object returns the untyped owned handle. Ownership stays with h.
func (h Handle[T]) Object() object.Object { return h.obj }

// Bind produces the token-scoped protocol view.
func (h Handle[T]) Bind(tok attach.Token) object.Bound { return h.obj.Bind(tok) }

// Drop releases the handle's reference.
func (h Handle[T]) Drop() { h.obj.Drop() }

// Clone returns a second owned handle.
func (h Handle[T]) Clone(tok attach.Token) Handle[T] {
	return Handle[T]{obj: h.obj.Clone(tok), d: h.d}
}

// Guard is an outstanding shared borrow of the embedded T.
type Guard[T any] struct {
	v       *T
	release func()
}

// Value returns the borrowed value. Do not retain it past Release.
func (g Guard[T]) Value() *T { return g.v }

// Release returns the borrow. Safe to call twice.
func (g Guard[T]) Release() { g.release() }

// GuardMut is the outstanding write borrow of the embedded T.
type GuardMut[T any] struct {
	v       *T
	release func()
}

// Value returns the borrowed value. Do not retain it past Release.
func (g GuardMut[T]) Value() *T { return g.v }

// Release returns the borrow. Safe to call twice.
func (g GuardMut[T]) Release() { g.release() }

// TryBorrow takes a shared borrow of the T layer.
func (h Handle[T]) TryBorrow(tok attach.Token) (Guard[T], error) {
	v, release, err := h.d.borrowSelf(tok.Runtime(), h.obj.Ref(), false)
	if err != nil {
		return Guard[T]{}, err
	}
	return Guard[T]{v: v.(*T), release: release}, nil
}

// TryBorrowMut takes the write borrow of the T layer. Fails on frozen
// types and while any other borrow is out.
func (h Handle[T]) TryBorrowMut(tok attach.Token) (GuardMut[T], error) {
	v, release, err := h.d.borrowSelf(tok.Runtime(), h.obj.Ref(), true)
	if err != nil {
		return GuardMut[T]{}, err
	}
	return GuardMut[T]{v: v.(*T), release: release}, nil
}

// Borrow is TryBorrow for callers that treat a conflict as a logic bug.
func (h Handle[T]) Borrow(tok attach.Token) Guard[T] {
	g, err := h.TryBorrow(tok)
	if err != nil {
		panic(err)
	}
	return g
}

// BorrowMut is TryBorrowMut for callers that treat a conflict as a logic bug.
func (h Handle[T]) BorrowMut(tok attach.Token) GuardMut[T] {
	g, err := h.TryBorrowMut(tok)
	if err != nil {
		panic(err)
	}
	return g
}
