package object

import (
	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
)

// Bound is a token-scoped view of a value. It does not own a reference:
// it is valid only while the attachment that produced it lasts, and only
// on the goroutine holding the lock.
type Bound struct {
	tok attach.Token
	ref interp.Ref
}

// Token returns the attachment this view is scoped to.
func (b Bound) Token() attach.Token { return b.tok }

// Ref exposes the raw reference. The caller does not own it.
func (b Bound) Ref() interp.Ref { return b.ref }

// Owned upgrades the view to an owned handle, taking a new reference.
func (b Bound) Owned() Object {
	rt := b.tok.Runtime()
	rt.IncRef(b.ref)
	return Object{rt: rt, ref: b.ref}
}

// Type returns the value's dynamic type.
func (b Bound) Type() *interp.TypeObject {
	return b.tok.Runtime().TypeOf(b.ref)
}

// IsNone reports whether the value is the none singleton.
func (b Bound) IsNone() bool {
	return b.tok.Runtime().IsNone(b.ref)
}

// IsInstance reports whether the value's type is t or derived from it.
func (b Bound) IsInstance(t *interp.TypeObject) bool {
	return b.tok.Runtime().IsInstance(b.ref, t)
}

// failed converts a sentinel result into an error, consuming the pending
// exception exactly once. Every protocol method funnels through here.
func (b Bound) failed(detail string) error {
	if err := b.tok.RaisedAsError(errors.PhaseCall); err != nil {
		return err
	}
	return errors.NullPointer(errors.PhaseCall, detail)
}

// GetAttr looks up an attribute, returning an owned handle to it.
func (b Bound) GetAttr(name string) (Object, error) {
	ref := b.tok.Runtime().GetAttr(b.ref, name)
	if ref == 0 {
		return Object{}, b.failed("getattr " + name)
	}
	return Object{rt: b.tok.Runtime(), ref: ref}, nil
}

// SetAttr assigns an attribute.
func (b Bound) SetAttr(name string, v Object) error {
	if b.tok.Runtime().SetAttr(b.ref, name, v.ref) != 0 {
		return b.failed("setattr " + name)
	}
	return nil
}

// Call invokes the value as a callable.
func (b Bound) Call(args ...Object) (Object, error) {
	rt := b.tok.Runtime()
	ref := rt.Call(b.ref, refsOf(args))
	if ref == 0 {
		return Object{}, b.failed("call")
	}
	return Object{rt: rt, ref: ref}, nil
}

// CallMethod looks up and invokes a method in one step.
func (b Bound) CallMethod(name string, args ...Object) (Object, error) {
	rt := b.tok.Runtime()
	ref := rt.CallMethod(b.ref, name, refsOf(args))
	if ref == 0 {
		return Object{}, b.failed("call method " + name)
	}
	return Object{rt: rt, ref: ref}, nil
}

// Repr renders the value's debug representation as a Go string.
func (b Bound) Repr() (string, error) {
	rt := b.tok.Runtime()
	rep := rt.ReprOf(b.ref)
	if rep == 0 {
		return "", b.failed("repr")
	}
	s, _ := rt.AsStr(rep)
	rt.DecRef(rep)
	return s, nil
}

// Str renders the value for display: strings come back verbatim, anything
// else falls back to its repr.
func (b Bound) Str() (string, error) {
	rt := b.tok.Runtime()
	if s, ok := rt.AsStr(b.ref); ok {
		return s, nil
	}
	return b.Repr()
}

// Len returns the value's length.
func (b Bound) Len() (int, error) {
	n := b.tok.Runtime().LenOf(b.ref)
	if n < 0 {
		return 0, b.failed("len")
	}
	return n, nil
}

// GetItem indexes the value, returning an owned handle to the element.
func (b Bound) GetItem(key Object) (Object, error) {
	rt := b.tok.Runtime()
	ref := rt.GetItem(b.ref, key.ref)
	if ref == 0 {
		return Object{}, b.failed("getitem")
	}
	return Object{rt: rt, ref: ref}, nil
}

// SetItem assigns at an index or key.
func (b Bound) SetItem(key, v Object) error {
	if b.tok.Runtime().SetItem(b.ref, key.ref, v.ref) != 0 {
		return b.failed("setitem")
	}
	return nil
}

// IsTruthy evaluates the value's truth.
func (b Bound) IsTruthy() (bool, error) {
	switch b.tok.Runtime().IsTrue(b.ref) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, b.failed("truth")
	}
}

// Iter walks the value's elements in order, calling f with a borrowed view
// of each. Lists and tuples iterate positionally; dicts iterate their keys
// in sorted order. Iteration stops early if f returns an error.
func (b Bound) Iter(f func(Bound) error) error {
	rt := b.tok.Runtime()
	if items, ok := rt.ListItems(b.ref); ok {
		for _, e := range items {
			if err := f(Bound{tok: b.tok, ref: e}); err != nil {
				return err
			}
		}
		return nil
	}
	if keys, ok := rt.DictKeys(b.ref); ok {
		for _, k := range keys {
			kref := rt.NewStr(k)
			if kref == 0 {
				return b.failed("iter key")
			}
			err := f(Bound{tok: b.tok, ref: kref})
			rt.DecRef(kref)
			if err != nil {
				return err
			}
		}
		return nil
	}
	return errors.TypeMismatch(errors.PhaseCall, nil, "iterable", rt.TypeOf(b.ref).Name)
}

func refsOf(args []Object) []interp.Ref {
	if len(args) == 0 {
		return nil
	}
	refs := make([]interp.Ref, len(args))
	for i, a := range args {
		refs[i] = a.ref
	}
	return refs
}
