package interp

import (
	"fmt"
)

// Protocol entry points. All follow the C convention: Ref-returning calls
// yield 0 on failure, int-returning calls yield -1, and in both cases the
// pending exception is set. All require attachment.

// GetAttr resolves an attribute on self, returning a new reference. Custom
// getattr slots run first; otherwise the type's method table is searched
// through the inheritance chain and a bound method is returned.
func (r *Runtime) GetAttr(self Ref, name string) Ref {
	r.assertAttached()
	t := r.TypeOf(self)
	if t.GetAttr != nil {
		if v := t.GetAttr(r, self, name); v != 0 || r.Occurred() != nil {
			return v
		}
		// Slot declined without raising: fall through to methods.
	}
	if fn, ok := t.lookupMethod(name); ok {
		return r.BindMethod(name, fn, self)
	}
	r.Raise(r.ExcAttribute, "%s object has no attribute %q", t.Name, name)
	return 0
}

// SetAttr assigns an attribute on self.
func (r *Runtime) SetAttr(self Ref, name string, v Ref) int {
	r.assertAttached()
	t := r.TypeOf(self)
	if t.SetAttr != nil {
		return t.SetAttr(r, self, name, v)
	}
	r.Raise(r.ExcAttribute, "%s object does not support attribute assignment", t.Name)
	return -1
}

// Call invokes a callable with borrowed arguments, returning a new
// reference. Callables: builtin functions, reified types (constructors),
// and extension instances whose type has a call slot.
func (r *Runtime) Call(callable Ref, args []Ref) Ref {
	r.assertAttached()
	t := r.TypeOf(callable)
	if t.Call == nil {
		r.Raise(r.ExcType, "%s object is not callable", t.Name)
		return 0
	}
	return t.Call(r, callable, args)
}

// CallMethod resolves and invokes a named attribute in one step.
func (r *Runtime) CallMethod(self Ref, name string, args []Ref) Ref {
	fn := r.GetAttr(self, name)
	if fn == 0 {
		return 0
	}
	out := r.Call(fn, args)
	r.DecRef(fn)
	return out
}

// ReprOf produces the debug representation as a new str reference.
func (r *Runtime) ReprOf(self Ref) Ref {
	r.assertAttached()
	t := r.TypeOf(self)
	if t.Repr != nil {
		return t.Repr(r, self)
	}
	return r.NewStr(fmt.Sprintf("<%s at %d>", t.Name, self))
}

// LenOf returns the length of a sized object, or -1 with a TypeError.
func (r *Runtime) LenOf(self Ref) int {
	r.assertAttached()
	t := r.TypeOf(self)
	if t.Len == nil {
		r.Raise(r.ExcType, "%s object has no length", t.Name)
		return -1
	}
	return t.Len(r, self)
}

// GetItem indexes self with a borrowed key, returning a new reference.
func (r *Runtime) GetItem(self Ref, key Ref) Ref {
	r.assertAttached()
	t := r.TypeOf(self)
	if t.GetItem == nil {
		r.Raise(r.ExcType, "%s object is not subscriptable", t.Name)
		return 0
	}
	return t.GetItem(r, self, key)
}

// SetItem assigns self[key] = v with borrowed arguments.
func (r *Runtime) SetItem(self Ref, key, v Ref) int {
	r.assertAttached()
	t := r.TypeOf(self)
	if t.SetItem == nil {
		r.Raise(r.ExcType, "%s object does not support item assignment", t.Name)
		return -1
	}
	return t.SetItem(r, self, key, v)
}

// IsTrue evaluates truthiness: 1, 0, or -1 with an exception pending.
func (r *Runtime) IsTrue(self Ref) int {
	r.assertAttached()
	switch self {
	case r.noneRef, r.falseRef:
		return 0
	case r.trueRef:
		return 1
	}
	t := r.TypeOf(self)
	switch {
	case t == r.TypeInt:
		v, _ := r.AsInt(self)
		if v != 0 {
			return 1
		}
		return 0
	case t == r.TypeFloat:
		v, _ := r.AsFloat(self)
		if v != 0 {
			return 1
		}
		return 0
	case t.Len != nil:
		n := t.Len(r, self)
		if n < 0 {
			return -1
		}
		if n > 0 {
			return 1
		}
		return 0
	}
	return 1
}

// IsInstance reports whether self's dynamic type is t or derived from t.
func (r *Runtime) IsInstance(self Ref, t *TypeObject) bool {
	r.assertAttached()
	return r.TypeOf(self).IsSubtypeOf(t)
}
