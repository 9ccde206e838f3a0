package interp

import (
	"fmt"
)

// Ref is a heap address of an object header. 0 is the null reference, the
// failure sentinel of every Ref-returning entry point.
type Ref uint32

// Visit is the cycle collector's visitor. Returning nonzero aborts the
// traversal and is propagated out of the traverse slot unchanged.
type Visit func(child Ref) int

// Slot function signatures. These follow the C calling convention of the
// modeled runtime: Ref-returning slots report failure as 0 with the pending
// exception set, int-returning slots report failure as -1.
type (
	SlotDestroy  func(rt *Runtime, self Ref)
	SlotTraverse func(rt *Runtime, self Ref, visit Visit) int
	SlotClear    func(rt *Runtime, self Ref)
	SlotCall     func(rt *Runtime, self Ref, args []Ref) Ref
	SlotNew      func(rt *Runtime, t *TypeObject, args []Ref) Ref
	SlotGetAttr  func(rt *Runtime, self Ref, name string) Ref
	SlotSetAttr  func(rt *Runtime, self Ref, name string, v Ref) int
	SlotRepr     func(rt *Runtime, self Ref) Ref
	SlotLen      func(rt *Runtime, self Ref) int
	SlotGetItem  func(rt *Runtime, self Ref, key Ref) Ref
	SlotSetItem  func(rt *Runtime, self Ref, key, v Ref) int
)

// BuiltinFn is the Go implementation of a runtime-callable function. self is
// the bound receiver, or the null Ref for free functions. Arguments are
// borrowed; the result is a new reference (or 0 with an exception pending).
type BuiltinFn func(rt *Runtime, self Ref, args []Ref) Ref

// TypeObject is per-type metadata: identity, single-inheritance base link,
// instance layout, the slot table, and named methods. Type objects live for
// the process; they are registered once and never destroyed.
type TypeObject struct {
	Name string
	Base *TypeObject

	// InstanceSize is the payload size (excluding header) of instances, or
	// 0 for types that cannot be instantiated directly.
	InstanceSize uint32

	// Tracked marks instances for cycle collection.
	Tracked bool

	Destroy  SlotDestroy
	Traverse SlotTraverse
	Clear    SlotClear
	Call     SlotCall
	New      SlotNew
	GetAttr  SlotGetAttr
	SetAttr  SlotSetAttr
	Repr     SlotRepr
	Len      SlotLen
	GetItem  SlotGetItem
	SetItem  SlotSetItem

	Methods map[string]BuiltinFn

	id   uint32
	kind kind
}

type kind uint8

const (
	kindNone kind = iota
	kindBool
	kindInt
	kindFloat
	kindStr
	kindList
	kindTuple
	kindDict
	kindBuiltin
	kindType
	kindExtension
	kindException
)

// ID returns the type's id in its runtime's type table.
func (t *TypeObject) ID() uint32 { return t.id }

// IsSubtypeOf walks the single-inheritance chain.
func (t *TypeObject) IsSubtypeOf(other *TypeObject) bool {
	for c := t; c != nil; c = c.Base {
		if c == other {
			return true
		}
	}
	return false
}

// lookupMethod resolves a method through the inheritance chain.
func (t *TypeObject) lookupMethod(name string) (BuiltinFn, bool) {
	for c := t; c != nil; c = c.Base {
		if fn, ok := c.Methods[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// RegisterType adds a type object to the runtime's type table and assigns
// its id. Registering the same type twice is an error.
func (r *Runtime) RegisterType(t *TypeObject) error {
	if t.id != 0 {
		return fmt.Errorf("type %q already registered", t.Name)
	}
	if t.kind == kindNone && len(r.types) > 0 {
		// Types registered after init are extension types unless the
		// runtime itself marked them otherwise.
		t.kind = kindExtension
	}
	r.types = append(r.types, t)
	t.id = uint32(len(r.types)) // ids start at 1; id 0 is invalid
	return nil
}

// TypeByID resolves a type id to its type object.
func (r *Runtime) TypeByID(id uint32) (*TypeObject, bool) {
	if id == 0 || int(id) > len(r.types) {
		return nil, false
	}
	return r.types[id-1], true
}

// TypeByName resolves a registered type by name.
func (r *Runtime) TypeByName(name string) (*TypeObject, bool) {
	for _, t := range r.types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func (r *Runtime) newType(name string, k kind, base *TypeObject) *TypeObject {
	t := &TypeObject{Name: name, Base: base, kind: k}
	if err := r.RegisterType(t); err != nil {
		panic(err)
	}
	return t
}
