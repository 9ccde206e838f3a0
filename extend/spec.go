package extend

import (
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

// Method is a method implementation on extension type T. self is borrowed
// for the duration of the call; args are borrowed handles owned by the
// trampoline. Returning the zero Object with a nil error yields none.
type Method[T any] func(tok attach.Token, self *T, args []object.Object) (object.Object, error)

// TypeSpec describes an extension type for Register.
type TypeSpec[T any] struct {
	// Name is the runtime-visible type name. Required, unique per process.
	Name string

	// Base is the Go type of the single base class, as produced by
	// GoTypeOf. The base must already be registered. Zero means no base.
	Base reflect.Type

	// Frozen forbids write borrows of this layer. A chain whose layers
	// are all frozen carries no borrow flag at all.
	Frozen bool

	// Init is the constructor invoked when the reified type object is
	// called. Optional; without it the type cannot be instantiated from
	// inside the runtime, only through New.
	Init func(tok attach.Token, args []object.Object) (*T, error)

	// Methods take a shared borrow of self. MethodsMut take the write
	// borrow; they cannot be declared on frozen types.
	Methods    map[string]Method[T]
	MethodsMut map[string]Method[T]
}

// GoTypeOf names a registered Go type for TypeSpec.Base.
func GoTypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Dropper is torn down explicitly when its instance is destroyed, before
// the heap allocation is released.
type Dropper interface {
	Drop()
}

// Callable makes instances callable.
type Callable interface {
	Call(tok attach.Token, args []object.Object) (object.Object, error)
}

// Representable overrides the default repr.
type Representable interface {
	Repr() string
}

// Sized gives instances a length, which also drives truth testing.
type Sized interface {
	Len() int
}

// Indexable serves item reads. Reads take a shared borrow.
type Indexable interface {
	GetIndex(tok attach.Token, key object.Object) (object.Object, error)
}

// IndexWriter serves item writes. Writes take the write borrow.
type IndexWriter interface {
	SetIndex(tok attach.Token, key, v object.Object) error
}

// AttrResolver serves attribute reads before the method table is searched.
// Returning handled == false declines the name without raising, letting
// resolution continue into the methods.
type AttrResolver interface {
	ResolveAttr(tok attach.Token, name string) (v object.Object, handled bool, err error)
}

// AttrWriter serves attribute writes, under the write borrow.
type AttrWriter interface {
	StoreAttr(tok attach.Token, name string, v object.Object) error
}

// Comparable surfaces value equality as an "equals" method on the type.
type Comparable interface {
	Equals(other any) bool
}

// PanicPolicy selects what happens when a method, callback, or teardown
// hook panics inside a runtime slot.
type PanicPolicy int32

const (
	// PanicLog recovers the panic, logs it, and raises a runtime error
	// into the interpreter where an exception makes sense.
	PanicLog PanicPolicy = iota

	// PanicAbort recovers the panic and terminates the process. State
	// shared with the runtime may be arbitrarily corrupted after a
	// half-completed slot, so crashing can be the safer default.
	PanicAbort
)

var panicPolicy atomic.Int32

// SetPanicPolicy installs the process-wide slot panic policy.
func SetPanicPolicy(p PanicPolicy) {
	panicPolicy.Store(int32(p))
}

// handlePanic is deferred inside every trampoline.
func handlePanic(op string, recovered any) {
	if recovered == nil {
		return
	}
	if PanicPolicy(panicPolicy.Load()) == PanicAbort {
		interp.Logger().Fatal("panic in extension slot",
			zap.String("op", op),
			zap.Any("panic", recovered))
	}
	interp.Logger().Error("panic in extension slot suppressed",
		zap.String("op", op),
		zap.Any("panic", recovered))
}
