package extend

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/cell"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/heap"
	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

// erased method and constructor forms; the generic shells in Register close
// over the concrete T and hand these to the descriptor.
type (
	methodFn func(tok attach.Token, self any, args []object.Object) (object.Object, error)
	initFn   func(tok attach.Token, args []object.Object) (any, error)
)

// descriptor is the process-lifetime record of one extension type: its
// identity, inheritance chain, computed instance layout, and erased
// behavior. Descriptors are immutable after Register except for the
// per-runtime binding cache.
type descriptor struct {
	name   string
	goType reflect.Type
	base   *descriptor
	frozen bool

	chain   []*descriptor // base-first, self last
	flagOff int32         // cell.FrozenFlag when the whole chain is frozen
	repOffs []uint32      // one per chain layer, same order
	size    uint32        // payload bytes, excluding the object header

	init       initFn
	methods    map[string]methodFn
	methodsMut map[string]methodFn

	// capability bits, probed once at registration
	callable, representable, sized   bool
	indexable, indexWriter           bool
	attrResolver, attrWriter, equals bool

	mu       sync.Mutex
	bindings map[*interp.Runtime]*interp.TypeObject
}

var registry = struct {
	sync.RWMutex
	byType  map[reflect.Type]*descriptor
	byName  map[string]*descriptor
	byBound map[*interp.TypeObject]*descriptor
}{
	byType:  make(map[reflect.Type]*descriptor),
	byName:  make(map[string]*descriptor),
	byBound: make(map[*interp.TypeObject]*descriptor),
}

// Register records an extension type. It validates eagerly: duplicate
// names or Go types, missing or unregistered bases, and mutable methods on
// frozen types all fail here rather than at first use.
func Register[T any](spec TypeSpec[T]) error {
	goType := GoTypeOf[T]()
	if spec.Name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "type name is required")
	}
	if goType.Kind() != reflect.Struct {
		return errors.InvalidInput(errors.PhaseRegister,
			fmt.Sprintf("extension type %s must be a struct, not %s", spec.Name, goType.Kind()))
	}
	if spec.Frozen && len(spec.MethodsMut) > 0 {
		return errors.InvalidBase(spec.Name, "frozen type declares mutating methods")
	}

	registry.Lock()
	defer registry.Unlock()

	if _, dup := registry.byName[spec.Name]; dup {
		return errors.AlreadyRegistered(spec.Name)
	}
	if _, dup := registry.byType[goType]; dup {
		return errors.AlreadyRegistered(goType.String())
	}

	var base *descriptor
	if spec.Base != nil {
		base = registry.byType[spec.Base]
		if base == nil {
			return errors.InvalidBase(spec.Name, "base "+spec.Base.String()+" is not a registered extension type")
		}
	}

	d := &descriptor{
		name:       spec.Name,
		goType:     goType,
		base:       base,
		frozen:     spec.Frozen,
		methods:    make(map[string]methodFn, len(spec.Methods)),
		methodsMut: make(map[string]methodFn, len(spec.MethodsMut)),
		bindings:   make(map[*interp.Runtime]*interp.TypeObject),
	}
	if spec.Init != nil {
		init := spec.Init
		d.init = func(tok attach.Token, args []object.Object) (any, error) {
			return init(tok, args)
		}
	}
	for name, m := range spec.Methods {
		m := m
		d.methods[name] = func(tok attach.Token, self any, args []object.Object) (object.Object, error) {
			return m(tok, self.(*T), args)
		}
	}
	for name, m := range spec.MethodsMut {
		if _, dup := d.methods[name]; dup {
			return errors.AlreadyRegistered(spec.Name + "." + name)
		}
		m := m
		d.methodsMut[name] = func(tok attach.Token, self any, args []object.Object) (object.Object, error) {
			return m(tok, self.(*T), args)
		}
	}

	var probe *T
	_, d.callable = any(probe).(Callable)
	_, d.representable = any(probe).(Representable)
	_, d.sized = any(probe).(Sized)
	_, d.indexable = any(probe).(Indexable)
	_, d.indexWriter = any(probe).(IndexWriter)
	_, d.attrResolver = any(probe).(AttrResolver)
	_, d.attrWriter = any(probe).(AttrWriter)
	_, d.equals = any(probe).(Comparable)

	d.computeLayout()

	registry.byType[goType] = d
	registry.byName[spec.Name] = d
	return nil
}

// computeLayout fixes the instance layout: an optional borrow flag word
// directly after the header, then one rep word per layer, base layers
// strictly first.
func (d *descriptor) computeLayout() {
	if d.base != nil {
		d.chain = append(d.chain, d.base.chain...)
	}
	d.chain = append(d.chain, d)

	mutable := false
	for _, layer := range d.chain {
		if !layer.frozen {
			mutable = true
		}
	}

	off := uint32(heap.HeaderSize)
	if mutable {
		d.flagOff = int32(off)
		off += 4
	} else {
		d.flagOff = cell.FrozenFlag
	}
	d.repOffs = make([]uint32, 0, len(d.chain))
	for range d.chain {
		d.repOffs = append(d.repOffs, off)
		off += 4
	}
	d.size = off - heap.HeaderSize
}

// layerIndex finds where target sits in d's chain. Second result is false
// when target is not an ancestor-or-self of d.
func (d *descriptor) layerIndex(target *descriptor) (int, bool) {
	for i, layer := range d.chain {
		if layer == target {
			return i, true
		}
	}
	return 0, false
}

func descriptorFor(goType reflect.Type) *descriptor {
	registry.RLock()
	defer registry.RUnlock()
	return registry.byType[goType]
}

// descriptorOfBound resolves the descriptor behind a runtime type object,
// walking up the runtime inheritance chain past non-extension types.
func descriptorOfBound(t *interp.TypeObject) *descriptor {
	registry.RLock()
	defer registry.RUnlock()
	for ; t != nil; t = t.Base {
		if d, ok := registry.byBound[t]; ok {
			return d
		}
	}
	return nil
}

// resetRegistry drops every registered descriptor. Tests only.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byType = make(map[reflect.Type]*descriptor)
	registry.byName = make(map[string]*descriptor)
	registry.byBound = make(map[*interp.TypeObject]*descriptor)
}
