package extend

import (
	"fmt"
	"reflect"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/cell"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

func readWord(rt *interp.Runtime, ref interp.Ref, off uint32) uint32 {
	v, err := rt.Mem().ReadU32(uint32(ref) + off)
	if err != nil {
		panic(fmt.Sprintf("extend: heap read at ref %d offset %d: %v", ref, off, err))
	}
	return v
}

func writeWord(rt *interp.Runtime, ref interp.Ref, off, v uint32) {
	if err := rt.Mem().WriteU32(uint32(ref)+off, v); err != nil {
		panic(fmt.Sprintf("extend: heap write at ref %d offset %d: %v", ref, off, err))
	}
}

// bind materializes the descriptor in rt's type table, once per runtime.
// Bases bind before their subclasses. The caller must be attached.
func (d *descriptor) bind(rt *interp.Runtime) (*interp.TypeObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.bindings[rt]; ok {
		return t, nil
	}

	var baseTO *interp.TypeObject
	if d.base != nil {
		var err error
		if baseTO, err = d.base.bind(rt); err != nil {
			return nil, err
		}
	}

	to := &interp.TypeObject{
		Name:         d.name,
		Base:         baseTO,
		InstanceSize: d.size,
		Tracked:      true,
		Destroy:      d.destroySlot(),
		Traverse:     d.traverseSlot(),
		Clear:        d.clearSlot(),
	}
	if d.callable {
		to.Call = d.callSlot()
	}
	if d.representable {
		to.Repr = d.reprSlot()
	}
	if d.sized {
		to.Len = d.lenSlot()
	}
	if d.indexable {
		to.GetItem = d.getItemSlot()
	}
	if d.indexWriter {
		to.SetItem = d.setItemSlot()
	}
	if d.attrResolver {
		to.GetAttr = d.getAttrSlot()
	}
	if d.attrWriter {
		to.SetAttr = d.setAttrSlot()
	}
	if d.init != nil {
		to.New = d.newSlot()
	}

	to.Methods = make(map[string]interp.BuiltinFn, len(d.methods)+len(d.methodsMut)+1)
	for name, fn := range d.methods {
		to.Methods[name] = d.methodSlot(name, fn, false)
	}
	for name, fn := range d.methodsMut {
		to.Methods[name] = d.methodSlot(name, fn, true)
	}
	if d.equals {
		to.Methods["equals"] = d.equalsSlot()
	}

	if err := rt.RegisterType(to); err != nil {
		return nil, err
	}
	registry.Lock()
	registry.byBound[to] = d
	registry.Unlock()
	d.bindings[rt] = to
	return to, nil
}

// boundID returns the type id of this descriptor's binding in rt. Only
// valid once an instance exists, which implies bind already ran.
func (d *descriptor) boundID(rt *interp.Runtime) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.bindings[rt]; ok {
		return t.ID()
	}
	return 0
}

// layerCell builds the cell view of d's layer inside instance self, whose
// dynamic layout comes from dyn.
func (d *descriptor) layerCell(rt *interp.Runtime, dyn *descriptor, self interp.Ref) (cell.Cell, error) {
	idx, ok := dyn.layerIndex(d)
	if !ok {
		return cell.Cell{}, errors.TypeMismatch(errors.PhaseBorrow, nil, d.name, dyn.name)
	}
	return cell.New(rt, self, d.name, d.boundID(rt), dyn.flagOff, dyn.repOffs[idx]), nil
}

// borrowSelf takes the borrow for a slot invocation on self.
func (d *descriptor) borrowSelf(rt *interp.Runtime, self interp.Ref, mut bool) (any, func(), error) {
	dyn := descriptorOfBound(rt.TypeOf(self))
	if dyn == nil {
		return nil, nil, errors.TypeMismatch(errors.PhaseBorrow, nil, d.name, rt.TypeOf(self).Name)
	}
	c, err := d.layerCell(rt, dyn, self)
	if err != nil {
		return nil, nil, err
	}
	if mut {
		if d.frozen {
			return nil, nil, errors.Frozen(errors.PhaseBorrow, d.name)
		}
		g, err := c.TryBorrowMut()
		if err != nil {
			return nil, nil, err
		}
		return g.Value(), g.Release, nil
	}
	g, err := c.TryBorrow()
	if err != nil {
		return nil, nil, err
	}
	return g.Value(), g.Release, nil
}

// wrapArgs converts borrowed slot arguments into owned handles for the
// duration of the call.
func wrapArgs(tok attach.Token, args []interp.Ref) ([]object.Object, func(), error) {
	objs := make([]object.Object, 0, len(args))
	release := func() {
		for _, o := range objs {
			o.Drop()
		}
	}
	for _, a := range args {
		o, err := object.FromBorrowed(tok, a)
		if err != nil {
			release()
			return nil, nil, err
		}
		objs = append(objs, o)
	}
	return objs, release, nil
}

// resultRef hands a method result to the runtime: the handle's reference
// transfers out, and an invalid handle stands for none.
func resultRef(rt *interp.Runtime, res object.Object) interp.Ref {
	if !res.Valid() {
		return rt.NewNone()
	}
	return res.Ref()
}

// raiseGoError translates a Go error into pending-exception state. Errors
// that carry an exception type name re-raise as that type when the runtime
// knows it; everything else becomes a runtime error.
func raiseGoError(rt *interp.Runtime, err error) {
	var e *errors.Error
	if errors.As(err, &e) && e.Exc != "" {
		if t, ok := rt.TypeByName(e.Exc); ok {
			rt.Raise(t, "%s", e.Detail)
			return
		}
	}
	rt.Raise(rt.ExcRuntime, "%s", err.Error())
}

func (d *descriptor) methodSlot(name string, fn methodFn, mut bool) interp.BuiltinFn {
	op := d.name + "." + name
	return func(rt *interp.Runtime, self interp.Ref, args []interp.Ref) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(op, r)
				rt.Raise(rt.ExcRuntime, "panic in %s", op)
				out = 0
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		v, release, err := d.borrowSelf(rt, self, mut)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer release()
		objs, releaseArgs, err := wrapArgs(tok, args)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer releaseArgs()
		res, err := fn(tok, v, objs)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		return resultRef(rt, res)
	}
}

func (d *descriptor) equalsSlot() interp.BuiltinFn {
	op := d.name + ".equals"
	return func(rt *interp.Runtime, self interp.Ref, args []interp.Ref) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(op, r)
				rt.Raise(rt.ExcRuntime, "panic in %s", op)
				out = 0
			}
		}()
		if len(args) != 1 {
			rt.Raise(rt.ExcType, "equals expects 1 argument, got %d", len(args))
			return 0
		}
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		v, release, err := d.borrowSelf(rt, self, false)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer release()

		// Same extension layer on the other side: compare Go values.
		// Anything else: hand the method the raw handle.
		var other any
		if od := descriptorOfBound(rt.TypeOf(args[0])); od != nil {
			if c, err := d.layerCell(rt, od, args[0]); err == nil {
				g, err := c.TryBorrow()
				if err != nil {
					raiseGoError(rt, err)
					return 0
				}
				defer g.Release()
				other = g.Value()
			}
		}
		if other == nil {
			o, err := object.FromBorrowed(tok, args[0])
			if err != nil {
				raiseGoError(rt, err)
				return 0
			}
			defer o.Drop()
			other = o
		}
		return rt.NewBool(v.(Comparable).Equals(other))
	}
}

func (d *descriptor) destroySlot() interp.SlotDestroy {
	return func(rt *interp.Runtime, self interp.Ref) {
		defer func() { handlePanic(d.name+".destroy", recover()) }()
		for i := len(d.chain) - 1; i >= 0; i-- {
			rep := readWord(rt, self, d.repOffs[i])
			if rep == 0 {
				continue
			}
			writeWord(rt, self, d.repOffs[i], 0)
			v, ok := rt.Store().Drop(rep)
			if !ok {
				continue
			}
			refs := collectRefs(v)
			if dr, ok := v.(Dropper); ok {
				dr.Drop()
			}
			for _, ref := range refs {
				rt.DecRef(ref)
			}
		}
	}
}

func (d *descriptor) traverseSlot() interp.SlotTraverse {
	return func(rt *interp.Runtime, self interp.Ref, visit interp.Visit) (rc int) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".traverse", r)
				rc = 0
			}
		}()
		for i := range d.chain {
			rep := readWord(rt, self, d.repOffs[i])
			if rep == 0 {
				continue
			}
			v, ok := rt.Store().Get(rep)
			if !ok {
				continue
			}
			aborted := 0
			newWalker().visit(reflect.ValueOf(v), func(o object.Object) bool {
				if r := visit(o.Ref()); r != 0 {
					aborted = r
					return false
				}
				return true
			})
			if aborted != 0 {
				return aborted
			}
		}
		return 0
	}
}

func (d *descriptor) clearSlot() interp.SlotClear {
	return func(rt *interp.Runtime, self interp.Ref) {
		defer func() { handlePanic(d.name+".clear", recover()) }()
		for i := len(d.chain) - 1; i >= 0; i-- {
			rep := readWord(rt, self, d.repOffs[i])
			if rep == 0 {
				continue
			}
			writeWord(rt, self, d.repOffs[i], 0)
			v, ok := rt.Store().Drop(rep)
			if !ok {
				continue
			}
			refs := clearRefs(v)
			for _, ref := range refs {
				rt.DecRef(ref)
			}
		}
	}
}

func (d *descriptor) callSlot() interp.SlotCall {
	return func(rt *interp.Runtime, self interp.Ref, args []interp.Ref) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".call", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.call", d.name)
				out = 0
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		v, release, err := d.borrowSelf(rt, self, false)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer release()
		objs, releaseArgs, err := wrapArgs(tok, args)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer releaseArgs()
		res, err := v.(Callable).Call(tok, objs)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		return resultRef(rt, res)
	}
}

func (d *descriptor) reprSlot() interp.SlotRepr {
	return func(rt *interp.Runtime, self interp.Ref) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".repr", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.repr", d.name)
				out = 0
			}
		}()
		v, release, err := d.borrowSelf(rt, self, false)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer release()
		return rt.NewStr(v.(Representable).Repr())
	}
}

func (d *descriptor) lenSlot() interp.SlotLen {
	return func(rt *interp.Runtime, self interp.Ref) (out int) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".len", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.len", d.name)
				out = -1
			}
		}()
		v, release, err := d.borrowSelf(rt, self, false)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		defer release()
		return v.(Sized).Len()
	}
}

func (d *descriptor) getItemSlot() interp.SlotGetItem {
	return func(rt *interp.Runtime, self, key interp.Ref) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".getitem", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.getitem", d.name)
				out = 0
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		v, release, err := d.borrowSelf(rt, self, false)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer release()
		k, err := object.FromBorrowed(tok, key)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer k.Drop()
		res, err := v.(Indexable).GetIndex(tok, k)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		return resultRef(rt, res)
	}
}

func (d *descriptor) setItemSlot() interp.SlotSetItem {
	return func(rt *interp.Runtime, self, key, val interp.Ref) (out int) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".setitem", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.setitem", d.name)
				out = -1
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		v, release, err := d.borrowSelf(rt, self, true)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		defer release()
		k, err := object.FromBorrowed(tok, key)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		defer k.Drop()
		w, err := object.FromBorrowed(tok, val)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		defer w.Drop()
		if err := v.(IndexWriter).SetIndex(tok, k, w); err != nil {
			raiseGoError(rt, err)
			return -1
		}
		return 0
	}
}

func (d *descriptor) getAttrSlot() interp.SlotGetAttr {
	return func(rt *interp.Runtime, self interp.Ref, name string) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".getattr", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.getattr", d.name)
				out = 0
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		v, release, err := d.borrowSelf(rt, self, false)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer release()
		res, handled, err := v.(AttrResolver).ResolveAttr(tok, name)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		if !handled {
			// Decline without raising: resolution continues into the
			// method table.
			return 0
		}
		return resultRef(rt, res)
	}
}

func (d *descriptor) setAttrSlot() interp.SlotSetAttr {
	return func(rt *interp.Runtime, self interp.Ref, name string, val interp.Ref) (out int) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".setattr", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.setattr", d.name)
				out = -1
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		v, release, err := d.borrowSelf(rt, self, true)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		defer release()
		w, err := object.FromBorrowed(tok, val)
		if err != nil {
			raiseGoError(rt, err)
			return -1
		}
		defer w.Drop()
		if err := v.(AttrWriter).StoreAttr(tok, name, w); err != nil {
			raiseGoError(rt, err)
			return -1
		}
		return 0
	}
}

func (d *descriptor) newSlot() interp.SlotNew {
	return func(rt *interp.Runtime, _ *interp.TypeObject, args []interp.Ref) (out interp.Ref) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(d.name+".new", r)
				rt.Raise(rt.ExcRuntime, "panic in %s.new", d.name)
				out = 0
			}
		}()
		tok, err := attach.Current(rt)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		objs, releaseArgs, err := wrapArgs(tok, args)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		defer releaseArgs()
		v, err := d.init(tok, objs)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		ref, err := d.newInstance(rt, v, nil)
		if err != nil {
			raiseGoError(rt, err)
			return 0
		}
		return ref
	}
}

// newInstance allocates and populates an instance: leaf is the value for
// d's own layer, bases supplies ancestor layers base-first. Missing base
// values are zero-initialized.
func (d *descriptor) newInstance(rt *interp.Runtime, leaf any, bases []any) (interp.Ref, error) {
	to, err := d.bind(rt)
	if err != nil {
		return 0, err
	}
	layers := len(d.chain)
	if len(bases) > layers-1 {
		return 0, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("%s has %d base layers, got %d values", d.name, layers-1, len(bases)))
	}
	vals := make([]any, layers)
	for i := 0; i < layers-1; i++ {
		if i < len(bases) && bases[i] != nil {
			want := reflect.PointerTo(d.chain[i].goType)
			if got := reflect.TypeOf(bases[i]); got != want {
				return 0, errors.TypeMismatch(errors.PhaseAlloc, nil, want.String(), got.String())
			}
			vals[i] = bases[i]
			continue
		}
		vals[i] = reflect.New(d.chain[i].goType).Interface()
	}
	vals[layers-1] = leaf

	ref := rt.AllocObject(to)
	if ref == 0 {
		if p := rt.FetchRaised(); p != nil {
			return 0, errors.Raised(errors.PhaseAlloc, p.Type.Name, p.Msg)
		}
		return 0, errors.OutOfMemory(errors.PhaseAlloc, d.size, nil)
	}
	for i, val := range vals {
		rep := rt.Store().Put(d.chain[i].boundID(rt), val)
		writeWord(rt, ref, d.repOffs[i], rep)
	}
	return ref, nil
}
