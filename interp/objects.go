package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/interp-bridge/heap"
)

// Go-side payload state for the container kinds.
type listState struct {
	elems []Ref
}

type dictState struct {
	entries map[string]Ref
}

type builtinState struct {
	name string
	fn   BuiltinFn
	self Ref // bound receiver, 0 for free functions
}

// Memory faults on header access mean a corrupted or forged Ref; there is no
// recovery from that.
func (r *Runtime) readU32(off uint32) uint32 {
	v, err := r.mem.ReadU32(off)
	if err != nil {
		panic(fmt.Sprintf("heap corruption: %v", err))
	}
	return v
}

func (r *Runtime) writeU32(off, v uint32) {
	if err := r.mem.WriteU32(off, v); err != nil {
		panic(fmt.Sprintf("heap corruption: %v", err))
	}
}

func (r *Runtime) readU64(off uint32) uint64 {
	v, err := r.mem.ReadU64(off)
	if err != nil {
		panic(fmt.Sprintf("heap corruption: %v", err))
	}
	return v
}

func (r *Runtime) writeU64(off uint32, v uint64) {
	if err := r.mem.WriteU64(off, v); err != nil {
		panic(fmt.Sprintf("heap corruption: %v", err))
	}
}

// TypeOf returns the dynamic type of the object at ref.
func (r *Runtime) TypeOf(ref Ref) *TypeObject {
	id := r.readU32(uint32(ref) + heap.TypeIDOffset)
	t, ok := r.TypeByID(id)
	if !ok {
		panic(fmt.Sprintf("heap corruption: object %d has unknown type id %d", ref, id))
	}
	return t
}

// Refcount reads the current reference count.
func (r *Runtime) Refcount(ref Ref) uint32 {
	return r.readU32(uint32(ref) + heap.RefcountOffset)
}

// IncRef increments the reference count. Requires attachment.
func (r *Runtime) IncRef(ref Ref) {
	if ref == 0 {
		return
	}
	r.assertAttached()
	r.writeU32(uint32(ref)+heap.RefcountOffset, r.Refcount(ref)+1)
}

// DecRef decrements the reference count, destroying the object when it
// reaches zero. Destruction may cascade through contained references;
// re-entry here during a cascade is expected.
func (r *Runtime) DecRef(ref Ref) {
	if ref == 0 {
		return
	}
	r.assertAttached()
	rc := r.Refcount(ref)
	if rc == 0 {
		Logger().Error("refcount underflow", zap.Uint32("ref", uint32(ref)))
		return
	}
	rc--
	r.writeU32(uint32(ref)+heap.RefcountOffset, rc)
	if rc == 0 {
		r.destroyObject(ref)
	}
}

// destroyObject runs the type's destroy slot, then releases the allocation.
// The destroy slot must tear down payload state but not free the object.
func (r *Runtime) destroyObject(ref Ref) {
	t := r.TypeOf(ref)
	delete(r.tracked, ref)
	if t.Destroy != nil {
		t.Destroy(r, ref)
	}
	r.arena.Free(uint32(ref))
}

// AllocObject allocates an instance of t: refcount 1, zeroed payload of
// t.InstanceSize bytes. Returns 0 with a MemoryError pending on exhaustion.
// Instances of tracked types join the cycle collector's registry.
func (r *Runtime) AllocObject(t *TypeObject) Ref {
	r.assertAttached()
	ptr, err := r.arena.Alloc(heap.HeaderSize+t.InstanceSize, 8)
	if err != nil {
		r.Raise(r.ExcMemory, "out of memory allocating %s", t.Name)
		return 0
	}
	r.writeU32(ptr+heap.RefcountOffset, 1)
	r.writeU32(ptr+heap.TypeIDOffset, t.id)
	ref := Ref(ptr)
	if t.Tracked {
		r.tracked[ref] = struct{}{}
	}
	return ref
}

// payloadRep reads the rep word of a rep-payload object.
func (r *Runtime) payloadRep(ref Ref) uint32 {
	return r.readU32(uint32(ref) + heap.HeaderSize)
}

// --- constructors ---

// NewNone returns a new reference to the none singleton.
func (r *Runtime) NewNone() Ref {
	r.IncRef(r.noneRef)
	return r.noneRef
}

// NewBool returns a new reference to the true or false singleton.
func (r *Runtime) NewBool(v bool) Ref {
	ref := r.falseRef
	if v {
		ref = r.trueRef
	}
	r.IncRef(ref)
	return ref
}

// NewInt creates an integer object.
func (r *Runtime) NewInt(v int64) Ref {
	ref := r.AllocObject(r.TypeInt)
	if ref == 0 {
		return 0
	}
	r.writeU64(uint32(ref)+heap.HeaderSize, uint64(v))
	return ref
}

// NewFloat creates a float object.
func (r *Runtime) NewFloat(v float64) Ref {
	ref := r.AllocObject(r.TypeFloat)
	if ref == 0 {
		return 0
	}
	r.writeU64(uint32(ref)+heap.HeaderSize, math.Float64bits(v))
	return ref
}

// NewStr creates a string object.
func (r *Runtime) NewStr(s string) Ref {
	ref := r.AllocObject(r.TypeStr)
	if ref == 0 {
		return 0
	}
	r.writeU32(uint32(ref)+heap.HeaderSize, r.store.Put(r.TypeStr.id, s))
	return ref
}

// NewList creates a list holding the given elements. Elements are borrowed;
// the list takes its own references.
func (r *Runtime) NewList(elems []Ref) Ref {
	ref := r.AllocObject(r.TypeList)
	if ref == 0 {
		return 0
	}
	st := &listState{elems: make([]Ref, len(elems))}
	copy(st.elems, elems)
	for _, e := range st.elems {
		r.IncRef(e)
	}
	r.writeU32(uint32(ref)+heap.HeaderSize, r.store.Put(r.TypeList.id, st))
	return ref
}

// NewTuple creates an immutable sequence from the given borrowed elements.
func (r *Runtime) NewTuple(elems []Ref) Ref {
	ref := r.AllocObject(r.TypeTuple)
	if ref == 0 {
		return 0
	}
	st := &listState{elems: make([]Ref, len(elems))}
	copy(st.elems, elems)
	for _, e := range st.elems {
		r.IncRef(e)
	}
	r.writeU32(uint32(ref)+heap.HeaderSize, r.store.Put(r.TypeTuple.id, st))
	return ref
}

// NewDict creates an empty string-keyed dict.
func (r *Runtime) NewDict() Ref {
	ref := r.AllocObject(r.TypeDict)
	if ref == 0 {
		return 0
	}
	st := &dictState{entries: make(map[string]Ref)}
	r.writeU32(uint32(ref)+heap.HeaderSize, r.store.Put(r.TypeDict.id, st))
	return ref
}

// NewBuiltin creates a free function object.
func (r *Runtime) NewBuiltin(name string, fn BuiltinFn) Ref {
	return r.newBuiltin(name, fn, 0)
}

// BindMethod creates a function object bound to self. The bound object
// holds a strong reference to self for its lifetime.
func (r *Runtime) BindMethod(name string, fn BuiltinFn, self Ref) Ref {
	return r.newBuiltin(name, fn, self)
}

func (r *Runtime) newBuiltin(name string, fn BuiltinFn, self Ref) Ref {
	ref := r.AllocObject(r.TypeBuiltin)
	if ref == 0 {
		return 0
	}
	if self != 0 {
		r.IncRef(self)
	}
	st := &builtinState{name: name, fn: fn, self: self}
	r.writeU32(uint32(ref)+heap.HeaderSize, r.store.Put(r.TypeBuiltin.id, st))
	return ref
}

// TypeRef returns a new reference to the reified object for t, creating it
// on first use. Type objects are immortal; the runtime keeps one reference
// forever.
func (r *Runtime) TypeRef(t *TypeObject) Ref {
	if ref, ok := r.typeRefs[t]; ok {
		r.IncRef(ref)
		return ref
	}
	ref := r.AllocObject(r.TypeType)
	if ref == 0 {
		return 0
	}
	r.writeU32(uint32(ref)+heap.HeaderSize, r.store.Put(r.TypeType.id, t))
	r.typeRefs[t] = ref
	r.IncRef(ref)
	return ref
}

// --- accessors ---

// IsNone reports whether ref is the none singleton.
func (r *Runtime) IsNone(ref Ref) bool { return ref == r.noneRef }

// AsInt extracts an integer value.
func (r *Runtime) AsInt(ref Ref) (int64, bool) {
	if r.TypeOf(ref) != r.TypeInt {
		return 0, false
	}
	return int64(r.readU64(uint32(ref) + heap.HeaderSize)), true
}

// AsFloat extracts a float value.
func (r *Runtime) AsFloat(ref Ref) (float64, bool) {
	if r.TypeOf(ref) != r.TypeFloat {
		return 0, false
	}
	return math.Float64frombits(r.readU64(uint32(ref) + heap.HeaderSize)), true
}

// AsBool extracts a boolean value.
func (r *Runtime) AsBool(ref Ref) (bool, bool) {
	switch ref {
	case r.trueRef:
		return true, true
	case r.falseRef:
		return false, true
	}
	return false, false
}

// AsStr extracts a string value.
func (r *Runtime) AsStr(ref Ref) (string, bool) {
	if r.TypeOf(ref) != r.TypeStr {
		return "", false
	}
	v, ok := r.store.GetTyped(r.payloadRep(ref), r.TypeStr.id)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// AsType extracts the type object from a reified type ref.
func (r *Runtime) AsType(ref Ref) (*TypeObject, bool) {
	if r.TypeOf(ref) != r.TypeType {
		return nil, false
	}
	v, ok := r.store.GetTyped(r.payloadRep(ref), r.TypeType.id)
	if !ok {
		return nil, false
	}
	return v.(*TypeObject), true
}

func (r *Runtime) listStateOf(ref Ref) (*listState, bool) {
	t := r.TypeOf(ref)
	if t != r.TypeList && t != r.TypeTuple {
		return nil, false
	}
	v, ok := r.store.GetTyped(r.payloadRep(ref), t.id)
	if !ok {
		return nil, false
	}
	return v.(*listState), true
}

// ListItems returns the elements of a list or tuple (borrowed references).
func (r *Runtime) ListItems(ref Ref) ([]Ref, bool) {
	st, ok := r.listStateOf(ref)
	if !ok {
		return nil, false
	}
	return st.elems, true
}

// ListAppend appends a borrowed element to a list, taking a reference.
// Returns -1 with an exception pending on failure.
func (r *Runtime) ListAppend(list Ref, v Ref) int {
	if r.TypeOf(list) != r.TypeList {
		r.Raise(r.ExcType, "expected list, got %s", r.TypeOf(list).Name)
		return -1
	}
	st, ok := r.listStateOf(list)
	if !ok {
		r.Raise(r.ExcRuntime, "list state missing")
		return -1
	}
	r.IncRef(v)
	st.elems = append(st.elems, v)
	return 0
}

func (r *Runtime) dictStateOf(ref Ref) (*dictState, bool) {
	if r.TypeOf(ref) != r.TypeDict {
		return nil, false
	}
	v, ok := r.store.GetTyped(r.payloadRep(ref), r.TypeDict.id)
	if !ok {
		return nil, false
	}
	return v.(*dictState), true
}

// DictGet returns the value for key (borrowed), if present.
func (r *Runtime) DictGet(dict Ref, key string) (Ref, bool) {
	st, ok := r.dictStateOf(dict)
	if !ok {
		return 0, false
	}
	v, ok := st.entries[key]
	return v, ok
}

// DictSet sets key to a borrowed value, taking a reference and releasing any
// replaced value. Returns -1 with an exception pending on failure.
func (r *Runtime) DictSet(dict Ref, key string, v Ref) int {
	st, ok := r.dictStateOf(dict)
	if !ok {
		r.Raise(r.ExcType, "expected dict, got %s", r.TypeOf(dict).Name)
		return -1
	}
	r.IncRef(v)
	if old, exists := st.entries[key]; exists {
		r.DecRef(old)
	}
	st.entries[key] = v
	return 0
}

// DictKeys returns the dict's keys in sorted order.
func (r *Runtime) DictKeys(dict Ref) ([]string, bool) {
	st, ok := r.dictStateOf(dict)
	if !ok {
		return nil, false
	}
	keys := make([]string, 0, len(st.entries))
	for k := range st.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, true
}

func (r *Runtime) initSingletons() error {
	none := r.AllocObject(r.TypeNone)
	tru := r.AllocObject(r.TypeBool)
	fls := r.AllocObject(r.TypeBool)
	if none == 0 || tru == 0 || fls == 0 {
		r.ClearRaised()
		return fmt.Errorf("singleton allocation failed")
	}
	r.writeU32(uint32(tru)+heap.HeaderSize, 1)
	r.writeU32(uint32(fls)+heap.HeaderSize, 0)
	r.noneRef, r.trueRef, r.falseRef = none, tru, fls
	return nil
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Integral floats keep a fractional marker so they stay visually
	// distinct from ints.
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
