package interp

import (
	"fmt"
	"strconv"
)

// initTypes builds the built-in type table. Order matters only in that ids
// are assigned sequentially; nothing depends on specific id values.
func (r *Runtime) initTypes() error {
	r.TypeNone = r.newType("NoneType", kindNone, nil)
	r.TypeNone.Repr = func(rt *Runtime, self Ref) Ref { return rt.NewStr("None") }

	r.TypeBool = r.newType("bool", kindBool, nil)
	r.TypeBool.InstanceSize = 4
	r.TypeBool.Repr = func(rt *Runtime, self Ref) Ref {
		if v, _ := rt.AsBool(self); v {
			return rt.NewStr("True")
		}
		return rt.NewStr("False")
	}

	r.TypeInt = r.newType("int", kindInt, nil)
	r.TypeInt.InstanceSize = 8
	r.TypeInt.Repr = func(rt *Runtime, self Ref) Ref {
		v, _ := rt.AsInt(self)
		return rt.NewStr(strconv.FormatInt(v, 10))
	}

	r.TypeFloat = r.newType("float", kindFloat, nil)
	r.TypeFloat.InstanceSize = 8
	r.TypeFloat.Repr = func(rt *Runtime, self Ref) Ref {
		v, _ := rt.AsFloat(self)
		return rt.NewStr(formatFloat(v))
	}

	r.TypeStr = r.newType("str", kindStr, nil)
	r.TypeStr.InstanceSize = 4
	r.TypeStr.Destroy = func(rt *Runtime, self Ref) {
		rt.store.Drop(rt.payloadRep(self))
	}
	r.TypeStr.Repr = func(rt *Runtime, self Ref) Ref {
		s, _ := rt.AsStr(self)
		return rt.NewStr(quoteStr(s))
	}
	r.TypeStr.Len = func(rt *Runtime, self Ref) int {
		s, _ := rt.AsStr(self)
		return len(s)
	}

	r.initListType()
	r.initTupleType()
	r.initDictType()
	r.initBuiltinType()
	r.initTypeType()
	r.initExceptions()
	return nil
}

func (r *Runtime) initListType() {
	t := r.newType("list", kindList, nil)
	t.InstanceSize = 4
	t.Tracked = true
	t.Destroy = func(rt *Runtime, self Ref) {
		st, ok := rt.listStateOf(self)
		rt.store.Drop(rt.payloadRep(self))
		if !ok {
			return
		}
		for _, e := range st.elems {
			rt.DecRef(e)
		}
		st.elems = nil
	}
	t.Traverse = func(rt *Runtime, self Ref, visit Visit) int {
		st, ok := rt.listStateOf(self)
		if !ok {
			return 0
		}
		for _, e := range st.elems {
			if e == 0 {
				continue
			}
			if rc := visit(e); rc != 0 {
				return rc
			}
		}
		return 0
	}
	t.Clear = func(rt *Runtime, self Ref) {
		st, ok := rt.listStateOf(self)
		if !ok {
			return
		}
		elems := st.elems
		st.elems = nil
		for _, e := range elems {
			rt.DecRef(e)
		}
	}
	t.Len = func(rt *Runtime, self Ref) int {
		st, _ := rt.listStateOf(self)
		return len(st.elems)
	}
	t.GetItem = func(rt *Runtime, self Ref, key Ref) Ref {
		st, _ := rt.listStateOf(self)
		i, ok := rt.AsInt(key)
		if !ok {
			rt.Raise(rt.ExcType, "list index must be int, not %s", rt.TypeOf(key).Name)
			return 0
		}
		if i < 0 || i >= int64(len(st.elems)) {
			rt.Raise(rt.ExcIndex, "list index %d out of range (len %d)", i, len(st.elems))
			return 0
		}
		e := st.elems[i]
		rt.IncRef(e)
		return e
	}
	t.SetItem = func(rt *Runtime, self Ref, key, v Ref) int {
		st, _ := rt.listStateOf(self)
		i, ok := rt.AsInt(key)
		if !ok {
			rt.Raise(rt.ExcType, "list index must be int, not %s", rt.TypeOf(key).Name)
			return -1
		}
		if i < 0 || i >= int64(len(st.elems)) {
			rt.Raise(rt.ExcIndex, "list index %d out of range (len %d)", i, len(st.elems))
			return -1
		}
		rt.IncRef(v)
		rt.DecRef(st.elems[i])
		st.elems[i] = v
		return 0
	}
	t.Repr = func(rt *Runtime, self Ref) Ref {
		return rt.reprSequence(self, "[", "]")
	}
	t.Methods = map[string]BuiltinFn{
		"append": func(rt *Runtime, self Ref, args []Ref) Ref {
			if len(args) != 1 {
				rt.Raise(rt.ExcType, "append expects 1 argument, got %d", len(args))
				return 0
			}
			if rt.ListAppend(self, args[0]) != 0 {
				return 0
			}
			return rt.NewNone()
		},
	}
	r.TypeList = t
}

func (r *Runtime) initTupleType() {
	t := r.newType("tuple", kindTuple, nil)
	t.InstanceSize = 4
	// Tuples sit on cycles, so the collector must see their edges. They
	// carry no Clear slot: a cycle can only reach a tuple through some
	// mutable container, and clearing that container breaks the cycle.
	t.Tracked = true
	t.Destroy = func(rt *Runtime, self Ref) {
		st, ok := rt.listStateOf(self)
		rt.store.Drop(rt.payloadRep(self))
		if !ok {
			return
		}
		for _, e := range st.elems {
			rt.DecRef(e)
		}
		st.elems = nil
	}
	t.Traverse = func(rt *Runtime, self Ref, visit Visit) int {
		st, ok := rt.listStateOf(self)
		if !ok {
			return 0
		}
		for _, e := range st.elems {
			if e == 0 {
				continue
			}
			if rc := visit(e); rc != 0 {
				return rc
			}
		}
		return 0
	}
	t.Len = func(rt *Runtime, self Ref) int {
		st, _ := rt.listStateOf(self)
		return len(st.elems)
	}
	t.GetItem = r.TypeList.GetItem
	t.Repr = func(rt *Runtime, self Ref) Ref {
		if items, _ := rt.ListItems(self); len(items) == 1 {
			return rt.NewStr("(" + rt.reprOrPlaceholder(items[0]) + ",)")
		}
		return rt.reprSequence(self, "(", ")")
	}
	r.TypeTuple = t
}

func (r *Runtime) initDictType() {
	t := r.newType("dict", kindDict, nil)
	t.InstanceSize = 4
	t.Tracked = true
	t.Destroy = func(rt *Runtime, self Ref) {
		st, ok := rt.dictStateOf(self)
		rt.store.Drop(rt.payloadRep(self))
		if !ok {
			return
		}
		for _, v := range st.entries {
			rt.DecRef(v)
		}
		st.entries = nil
	}
	t.Traverse = func(rt *Runtime, self Ref, visit Visit) int {
		st, ok := rt.dictStateOf(self)
		if !ok {
			return 0
		}
		for _, v := range st.entries {
			if v == 0 {
				continue
			}
			if rc := visit(v); rc != 0 {
				return rc
			}
		}
		return 0
	}
	t.Clear = func(rt *Runtime, self Ref) {
		st, ok := rt.dictStateOf(self)
		if !ok {
			return
		}
		entries := st.entries
		st.entries = nil
		for _, v := range entries {
			rt.DecRef(v)
		}
	}
	t.Len = func(rt *Runtime, self Ref) int {
		st, _ := rt.dictStateOf(self)
		return len(st.entries)
	}
	t.GetItem = func(rt *Runtime, self Ref, key Ref) Ref {
		k, ok := rt.AsStr(key)
		if !ok {
			rt.Raise(rt.ExcType, "dict key must be str, not %s", rt.TypeOf(key).Name)
			return 0
		}
		v, ok := rt.DictGet(self, k)
		if !ok {
			rt.Raise(rt.ExcKey, "key %q not found", k)
			return 0
		}
		rt.IncRef(v)
		return v
	}
	t.SetItem = func(rt *Runtime, self Ref, key, v Ref) int {
		k, ok := rt.AsStr(key)
		if !ok {
			rt.Raise(rt.ExcType, "dict key must be str, not %s", rt.TypeOf(key).Name)
			return -1
		}
		return rt.DictSet(self, k, v)
	}
	t.Repr = func(rt *Runtime, self Ref) Ref {
		keys, _ := rt.DictKeys(self)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ", "
			}
			v, _ := rt.DictGet(self, k)
			out += quoteStr(k) + ": " + rt.reprOrPlaceholder(v)
		}
		return rt.NewStr(out + "}")
	}
	r.TypeDict = t
}

func (r *Runtime) initBuiltinType() {
	t := r.newType("builtin_function", kindBuiltin, nil)
	t.InstanceSize = 4
	// Bound methods hold a reference to their receiver and can sit on a
	// cycle, so the collector has to see them.
	t.Tracked = true
	t.Destroy = func(rt *Runtime, self Ref) {
		v, _ := rt.store.Drop(rt.payloadRep(self))
		if st, ok := v.(*builtinState); ok && st.self != 0 {
			rt.DecRef(st.self)
		}
	}
	t.Traverse = func(rt *Runtime, self Ref, visit Visit) int {
		v, ok := rt.store.GetTyped(rt.payloadRep(self), rt.TypeBuiltin.id)
		if !ok {
			return 0
		}
		if st := v.(*builtinState); st.self != 0 {
			return visit(st.self)
		}
		return 0
	}
	t.Call = func(rt *Runtime, self Ref, args []Ref) Ref {
		v, ok := rt.store.GetTyped(rt.payloadRep(self), rt.TypeBuiltin.id)
		if !ok {
			rt.Raise(rt.ExcRuntime, "builtin state missing")
			return 0
		}
		st := v.(*builtinState)
		return st.fn(rt, st.self, args)
	}
	t.Repr = func(rt *Runtime, self Ref) Ref {
		v, ok := rt.store.GetTyped(rt.payloadRep(self), rt.TypeBuiltin.id)
		if !ok {
			return rt.NewStr("<builtin>")
		}
		return rt.NewStr(fmt.Sprintf("<builtin %s>", v.(*builtinState).name))
	}
	r.TypeBuiltin = t
}

func (r *Runtime) initTypeType() {
	t := r.newType("type", kindType, nil)
	t.InstanceSize = 4
	t.Repr = func(rt *Runtime, self Ref) Ref {
		tt, ok := rt.AsType(self)
		if !ok {
			return rt.NewStr("<type>")
		}
		return rt.NewStr(fmt.Sprintf("<type '%s'>", tt.Name))
	}
	t.Call = func(rt *Runtime, self Ref, args []Ref) Ref {
		tt, ok := rt.AsType(self)
		if !ok {
			rt.Raise(rt.ExcType, "not a type object")
			return 0
		}
		if tt.New == nil {
			rt.Raise(rt.ExcType, "type %s is not instantiable", tt.Name)
			return 0
		}
		return tt.New(rt, tt, args)
	}
	r.TypeType = t
}

func (r *Runtime) reprSequence(self Ref, open, close string) Ref {
	items, _ := r.ListItems(self)
	out := open
	for i, e := range items {
		if i > 0 {
			out += ", "
		}
		out += r.reprOrPlaceholder(e)
	}
	return r.NewStr(out + close)
}

// quoteStr renders a string literal with single-quote delimiters.
func quoteStr(s string) string {
	q := strconv.Quote(s)
	return "'" + q[1:len(q)-1] + "'"
}

// reprOrPlaceholder formats a borrowed ref, degrading instead of failing so
// container reprs never raise.
func (r *Runtime) reprOrPlaceholder(ref Ref) string {
	if ref == 0 {
		return "<null>"
	}
	rep := r.ReprOf(ref)
	if rep == 0 {
		r.ClearRaised()
		return fmt.Sprintf("<%s at %d>", r.TypeOf(ref).Name, ref)
	}
	s, _ := r.AsStr(rep)
	r.DecRef(rep)
	return s
}
