package extend

import (
	"reflect"

	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

var objectType = reflect.TypeOf(object.Object{})

// walker finds every object.Object held in a Go value, descending through
// exported struct fields, pointers, interfaces, slices, arrays, and maps.
// Reference cycles in the Go graph are cut with a visited set so traversal
// terminates.
type walker struct {
	seen map[uintptr]struct{}
}

func newWalker() *walker {
	return &walker{seen: make(map[uintptr]struct{})}
}

func (w *walker) enter(v reflect.Value) bool {
	p := v.Pointer()
	if p == 0 {
		return false
	}
	if _, ok := w.seen[p]; ok {
		return false
	}
	w.seen[p] = struct{}{}
	return true
}

// visit calls fn for each handle found. fn returning false stops the walk.
func (w *walker) visit(v reflect.Value, fn func(o object.Object) bool) bool {
	if !v.IsValid() {
		return true
	}
	if v.Type() == objectType {
		if !v.CanInterface() {
			return true
		}
		o := v.Interface().(object.Object)
		if !o.Valid() {
			return true
		}
		return fn(o)
	}
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).PkgPath != "" {
				continue
			}
			if !w.visit(v.Field(i), fn) {
				return false
			}
		}
	case reflect.Pointer:
		if v.IsNil() || !w.enter(v) {
			return true
		}
		return w.visit(v.Elem(), fn)
	case reflect.Interface:
		if v.IsNil() {
			return true
		}
		return w.visit(v.Elem(), fn)
	case reflect.Slice:
		if v.IsNil() || !w.enter(v) {
			return true
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !w.visit(v.Index(i), fn) {
				return false
			}
		}
	case reflect.Map:
		if v.IsNil() || !w.enter(v) {
			return true
		}
		iter := v.MapRange()
		for iter.Next() {
			if !w.visit(iter.Key(), fn) {
				return false
			}
			if !w.visit(iter.Value(), fn) {
				return false
			}
		}
	}
	return true
}

// collectRefs gathers the raw refs of every handle reachable from v.
func collectRefs(v any) []interp.Ref {
	var refs []interp.Ref
	newWalker().visit(reflect.ValueOf(v), func(o object.Object) bool {
		refs = append(refs, o.Ref())
		return true
	})
	return refs
}

// clearRefs zeroes every handle reachable from v in place and returns the
// refs that were held, so the caller can release them after the value no
// longer points at anything. Handles sitting in map values are replaced
// with cleared copies; handles inside map keys cannot be rewritten, so
// their entries are deleted outright.
func clearRefs(v any) []interp.Ref {
	var refs []interp.Ref
	w := newWalker()
	w.clear(reflect.ValueOf(v), &refs)
	return refs
}

func (w *walker) clear(v reflect.Value, refs *[]interp.Ref) {
	if !v.IsValid() {
		return
	}
	if v.Type() == objectType {
		if !v.CanInterface() {
			return
		}
		o := v.Interface().(object.Object)
		if !o.Valid() {
			return
		}
		*refs = append(*refs, o.Ref())
		if v.CanSet() {
			v.Set(reflect.Zero(objectType))
		}
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).PkgPath != "" {
				continue
			}
			w.clear(v.Field(i), refs)
		}
	case reflect.Pointer:
		if v.IsNil() || !w.enter(v) {
			return
		}
		w.clear(v.Elem(), refs)
	case reflect.Interface:
		if v.IsNil() {
			return
		}
		// Interface payloads are not addressable; collect without zeroing.
		newWalker().visit(v.Elem(), func(o object.Object) bool {
			*refs = append(*refs, o.Ref())
			return true
		})
		if v.CanSet() {
			v.Set(reflect.Zero(v.Type()))
		}
	case reflect.Slice:
		if v.IsNil() || !w.enter(v) {
			return
		}
		for i := 0; i < v.Len(); i++ {
			w.clear(v.Index(i), refs)
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			w.clear(v.Index(i), refs)
		}
	case reflect.Map:
		if v.IsNil() || !w.enter(v) {
			return
		}
		iter := v.MapRange()
		var doomed []reflect.Value
		type rewrite struct{ key, val reflect.Value }
		var rewrites []rewrite
		for iter.Next() {
			keyHolds := false
			newWalker().visit(iter.Key(), func(o object.Object) bool {
				*refs = append(*refs, o.Ref())
				keyHolds = true
				return true
			})
			if keyHolds {
				doomed = append(doomed, iter.Key())
				continue
			}
			val := iter.Value()
			switch val.Kind() {
			case reflect.Pointer, reflect.Map, reflect.Slice:
				// Shared storage: zero in place through the reference.
				w.clear(val, refs)
			default:
				fresh := reflect.New(val.Type()).Elem()
				fresh.Set(val)
				before := len(*refs)
				w.clear(fresh, refs)
				if len(*refs) != before {
					rewrites = append(rewrites, rewrite{iter.Key(), fresh})
				}
			}
		}
		for _, rw := range rewrites {
			v.SetMapIndex(rw.key, rw.val)
		}
		for _, k := range doomed {
			v.SetMapIndex(k, reflect.Value{})
		}
	}
}
