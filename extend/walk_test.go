package extend

import (
	"testing"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/interp"
	"github.com/wippyai/interp-bridge/object"
)

type leafHolder struct {
	First  object.Object
	second object.Object // unexported: invisible to the walker
}

type nestedHolder struct {
	Name    string
	Direct  object.Object
	Inner   leafHolder
	Ptr     *leafHolder
	Slice   []object.Object
	Map     map[string]object.Object
	Iface   any
	Ignored int
}

func newTestRuntime(t *testing.T) *interp.Runtime {
	t.Helper()
	rt, err := interp.New(interp.Config{})
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	t.Cleanup(resetRegistry)
	return rt
}

func TestWalk_FindsEveryExportedHandle(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		mk := func() object.Object {
			o, err := object.FromInt(tok, 1)
			if err != nil {
				t.Fatalf("FromInt: %v", err)
			}
			return o
		}

		h := &nestedHolder{
			Direct: mk(),
			Inner:  leafHolder{First: mk()},
			Ptr:    &leafHolder{First: mk()},
			Slice:  []object.Object{mk(), mk()},
			Map:    map[string]object.Object{"k": mk()},
			Iface:  leafHolder{First: mk()},
		}

		refs := collectRefs(h)
		if len(refs) != 7 {
			t.Fatalf("collected %d refs, want 7", len(refs))
		}
		seen := make(map[interp.Ref]int)
		for _, r := range refs {
			seen[r]++
		}
		for r, n := range seen {
			if n != 1 {
				t.Fatalf("ref %d visited %d times", r, n)
			}
		}

		for _, r := range refs {
			rt.DecRef(r)
		}
		return nil
	})
}

func TestWalk_SkipsUnexportedAndInvalid(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		o, _ := object.FromInt(tok, 1)
		defer o.Drop()
		h := &leafHolder{second: o}
		if refs := collectRefs(h); len(refs) != 0 {
			t.Fatalf("unexported field leaked %d refs", len(refs))
		}
		var empty leafHolder
		if refs := collectRefs(&empty); len(refs) != 0 {
			t.Fatalf("zero handles yielded %d refs", len(refs))
		}
		return nil
	})
}

func TestWalk_TerminatesOnGoCycles(t *testing.T) {
	rt := newTestRuntime(t)

	type node struct {
		Next *node
		Val  object.Object
	}

	attach.With(rt, func(tok attach.Token) error {
		o, _ := object.FromInt(tok, 1)
		defer o.Drop()
		a := &node{Val: o}
		b := &node{}
		a.Next = b
		b.Next = a

		refs := collectRefs(a)
		if len(refs) != 1 {
			t.Fatalf("cyclic walk found %d refs, want 1", len(refs))
		}
		return nil
	})
}

func TestClearRefs_NullsInPlace(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		mk := func() object.Object {
			o, _ := object.FromInt(tok, 1)
			return o
		}
		h := &nestedHolder{
			Direct: mk(),
			Inner:  leafHolder{First: mk()},
			Ptr:    &leafHolder{First: mk()},
			Slice:  []object.Object{mk()},
			Map:    map[string]object.Object{"k": mk()},
		}

		refs := clearRefs(h)
		if len(refs) != 5 {
			t.Fatalf("cleared %d refs, want 5", len(refs))
		}
		if h.Direct.Valid() || h.Inner.First.Valid() || h.Ptr.First.Valid() || h.Slice[0].Valid() {
			t.Fatal("handles not nulled in place")
		}
		if h.Map["k"].Valid() {
			t.Fatal("map value handle not nulled")
		}

		// The refs were still live at clear time; release them here.
		for _, r := range refs {
			rt.DecRef(r)
		}
		return nil
	})
}
