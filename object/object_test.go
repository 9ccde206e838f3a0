package object

import (
	"testing"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
)

func newTestRuntime(t *testing.T) *interp.Runtime {
	t.Helper()
	rt, err := interp.New(interp.Config{})
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestFromOwned(t *testing.T) {
	rt := newTestRuntime(t)

	err := attach.With(rt, func(tok attach.Token) error {
		o, err := FromOwned(tok, rt.NewInt(1))
		if err != nil {
			t.Fatalf("FromOwned: %v", err)
		}
		if !o.Valid() {
			t.Fatal("handle invalid")
		}
		if rc := rt.Refcount(o.Ref()); rc != 1 {
			t.Fatalf("refcount = %d", rc)
		}
		o.Drop()
		return nil
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
}

func TestFromOwned_NullRefUsesPending(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		rt.Raise(rt.ExcValue, "producer failed")
		_, err := FromOwned(tok, 0)
		if err == nil {
			t.Fatal("null ref accepted")
		}
		if !errors.IsKind(err, errors.KindRaised) {
			t.Fatalf("kind = %v", err)
		}
		if rt.Occurred() != nil {
			t.Fatal("pending exception consumed more than once or not at all")
		}

		// Null without anything pending gets a synthetic error.
		_, err = FromOwned(tok, 0)
		if !errors.IsKind(err, errors.KindNullPointer) {
			t.Fatalf("kind = %v", err)
		}
		return nil
	})
}

func TestFromBorrowed(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		ref := rt.NewInt(5)
		o, err := FromBorrowed(tok, ref)
		if err != nil {
			t.Fatalf("FromBorrowed: %v", err)
		}
		if rc := rt.Refcount(ref); rc != 2 {
			t.Fatalf("refcount = %d, want 2", rc)
		}
		o.Drop()
		rt.DecRef(ref)
		return nil
	})
}

func TestCloneAndIs(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		a, _ := FromStr(tok, "x")
		b := a.Clone(tok)
		if !a.Is(b) {
			t.Fatal("clone lost identity")
		}
		if rc := rt.Refcount(a.Ref()); rc != 2 {
			t.Fatalf("refcount = %d", rc)
		}

		c, _ := FromStr(tok, "x")
		if a.Is(c) {
			t.Fatal("distinct objects compare identical")
		}

		a.Drop()
		b.Drop()
		c.Drop()
		return nil
	})
}

func TestDropOutsideAttachment(t *testing.T) {
	rt := newTestRuntime(t)

	var o Object
	attach.With(rt, func(tok attach.Token) error {
		o, _ = FromInt(tok, 9)
		return nil
	})
	// Handle escaped the attachment; Drop reacquires the lock itself.
	o.Drop()

	attach.With(rt, func(tok attach.Token) error {
		if rt.Store().Len() != 0 {
			// Ints carry no store entries, so this is about heap health:
			// allocate again to prove the heap is intact.
			t.Fatalf("unexpected store entries: %d", rt.Store().Len())
		}
		n, err := FromInt(tok, 1)
		if err != nil {
			t.Fatalf("allocation after detached drop: %v", err)
		}
		n.Drop()
		return nil
	})
}

func TestCloneDetached(t *testing.T) {
	rt := newTestRuntime(t)

	var o Object
	attach.With(rt, func(tok attach.Token) error {
		o, _ = FromInt(tok, 3)
		return nil
	})

	c := o.CloneDetached()
	attach.With(rt, func(tok attach.Token) error {
		if rc := rt.Refcount(o.Ref()); rc != 2 {
			t.Fatalf("refcount = %d, want 2", rc)
		}
		return nil
	})
	c.Drop()
	o.Drop()
}

func TestDrop_AfterClose(t *testing.T) {
	rt, err := interp.New(interp.Config{})
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	var o Object
	attach.With(rt, func(tok attach.Token) error {
		o, _ = FromInt(tok, 1)
		return nil
	})
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Must not panic: the heap is gone, the drop is a no-op.
	o.Drop()
}

func TestDowncast(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		base := &interp.TypeObject{Name: "Shape"}
		leaf := &interp.TypeObject{Name: "Circle", Base: base}
		if err := rt.RegisterType(base); err != nil {
			t.Fatalf("RegisterType: %v", err)
		}
		if err := rt.RegisterType(leaf); err != nil {
			t.Fatalf("RegisterType: %v", err)
		}
		ref := rt.AllocObject(leaf)
		o, err := FromOwned(tok, ref)
		if err != nil {
			t.Fatalf("FromOwned: %v", err)
		}
		rcBefore := rt.Refcount(o.Ref())

		up, err := o.Downcast(tok, base)
		if err != nil {
			t.Fatalf("Downcast to ancestor: %v", err)
		}
		if !up.Is(o) {
			t.Fatal("downcast changed identity")
		}

		_, err = o.Downcast(tok, rt.TypeStr)
		if err == nil {
			t.Fatal("downcast to unrelated type succeeded")
		}
		if !errors.IsKind(err, errors.KindTypeMismatch) {
			t.Fatalf("kind = %v", err)
		}
		if rt.Refcount(o.Ref()) != rcBefore {
			t.Fatal("downcast moved the refcount")
		}

		o.Drop()
		return nil
	})
}
