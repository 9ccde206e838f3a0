package testbed

import (
	"testing"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/object"
)

func TestDetach_HandoffBetweenGoroutines(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	err := attach.With(rt, func(tok attach.Token) error {
		o, err := object.FromInt(tok, 99)
		if err != nil {
			t.Fatalf("FromInt: %v", err)
		}
		defer o.Drop()

		var got int64
		var clone object.Object
		tok.Detach(func() {
			done := make(chan error, 1)
			go func() {
				done <- attach.With(rt, func(tok2 attach.Token) error {
					v, err := o.Bind(tok2).AsInt()
					if err != nil {
						return err
					}
					got = v
					clone = o.Clone(tok2)
					return nil
				})
			}()
			if err := <-done; err != nil {
				t.Errorf("second attach: %v", err)
			}
		})
		if got != 99 {
			t.Fatalf("value read while detached = %d, want 99", got)
		}

		if rt.Refcount(o.Ref()) != 2 {
			t.Fatalf("refcount = %d, want 2", rt.Refcount(o.Ref()))
		}
		clone.Drop()
		if rt.Refcount(o.Ref()) != 1 {
			t.Fatalf("refcount after drop = %d, want 1", rt.Refcount(o.Ref()))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func TestCloneDetached_FromAnotherGoroutine(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	var kept object.Object
	err := attach.With(rt, func(tok attach.Token) error {
		o, err := object.FromStr(tok, "keep")
		if err != nil {
			t.Fatalf("FromStr: %v", err)
		}
		defer o.Drop()

		done := make(chan object.Object, 1)
		tok.Detach(func() {
			go func() { done <- o.CloneDetached() }()
			kept = <-done
		})
		return nil
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	// The detached clone outlives the original attachment.
	err = attach.With(rt, func(tok attach.Token) error {
		s, err := kept.Bind(tok).AsStr()
		if err != nil {
			t.Fatalf("AsStr: %v", err)
		}
		if s != "keep" {
			t.Fatalf("value = %q, want keep", s)
		}
		kept.Drop()
		return nil
	})
	if err != nil {
		t.Fatalf("second attach: %v", err)
	}
}

func TestPendingException_ConvertedOnExit(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	// An exception left pending when the attachment body returns nil
	// surfaces as the attachment's error.
	err := attach.With(rt, func(tok attach.Token) error {
		rt.Raise(rt.ExcValue, "left behind")
		return nil
	})
	var e *errors.Error
	if !errors.As(err, &e) || e.Exc != "ValueError" || e.Detail != "left behind" {
		t.Fatalf("attach error = %v, want pending ValueError", err)
	}

	// The next attachment starts clean.
	err = attach.With(rt, func(tok attach.Token) error {
		o, err := object.FromInt(tok, 1)
		if err != nil {
			return err
		}
		o.Drop()
		return nil
	})
	if err != nil {
		t.Fatalf("second attach: %v", err)
	}
}

func TestDrop_AfterRuntimeClose(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	var o object.Object
	err := attach.With(rt, func(tok attach.Token) error {
		var err error
		o, err = object.FromInt(tok, 5)
		return err
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	rt.Close()
	// Dropping a handle against a finalized runtime is a quiet no-op.
	o.Drop()
}
