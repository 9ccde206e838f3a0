package object

import (
	"testing"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
)

func TestBound_ReprAndStr(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		s, _ := FromStr(tok, "hi")
		defer s.Drop()

		r, err := s.Bind(tok).Repr()
		if err != nil {
			t.Fatalf("Repr: %v", err)
		}
		if r != "'hi'" {
			t.Fatalf("Repr = %q", r)
		}
		str, err := s.Bind(tok).Str()
		if err != nil {
			t.Fatalf("Str: %v", err)
		}
		if str != "hi" {
			t.Fatalf("Str = %q", str)
		}

		n, _ := FromInt(tok, 3)
		defer n.Drop()
		str, err = n.Bind(tok).Str()
		if err != nil || str != "3" {
			t.Fatalf("Str(int) = %q, %v", str, err)
		}
		return nil
	})
}

func TestBound_CallMethod(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		list, err := FromGo(tok, []any{int64(1)})
		if err != nil {
			t.Fatalf("FromGo: %v", err)
		}
		defer list.Drop()

		v, _ := FromInt(tok, 2)
		defer v.Drop()
		res, err := list.Bind(tok).CallMethod("append", v)
		if err != nil {
			t.Fatalf("CallMethod: %v", err)
		}
		res.Drop()

		n, err := list.Bind(tok).Len()
		if err != nil || n != 2 {
			t.Fatalf("Len = %d, %v", n, err)
		}
		return nil
	})
}

func TestBound_GetAttrFailureConsumesPending(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		n, _ := FromInt(tok, 1)
		defer n.Drop()

		_, err := n.Bind(tok).GetAttr("missing")
		if err == nil {
			t.Fatal("GetAttr on int succeeded")
		}
		if !errors.IsKind(err, errors.KindRaised) {
			t.Fatalf("kind = %v", err)
		}
		var e *errors.Error
		errors.As(err, &e)
		if e.Exc != "AttributeError" {
			t.Fatalf("exc = %q", e.Exc)
		}
		if rt.Occurred() != nil {
			t.Fatal("pending exception not consumed exactly once")
		}
		return nil
	})
}

func TestBound_Items(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		d, _ := FromOwned(tok, rt.NewDict())
		defer d.Drop()

		k, _ := FromStr(tok, "answer")
		defer k.Drop()
		v, _ := FromInt(tok, 42)
		defer v.Drop()

		if err := d.Bind(tok).SetItem(k, v); err != nil {
			t.Fatalf("SetItem: %v", err)
		}
		got, err := d.Bind(tok).GetItem(k)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		defer got.Drop()
		n, err := got.Bind(tok).AsInt()
		if err != nil || n != 42 {
			t.Fatalf("AsInt = %d, %v", n, err)
		}

		missing, _ := FromStr(tok, "absent")
		defer missing.Drop()
		if _, err := d.Bind(tok).GetItem(missing); err == nil {
			t.Fatal("GetItem on absent key succeeded")
		} else if !errors.IsKind(err, errors.KindRaised) {
			t.Fatalf("kind = %v", err)
		}
		return nil
	})
}

func TestBound_IsTruthy(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		empty, _ := FromStr(tok, "")
		defer empty.Drop()
		if v, err := empty.Bind(tok).IsTruthy(); err != nil || v {
			t.Fatalf("IsTruthy(\"\") = %v, %v", v, err)
		}
		one, _ := FromInt(tok, 1)
		defer one.Drop()
		if v, err := one.Bind(tok).IsTruthy(); err != nil || !v {
			t.Fatalf("IsTruthy(1) = %v, %v", v, err)
		}
		return nil
	})
}

func TestBound_Iter(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		list, err := FromGo(tok, []any{int64(1), int64(2), int64(3)})
		if err != nil {
			t.Fatalf("FromGo: %v", err)
		}
		defer list.Drop()

		var sum int64
		err = list.Bind(tok).Iter(func(e Bound) error {
			v, err := e.AsInt()
			sum += v
			return err
		})
		if err != nil {
			t.Fatalf("Iter: %v", err)
		}
		if sum != 6 {
			t.Fatalf("sum = %d", sum)
		}

		d, err := FromGo(tok, map[string]any{"b": int64(2), "a": int64(1)})
		if err != nil {
			t.Fatalf("FromGo(map): %v", err)
		}
		defer d.Drop()
		var keys []string
		err = d.Bind(tok).Iter(func(e Bound) error {
			k, err := e.AsStr()
			keys = append(keys, k)
			return err
		})
		if err != nil {
			t.Fatalf("Iter(dict): %v", err)
		}
		if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
			t.Fatalf("keys = %v", keys)
		}

		n, _ := FromInt(tok, 1)
		defer n.Drop()
		if err := n.Bind(tok).Iter(func(Bound) error { return nil }); err == nil {
			t.Fatal("Iter over an int succeeded")
		}
		return nil
	})
}

func TestBound_IsInstance(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		n, _ := FromInt(tok, 1)
		defer n.Drop()
		b := n.Bind(tok)
		if !b.IsInstance(rt.TypeInt) {
			t.Fatal("int not an instance of int")
		}
		if b.IsInstance(rt.TypeStr) {
			t.Fatal("int is an instance of str")
		}
		if b.Type() != rt.TypeInt {
			t.Fatal("Type() wrong")
		}
		return nil
	})
}

func TestBound_Owned(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		o, _ := FromInt(tok, 1)
		b := o.Bind(tok)
		second := b.Owned()
		if rc := rt.Refcount(o.Ref()); rc != 2 {
			t.Fatalf("refcount = %d", rc)
		}
		if !second.Is(o) {
			t.Fatal("Owned lost identity")
		}
		second.Drop()
		o.Drop()
		return nil
	})
}
