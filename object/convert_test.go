package object

import (
	"math"
	"reflect"
	"testing"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
)

func TestFromGo_Scalars(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		cases := []struct {
			in   any
			want string
		}{
			{nil, "None"},
			{true, "True"},
			{int(7), "7"},
			{int8(-1), "-1"},
			{uint16(9), "9"},
			{int64(1 << 40), "1099511627776"},
			{3.5, "3.5"},
			{float32(0.5), "0.5"},
			{"s", "'s'"},
		}
		for _, tc := range cases {
			o, err := FromGo(tok, tc.in)
			if err != nil {
				t.Fatalf("FromGo(%v): %v", tc.in, err)
			}
			r, err := o.Bind(tok).Repr()
			if err != nil {
				t.Fatalf("Repr(%v): %v", tc.in, err)
			}
			if r != tc.want {
				t.Errorf("FromGo(%v) repr = %q, want %q", tc.in, r, tc.want)
			}
			o.Drop()
		}
		return nil
	})
}

func TestFromGo_UintOverflow(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		if _, err := FromGo(tok, uint64(math.MaxInt64)); err != nil {
			t.Fatalf("max int64 rejected: %v", err)
		}
		_, err := FromGo(tok, uint64(math.MaxInt64)+1)
		if !errors.IsKind(err, errors.KindOverflow) {
			t.Fatalf("kind = %v", err)
		}
		return nil
	})
}

func TestFromGo_Unsupported(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		_, err := FromGo(tok, make(chan int))
		if !errors.IsKind(err, errors.KindTypeMismatch) {
			t.Fatalf("kind = %v", err)
		}
		return nil
	})
}

func TestFromGo_NestedRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		in := map[string]any{
			"name":  "demo",
			"count": int64(3),
			"ratio": 0.25,
			"tags":  []any{"a", "b"},
			"meta":  map[string]any{"ok": true, "none": nil},
		}
		o, err := FromGo(tok, in)
		if err != nil {
			t.Fatalf("FromGo: %v", err)
		}
		defer o.Drop()

		out, err := o.Bind(tok).ToGo()
		if err != nil {
			t.Fatalf("ToGo: %v", err)
		}
		if !reflect.DeepEqual(out, in) {
			t.Fatalf("round trip mismatch:\n in: %#v\nout: %#v", in, out)
		}
		return nil
	})
}

func TestToGo_ReadsDictValuesBorrowed(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		o, err := FromGo(tok, map[string]any{"k": "v"})
		if err != nil {
			t.Fatalf("FromGo: %v", err)
		}
		defer o.Drop()

		val, ok := rt.DictGet(o.Ref(), "k")
		if !ok {
			t.Fatal("key missing")
		}
		before := rt.Refcount(val)

		// Reading a dict must not consume the dict's own references.
		for i := 0; i < 2; i++ {
			out, err := o.Bind(tok).ToGo()
			if err != nil {
				t.Fatalf("ToGo pass %d: %v", i+1, err)
			}
			m, ok := out.(map[string]any)
			if !ok || m["k"] != "v" {
				t.Fatalf("ToGo pass %d = %#v", i+1, out)
			}
		}
		if rc := rt.Refcount(val); rc != before {
			t.Fatalf("value refcount changed by read: %d -> %d", before, rc)
		}
		return nil
	})
}

func TestFromGo_SliceErrorCleansUp(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		before := rt.Store().Len()
		_, err := FromGo(tok, []any{"kept", make(chan int)})
		if !errors.IsKind(err, errors.KindTypeMismatch) {
			t.Fatalf("kind = %v", err)
		}
		if rt.Store().Len() != before {
			t.Fatalf("partial conversion leaked store entries: %d -> %d",
				before, rt.Store().Len())
		}
		return nil
	})
}

func TestExtract_Narrowing(t *testing.T) {
	rt := newTestRuntime(t)

	attach.With(rt, func(tok attach.Token) error {
		big, _ := FromInt(tok, math.MaxInt32+1)
		defer big.Drop()
		if _, err := big.Bind(tok).AsInt32(); !errors.IsKind(err, errors.KindOverflow) {
			t.Fatalf("kind = %v", err)
		}

		small, _ := FromInt(tok, 12)
		defer small.Drop()
		if v, err := small.Bind(tok).AsInt32(); err != nil || v != 12 {
			t.Fatalf("AsInt32 = %d, %v", v, err)
		}

		neg, _ := FromInt(tok, -1)
		defer neg.Drop()
		if _, err := neg.Bind(tok).AsUint(); !errors.IsKind(err, errors.KindOverflow) {
			t.Fatalf("kind = %v", err)
		}

		// Int widens to float, but not the other way around.
		if v, err := small.Bind(tok).AsFloat(); err != nil || v != 12 {
			t.Fatalf("AsFloat = %g, %v", v, err)
		}
		f, _ := FromFloat(tok, 1.5)
		defer f.Drop()
		if _, err := f.Bind(tok).AsInt(); !errors.IsKind(err, errors.KindTypeMismatch) {
			t.Fatalf("kind = %v", err)
		}
		return nil
	})
}
