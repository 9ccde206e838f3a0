package testbed

import (
	"testing"

	"github.com/wippyai/interp-bridge/attach"
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/extend"
)

func TestDowncastMatrix(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	err := attach.With(rt, func(tok attach.Token) error {
		hb, err := extend.New(tok, &bird{Wingspan: 20}, &creature{Name: "wren"})
		if err != nil {
			t.Fatalf("New(bird): %v", err)
		}
		defer hb.Drop()
		b := hb.Object()

		// A derived instance casts to both its own and its base layer.
		if h, err := extend.Cast[bird](tok, b); err != nil {
			t.Fatalf("Cast[bird]: %v", err)
		} else {
			h.Drop()
		}
		hc, err := extend.Cast[creature](tok, b)
		if err != nil {
			t.Fatalf("Cast[creature]: %v", err)
		}
		g := hc.Borrow(tok)
		if g.Value().Name != "wren" {
			t.Fatalf("Name = %q, want wren", g.Value().Name)
		}
		g.Release()
		hc.Drop()

		// Casting to an unrelated type fails and leaves the handle intact.
		if _, err := extend.Cast[settings](tok, b); !errors.IsKind(err, errors.KindTypeMismatch) {
			t.Fatalf("Cast[settings] = %v, want type mismatch", err)
		}
		if !b.Valid() {
			t.Fatal("handle damaged by failed cast")
		}

		// A base-only instance never casts to the derived type.
		hbase, err := extend.New(tok, &creature{Name: "blob"})
		if err != nil {
			t.Fatalf("New(creature): %v", err)
		}
		defer hbase.Drop()
		if _, err := extend.Cast[bird](tok, hbase.Object()); !errors.IsKind(err, errors.KindTypeMismatch) {
			t.Fatalf("Cast[bird] on base = %v, want type mismatch", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func TestDowncast_ObjectAPI(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	err := attach.With(rt, func(tok attach.Token) error {
		creatureType, err := extend.BoundType[creature](tok)
		if err != nil {
			t.Fatalf("BoundType[creature]: %v", err)
		}
		birdType, err := extend.BoundType[bird](tok)
		if err != nil {
			t.Fatalf("BoundType[bird]: %v", err)
		}

		hb, err := extend.New(tok, &bird{}, &creature{Name: "crow"})
		if err != nil {
			t.Fatalf("New(bird): %v", err)
		}
		defer hb.Drop()

		up, err := hb.Object().Downcast(tok, creatureType)
		if err != nil {
			t.Fatalf("Downcast to base: %v", err)
		}
		if up.Ref() != hb.Object().Ref() {
			t.Fatal("downcast changed the handle")
		}

		hc, err := extend.New(tok, &creature{Name: "blob"})
		if err != nil {
			t.Fatalf("New(creature): %v", err)
		}
		defer hc.Drop()
		if _, err := hc.Object().Downcast(tok, birdType); !errors.IsKind(err, errors.KindTypeMismatch) {
			t.Fatalf("Downcast base to derived = %v, want type mismatch", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func TestBorrowFlagSharedAcrossLayers(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	err := attach.With(rt, func(tok attach.Token) error {
		hb, err := extend.New(tok, &bird{Wingspan: 9}, &creature{Name: "owl"})
		if err != nil {
			t.Fatalf("New(bird): %v", err)
		}
		defer hb.Drop()

		hc, err := extend.Cast[creature](tok, hb.Object())
		if err != nil {
			t.Fatalf("Cast[creature]: %v", err)
		}
		defer hc.Drop()

		// One flag word covers the whole instance: a mutable borrow on
		// the derived layer blocks shared access to the base layer.
		gm, err := hb.TryBorrowMut(tok)
		if err != nil {
			t.Fatalf("TryBorrowMut: %v", err)
		}
		if _, err := hc.TryBorrow(tok); !errors.IsKind(err, errors.KindBorrowConflict) {
			t.Fatalf("TryBorrow during mut = %v, want borrow conflict", err)
		}
		gm.Value().Wingspan = 11
		gm.Release()

		// And shared borrows on either layer block the writer.
		gs, err := hc.TryBorrow(tok)
		if err != nil {
			t.Fatalf("TryBorrow: %v", err)
		}
		if _, err := hb.TryBorrowMut(tok); !errors.IsKind(err, errors.KindBorrowMutConflict) {
			t.Fatalf("TryBorrowMut during shared = %v, want borrow mut conflict", err)
		}
		gs.Release()

		gm2 := hb.BorrowMut(tok)
		if gm2.Value().Wingspan != 11 {
			t.Fatalf("Wingspan = %d, want 11", gm2.Value().Wingspan)
		}
		gm2.Release()
		return nil
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func TestFrozenSettings(t *testing.T) {
	setup(t)
	rt := newRuntime(t)

	err := attach.With(rt, func(tok attach.Token) error {
		h, err := extend.New(tok, &settings{Limit: 42})
		if err != nil {
			t.Fatalf("New(settings): %v", err)
		}
		defer h.Drop()

		// Frozen types hand out any number of shared borrows.
		g1 := h.Borrow(tok)
		g2 := h.Borrow(tok)
		if g1.Value().Limit != 42 || g2.Value().Limit != 42 {
			t.Fatalf("Limit = %d/%d, want 42", g1.Value().Limit, g2.Value().Limit)
		}
		g1.Release()
		g2.Release()

		if _, err := h.TryBorrowMut(tok); !errors.IsKind(err, errors.KindFrozen) {
			t.Fatalf("TryBorrowMut = %v, want frozen", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
}
