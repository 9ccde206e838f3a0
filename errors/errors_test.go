package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := New(PhaseConvert, KindOverflow).
		Path("config", "retries").
		GoType("int8").
		Detail("value 4096 overflows int8").
		Build()

	msg := err.Error()
	if !strings.Contains(msg, "[convert]") {
		t.Errorf("missing phase: %s", msg)
	}
	if !strings.Contains(msg, "overflow") {
		t.Errorf("missing kind: %s", msg)
	}
	if !strings.Contains(msg, "config.retries") {
		t.Errorf("missing path: %s", msg)
	}
	if !strings.Contains(msg, "int8") {
		t.Errorf("missing Go type: %s", msg)
	}
}

func TestError_RaisedFormat(t *testing.T) {
	err := Raised(PhaseCall, "TypeError", "expected int, got str")
	msg := err.Error()
	if !strings.Contains(msg, "TypeError") {
		t.Errorf("missing exception type: %s", msg)
	}
	if !strings.Contains(msg, "expected int, got str") {
		t.Errorf("missing detail: %s", msg)
	}
}

func TestError_Is(t *testing.T) {
	err := BorrowConflict(PhaseBorrow, "Counter")

	if !stderrors.Is(err, &Error{Phase: PhaseBorrow, Kind: KindBorrowConflict}) {
		t.Error("Is should match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseBorrow, Kind: KindFrozen}) {
		t.Error("Is should not match different kind")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(PhaseAlloc, KindOutOfMemory, cause, "grow failed")

	if !stderrors.Is(err, cause) {
		t.Error("cause should be reachable via Unwrap")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("cause missing from message: %s", err.Error())
	}
}

func TestIsKind(t *testing.T) {
	inner := Frozen(PhaseBorrow, "Config")
	wrapped := fmt.Errorf("while handling request: %w", inner)

	if !IsKind(wrapped, KindFrozen) {
		t.Error("IsKind should see through fmt.Errorf wrapping")
	}
	if IsKind(wrapped, KindCleared) {
		t.Error("IsKind should not match a different kind")
	}
	if IsKind(nil, KindFrozen) {
		t.Error("IsKind(nil) must be false")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cases := []struct {
		err  *Error
		kind Kind
	}{
		{BorrowConflict(PhaseBorrow, "T"), KindBorrowConflict},
		{BorrowMutConflict(PhaseBorrow, "T"), KindBorrowMutConflict},
		{Frozen(PhaseBorrow, "T"), KindFrozen},
		{Cleared(PhaseBorrow, "T"), KindCleared},
		{TypeMismatch(PhaseConvert, nil, "int", "str"), KindTypeMismatch},
		{NullPointer(PhaseCall, "null result"), KindNullPointer},
		{OutOfMemory(PhaseAlloc, 64, nil), KindOutOfMemory},
		{NotFound(PhaseCall, "attribute", "missing"), KindNotFound},
		{AlreadyRegistered("Counter"), KindAlreadyRegistered},
		{InvalidBase("Derived", "base is frozen"), KindInvalidBase},
		{Finalized(PhaseAttach, "runtime closed"), KindFinalized},
	}

	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Errorf("expected kind %s, got %s", c.kind, c.err.Kind)
		}
		if c.err.Error() == "" {
			t.Errorf("empty message for kind %s", c.kind)
		}
	}
}
