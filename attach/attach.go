package attach

import (
	"github.com/wippyai/interp-bridge/errors"
	"github.com/wippyai/interp-bridge/interp"
)

// Token proves that the current goroutine holds the runtime lock. It is
// valid only inside the With call that produced it.
type Token struct {
	rt *interp.Runtime
}

// Runtime returns the runtime this token is attached to.
func (t Token) Runtime() *interp.Runtime { return t.rt }

// With attaches to the runtime, runs f with a Token, and detaches when f
// returns. Reentrant: calling With while already attached to the same
// runtime runs f immediately without deadlocking.
//
// If f returns nil but left an exception pending, the exception is fetched
// and converted into an error, so raised state never leaks past the
// attachment boundary. If f returns a non-nil error, any pending exception
// is discarded in its favor.
func With(rt *interp.Runtime, f func(Token) error) error {
	var err error
	rt.Run(func() {
		defer func() {
			if r := recover(); r != nil {
				rt.ClearRaised()
				panic(r)
			}
		}()
		err = f(Token{rt: rt})
		if p := rt.FetchRaised(); p != nil && err == nil {
			err = errors.Raised(errors.PhaseAttach, p.Type.Name, p.Msg)
		}
	})
	return err
}

// WithValue is With for closures that produce a result.
func WithValue[T any](rt *interp.Runtime, f func(Token) (T, error)) (T, error) {
	var out T
	err := With(rt, func(tok Token) error {
		var err error
		out, err = f(tok)
		return err
	})
	return out, err
}

// Current returns a token for an attachment the caller already holds,
// typically inside a callback invoked by the runtime itself. Fails if the
// goroutine is not attached.
func Current(rt *interp.Runtime) (Token, error) {
	if !rt.Attached() {
		return Token{}, errors.New(errors.PhaseAttach, errors.KindInvalidInput).
			Detail("goroutine is not attached").
			Build()
	}
	return Token{rt: rt}, nil
}

// Detach releases the runtime lock for the duration of f so other
// goroutines can attach, then reacquires it. The token and every borrowed
// reference derived from it must not be used inside f.
func (t Token) Detach(f func()) {
	t.rt.Detach(f)
}

// RaisedAsError fetches the pending exception, if any, and converts it to
// an error with the given phase. Returns nil when nothing is pending.
func (t Token) RaisedAsError(phase errors.Phase) error {
	p := t.rt.FetchRaised()
	if p == nil {
		return nil
	}
	return errors.Raised(phase, p.Type.Name, p.Msg)
}
