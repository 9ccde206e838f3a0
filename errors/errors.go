package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// As is errors.As from the standard library, re-exported so callers need
// only one errors import.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Is is errors.Is from the standard library.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAttach   Phase = "attach"   // lock acquisition / token handling
	PhaseAlloc    Phase = "alloc"    // heap allocation
	PhaseConvert  Phase = "convert"  // Go to runtime value conversion and back
	PhaseCall     Phase = "call"     // protocol calls into the runtime
	PhaseBorrow   Phase = "borrow"   // embedded value borrow checking
	PhaseRegister Phase = "register" // extension type registration
	PhaseTraverse Phase = "traverse" // cycle collector traverse/clear callbacks
	PhaseRuntime  Phase = "runtime"  // runtime lifecycle operations
)

// Kind categorizes the error
type Kind string

const (
	KindBorrowConflict    Kind = "borrow_conflict"
	KindBorrowMutConflict Kind = "borrow_mut_conflict"
	KindFrozen            Kind = "frozen"
	KindCleared           Kind = "cleared"
	KindTypeMismatch      Kind = "type_mismatch"
	KindNullPointer       Kind = "null_pointer"
	KindRaised            Kind = "raised"
	KindOutOfMemory       Kind = "out_of_memory"
	KindOverflow          Kind = "overflow"
	KindNotFound          Kind = "not_found"
	KindAlreadyRegistered Kind = "already_registered"
	KindFinalized         Kind = "finalized"
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidBase       Kind = "invalid_base"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Exc    string // runtime exception type name, when one was in flight
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Exc != "" {
		b.WriteString(": ")
		b.WriteString(e.Exc)
	}
	if e.GoType != "" {
		b.WriteString(": Go type ")
		b.WriteString(e.GoType)
	}

	if e.Detail != "" {
		if e.Exc != "" || e.GoType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is an *Error with the given kind, at any depth
// of the cause chain.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Exc sets the runtime exception type name
func (b *Builder) Exc(name string) *Builder {
	b.err.Exc = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BorrowConflict reports a failed shared borrow: the value is currently
// mutably borrowed.
func BorrowConflict(phase Phase, typeName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBorrowConflict,
		GoType: typeName,
		Detail: "already mutably borrowed",
	}
}

// BorrowMutConflict reports a failed exclusive borrow: the value is currently
// borrowed (shared or exclusive).
func BorrowMutConflict(phase Phase, typeName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindBorrowMutConflict,
		GoType: typeName,
		Detail: "already borrowed",
	}
}

// Frozen reports a mutable borrow attempt on a frozen (declared-immutable)
// extension type.
func Frozen(phase Phase, typeName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFrozen,
		GoType: typeName,
		Detail: "type is frozen; only shared access is available",
	}
}

// Cleared reports access to an embedded value whose storage was released by
// the cycle collector or destructor.
func Cleared(phase Phase, typeName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCleared,
		GoType: typeName,
		Detail: "access to freed object",
	}
}

// Raised converts an in-flight runtime exception into an error. The caller
// must have consumed (cleared) the pending state before constructing this.
func Raised(phase Phase, excType, msg string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRaised,
		Exc:    excType,
		Detail: msg,
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, runtimeType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		Detail: fmt.Sprintf("runtime type %s", runtimeType),
	}
}

// NullPointer reports a null object reference where a non-null one was
// required.
func NullPointer(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNullPointer,
		Detail: detail,
	}
}

// OutOfMemory creates an allocation failure error
func OutOfMemory(phase Phase, size uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfMemory,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// AlreadyRegistered reports a duplicate extension type registration.
func AlreadyRegistered(name string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindAlreadyRegistered,
		Detail: fmt.Sprintf("type %q already registered", name),
	}
}

// InvalidBase reports an unusable base type in an extension type declaration.
func InvalidBase(name, detail string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindInvalidBase,
		GoType: name,
		Detail: detail,
	}
}

// Finalized reports an operation against a runtime that has been shut down.
func Finalized(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFinalized,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
