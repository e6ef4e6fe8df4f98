package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseConstruct Phase = "construct" // wrapping a native geometry
	PhaseSession   Phase = "session"   // opening a kernel context
	PhaseDispatch  Phase = "dispatch"  // bulk elementwise calls
	PhaseRegistry  Phase = "registry"  // operation registration and lookup
	PhaseKernel    Phase = "kernel"    // kernel selection
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseStore     Phase = "store"     // dataset persistence
	PhaseScript    Phase = "script"    // script evaluation
)

// Kind categorizes the error
type Kind string

const (
	KindConstruction     Kind = "construction"
	KindEngineInit       Kind = "engine_init"
	KindUnknownOperation Kind = "unknown_operation"
	KindShapeMismatch    Kind = "shape_mismatch"
	KindInvalidInput     Kind = "invalid_input"
	KindRegistration     Kind = "registration"
	KindNotFound         Kind = "not_found"
	KindUnsupported      Kind = "unsupported"
	KindStorage          Kind = "storage"
	KindScript           Kind = "script"
)

// Sentinels for errors.Is. They carry no phase, so they match an error of
// the same kind raised anywhere.
var (
	ErrConstruction     = &Error{Kind: KindConstruction}
	ErrEngineInit       = &Error{Kind: KindEngineInit}
	ErrUnknownOperation = &Error{Kind: KindUnknownOperation}
	ErrShapeMismatch    = &Error{Kind: KindShapeMismatch}
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrRegistration     = &Error{Kind: KindRegistration}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
	ErrStorage          = &Error{Kind: KindStorage}
	ErrScript           = &Error{Kind: KindScript}
)

// Error is the structured error type used throughout geoarray
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target matches this error. Kinds must be equal; the
// phase is compared only when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
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

// Op sets the operation name
func (b *Builder) Op(name string) *Builder {
	b.err.Op = name
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

// Construction creates a construction error for a geometry that could not
// be wrapped.
func Construction(detail string, args ...any) *Error {
	return New(PhaseConstruct, KindConstruction).Detail(detail, args...).Build()
}

// EngineInit creates an error for a kernel context that could not be opened.
func EngineInit(kernel string) *Error {
	return &Error{
		Phase:  PhaseSession,
		Kind:   KindEngineInit,
		Detail: fmt.Sprintf("kernel %q failed to open a context", kernel),
		Value:  kernel,
	}
}

// UnknownOperation creates an error for an operation name with no descriptor.
func UnknownOperation(name string) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindUnknownOperation,
		Op:     name,
		Detail: fmt.Sprintf("no operation named %q", name),
		Value:  name,
	}
}

// ShapeMismatch creates an error for operands or call shapes that do not fit.
func ShapeMismatch(op, detail string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindShapeMismatch,
		Op:     op,
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

// NotFound creates a not found error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: what + " not found",
		Value:  what,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
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
