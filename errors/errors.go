package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode  Phase = "decode"  // class bytes to model
	PhaseRewrite Phase = "rewrite" // call-site matching and edits
	PhaseEncode  Phase = "encode"  // model to class bytes
	PhaseConfig  Phase = "config"  // rule table and tool settings
	PhaseIO      Phase = "io"      // directory and archive traversal
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedUnit        Kind = "malformed_unit"
	KindEncodingOverflow     Kind = "encoding_overflow"
	KindUnsupportedHookPoint Kind = "unsupported_hook_point"
	KindInvalidRule          Kind = "invalid_rule"
	KindDuplicateRule        Kind = "duplicate_rule"
	KindNotFound             Kind = "not_found"
	KindInvalidInput         Kind = "invalid_input"
)

// Sentinels for errors.Is. Matching compares Phase and Kind only.
var (
	ErrMalformedUnit    = &Error{Phase: PhaseDecode, Kind: KindMalformedUnit}
	ErrEncodingOverflow = &Error{Phase: PhaseEncode, Kind: KindEncodingOverflow}
	ErrInvalidRule      = &Error{Phase: PhaseConfig, Kind: KindInvalidRule}
	ErrDuplicateRule    = &Error{Phase: PhaseConfig, Kind: KindDuplicateRule}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Unit   string
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

	if e.Unit != "" {
		b.WriteString(" in ")
		b.WriteString(e.Unit)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
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

// Unit sets the class the error belongs to
func (b *Builder) Unit(name string) *Builder {
	b.err.Unit = name
	return b
}

// Path sets the location path (method, attribute, ...)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
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

// MalformedUnit creates a decode error for structurally invalid input
func MalformedUnit(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindMalformedUnit,
		Detail: detail,
		Cause:  cause,
	}
}

// EncodingOverflow creates an encode error for a result exceeding format limits
func EncodingOverflow(path []string, value any, limit string) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindEncodingOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v exceeds %s", value, limit),
		Value:  value,
	}
}

// UnsupportedHookPoint creates the diagnostic raised when a hook point has no behavior
func UnsupportedHookPoint(unit string, path []string, what string) *Error {
	return &Error{
		Phase:  PhaseRewrite,
		Kind:   KindUnsupportedHookPoint,
		Unit:   unit,
		Path:   path,
		Detail: what,
	}
}

// InvalidRule creates a rule validation error
func InvalidRule(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidRule,
		Path:   path,
		Detail: detail,
	}
}

// DuplicateRule creates an error for a target triple declared twice
func DuplicateRule(owner, name, desc string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindDuplicateRule,
		Detail: fmt.Sprintf("%s.%s%s declared more than once", owner, name, desc),
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

// WithUnit returns err annotated with the class name when err is an *Error
// without one. Other errors are returned unchanged.
func WithUnit(err error, unit string) error {
	if e, ok := err.(*Error); ok && e.Unit == "" {
		cp := *e
		cp.Unit = unit
		return &cp
	}
	return err
}

// Is forwards to the standard library errors.Is so callers need only this
// package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
