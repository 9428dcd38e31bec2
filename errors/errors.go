package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the build pipeline the error occurred
type Phase string

const (
	PhaseScan     Phase = "scan"     // plugin discovery
	PhaseMetadata Phase = "metadata" // embedded metadata extraction
	PhaseIntern   Phase = "intern"   // string table construction
	PhaseLayout   Phase = "layout"   // canonical ABI layout
	PhaseEmit     Phase = "emit"     // WAT text emission
	PhaseParse    Phase = "parse"    // WAT parsing
	PhaseWit      Phase = "wit"      // WIT synthesis and resolution
	PhaseAssemble Phase = "assemble" // binary assembly and wrapping
	PhaseVerify   Phase = "verify"   // artifact verification
	PhaseManifest Phase = "manifest" // manifest and lockfile handling
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData   Kind = "invalid_data"
	KindInvalidName   Kind = "invalid_name"
	KindDuplicate     Kind = "duplicate"
	KindShadowedAlias Kind = "shadowed_alias"
	KindPlaceholder   Kind = "placeholder"
	KindUnresolved    Kind = "unresolved"
	KindNotFound      Kind = "not_found"
	KindNotComponent  Kind = "not_component"
	KindMismatch      Kind = "mismatch"
	KindUnsupported   Kind = "unsupported"
	KindOverflow      Kind = "overflow"
	KindIO            Kind = "io"
)

// Error is the structured error type used throughout the tool
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
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

// Path sets the field path
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

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// InvalidName creates an invalid name error
func InvalidName(phase Phase, name, rule string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidName,
		Detail: fmt.Sprintf("name %q does not match %s", name, rule),
		Value:  name,
	}
}

// Duplicate creates a duplicate entry error
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("duplicate %s %q", what, name),
		Value:  name,
	}
}

// ShadowedAlias creates an alias shadowing error
func ShadowedAlias(alias, owner, shadowed string) *Error {
	return &Error{
		Phase:  PhaseIntern,
		Kind:   KindShadowedAlias,
		Detail: fmt.Sprintf("alias %q of command %q shadows command %q", alias, owner, shadowed),
		Value:  alias,
	}
}

// Placeholder creates a template placeholder error
func Placeholder(name string, count int) *Error {
	return &Error{
		Phase:  PhaseEmit,
		Kind:   KindPlaceholder,
		Detail: fmt.Sprintf("placeholder %s occurs %d times, want exactly 1", name, count),
		Value:  name,
	}
}

// Unresolved creates a dangling reference error
func Unresolved(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnresolved,
		Detail: fmt.Sprintf("unresolved %s %q", what, name),
		Value:  name,
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

// NotComponent creates an error for a file that is not a component binary
func NotComponent(path string, detail string) *Error {
	return &Error{
		Phase:  PhaseScan,
		Kind:   KindNotComponent,
		Detail: fmt.Sprintf("%s: %s", path, detail),
	}
}

// Mismatch creates a mismatch error between two values that must agree
func Mismatch(phase Phase, what, got, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMismatch,
		Detail: fmt.Sprintf("%s mismatch: got %q, want %q", what, got, want),
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

// Overflow creates an overflow error
func Overflow(phase Phase, what string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("%s overflows: %v", what, value),
		Value:  value,
	}
}

// IO wraps a filesystem error
func IO(phase Phase, path string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: path,
		Cause:  cause,
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

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
