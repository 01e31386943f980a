// Package diag defines the diagnostic format shared by every stage of
// the ember pipeline: lexer, parser, compiler, and virtual machine.
//
// A single, uniform [Diagnostic] type lets the driver (CLI, REPL) render
// any failure the same way, regardless of which stage produced it.
package diag

import (
	"fmt"

	"github.com/dr8co/ember/span"
)

// Kind classifies which pipeline stage produced a [Diagnostic] and,
// within runtime diagnostics, which error category applies.
type Kind string

//nolint:revive
const (
	// Lexical stage kinds.
	UnterminatedString  Kind = "unterminated-string"
	UnterminatedComment Kind = "unterminated-comment"
	InvalidEscape       Kind = "invalid-escape"
	InvalidNumber       Kind = "invalid-number"
	UnexpectedCharacter Kind = "unexpected-character"

	// Parser stage kinds.
	UnexpectedToken     Kind = "unexpected-token"
	ExpectedGot         Kind = "expected-x-got-y"
	InvalidLeftHandSide Kind = "invalid-left-hand-side"

	// Compiler stage kinds.
	BreakOutsideLoop    Kind = "break-outside-loop"
	ContinueOutsideLoop Kind = "continue-outside-loop"
	DuplicateBinding    Kind = "duplicate-binding"
	AssignToConst       Kind = "assignment-to-const"
	TooManyConstants    Kind = "too-many-constants"
	TooManyLocals       Kind = "too-many-locals"

	// Runtime stage kinds.
	TypeError      Kind = "type-error"
	ReferenceError Kind = "reference-error"
	RangeError     Kind = "range-error"
	DivisionByZero Kind = "division-by-zero"
)

// Stage names the pipeline phase a diagnostic originated from.
type Stage string

//nolint:revive
const (
	Lexical Stage = "lexical"
	Parse   Stage = "parse"
	Compile Stage = "compile"
	Runtime Stage = "runtime"
)

// Diagnostic is a structured error carrying its stage, kind, a
// human-readable message, and the source span it applies to.
type Diagnostic struct {
	Stage   Stage
	Kind    Kind
	Message string
	Span    span.Span
}

// New builds a Diagnostic for the given stage, kind, and span, with a
// message produced by fmt.Sprintf(format, args...).
func New(stage Stage, kind Kind, sp span.Span, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Stage:   stage,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Span:    sp,
	}
}

// Error implements the error interface so a Diagnostic can be returned
// and compared anywhere ordinary Go errors are, while still carrying
// its span and kind for richer rendering.
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Span.Line, d.Span.Column, d.Kind, d.Message)
}
