// Package diagnostics defines the structured results reported by the type
// engine. None of them is fatal: callers turn them into source-level messages.
package diagnostics

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies the kind of a diagnostic.
type Code string

const (
	CodeRedeclared           Code = "C001"
	CodeTypeMismatch         Code = "C002"
	CodeTooManyParents       Code = "C003"
	CodeNotPermitted         Code = "C004"
	CodeNoSuchMember         Code = "C005"
	CodeNotDerived           Code = "C006"
	CodeUnresolved           Code = "S001"
	CodeCyclicBinding        Code = "S002"
	CodeTemplateArgs         Code = "T001"
	CodeInterfaceUnsatisfied Code = "I001"
)

var (
	ErrRedeclared           = errors.New("already defined")
	ErrTypeMismatch         = errors.New("type does not match the declared slot type")
	ErrTooManyParents       = errors.New("too many parents")
	ErrNotPermitted         = errors.New("member not permitted")
	ErrNoSuchMember         = errors.New("no such member")
	ErrNotDerived           = errors.New("class is not derived")
	ErrUnresolved           = errors.New("unresolved specialization")
	ErrCyclicBinding        = errors.New("cyclic type binding")
	ErrTemplateArgs         = errors.New("template arguments do not match parameters")
	ErrInterfaceUnsatisfied = errors.New("interface not satisfied")
)

var sentinels = map[Code]error{
	CodeRedeclared:           ErrRedeclared,
	CodeTypeMismatch:         ErrTypeMismatch,
	CodeTooManyParents:       ErrTooManyParents,
	CodeNotPermitted:         ErrNotPermitted,
	CodeNoSuchMember:         ErrNoSuchMember,
	CodeNotDerived:           ErrNotDerived,
	CodeUnresolved:           ErrUnresolved,
	CodeCyclicBinding:        ErrCyclicBinding,
	CodeTemplateArgs:         ErrTemplateArgs,
	CodeInterfaceUnsatisfied: ErrInterfaceUnsatisfied,
}

// Error is a diagnostic with enough context for a front-end to render it.
// Want and Got hold the canonical names of the two competing types, if any.
type Error struct {
	Code   Code
	Member string
	Class  string
	Want   string
	Got    string
	Line   int
	Cause  error
}

// New creates a diagnostic for code with the member and class it concerns.
func New(code Code, class, member string) *Error {
	return &Error{Code: code, Class: class, Member: member}
}

// WithTypes records the expected and actual type names.
func (e *Error) WithTypes(want, got string) *Error {
	e.Want = want
	e.Got = got
	return e
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// AtLine records the declaration line.
func (e *Error) AtLine(line int) *Error {
	e.Line = line
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	if s, ok := sentinels[e.Code]; ok {
		sb.WriteString(s.Error())
	} else {
		sb.WriteString("diagnostic")
	}
	switch {
	case e.Class != "" && e.Member != "":
		fmt.Fprintf(&sb, ": %s.%s", e.Class, e.Member)
	case e.Class != "":
		fmt.Fprintf(&sb, ": %s", e.Class)
	case e.Member != "":
		fmt.Fprintf(&sb, ": %s", e.Member)
	}
	if e.Want != "" || e.Got != "" {
		fmt.Fprintf(&sb, " (want %s, got %s)", e.Want, e.Got)
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, " at line %d", e.Line)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

// Is reports whether target is the sentinel for e's code.
func (e *Error) Is(target error) bool {
	return sentinels[e.Code] == target
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// MissingMethod describes an interface method a concrete type failed to
// provide. Got is empty when no same-named member exists.
type MissingMethod struct {
	Interface string
	Method    string
	Want      string
	Got       []string
}

func (m MissingMethod) String() string {
	if len(m.Got) == 0 {
		return fmt.Sprintf("%s.%s: missing (want %s)", m.Interface, m.Method, m.Want)
	}
	return fmt.Sprintf("%s.%s: incompatible (want %s, have %s)", m.Interface, m.Method, m.Want, strings.Join(m.Got, ", "))
}
