// Package common carries the builder's ambient concerns: the three-way
// error split the teacher uses (located user error / wrapped collaborator
// error / invariant violation), small slice helpers, and structured
// logging. None of this is domain logic — the domain's own error taxonomy
// (Unresolved/Concrete/Conflicting/Redundant/Recursive/Renamed/Invalid)
// lives in the collab package instead, since per spec §7 those never
// propagate as Go errors.
package common

import (
	"fmt"
	"runtime"

	"gsbuilder/internal/ast"
)

// Error is a located error raised when a caller violates one of the
// builder's external-interface contracts (§6) — e.g. adding generic
// parameters out of depth/index order. It is never used for the steady
// state diagnostics in §7, which go through the DiagnosticSink instead.
type Error struct {
	Location ast.SourceLoc
	Message  string
}

func (e Error) Error() string {
	if cs := e.Location.CursorString(); cs != "" {
		return fmt.Sprintf("%s: %s", cs, e.Message)
	}
	return e.Message
}

// NewSystemError wraps an error returned by an injected collaborator
// (conformance oracle, lazy resolver) that the builder cannot recover
// from.
func NewSystemError(err error) error {
	return systemError{inner: err}
}

type systemError struct {
	inner error
}

func (e systemError) Error() string {
	return fmt.Sprintf("collaborator error: %v", e.inner)
}

func (e systemError) Unwrap() error {
	return e.inner
}

// NewInvariantError reports a broken internal invariant (§3 Invariant
// A/B/C/D/E) — a "should never happen" condition caught at its call site,
// named after the teacher's compilerError.
func NewInvariantError(message string) error {
	_, file, line, _ := runtime.Caller(1)
	return invariantError{message: message, file: file, line: line}
}

type invariantError struct {
	message string
	file    string
	line    int
}

func (e invariantError) Error() string {
	return fmt.Sprintf("%s at %s:%d", e.message, e.file, e.line)
}
