package collab

import (
	"fmt"

	"gsbuilder/internal/ast"
)

// DiagnosticKind is the taxonomy from spec §7. Unresolved never reaches
// here (it's queued, not diagnosed); the rest are surfaced through the
// sink at the point named in their doc comment.
type DiagnosticKind int

const (
	// DiagConcreteRequirement: a requirement was written on a concrete
	// type. Diagnosed only if the requirement was explicit.
	DiagConcreteRequirement DiagnosticKind = iota
	// DiagConflicting: mutually unsatisfiable constraints.
	DiagConflicting
	// DiagRedundant: implied by another constraint; only reported for
	// non-derived, non-inferred constraints with a valid source location.
	DiagRedundant
	// DiagRecursiveConcrete: a class's concrete binding is recursive.
	DiagRecursiveConcrete
	// DiagRecursiveSuperclass: a class's superclass binding is recursive.
	DiagRecursiveSuperclass
	// DiagRenamed: typo correction succeeded.
	DiagRenamed
	// DiagInvalidNestedType: typo correction failed; the PA is invalid.
	DiagInvalidNestedType
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagConcreteRequirement:
		return "requirement written on concrete type"
	case DiagConflicting:
		return "conflicting requirement"
	case DiagRedundant:
		return "redundant requirement"
	case DiagRecursiveConcrete:
		return "recursive concrete type binding"
	case DiagRecursiveSuperclass:
		return "recursive superclass binding"
	case DiagRenamed:
		return "typo-corrected nested type name"
	case DiagInvalidNestedType:
		return "unresolved nested type"
	default:
		return "unknown diagnostic"
	}
}

// Diagnostic is one accumulated fact. Operands mirrors the spec's
// "source locations + typed values" callback shape loosely enough that a
// sink can render without caring about the builder's internal types.
type Diagnostic struct {
	Kind      DiagnosticKind
	Location  ast.SourceLoc
	Message   string
	Operands  []string
}

func (d Diagnostic) String() string {
	if d.Location.IsEmpty() {
		return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: [%s] %s", d.Location.CursorString(), d.Kind, d.Message)
}

// DiagnosticSink is where the builder accumulates everything in the §7
// taxonomy. It never returns an error and never aborts the build.
type DiagnosticSink interface {
	Emit(Diagnostic)
}

// CollectingSink is a DiagnosticSink that just remembers everything —
// what cmd/gsbuild and the test suite use.
type CollectingSink struct {
	Diagnostics []Diagnostic
}

func (s *CollectingSink) Emit(d Diagnostic) {
	s.Diagnostics = append(s.Diagnostics, d)
}

func (s *CollectingSink) Of(kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.Diagnostics {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
