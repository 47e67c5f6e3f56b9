// Package collab names the collaborators spec §6 says are injected into
// the builder rather than implemented by it: the conformance oracle, the
// lazy resolver, the diagnostic sink, and the type-system utilities. Each
// is a small interface; a test or the cmd/gsbuild demo supplies a
// concrete implementation (see internal/gsb/*_test.go's fakeEnvironment
// and internal/scenario's Environment, used by cmd/gsbuild).
package collab

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/types"
)

// ProtocolName names a protocol declaration.
type ProtocolName string

// SelfKey is the sentinel generic-param key used inside a protocol's own
// declared interface types (associated type bounds, typealias right-hand
// sides) to stand for the protocol's `Self`. update_nested_for_conformance
// (spec §4.3) substitutes the conforming PA's type for this key before
// using the declared type.
var SelfKey = ast.GenericParamKey{Depth: 0xFFFF, Index: 0}

// AssociatedTypeDecl is a protocol's `associatedtype A: Q` member.
type AssociatedTypeDecl struct {
	Name     ast.Identifier
	Protocol ProtocolName
	// Bound lists the protocols named in the associated type's own
	// declaration (A: Q). The builder does not read it: creating the
	// associated type's PA adds no conformance for these protocols, which
	// reach the nested PA only through the protocol's requirement
	// signature (for example Self.A: Q).
	Bound []ProtocolName
}

// TypealiasDecl is a protocol- or module-scoped `typealias A = ...`.
type TypealiasDecl struct {
	Name       ast.Identifier
	Protocol   ProtocolName // "" if module-scoped rather than protocol-scoped
	Module     ast.ModuleName
	Underlying types.Type // may reference SelfKey
}

// Requirement is one entry of a protocol's requirement signature (spec
// §4.4 add_conformance step 5) or of an explicit client requirement (§6
// add_requirement).
type Requirement struct {
	Kind       RequirementKind
	Subject    types.Type
	Protocol   ProtocolName // Kind == Conformance
	Superclass types.Type   // Kind == Superclass
	Layout     types.Layout // Kind == Layout
	Other      types.Type   // Kind == SameType
}

type RequirementKind int

const (
	RequirementConformance RequirementKind = iota
	RequirementSuperclass
	RequirementLayout
	RequirementSameType
)

// ProtocolDecl is everything about a protocol the nested-type resolver
// and add_conformance need: its own associated types and typealiases,
// the protocols it inherits, and (if available) its requirement
// signature. When RequirementSignature is absent, add_conformance falls
// back to walking InheritedProtocols itself (spec §4.4 step 5, "Else
// recursively walk inherited protocols and where-clauses").
type ProtocolDecl struct {
	Name                 ProtocolName
	Module               ast.ModuleName
	AssociatedTypes      []AssociatedTypeDecl
	Typealiases          []TypealiasDecl
	InheritedProtocols   []ProtocolName
	RequirementSignature []Requirement
	HasRequirementSig    bool
}

// LazyResolver resolves protocol declarations on demand (spec §6). The
// builder never inspects a protocol's body until a conformance
// requirement on it is actually added.
type LazyResolver interface {
	ResolveProtocol(name ProtocolName) (*ProtocolDecl, bool)
	// ModuleTypealiases returns the typealiases declared directly in a
	// module (as opposed to inside a protocol body) — spec §4.3
	// get_nested_archetype_anchor: "updates for every typealias in the
	// protocol's own module".
	ModuleTypealiases(module ast.ModuleName) []TypealiasDecl
	// ResolveGenericOwnRequirements returns a nominal type's own declared
	// generic requirements (e.g. `struct Array<Element: Equatable>`),
	// expressed over ParamType keys at the returned depth, plus that
	// depth — spec §6 infer_requirements substitutes these against the
	// actual type arguments it encounters. Returns (nil, 0) for a type
	// with no generic parameters of its own or that the resolver does
	// not recognize.
	ResolveGenericOwnRequirements(typeName string) ([]Requirement, uint16)
}
