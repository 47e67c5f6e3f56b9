package collab

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/types"
)

// ConformanceRef is what the conformance oracle hands back: either a
// concrete conformance (a real witness table, exposing type witnesses for
// each associated type) or an abstract one (the dependent side conforms
// because of a requirement, not a concrete implementation — no witnesses).
type ConformanceRef interface {
	IsConcrete() bool
	TypeWitness(assoc ast.Identifier) (types.Type, bool)
}

// ConcreteConformance is the usual case: concrete.Name actually
// implements Protocol, with one witness type per associated type.
type ConcreteConformance struct {
	Protocol ProtocolName
	Witness  map[ast.Identifier]types.Type
}

func (c *ConcreteConformance) IsConcrete() bool { return true }
func (c *ConcreteConformance) TypeWitness(assoc ast.Identifier) (types.Type, bool) {
	t, ok := c.Witness[assoc]
	return t, ok
}

// AbstractConformance carries no witnesses; the builder's
// concreteTypeWitness falls back to forming DependentMember(concrete_type,
// A) when it sees one (spec §4.3 step 6).
type AbstractConformance struct {
	Protocol ProtocolName
}

func (c *AbstractConformance) IsConcrete() bool { return false }
func (c *AbstractConformance) TypeWitness(ast.Identifier) (types.Type, bool) {
	return nil, false
}

// ConformanceOracle answers "does concreteOrDependent conform to proto".
// add_conformance (spec §4.4 step 3) asks it about a class's superclass;
// add_same_type's concrete case (§4.4) asks it about the newly-bound
// concrete type for every protocol the class already conforms to.
type ConformanceOracle interface {
	Lookup(subject types.Type, proto ProtocolName) (ConformanceRef, bool)
}
