package gsb

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// ConformanceConstraint records that pa (as of this class) conforms to
// Protocol, and why (spec §3 EquivalenceClass.conforms_to).
type ConformanceConstraint struct {
	PA       *PotentialArchetype
	Protocol collab.ProtocolName
	Source   *RequirementSource
}

// SameTypeConstraint records pa == Other (spec §3 same_type_constraints).
type SameTypeConstraint struct {
	PA     *PotentialArchetype
	Other  *PotentialArchetype
	Source *RequirementSource
}

// ConcreteTypeConstraint records pa == Type (a concrete type).
type ConcreteTypeConstraint struct {
	PA     *PotentialArchetype
	Type   types.Type
	Source *RequirementSource
}

// SuperclassConstraint records pa's superclass bound.
type SuperclassConstraint struct {
	PA         *PotentialArchetype
	Superclass types.Type
	Source     *RequirementSource
}

// LayoutConstraint records one add_layout call contributing to the
// class's merged layout.
type LayoutConstraint struct {
	PA     *PotentialArchetype
	Layout types.Layout
	Source *RequirementSource
}

// derivedComponent is one connected component of the derived same-type
// subgraph within a class, computed only at finalization (spec §4.8).
type derivedComponent struct {
	Anchor               *PotentialArchetype
	ConcreteTypeSource   *RequirementSource // best source for this component's concrete binding, if any
}

// EquivalenceClass is the union-find class payload (spec §3). Exactly
// one PA per class owns it (its representative); every other member
// holds a rep pointer instead (Invariant A).
type EquivalenceClass struct {
	Representative *PotentialArchetype
	Members        []*PotentialArchetype

	ConformsTo map[collab.ProtocolName][]ConformanceConstraint
	// SameTypeConstraints is keyed by the PA on the "left" of the
	// constraint as recorded, matching spec's "mapping PA -> list".
	SameTypeConstraints map[*PotentialArchetype][]SameTypeConstraint

	ConcreteType            types.Type
	ConcreteTypeConstraints []ConcreteTypeConstraint

	Superclass            types.Type
	SuperclassConstraints []SuperclassConstraint

	Layout            types.Layout
	LayoutConstraints []LayoutConstraint

	DerivedSameTypeComponents []derivedComponent
}

func newEquivalenceClass(rep *PotentialArchetype) *EquivalenceClass {
	return &EquivalenceClass{
		Representative:      rep,
		Members:             []*PotentialArchetype{rep},
		ConformsTo:          map[collab.ProtocolName][]ConformanceConstraint{},
		SameTypeConstraints: map[*PotentialArchetype][]SameTypeConstraint{},
		Layout:              types.NoLayout,
	}
}

// addMember records pa as belonging to this class (Invariant D).
func (c *EquivalenceClass) addMember(pa *PotentialArchetype) {
	for _, m := range c.Members {
		if m == pa {
			return
		}
	}
	c.Members = append(c.Members, pa)
}

// mergeFrom absorbs other's constraint bags into c wholesale — called by
// the union-find merge in add_same_type (spec §4.4 "Merge every
// constraint bag").
func (c *EquivalenceClass) mergeFrom(other *EquivalenceClass) {
	c.Members = append(c.Members, other.Members...)

	for proto, cs := range other.ConformsTo {
		c.ConformsTo[proto] = append(c.ConformsTo[proto], cs...)
	}
	for pa, cs := range other.SameTypeConstraints {
		c.SameTypeConstraints[pa] = append(c.SameTypeConstraints[pa], cs...)
	}
	c.ConcreteTypeConstraints = append(c.ConcreteTypeConstraints, other.ConcreteTypeConstraints...)
	c.SuperclassConstraints = append(c.SuperclassConstraints, other.SuperclassConstraints...)
	c.LayoutConstraints = append(c.LayoutConstraints, other.LayoutConstraints...)

	if c.ConcreteType == nil {
		c.ConcreteType = other.ConcreteType
	}
	if c.Superclass == nil {
		c.Superclass = other.Superclass
	}
	if merged, ok := types.Meet(c.Layout, other.Layout); ok {
		c.Layout = merged
	}
}

// conformsToDirectly reports whether the class already has a conformance
// constraint recorded for proto, independent of PA (spec §4.4
// add_conformance step 1).
func (c *EquivalenceClass) conformsToDirectly(proto collab.ProtocolName) bool {
	_, ok := c.ConformsTo[proto]
	return ok
}

func uniqueIdentifier(i int) ast.Identifier {
	// helper for synthetic placeholder naming; nothing in the package
	// calls it at present (nested.go names placeholders after the
	// requested identifier).
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return ast.Identifier(letters[i : i+1])
	}
	return ast.Identifier(string(letters[i%len(letters)]) + string(rune('0'+i/len(letters))))
}
