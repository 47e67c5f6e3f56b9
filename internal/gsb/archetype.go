package gsb

import (
	"fmt"

	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// PotentialArchetype is the union-find vertex from spec §3: either a
// root bound to a generic parameter, or a nested type of another PA.
// Non-root PAs hold rep in place of class; get_representative (§4.1)
// follows rep with full path compression.
type PotentialArchetype struct {
	// root discriminant
	isRoot bool
	rootKey ast.GenericParamKey
	rootName string

	// nested discriminant
	parent *PotentialArchetype
	name   ast.Identifier
	// resolvedAssoc/resolvedAlias record how this nested PA was bound,
	// used by canonical ordering (spec §4.8 point 5) and by renaming.
	resolvedAssoc *collab.AssociatedTypeDecl
	resolvedAlias *collab.TypealiasDecl

	// union-find state: exactly one of rep/class is non-nil once the PA
	// has been touched by the builder (spec Invariant A).
	rep   *PotentialArchetype
	class *EquivalenceClass

	// nested[name] holds every PA contributed under that name — multiple
	// entries arise when several conformed protocols each contribute a
	// same-named associated type before they're unified (spec §3).
	nested map[ast.Identifier][]*PotentialArchetype

	isUnresolvedNested  bool
	recursiveConcrete   bool
	recursiveSuperclass bool
	renamed             bool
	originalName        ast.Identifier
	invalid             bool

	// insertion order, used to break ties deterministically when two PAs
	// are otherwise incomparable (spec §9's "implementation must
	// document its tie-break").
	seq int
}

func newRootPA(key ast.GenericParamKey, name string, seq int) *PotentialArchetype {
	return &PotentialArchetype{
		isRoot:   true,
		rootKey:  key,
		rootName: name,
		nested:   map[ast.Identifier][]*PotentialArchetype{},
		seq:      seq,
	}
}

func newNestedPA(parent *PotentialArchetype, name ast.Identifier, seq int) *PotentialArchetype {
	return &PotentialArchetype{
		parent: parent,
		name:   name,
		nested: map[ast.Identifier][]*PotentialArchetype{},
		seq:    seq,
	}
}

func (pa *PotentialArchetype) IsRoot() bool { return pa.isRoot }

func (pa *PotentialArchetype) String() string {
	if pa.isRoot {
		if pa.rootName != "" {
			return pa.rootName
		}
		return fmt.Sprintf("τ_%d_%d", pa.rootKey.Depth, pa.rootKey.Index)
	}
	return fmt.Sprintf("%s.%s", pa.parent.String(), pa.name)
}

// AsType renders the PA's dependent-type path as an external types.Type
// value — what gets substituted for Self when walking into a nested type
// (spec §4.2 visit_path's Parent/ProtocolRequirement cases).
func (pa *PotentialArchetype) AsType() types.Type {
	if pa.isRoot {
		return &types.ParamType{Key: pa.rootKey, Name: pa.rootName}
	}
	return &types.MemberType{Base: pa.parent.AsType(), Name: pa.name}
}

// getRepresentative implements spec §4.1 get_representative: follow rep
// to the root, then point every visited node directly at it (full path
// compression).
func getRepresentative(pa *PotentialArchetype) *PotentialArchetype {
	root := pa
	var visited []*PotentialArchetype
	for root.rep != nil {
		visited = append(visited, root)
		root = root.rep
	}
	for _, v := range visited {
		if v != root {
			v.rep = root
		}
	}
	return root
}

// getOrCreateEquivalenceClass implements §4.1
// get_or_create_equivalence_class: the representative owns the class.
func getOrCreateEquivalenceClass(pa *PotentialArchetype) *EquivalenceClass {
	rep := getRepresentative(pa)
	if rep.class == nil {
		rep.class = newEquivalenceClass(rep)
	}
	return rep.class
}

// paHelpers bound to Builder; kept here since they're archetype-shaped.

func paType(pa *PotentialArchetype) types.Type {
	return pa.AsType()
}

// memberNameOf is unused directly (path resolution goes through
// resolveTypeExprToPA instead, which recurses structurally), kept only
// for clarity at call sites that already hold a MemberType in hand.
func memberNameOf(t types.Type) ast.Identifier {
	if m, ok := t.(*types.MemberType); ok {
		return m.Name
	}
	return ""
}

func assocBoundSelfType(a *collab.AssociatedTypeDecl) types.Type {
	return &types.MemberType{Base: &types.ParamType{Key: collab.SelfKey}, Name: a.Name}
}
