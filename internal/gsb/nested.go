package gsb

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// NestedMode selects how update_nested_for_conformance / get_nested_archetype_anchor
// behave when the name isn't already bound (spec §4.3).
type NestedMode int

const (
	// AddIfMissing creates a new nested PA when nothing else matches.
	AddIfMissing NestedMode = iota
	// AddIfBetterAnchor binds an unresolved placeholder like the other
	// modes, and otherwise creates a new PA bound to the associated type
	// only when the parent already has a nested PA of that name; with no
	// same-named PA present it creates nothing.
	AddIfBetterAnchor
	// ResolveExisting never creates anything; it only looks for and
	// binds an already-present placeholder.
	ResolveExisting
)

// updateNestedForConformance implements spec §4.3's six-step protocol
// for adding a nested PA N under parent P for associated type A declared
// in protocol Q.
func (b *Builder) updateNestedForConformance(parent *PotentialArchetype, a *collab.AssociatedTypeDecl, mode NestedMode) *PotentialArchetype {
	rep := getRepresentative(parent)
	name := a.Name

	// Step 1: reuse a PA already bound to exactly this associated type.
	for _, existing := range rep.nested[name] {
		if existing.resolvedAssoc != nil && existing.resolvedAssoc.Name == a.Name && existing.resolvedAssoc.Protocol == a.Protocol {
			return existing
		}
	}

	var n *PotentialArchetype

	// Step 2: bind an unresolved placeholder with the same name.
	for _, existing := range rep.nested[name] {
		if existing.isUnresolvedNested {
			existing.isUnresolvedNested = false
			b.numUnresolvedNested--
			existing.resolvedAssoc = a
			n = existing
			break
		}
	}

	if n == nil {
		if mode == ResolveExisting {
			return nil
		}
		if mode == AddIfBetterAnchor && len(rep.nested[name]) == 0 {
			return nil
		}
		// Step 3: create a new PA.
		n = newNestedPA(rep, name, b.nextSeq)
		b.nextSeq++
		n.resolvedAssoc = a
		getOrCreateEquivalenceClass(n)
		b.allPAs = append(b.allPAs, n)
		siblings := rep.nested[name]
		rep.nested[name] = append(siblings, n)

		if len(rep.nested[name]) > 1 {
			other := rep.nested[name][0]
			if other == n {
				other = rep.nested[name][1]
			}
			b.emitNestedTypeNameMatch(n, other)
		}
	}

	// Step 4: typealiases declared alongside A's protocol that share its
	// name also same-type into N.
	if decl, ok := b.Resolver.ResolveProtocol(a.Protocol); ok {
		for _, alias := range decl.Typealiases {
			if alias.Name != name {
				continue
			}
			subst := map[ast.GenericParamKey]types.Type{collab.SelfKey: parent.AsType()}
			declared := types.Substitute(alias.Underlying, subst)
			src := b.interner.ForNestedTypeNameMatch(nil)
			b.addSameTypePAType(n, declared, src)
		}
	}

	// Step 5: superclass conformance propagates the class's type witness.
	if repClass := getOrCreateEquivalenceClass(rep); repClass.Superclass != nil {
		if conf, ok := b.Oracle.Lookup(repClass.Superclass, a.Protocol); ok {
			if witness, ok := conf.TypeWitness(a.Name); ok {
				base := b.interner.ForNestedTypeNameMatch(nil)
				if len(repClass.SuperclassConstraints) > 0 {
					base = repClass.SuperclassConstraints[0].Source
				}
				src := b.interner.ViaSuperclass(base, conf)
				b.addSameTypePAType(n, witness, src)
			}
		}
	}

	// Step 6: concretize every equivalent PA's copy of this nested type
	// if the class is already concretely bound.
	b.concretizeNestedIfClassConcrete(rep, a)

	return n
}

// concretizeNestedIfClassConcrete implements step 6 for every PA
// equivalent to rep, and is also called directly from add_same_type when
// a class newly becomes concrete (spec §4.4 add_same_type's PA/concrete
// case: "for every nested PA of every equivalent PA, concretize").
func (b *Builder) concretizeNestedIfClassConcrete(rep *PotentialArchetype, a *collab.AssociatedTypeDecl) {
	class := getOrCreateEquivalenceClass(rep)
	if class.ConcreteType == nil {
		return
	}
	base := b.interner.ForNestedTypeNameMatch(nil)
	if len(class.ConcreteTypeConstraints) > 0 {
		base = class.ConcreteTypeConstraints[0].Source
	}
	conf, _ := b.Oracle.Lookup(class.ConcreteType, a.Protocol)

	for _, member := range class.Members {
		for _, n := range member.nested[a.Name] {
			if n.resolvedAssoc == nil || n.resolvedAssoc.Name != a.Name || n.resolvedAssoc.Protocol != a.Protocol {
				continue
			}
			witnessType := b.concreteTypeWitness(class.ConcreteType, a)
			src := b.interner.ViaConcrete(base, conf)
			b.addSameTypePAType(n, witnessType, src)
		}
	}
}

// concreteTypeWitness computes concrete_type.A via the conformance
// oracle's type witness, or falls back to DependentMember(concrete_type,
// A) when the conformance is abstract (spec §4.3 step 6).
func (b *Builder) concreteTypeWitness(concrete types.Type, a *collab.AssociatedTypeDecl) types.Type {
	if conf, ok := b.Oracle.Lookup(concrete, a.Protocol); ok {
		if w, ok := conf.TypeWitness(a.Name); ok {
			return w
		}
	}
	return &types.MemberType{Base: concrete, Name: a.Name}
}

// getNestedArchetypeAnchor implements spec §4.3's last paragraph: scan
// every protocol the representative conforms to for the best matching
// associated type (by compareAssocTypes), update for it, then update for
// every typealias in the protocol's own module; if nothing matches and
// mode != ResolveExisting, synthesize an unresolved placeholder same-typed
// to any existing by-name sibling.
func (b *Builder) getNestedArchetypeAnchor(parent *PotentialArchetype, name ast.Identifier, mode NestedMode) *PotentialArchetype {
	rep := getRepresentative(parent)
	class := getOrCreateEquivalenceClass(rep)

	var best *collab.AssociatedTypeDecl
	protocols := make([]collab.ProtocolName, 0, len(class.ConformsTo))
	for proto := range class.ConformsTo {
		protocols = append(protocols, proto)
	}
	sortProtocolNames(protocols)

	for _, proto := range protocols {
		decl, ok := b.Resolver.ResolveProtocol(proto)
		if !ok {
			continue
		}
		for i := range decl.AssociatedTypes {
			cand := &decl.AssociatedTypes[i]
			if cand.Name != name {
				continue
			}
			if best == nil || compareAssocTypes(cand, best) < 0 {
				best = cand
			}
		}
	}

	var result *PotentialArchetype
	if best != nil {
		result = b.updateNestedForConformance(rep, best, mode)
	}

	for _, proto := range protocols {
		decl, ok := b.Resolver.ResolveProtocol(proto)
		if !ok {
			continue
		}
		for _, alias := range b.Resolver.ModuleTypealiases(decl.Module) {
			if alias.Name != name {
				continue
			}
			subst := map[ast.GenericParamKey]types.Type{collab.SelfKey: parent.AsType()}
			declared := types.Substitute(alias.Underlying, subst)
			if result == nil {
				result = b.createUnresolvedPlaceholder(rep, name)
				result.resolvedAlias = &alias
			}
			src := b.interner.ForNestedTypeNameMatch(nil)
			b.addSameTypePAType(result, declared, src)
		}
	}

	if result == nil && mode != ResolveExisting {
		if existing := rep.nested[name]; len(existing) > 0 {
			placeholder := b.createUnresolvedPlaceholder(rep, name)
			b.emitNestedTypeNameMatch(placeholder, existing[0])
			result = placeholder
		} else {
			result = b.createUnresolvedPlaceholder(rep, name)
		}
	}

	return result
}

// compareAssocTypes orders candidate associated-type declarations by
// name then protocol (spec §4.3's get_nested_archetype_anchor).
func compareAssocTypes(a, b *collab.AssociatedTypeDecl) int {
	if a.Name != b.Name {
		if a.Name < b.Name {
			return -1
		}
		return 1
	}
	if a.Protocol != b.Protocol {
		if a.Protocol < b.Protocol {
			return -1
		}
		return 1
	}
	return 0
}

func sortProtocolNames(ps []collab.ProtocolName) {
	for i := 1; i < len(ps); i++ {
		j := i
		for j > 0 && ps[j] < ps[j-1] {
			ps[j], ps[j-1] = ps[j-1], ps[j]
			j--
		}
	}
}

// emitNestedTypeNameMatch records the same-type edge §4.3 step 3 requires
// when a freshly created nested PA collides by name with an existing
// sibling contributed by a different protocol.
func (b *Builder) emitNestedTypeNameMatch(n, other *PotentialArchetype) {
	src := b.interner.ForNestedTypeNameMatch(nil)
	b.addSameTypePAPA(n, other, src)
}
