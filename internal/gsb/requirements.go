package gsb

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// resolve implements spec §4.4 resolve()/resolve_archetype: a concrete
// type resolves to itself, a dependent type resolves to the PA it names
// (creating placeholders along the way), and a dependent type that cannot
// be rooted at a registered generic parameter (a key the builder has never
// seen, or a member of a concrete type) returns Unresolved.
func (b *Builder) resolve(t types.Type) (*PotentialArchetype, types.Type, ConstraintResult) {
	if types.IsConcrete(t) {
		return nil, t, ResultConcrete
	}
	if root, ok := rootKeyOf(t); ok && b.rootPAForKey(root) == nil {
		return nil, nil, ResultUnresolved
	}
	pa := b.resolveTypeExprToPA(t)
	if pa == nil {
		return nil, nil, ResultUnresolved
	}
	return pa, nil, ResultResolved
}

func rootKeyOf(t types.Type) (ast.GenericParamKey, bool) {
	switch v := t.(type) {
	case *types.ParamType:
		return v.Key, true
	case *types.MemberType:
		return rootKeyOf(v.Base)
	default:
		return ast.GenericParamKey{}, false
	}
}

// AddConformance implements spec §4.4 add_conformance.
func (b *Builder) AddConformance(subject types.Type, proto collab.ProtocolName, source *RequirementSource) ConstraintResult {
	pa, concrete, res := b.resolve(subject)
	switch res {
	case ResultUnresolved:
		b.queueDelayed(delayedRequirement{Kind: collab.RequirementConformance, Subject: subject, Protocol: proto, Source: source})
		return ResultUnresolved
	case ResultConcrete:
		return b.addConformanceConcrete(concrete, proto, source)
	default:
		return b.addConformancePA(pa, proto, source)
	}
}

func (b *Builder) addConformanceConcrete(concrete types.Type, proto collab.ProtocolName, source *RequirementSource) ConstraintResult {
	if _, ok := b.Oracle.Lookup(concrete, proto); ok {
		if source.HasWrittenLoc() {
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConcreteRequirement, Location: source.WrittenLoc, Message: "conformance requirement on concrete type " + concrete.String()})
		}
		return ResultConcrete
	}
	b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: concrete.String() + " does not conform to " + string(proto)})
	return ResultConflicting
}

func (b *Builder) addConformancePA(pa *PotentialArchetype, proto collab.ProtocolName, source *RequirementSource) ConstraintResult {
	rep := getRepresentative(pa)
	class := getOrCreateEquivalenceClass(rep)

	if class.conformsToDirectly(proto) {
		class.ConformsTo[proto] = append(class.ConformsTo[proto], ConformanceConstraint{PA: pa, Protocol: proto, Source: source})
		return ResultResolved
	}
	class.ConformsTo[proto] = append(class.ConformsTo[proto], ConformanceConstraint{PA: pa, Protocol: proto, Source: source})

	if class.ConcreteType != nil {
		return b.bindConformanceAgainstConcrete(rep, class, proto, source)
	}
	if class.Superclass != nil {
		if conf, ok := b.Oracle.Lookup(class.Superclass, proto); ok {
			b.propagateConformanceFromOracle(rep, proto, source, conf)
		}
	}

	decl, ok := b.Resolver.ResolveProtocol(proto)
	if !ok {
		return ResultResolved
	}
	for i := range decl.AssociatedTypes {
		b.updateNestedForConformance(rep, &decl.AssociatedTypes[i], AddIfMissing)
	}
	for _, req := range effectiveRequirements(decl) {
		b.walkProtocolRequirement(rep, decl.Name, req, source)
	}
	return ResultResolved
}

func (b *Builder) bindConformanceAgainstConcrete(rep *PotentialArchetype, class *EquivalenceClass, proto collab.ProtocolName, source *RequirementSource) ConstraintResult {
	conf, ok := b.Oracle.Lookup(class.ConcreteType, proto)
	if !ok {
		b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: class.ConcreteType.String() + " does not conform to " + string(proto)})
		return ResultConflicting
	}
	b.propagateConformanceFromOracle(rep, proto, source, conf)
	return ResultConcrete
}

func (b *Builder) propagateConformanceFromOracle(rep *PotentialArchetype, proto collab.ProtocolName, source *RequirementSource, conf collab.ConformanceRef) {
	decl, ok := b.Resolver.ResolveProtocol(proto)
	if !ok {
		return
	}
	for i := range decl.AssociatedTypes {
		b.updateNestedForConformance(rep, &decl.AssociatedTypes[i], AddIfMissing)
	}
	_ = conf
	b.concretizeAllNested(rep, decl)
}

func (b *Builder) concretizeAllNested(rep *PotentialArchetype, decl *collab.ProtocolDecl) {
	for i := range decl.AssociatedTypes {
		b.concretizeNestedIfClassConcrete(rep, &decl.AssociatedTypes[i])
	}
}

// effectiveRequirements returns decl's requirement signature, or — when
// the collaborator never supplied one — a synthesized one-entry-per-base
// list standing for its InheritedProtocols (spec §4.4 step 5 "Else
// recursively walk inherited protocols").
func effectiveRequirements(decl *collab.ProtocolDecl) []collab.Requirement {
	if decl.HasRequirementSig {
		return decl.RequirementSignature
	}
	out := make([]collab.Requirement, len(decl.InheritedProtocols))
	for i, p := range decl.InheritedProtocols {
		out[i] = collab.Requirement{Kind: collab.RequirementConformance, Subject: &types.ParamType{Key: collab.SelfKey}, Protocol: p}
	}
	return out
}

func (b *Builder) walkProtocolRequirement(rep *PotentialArchetype, proto collab.ProtocolName, req collab.Requirement, parent *RequirementSource) {
	subst := map[ast.GenericParamKey]types.Type{collab.SelfKey: rep.AsType()}
	subject := types.Substitute(req.Subject, subst)
	written := parent.HasWrittenLoc()
	src := b.interner.ViaProtocolRequirement(parent, proto, subject, false, written)

	switch req.Kind {
	case collab.RequirementConformance:
		b.AddConformance(subject, req.Protocol, src)
	case collab.RequirementSuperclass:
		b.AddSuperclass(subject, types.Substitute(req.Superclass, subst), src)
	case collab.RequirementLayout:
		b.AddLayout(subject, req.Layout, src)
	case collab.RequirementSameType:
		b.AddSameType(subject, types.Substitute(req.Other, subst), src)
	}
}

// AddSuperclass implements spec §4.4 add_superclass.
func (b *Builder) AddSuperclass(subject types.Type, superclass types.Type, source *RequirementSource) ConstraintResult {
	pa, _, res := b.resolve(subject)
	if res == ResultUnresolved {
		b.queueDelayed(delayedRequirement{Kind: collab.RequirementSuperclass, Subject: subject, Superclass: superclass, Source: source})
		return ResultUnresolved
	}
	if res == ResultConcrete {
		return ResultConcrete
	}

	rep := getRepresentative(pa)
	class := getOrCreateEquivalenceClass(rep)
	class.SuperclassConstraints = append(class.SuperclassConstraints, SuperclassConstraint{PA: pa, Superclass: superclass, Source: source})

	switch {
	case class.Superclass == nil:
		class.Superclass = superclass
	case types.IsExactSuperclassOf(superclass, class.Superclass):
		// the new bound is a subclass of the existing one: tighter, adopt it.
		class.Superclass = superclass
	case types.IsExactSuperclassOf(class.Superclass, superclass):
		// existing bound is already at least as tight; nothing to do.
	default:
		b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: "incompatible superclass bounds"})
		return ResultConflicting
	}

	if class.ConcreteType != nil && !types.IsExactSuperclassOf(class.ConcreteType, class.Superclass) {
		b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: "concrete type is not a subclass of the required superclass"})
		return ResultConflicting
	}

	for proto := range class.ConformsTo {
		if conf, ok := b.Oracle.Lookup(class.Superclass, proto); ok {
			b.propagateConformanceFromOracle(rep, proto, source, conf)
		}
	}
	return ResultResolved
}

// AddLayout implements spec §4.4 add_layout.
func (b *Builder) AddLayout(subject types.Type, layout types.Layout, source *RequirementSource) ConstraintResult {
	pa, _, res := b.resolve(subject)
	if res == ResultUnresolved {
		b.queueDelayed(delayedRequirement{Kind: collab.RequirementLayout, Subject: subject, LayoutV: layout, Source: source})
		return ResultUnresolved
	}
	if res == ResultConcrete {
		return ResultConcrete
	}

	rep := getRepresentative(pa)
	class := getOrCreateEquivalenceClass(rep)
	merged, ok := types.Meet(class.Layout, layout)
	if !ok {
		b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: "incompatible layout constraints"})
		return ResultConflicting
	}
	class.Layout = merged
	class.LayoutConstraints = append(class.LayoutConstraints, LayoutConstraint{PA: pa, Layout: layout, Source: source})
	return ResultResolved
}

// AddTypeRequirement implements spec §4.4 add_type_requirement: decompose
// an existential into its superclass bound and protocol set and apply
// each independently.
func (b *Builder) AddTypeRequirement(subject types.Type, existential *types.ExistentialType, source *RequirementSource) ConstraintResult {
	result := ResultResolved
	if existential.Superclass != nil {
		if r := b.AddSuperclass(subject, existential.Superclass, source); r == ResultConflicting {
			result = ResultConflicting
		}
	}
	for _, proto := range existential.Protocols {
		if r := b.AddConformance(subject, collab.ProtocolName(proto), source); r == ResultConflicting {
			result = ResultConflicting
		}
	}
	return result
}

// AddSameType implements spec §4.4 add_same_type's three cases.
func (b *Builder) AddSameType(x, y types.Type, source *RequirementSource) ConstraintResult {
	pa1, c1, r1 := b.resolve(x)
	pa2, c2, r2 := b.resolve(y)

	if r1 == ResultUnresolved || r2 == ResultUnresolved {
		b.queueDelayed(delayedRequirement{Kind: collab.RequirementSameType, Subject: x, Other: y, Source: source})
		return ResultUnresolved
	}

	switch {
	case r1 == ResultResolved && r2 == ResultResolved:
		return b.unifyPAPA(pa1, pa2, source)
	case r1 == ResultResolved:
		return b.unifyPAConcrete(pa1, c2, source)
	case r2 == ResultResolved:
		return b.unifyPAConcrete(pa2, c1, source)
	default:
		return b.unifyConcreteConcrete(c1, c2, source)
	}
}

func (b *Builder) addSameTypePAPA(pa1, pa2 *PotentialArchetype, source *RequirementSource) {
	b.unifyPAPA(pa1, pa2, source)
}

func (b *Builder) addSameTypePAType(pa *PotentialArchetype, t types.Type, source *RequirementSource) {
	if types.IsConcrete(t) {
		b.unifyPAConcrete(pa, t, source)
		return
	}
	other := b.resolveTypeExprToPA(t)
	if other != nil {
		b.unifyPAPA(pa, other, source)
	}
}

func (b *Builder) unifyPAPA(pa1, pa2 *PotentialArchetype, source *RequirementSource) ConstraintResult {
	r1, r2 := getRepresentative(pa1), getRepresentative(pa2)
	if r1 == r2 {
		c := getOrCreateEquivalenceClass(r1)
		c.SameTypeConstraints[pa1] = append(c.SameTypeConstraints[pa1], SameTypeConstraint{PA: pa1, Other: pa2, Source: source})
		return ResultResolved
	}

	c1, c2 := getOrCreateEquivalenceClass(r1), getOrCreateEquivalenceClass(r2)
	winner := mergeClasses(r1, r2)
	winnerClass := getOrCreateEquivalenceClass(winner)
	winnerClass.SameTypeConstraints[pa1] = append(winnerClass.SameTypeConstraints[pa1], SameTypeConstraint{PA: pa1, Other: pa2, Source: source})

	concrete1, concrete2 := c1.ConcreteType, c2.ConcreteType
	if concrete1 != nil && concrete2 != nil && !types.IsEqual(concrete1, concrete2) {
		if b.unifyConcreteConcrete(concrete1, concrete2, source) == ResultConflicting {
			return ResultConflicting
		}
	}

	if winnerClass.ConcreteType != nil {
		for proto := range winnerClass.ConformsTo {
			if conf, ok := b.Oracle.Lookup(winnerClass.ConcreteType, proto); ok {
				b.propagateConformanceFromOracle(winner, proto, source, conf)
			} else {
				b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: winnerClass.ConcreteType.String() + " does not conform to " + string(proto)})
				return ResultConflicting
			}
		}
	}
	if winnerClass.Superclass != nil && winnerClass.ConcreteType != nil && !types.IsExactSuperclassOf(winnerClass.ConcreteType, winnerClass.Superclass) {
		b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: "concrete type is not a subclass of the required superclass"})
		return ResultConflicting
	}
	return ResultResolved
}

func (b *Builder) unifyPAConcrete(pa *PotentialArchetype, concrete types.Type, source *RequirementSource) ConstraintResult {
	rep := getRepresentative(pa)
	class := getOrCreateEquivalenceClass(rep)

	if class.ConcreteType == nil {
		class.ConcreteType = concrete
		class.ConcreteTypeConstraints = append(class.ConcreteTypeConstraints, ConcreteTypeConstraint{PA: pa, Type: concrete, Source: source})

		if class.Superclass != nil && !types.IsExactSuperclassOf(concrete, class.Superclass) {
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: "concrete type is not a subclass of the required superclass"})
			return ResultConflicting
		}
		for proto := range class.ConformsTo {
			if conf, ok := b.Oracle.Lookup(concrete, proto); ok {
				b.propagateConformanceFromOracle(rep, proto, source, conf)
			} else {
				b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: concrete.String() + " does not conform to " + string(proto)})
				return ResultConflicting
			}
		}
		return ResultConcrete
	}

	if types.IsEqual(class.ConcreteType, concrete) {
		class.ConcreteTypeConstraints = append(class.ConcreteTypeConstraints, ConcreteTypeConstraint{PA: pa, Type: concrete, Source: source})
		return ResultResolved
	}
	return b.unifyConcreteConcrete(class.ConcreteType, concrete, source)
}

// unifyConcreteConcrete implements spec §4.4's "both sides concrete"
// case: a structural matcher that recurses into matching nominal
// arguments (possibly themselves dependent, routed back through
// AddSameType) and otherwise reports a mismatch.
func (b *Builder) unifyConcreteConcrete(a, c types.Type, source *RequirementSource) ConstraintResult {
	if types.IsEqual(a, c) {
		return ResultResolved
	}
	an, aok := a.(*types.NominalType)
	cn, cok := c.(*types.NominalType)
	if aok && cok && an.Name == cn.Name && len(an.Args) == len(cn.Args) {
		result := ResultResolved
		for i := range an.Args {
			if b.AddSameType(an.Args[i], cn.Args[i], source) == ResultConflicting {
				result = ResultConflicting
			}
		}
		return result
	}
	b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: a.String() + " is not the same type as " + c.String()})
	return ResultConflicting
}
