package gsb

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// SignatureRequirement is one entry of the canonical output (spec §4.10).
// Exactly one of Protocol/Superclass/(Layout != NoLayout)/Other is
// meaningful, selected by Kind.
type SignatureRequirement struct {
	Kind       collab.RequirementKind
	Subject    types.Type
	Protocol   collab.ProtocolName
	Superclass types.Type
	Layout     types.Layout
	Other      types.Type
	Source     *RequirementSource
}

// EnumerateRequirements implements spec §4.10 enumerate_requirements:
// walk every non-invalid PA in canonical order, emitting same-type edges
// that stitch a class's derived components together (or to its concrete
// binding) and, once per class at its archetype anchor, the class's
// superclass/layout/conformance requirements.
func (b *Builder) EnumerateRequirements(visit func(SignatureRequirement)) {
	pas := make([]*PotentialArchetype, 0, len(b.allPAs))
	for _, pa := range b.allPAs {
		if !pa.invalid {
			pas = append(pas, pa)
		}
	}
	sortByCanonical(pas)

	var deferred []SignatureRequirement

	for _, pa := range pas {
		class := getOrCreateEquivalenceClass(pa)
		comps := class.DerivedSameTypeComponents
		idx := -1
		for i, c := range comps {
			if c.Anchor == pa {
				idx = i
				break
			}
		}

		if idx >= 0 {
			if class.ConcreteType != nil {
				skip := pa.parent != nil && isPAConcrete(pa.parent)
				if !skip {
					src := comps[idx].ConcreteTypeSource
					if src == nil {
						src = bestSource(class.ConcreteTypeConstraints, func(c ConcreteTypeConstraint) *RequirementSource { return c.Source })
					}
					if src != nil {
						deferred = append(deferred, SignatureRequirement{Kind: collab.RequirementSameType, Subject: pa.AsType(), Other: class.ConcreteType, Source: src})
					}
				}
			} else if idx+1 < len(comps) {
				nextAnchor := comps[idx+1].Anchor
				src := sameTypeSourceBetween(class, pa, nextAnchor)
				if src != nil {
					deferred = append(deferred, SignatureRequirement{Kind: collab.RequirementSameType, Subject: pa.AsType(), Other: nextAnchor.AsType(), Source: src})
				}
			}
		}

		if len(comps) == 0 || comps[0].Anchor != pa {
			continue
		}

		if class.Superclass != nil && len(class.SuperclassConstraints) > 0 {
			src := bestSource(class.SuperclassConstraints, func(c SuperclassConstraint) *RequirementSource { return c.Source })
			visit(SignatureRequirement{Kind: collab.RequirementSuperclass, Subject: pa.AsType(), Superclass: class.Superclass, Source: src})
		}
		if class.Layout != types.NoLayout && len(class.LayoutConstraints) > 0 {
			src := bestSource(class.LayoutConstraints, func(c LayoutConstraint) *RequirementSource { return c.Source })
			visit(SignatureRequirement{Kind: collab.RequirementLayout, Subject: pa.AsType(), Layout: class.Layout, Source: src})
		}

		protocols := make([]collab.ProtocolName, 0, len(class.ConformsTo))
		for p := range class.ConformsTo {
			protocols = append(protocols, p)
		}
		sortProtocolNames(protocols)
		for _, proto := range protocols {
			src := bestSource(class.ConformsTo[proto], func(c ConformanceConstraint) *RequirementSource { return c.Source })
			visit(SignatureRequirement{Kind: collab.RequirementConformance, Subject: pa.AsType(), Protocol: proto, Source: src})
		}
	}

	for _, d := range deferred {
		visit(d)
	}
}

func sameTypeSourceBetween(class *EquivalenceClass, a, b *PotentialArchetype) *RequirementSource {
	for _, cs := range class.SameTypeConstraints {
		for _, c := range cs {
			if (c.PA == a && c.Other == b) || (c.PA == b && c.Other == a) {
				return c.Source
			}
		}
	}
	return nil
}

func bestSource[T any](cs []T, srcOf func(T) *RequirementSource) *RequirementSource {
	if len(cs) == 0 {
		return nil
	}
	best := srcOf(cs[0])
	for _, c := range cs[1:] {
		if s := srcOf(c); s.Compare(best) < 0 {
			best = s
		}
	}
	return best
}

// GetGenericSignature implements spec §4.10 get_generic_signature: wrap
// enumeration, filter out derived requirements except generic-parameter
// concrete same-types (preserved for canonical form), and drop
// requirements whose dependent types still reference unresolved or
// invalid nested types.
func (b *Builder) GetGenericSignature() []SignatureRequirement {
	var all []SignatureRequirement
	b.EnumerateRequirements(func(r SignatureRequirement) { all = append(all, r) })

	var out []SignatureRequirement
	for _, r := range all {
		if r.Source.IsDerived() {
			if !(r.Kind == collab.RequirementSameType && isRootParamType(r.Subject) && types.IsConcrete(r.Other)) {
				continue
			}
		}
		if b.referencesUnresolved(r.Subject) || b.referencesUnresolved(r.Other) || b.referencesUnresolved(r.Superclass) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func isRootParamType(t types.Type) bool {
	_, ok := t.(*types.ParamType)
	return ok
}

func (b *Builder) referencesUnresolved(t types.Type) bool {
	if t == nil {
		return false
	}
	switch v := t.(type) {
	case *types.ParamType:
		return false
	case *types.MemberType:
		pa := b.resolveTypeExprToPA(v)
		if pa != nil && (pa.isUnresolvedNested || pa.invalid) {
			return true
		}
		return b.referencesUnresolved(v.Base)
	case *types.NominalType:
		for _, a := range v.Args {
			if b.referencesUnresolved(a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// DiagnoseRemainingRenames implements spec §6's diagnose_remaining_renames:
// a caller-invocable summary of every PA that typo-correction renamed
// during Finalize, independent of the diagnostic finalize already emitted
// at the moment of correction.
func (b *Builder) DiagnoseRemainingRenames(loc ast.SourceLoc) {
	for _, pa := range b.allPAs {
		if pa.renamed {
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagRenamed, Location: loc, Message: string(pa.originalName) + " was renamed to " + string(pa.name)})
		}
	}
}
