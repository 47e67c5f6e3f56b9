package gsb

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// AddRequirement implements spec §6 add_requirement: the generic
// entry point for a requirement whose source the caller already built
// (typically via Explicit/Inferred plus whatever via_* wrapping its own
// surface syntax needs — path reconstruction for a written nested subject
// is the caller's job, since the parser that knows the written path is
// explicitly out of scope, §1).
func (b *Builder) AddRequirement(req collab.Requirement, source *RequirementSource) ConstraintResult {
	return b.applyRequirement(req.Subject, req, source)
}

func (b *Builder) applyRequirement(subject types.Type, req collab.Requirement, source *RequirementSource) ConstraintResult {
	switch req.Kind {
	case collab.RequirementConformance:
		return b.AddConformance(subject, req.Protocol, source)
	case collab.RequirementSuperclass:
		return b.AddSuperclass(subject, req.Superclass, source)
	case collab.RequirementLayout:
		return b.AddLayout(subject, req.Layout, source)
	case collab.RequirementSameType:
		return b.AddSameType(subject, req.Other, source)
	default:
		return ResultResolved
	}
}

// AddGenericParameterRequirements implements spec §6
// add_generic_parameter_requirements: a generic parameter's own declared
// bounds (`<T: Collection>`) are requirements on T itself, sourced as
// Explicit (if written) or Inferred (if synthesized, e.g. from a default).
func (b *Builder) AddGenericParameterRequirements(pa *PotentialArchetype, reqs []collab.Requirement, writtenLoc ast.SourceLoc) {
	for _, req := range reqs {
		var src *RequirementSource
		if !writtenLoc.IsEmpty() {
			src = b.interner.ForExplicit(pa, writtenLoc)
		} else {
			src = b.interner.ForInferred(pa, pa.AsType())
		}
		b.applyRequirement(pa.AsType(), req, src)
	}
}

// InferRequirements implements spec §6 infer_requirements: walk a type
// expression and, for every nominal type encountered that the resolver
// recognizes, apply its own declaration's requirement signature with a
// substitution mapping its declared parameters to the actual arguments
// seen here, each added as Inferred (never surfaced as Concrete unless
// genuinely explicit, per §7's Concrete/Inferred split).
func (b *Builder) InferRequirements(t types.Type) {
	nom, ok := t.(*types.NominalType)
	if !ok {
		return
	}
	reqs, depth := b.Resolver.ResolveGenericOwnRequirements(nom.Name)
	if len(reqs) > 0 {
		subst := make(map[ast.GenericParamKey]types.Type, len(nom.Args))
		for i, arg := range nom.Args {
			subst[ast.GenericParamKey{Depth: depth, Index: uint16(i)}] = arg
		}
		for _, req := range reqs {
			subject := types.Substitute(req.Subject, subst)
			root, ok := rootKeyOf(subject)
			var rootPA *PotentialArchetype
			if ok {
				rootPA = b.resolveTypeExprToPA(&types.ParamType{Key: root})
			}
			if rootPA == nil {
				continue
			}
			src := b.interner.ForInferred(rootPA, t)
			b.applyRequirement(subject, req, src)
		}
	}
	for _, arg := range nom.Args {
		b.InferRequirements(arg)
	}
}
