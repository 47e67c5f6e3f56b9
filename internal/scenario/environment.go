package scenario

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// Environment is the in-memory collab.ConformanceOracle and
// collab.LazyResolver built from one parsed scenario File. It resolves
// everything eagerly at load time rather than genuinely lazily — a
// concession to how small a scenario file is — but the Builder still
// only ever reaches it through the two narrow interfaces spec §6 defines,
// so it is exercised exactly the way a real lazy resolver would be.
type Environment struct {
	module       ast.ModuleName
	protocols    map[collab.ProtocolName]*collab.ProtocolDecl
	conformances map[string]map[collab.ProtocolName]collab.ConformanceRef
	moduleAlias  []collab.TypealiasDecl
	ownReqs      map[string]ownRequirements
}

type ownRequirements struct {
	reqs  []collab.Requirement
	depth uint16
}

// NewEnvironment parses f's protocols, conformances and module-level
// typealiases into an Environment. params is the name->key map for the
// scenario's generic parameters (used to parse type expressions that
// reference them, e.g. a conformance on T itself); Run builds it before
// the builder exists and registers the same keys with the builder later.
func NewEnvironment(f *File, params map[string]ast.GenericParamKey) (*Environment, error) {
	env := &Environment{
		module:       ast.ModuleName(f.Module),
		protocols:    map[collab.ProtocolName]*collab.ProtocolDecl{},
		conformances: map[string]map[collab.ProtocolName]collab.ConformanceRef{},
		ownReqs:      map[string]ownRequirements{},
	}

	for name, p := range f.Protocols {
		decl := &collab.ProtocolDecl{
			Name:               collab.ProtocolName(name),
			Module:             env.module,
			HasRequirementSig:  p.HasRequirementSig || len(p.RequirementSignature) > 0,
		}
		for _, a := range p.AssociatedTypes {
			assoc := collab.AssociatedTypeDecl{Name: ast.Identifier(a.Name), Protocol: collab.ProtocolName(name)}
			for _, b := range a.Bound {
				assoc.Bound = append(assoc.Bound, collab.ProtocolName(b))
			}
			decl.AssociatedTypes = append(decl.AssociatedTypes, assoc)
		}
		selfScope := selfParamScope()
		for _, t := range p.Typealiases {
			underlying, err := ParseType(t.Underlying, selfScope)
			if err != nil {
				return nil, err
			}
			decl.Typealiases = append(decl.Typealiases, collab.TypealiasDecl{
				Name: ast.Identifier(t.Name), Protocol: collab.ProtocolName(name), Module: env.module, Underlying: underlying,
			})
		}
		for _, inh := range p.Inherits {
			decl.InheritedProtocols = append(decl.InheritedProtocols, collab.ProtocolName(inh))
		}
		for _, r := range p.RequirementSignature {
			req, err := toCollabRequirement(r, selfScope)
			if err != nil {
				return nil, err
			}
			decl.RequirementSignature = append(decl.RequirementSignature, req)
		}
		env.protocols[collab.ProtocolName(name)] = decl
	}

	for _, t := range f.ModuleTypealiases {
		underlying, err := ParseType(t.Underlying, params)
		if err != nil {
			return nil, err
		}
		env.moduleAlias = append(env.moduleAlias, collab.TypealiasDecl{
			Name: ast.Identifier(t.Name), Module: env.module, Underlying: underlying,
		})
	}

	for _, c := range f.Conformances {
		var ref collab.ConformanceRef
		if c.Abstract {
			ref = &collab.AbstractConformance{Protocol: collab.ProtocolName(c.Protocol)}
		} else {
			witness := map[ast.Identifier]types.Type{}
			for name, expr := range c.Witness {
				t, err := ParseType(expr, params)
				if err != nil {
					return nil, err
				}
				witness[ast.Identifier(name)] = t
			}
			ref = &collab.ConcreteConformance{Protocol: collab.ProtocolName(c.Protocol), Witness: witness}
		}
		if env.conformances[c.Type] == nil {
			env.conformances[c.Type] = map[collab.ProtocolName]collab.ConformanceRef{}
		}
		env.conformances[c.Type][collab.ProtocolName(c.Protocol)] = ref
	}

	return env, nil
}

// selfParamScope is the name table used while parsing type expressions
// written inside a protocol body, where the only dependent root in scope
// is Self.
func selfParamScope() map[string]ast.GenericParamKey {
	return map[string]ast.GenericParamKey{"Self": collab.SelfKey}
}

func toCollabRequirement(r Requirement, scope map[string]ast.GenericParamKey) (collab.Requirement, error) {
	subject, err := ParseType(r.Subject, scope)
	if err != nil {
		return collab.Requirement{}, err
	}
	switch {
	case r.Conforms != "":
		return collab.Requirement{Kind: collab.RequirementConformance, Subject: subject, Protocol: collab.ProtocolName(r.Conforms)}, nil
	case r.Superclass != "":
		sc, err := ParseType(r.Superclass, scope)
		if err != nil {
			return collab.Requirement{}, err
		}
		return collab.Requirement{Kind: collab.RequirementSuperclass, Subject: subject, Superclass: sc}, nil
	case r.Layout != "":
		return collab.Requirement{Kind: collab.RequirementLayout, Subject: subject, Layout: parseLayout(r.Layout)}, nil
	default:
		other, err := ParseType(r.SameType, scope)
		if err != nil {
			return collab.Requirement{}, err
		}
		return collab.Requirement{Kind: collab.RequirementSameType, Subject: subject, Other: other}, nil
	}
}

// Lookup implements collab.ConformanceOracle.
func (env *Environment) Lookup(subject types.Type, proto collab.ProtocolName) (collab.ConformanceRef, bool) {
	byType, ok := env.conformances[subject.String()]
	if !ok {
		return nil, false
	}
	ref, ok := byType[proto]
	return ref, ok
}

// ResolveProtocol implements collab.LazyResolver.
func (env *Environment) ResolveProtocol(name collab.ProtocolName) (*collab.ProtocolDecl, bool) {
	decl, ok := env.protocols[name]
	return decl, ok
}

// ModuleTypealiases implements collab.LazyResolver.
func (env *Environment) ModuleTypealiases(module ast.ModuleName) []collab.TypealiasDecl {
	if module != env.module {
		return nil
	}
	return env.moduleAlias
}

// ResolveGenericOwnRequirements implements collab.LazyResolver. Scenario
// files don't currently declare a nominal type's own generic bounds
// separately from conformances, so this always reports none. Run does not
// call the builder's InferRequirements.
func (env *Environment) ResolveGenericOwnRequirements(typeName string) ([]collab.Requirement, uint16) {
	own, ok := env.ownReqs[typeName]
	if !ok {
		return nil, 0
	}
	return own.reqs, own.depth
}
