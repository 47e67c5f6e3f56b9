package scenario

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/gsb"
)

// Result is what cmd/gsbuild renders: the finalized signature plus every
// diagnostic the build accumulated along the way.
type Result struct {
	Signature   []gsb.SignatureRequirement
	Diagnostics []collab.Diagnostic
}

// Parse unmarshals raw scenario YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &f, nil
}

// Run builds a generic signature from f end to end: register f's generic
// parameters, construct the Environment collaborator from its protocols
// and conformances, add every declared requirement, and finalize.
func Run(f *File) (*Result, error) {
	sink := &collab.CollectingSink{}

	params := map[string]ast.GenericParamKey{}
	for i, gp := range f.GenericParameters {
		params[gp.Name] = ast.GenericParamKey{Depth: 0, Index: uint16(i)}
	}

	env, err := NewEnvironment(f, params)
	if err != nil {
		return nil, err
	}

	b := gsb.NewBuilder(env, env, sink)
	roots := map[string]*gsb.PotentialArchetype{}
	for i, gp := range f.GenericParameters {
		pa, err := b.AddGenericParameter(ast.GenericParamKey{Depth: 0, Index: uint16(i)}, gp.Name)
		if err != nil {
			return nil, fmt.Errorf("adding generic parameter %s: %w", gp.Name, err)
		}
		roots[gp.Name] = pa
	}

	for _, r := range f.Requirements {
		req, err := toCollabRequirement(r, params)
		if err != nil {
			return nil, fmt.Errorf("requirement on %q: %w", r.Subject, err)
		}
		src := explicitSourceFor(b, roots, params, r.Subject)
		b.AddRequirement(req, src)
	}

	if err := b.Finalize(ast.NoLoc, f.AllowConcreteGenericParams); err != nil {
		return nil, fmt.Errorf("finalizing: %w", err)
	}

	return &Result{
		Signature:   b.GetGenericSignature(),
		Diagnostics: sink.Diagnostics,
	}, nil
}

// explicitSourceFor resolves a requirement's written subject down to its
// root generic parameter and wraps an Explicit source around it — the
// same construction a real parser-adjacent caller would do before
// calling add_requirement (spec §6), simplified here to a bare root
// lookup since scenario subjects are always one of the registered
// parameters or a dependent member of one.
func explicitSourceFor(b *gsb.Builder, roots map[string]*gsb.PotentialArchetype, params map[string]ast.GenericParamKey, subject string) *gsb.RequirementSource {
	name := subject
	for i, c := range subject {
		if c == '.' {
			name = subject[:i]
			break
		}
	}
	pa := roots[name]
	if pa == nil {
		for _, p := range b.Roots() {
			pa = p
			break
		}
	}
	return b.Interner().ForExplicit(pa, ast.NoLoc)
}
