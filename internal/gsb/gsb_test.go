package gsb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// fakeEnvironment is the test-only collab.ConformanceOracle +
// collab.LazyResolver, grounded the same way cmd/gsbuild's
// scenario.Environment is but hand-populated per test instead of parsed
// from YAML.
type fakeEnvironment struct {
	protocols     map[collab.ProtocolName]*collab.ProtocolDecl
	conformances  map[string]map[collab.ProtocolName]collab.ConformanceRef
	moduleAliases []collab.TypealiasDecl
}

func newFakeEnvironment() *fakeEnvironment {
	return &fakeEnvironment{
		protocols:    map[collab.ProtocolName]*collab.ProtocolDecl{},
		conformances: map[string]map[collab.ProtocolName]collab.ConformanceRef{},
	}
}

func (e *fakeEnvironment) addProtocol(decl *collab.ProtocolDecl) {
	e.protocols[decl.Name] = decl
}

func (e *fakeEnvironment) addConformance(typeName string, proto collab.ProtocolName, ref collab.ConformanceRef) {
	if e.conformances[typeName] == nil {
		e.conformances[typeName] = map[collab.ProtocolName]collab.ConformanceRef{}
	}
	e.conformances[typeName][proto] = ref
}

func (e *fakeEnvironment) Lookup(subject types.Type, proto collab.ProtocolName) (collab.ConformanceRef, bool) {
	byType, ok := e.conformances[subject.String()]
	if !ok {
		return nil, false
	}
	ref, ok := byType[proto]
	return ref, ok
}

func (e *fakeEnvironment) ResolveProtocol(name collab.ProtocolName) (*collab.ProtocolDecl, bool) {
	decl, ok := e.protocols[name]
	return decl, ok
}

func (e *fakeEnvironment) ModuleTypealiases(module ast.ModuleName) []collab.TypealiasDecl {
	return e.moduleAliases
}

func (e *fakeEnvironment) ResolveGenericOwnRequirements(typeName string) ([]collab.Requirement, uint16) {
	return nil, 0
}

func tKey(idx int) ast.GenericParamKey { return ast.GenericParamKey{Depth: 0, Index: uint16(idx)} }

func nominal(name string, args ...types.Type) *types.NominalType {
	return &types.NominalType{Name: name, Args: args}
}

func member(base types.Type, name string) *types.MemberType {
	return &types.MemberType{Base: base, Name: ast.Identifier(name)}
}

func TestAddConformance_SynthesizesAssociatedTypePA(t *testing.T) {
	env := newFakeEnvironment()
	env.addProtocol(&collab.ProtocolDecl{
		Name: "Sequence",
		AssociatedTypes: []collab.AssociatedTypeDecl{
			{Name: "Element", Protocol: "Sequence"},
		},
		HasRequirementSig: true,
	})

	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	res := b.AddConformance(tPA.AsType(), "Sequence", src)
	assert.Equal(t, ResultResolved, res)
	assert.Len(t, getRepresentative(tPA).nested["Element"], 1)

	require.NoError(t, b.Finalize(ast.NoLoc, false))

	found := false
	for _, r := range b.GetGenericSignature() {
		if r.Kind == collab.RequirementConformance && r.Protocol == "Sequence" {
			found = true
		}
	}
	assert.True(t, found, "expected T: Sequence to survive into the signature")
}

func TestAddSameType_BindsRootToConcrete(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	res := b.AddSameType(tPA.AsType(), nominal("Int"), src)
	assert.Equal(t, ResultConcrete, res)

	require.NoError(t, b.Finalize(ast.NoLoc, true))

	sig := b.GetGenericSignature()
	require.Len(t, sig, 1)
	assert.Equal(t, collab.RequirementSameType, sig[0].Kind)
	assert.True(t, types.IsEqual(sig[0].Other, nominal("Int")))
}

func TestAddSameType_TwoRootsUnifyIntoOneEquivalenceClass(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)
	uPA, err := b.AddGenericParameter(tKey(1), "U")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	res := b.AddSameType(tPA.AsType(), uPA.AsType(), src)
	assert.Equal(t, ResultResolved, res)
	assert.Equal(t, getRepresentative(tPA), getRepresentative(uPA))
}

func TestAddConformance_ConflictingOnConcreteType(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	b.AddSameType(tPA.AsType(), nominal("Int"), src)
	res := b.AddConformance(nominal("Int"), "Sequence", src)
	assert.Equal(t, ResultConflicting, res)
	assert.Len(t, sink.Of(collab.DiagConflicting), 1)
}

func TestAddLayout_ConflictingKinds(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	res1 := b.AddLayout(tPA.AsType(), types.Layout{Kind: types.LayoutClass}, src)
	assert.Equal(t, ResultResolved, res1)
	res2 := b.AddLayout(tPA.AsType(), types.Layout{Kind: types.LayoutTrivial}, src)
	assert.Equal(t, ResultConflicting, res2)
}

func TestAddSuperclass_TighteningAccepted(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	base := &types.NominalType{Name: "Base", IsClass: true}
	derived := &types.NominalType{Name: "Derived", IsClass: true, Superclass: base}

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	assert.Equal(t, ResultResolved, b.AddSuperclass(tPA.AsType(), base, src))
	assert.Equal(t, ResultResolved, b.AddSuperclass(tPA.AsType(), derived, src))

	rep := getRepresentative(tPA)
	class := getOrCreateEquivalenceClass(rep)
	assert.True(t, types.IsEqual(class.Superclass, derived))
}

func TestAddSuperclass_IncompatibleBoundsConflict(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	a := &types.NominalType{Name: "A", IsClass: true}
	c := &types.NominalType{Name: "C", IsClass: true}

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	require.Equal(t, ResultResolved, b.AddSuperclass(tPA.AsType(), a, src))
	assert.Equal(t, ResultConflicting, b.AddSuperclass(tPA.AsType(), c, src))
}

func TestNestedMemberType_ResolvesThroughDependentChain(t *testing.T) {
	env := newFakeEnvironment()
	env.addProtocol(&collab.ProtocolDecl{
		Name: "Sequence",
		AssociatedTypes: []collab.AssociatedTypeDecl{
			{Name: "Element", Protocol: "Sequence"},
		},
		HasRequirementSig: true,
	})
	env.addProtocol(&collab.ProtocolDecl{Name: "Equatable", HasRequirementSig: true})

	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	require.Equal(t, ResultResolved, b.AddConformance(tPA.AsType(), "Sequence", src))

	elemType := member(tPA.AsType(), "Element")
	require.Equal(t, ResultResolved, b.AddConformance(elemType, "Equatable", src))

	require.NoError(t, b.Finalize(ast.NoLoc, false))

	var sawElementConforms bool
	for _, r := range b.GetGenericSignature() {
		if r.Kind == collab.RequirementConformance && r.Protocol == "Equatable" {
			if m, ok := r.Subject.(*types.MemberType); ok && m.Name == "Element" {
				sawElementConforms = true
			}
		}
	}
	assert.True(t, sawElementConforms)
}

func TestAddSameType_ConcreteConformancePropagatesTypeWitness(t *testing.T) {
	env := newFakeEnvironment()
	env.addProtocol(&collab.ProtocolDecl{
		Name: "Sequence",
		AssociatedTypes: []collab.AssociatedTypeDecl{
			{Name: "Element", Protocol: "Sequence"},
		},
		HasRequirementSig: true,
	})
	env.addConformance("Array<Int>", "Sequence", &collab.ConcreteConformance{
		Protocol: "Sequence",
		Witness:  map[ast.Identifier]types.Type{"Element": nominal("Int")},
	})

	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	require.Equal(t, ResultResolved, b.AddConformance(tPA.AsType(), "Sequence", src))
	require.Equal(t, ResultConcrete, b.AddSameType(tPA.AsType(), nominal("Array", nominal("Int")), src))

	rep := getRepresentative(tPA)
	elemPAs := rep.nested["Element"]
	require.Len(t, elemPAs, 1)
	elemClass := getOrCreateEquivalenceClass(elemPAs[0])
	require.NotNil(t, elemClass.ConcreteType)
	assert.True(t, types.IsEqual(elemClass.ConcreteType, nominal("Int")))

	require.NoError(t, b.Finalize(ast.NoLoc, true))

	// Once the parent is itself bound concrete, the nested binding is
	// implied by substitution and enumerate_requirements prunes the
	// redundant same-type edge (spec §4.10's archetype-anchor skip).
	for _, r := range b.GetGenericSignature() {
		if m, ok := r.Subject.(*types.MemberType); ok {
			assert.Fail(t, "did not expect a standalone nested requirement once the parent is concrete", "%v (%s)", r.Kind, m.String())
		}
	}
}

func TestFinalize_RejectsDoubleCall(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	_, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	require.NoError(t, b.Finalize(ast.NoLoc, false))
	assert.Error(t, b.Finalize(ast.NoLoc, false))
}

func TestAddGenericParameter_OrderingContract(t *testing.T) {
	env := newFakeEnvironment()
	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	_, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)
	_, err = b.AddGenericParameter(ast.GenericParamKey{Depth: 0, Index: 2}, "V")
	assert.Error(t, err, "skipping an index at the same depth must fail")
}

func TestCorrectTypos_RenamesCloseMisspelling(t *testing.T) {
	env := newFakeEnvironment()
	env.addProtocol(&collab.ProtocolDecl{
		Name: "Collection",
		AssociatedTypes: []collab.AssociatedTypeDecl{
			{Name: "Element", Protocol: "Collection"},
		},
		HasRequirementSig: true,
	})

	sink := &collab.CollectingSink{}
	b := NewBuilder(env, env, sink)
	tPA, err := b.AddGenericParameter(tKey(0), "T")
	require.NoError(t, err)

	src := b.Interner().ForExplicit(tPA, ast.NoLoc)
	require.Equal(t, ResultResolved, b.AddConformance(tPA.AsType(), "Collection", src))

	// "Elemnt" (missing the second e) is a one-edit misspelling of
	// "Element" — within threshold for a 6-character name.
	misspelled := member(tPA.AsType(), "Elemnt")
	require.Equal(t, ResultResolved, b.AddSameType(misspelled, nominal("Int"), src))

	require.NoError(t, b.Finalize(ast.NoLoc, false))
	assert.NotEmpty(t, sink.Of(collab.DiagRenamed))
}
