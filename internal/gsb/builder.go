// Package gsb is the core of the generic signature builder: union-find
// over potential archetypes, lazy nested-type resolution, requirement
// provenance, and canonicalization. It is grounded on the teacher's
// processors/solver.go (the unification engine: equation-style
// constraint recording, a substitution map mutated in place, an occurs
// check) and processors/checker.go (recursive structural traversal over
// a tagged-union AST, accumulating rather than returning errors) —
// generalized from "unify two concrete types during type inference" to
// "merge two equivalence classes of potential archetypes and canonicalize
// the result", per spec §§3–4.
package gsb

import (
	"log/slog"

	"github.com/google/uuid"

	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/common"
	"gsbuilder/internal/types"
)

// ConstraintResult is the outcome of every requirement entry point (spec
// §4.4).
type ConstraintResult int

const (
	ResultResolved ConstraintResult = iota
	ResultUnresolved
	ResultConcrete
	ResultConflicting
)

// Builder owns every PA, EquivalenceClass and interned RequirementSource
// for one signature construction (spec §5: it exclusively owns all of
// them and destroys them when it is destroyed — in Go, when it is
// garbage collected, there is nothing more to do).
type Builder struct {
	Oracle   collab.ConformanceOracle
	Resolver collab.LazyResolver
	Sink     collab.DiagnosticSink

	interner *Interner
	log      *slog.Logger
	session  uuid.UUID

	roots      []*PotentialArchetype // in add order == non-decreasing (depth,index)
	rootByKey  map[ast.GenericParamKey]*PotentialArchetype
	allPAs     []*PotentialArchetype // every PA ever created, root or nested (§4.10 step 1, §4.7 step 2)
	nextSeq    int
	finalized  bool

	numUnresolvedNested int // Invariant C

	delayed []delayedRequirement

	reportedInvalid map[*PotentialArchetype]bool
	// triedRenames records, per PA, the names typo correction has already
	// tried for it (correctTypos adds the PA's own name after scanning);
	// candidate names found in it are skipped (SPEC_FULL.md supplement #3).
	triedRenames map[*PotentialArchetype]map[string]bool
}

// NewBuilder constructs a builder with its injected collaborators (spec
// §6). A nil sink is replaced with a CollectingSink.
func NewBuilder(oracle collab.ConformanceOracle, resolver collab.LazyResolver, sink collab.DiagnosticSink) *Builder {
	if sink == nil {
		sink = &collab.CollectingSink{}
	}
	logger, session := common.NewSessionLogger()
	return &Builder{
		Oracle:          oracle,
		Resolver:        resolver,
		Sink:            sink,
		interner:        NewInterner(),
		log:             logger,
		session:         session,
		rootByKey:       map[ast.GenericParamKey]*PotentialArchetype{},
		reportedInvalid: map[*PotentialArchetype]bool{},
		triedRenames:    map[*PotentialArchetype]map[string]bool{},
	}
}

// AddGenericParameter implements spec §6 add_generic_parameter: must be
// called in non-decreasing (depth,index) order with same-depth indices
// contiguous from 0.
func (b *Builder) AddGenericParameter(key ast.GenericParamKey, name string) (*PotentialArchetype, error) {
	if b.finalized {
		return nil, common.NewInvariantError("AddGenericParameter called after Finalize")
	}
	if len(b.roots) > 0 {
		last := b.roots[len(b.roots)-1].rootKey
		if key.Less(last) {
			return nil, common.Error{Message: "generic parameters must be added in non-decreasing (depth,index) order"}
		}
		if key.Depth == last.Depth && key.Index != last.Index+1 {
			return nil, common.Error{Message: "same-depth generic parameter indices must be contiguous from 0"}
		}
		if key.Depth != last.Depth && key.Index != 0 {
			return nil, common.Error{Message: "a new depth must start at index 0"}
		}
	} else if key.Depth != 0 || key.Index != 0 {
		return nil, common.Error{Message: "the first generic parameter must be (depth=0, index=0)"}
	}

	pa := newRootPA(key, name, b.nextSeq)
	b.nextSeq++
	getOrCreateEquivalenceClass(pa)
	b.roots = append(b.roots, pa)
	b.rootByKey[key] = pa
	b.allPAs = append(b.allPAs, pa)
	b.log.Info("added generic parameter", "key", key, "name", name)
	return pa, nil
}

func (b *Builder) rootPAForKey(key ast.GenericParamKey) *PotentialArchetype {
	if key == collab.SelfKey {
		// Self has no declared root among the client's generic
		// parameters; walkProtocolRequirement substitutes the conforming
		// PA's type for Self before resolving a protocol's requirement
		// signature, so reaching here means an unsubstituted Self, not a
		// normal miss.
		return nil
	}
	return b.rootByKey[key]
}

// resolveTypeExprToPA walks a dependent-type expression (a ParamType or
// a chain of MemberType on one) down to the PA it names, creating nested
// PAs as needed. This is the path-reconstruction half of spec §4.2
// visit_path and the first half of §4.4 resolve()/resolve_archetype.
func (b *Builder) resolveTypeExprToPA(t types.Type) *PotentialArchetype {
	switch v := t.(type) {
	case *types.ParamType:
		return b.rootPAForKey(v.Key)
	case *types.MemberType:
		basePA := b.resolveTypeExprToPA(v.Base)
		if basePA == nil {
			return nil
		}
		return b.getOrCreateBareNested(basePA, v.Name)
	default:
		return nil
	}
}

// getOrCreateBareNested returns the first PA registered under name at
// parent's representative, synthesizing an unresolved placeholder if
// none exists yet — used only for path reconstruction, never for the
// protocol-driven creation in nested.go (which has richer same-type
// wiring, §4.3).
func (b *Builder) getOrCreateBareNested(parent *PotentialArchetype, name ast.Identifier) *PotentialArchetype {
	rep := getRepresentative(parent)
	if existing := rep.nested[name]; len(existing) > 0 {
		return existing[0]
	}
	return b.createUnresolvedPlaceholder(rep, name)
}

func (b *Builder) createUnresolvedPlaceholder(parent *PotentialArchetype, name ast.Identifier) *PotentialArchetype {
	child := newNestedPA(parent, name, b.nextSeq)
	b.nextSeq++
	child.isUnresolvedNested = true
	b.numUnresolvedNested++
	parent.nested[name] = append(parent.nested[name], child)
	getOrCreateEquivalenceClass(child)
	b.allPAs = append(b.allPAs, child)
	return child
}

// Roots exposes the registered generic-parameter PAs in add order, for
// enumeration and tests.
func (b *Builder) Roots() []*PotentialArchetype {
	return b.roots
}

// Interner exposes the builder's RequirementSource factory so external
// client code (spec §6's caller of add_requirement) can build the
// initial Explicit/Inferred source for a requirement before handing it
// to AddRequirement.
func (b *Builder) Interner() *Interner {
	return b.interner
}
