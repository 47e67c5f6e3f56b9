package gsb

import (
	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/common"
	"gsbuilder/internal/types"
)

// Finalize implements spec §4.7: drain the delayed queue, detect
// recursive bindings, scrub self-derived constraints, compute derived
// same-type components and their spanning tree, run the §4.9 consistency
// checks, flag top-level generic parameters that escaped their own
// signature, and attempt typo correction on whatever nested PAs are
// still unresolved. Must be called exactly once (spec §6).
func (b *Builder) Finalize(sourceLoc ast.SourceLoc, allowConcreteGenericParams bool) error {
	if b.finalized {
		return common.NewInvariantError("Finalize called twice")
	}
	b.finalized = true

	b.processDelayed()
	b.detectRecursiveBindings()
	b.scrubSelfDerived()

	for _, rep := range b.representatives() {
		class := rep.class
		if class == nil {
			continue
		}
		comps, componentOf := derivedSameTypeComponents(class)
		class.DerivedSameTypeComponents = comps
		b.buildComponentSpanningTree(class, comps, componentOf)
	}

	b.checkConsistency()

	if !allowConcreteGenericParams {
		b.checkTopLevelParamsEscaped(sourceLoc)
	}

	b.correctTypos(sourceLoc)

	return nil
}

// representatives returns the deduplicated set of every PA currently
// serving as its own equivalence-class representative.
func (b *Builder) representatives() []*PotentialArchetype {
	seen := map[*PotentialArchetype]bool{}
	var out []*PotentialArchetype
	for _, pa := range b.allPAs {
		r := getRepresentative(pa)
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// detectRecursiveBindings implements spec §4.7 step 2: DFS through
// type-parameter occurrences in a class's bound concrete/superclass type,
// flagging a cycle back to the class being checked.
func (b *Builder) detectRecursiveBindings() {
	for _, rep := range b.representatives() {
		class := rep.class
		if class == nil {
			continue
		}
		if class.ConcreteType != nil && b.occursIn(rep, class.ConcreteType, map[*PotentialArchetype]bool{}) {
			rep.recursiveConcrete = true
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagRecursiveConcrete, Message: rep.String() + "'s concrete binding is recursive"})
		}
		if class.Superclass != nil && b.occursIn(rep, class.Superclass, map[*PotentialArchetype]bool{}) {
			rep.recursiveSuperclass = true
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagRecursiveSuperclass, Message: rep.String() + "'s superclass binding is recursive"})
		}
	}
}

func (b *Builder) occursIn(target *PotentialArchetype, t types.Type, visited map[*PotentialArchetype]bool) bool {
	switch v := t.(type) {
	case *types.ParamType, *types.MemberType:
		pa := b.resolveTypeExprToPA(t)
		if pa == nil {
			return false
		}
		rep := getRepresentative(pa)
		if rep == target {
			return true
		}
		if visited[rep] {
			return false
		}
		visited[rep] = true
		if rep.class != nil && rep.class.ConcreteType != nil {
			return b.occursIn(target, rep.class.ConcreteType, visited)
		}
		return false
	case *types.NominalType:
		for _, a := range v.Args {
			if b.occursIn(target, a, visited) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// isSelfDerived implements spec §4.2 is_self_derived: the traversal from
// source is self-derived if any ancestor frame strictly before the final
// (affected-PA) frame already lands in pa's own equivalence class.
func (b *Builder) isSelfDerived(pa *PotentialArchetype, source *RequirementSource) (selfDerived, derivedViaConcrete bool) {
	target := getRepresentative(pa)
	var seq []*PotentialArchetype
	_, dvc := source.VisitPath(b, func(p *PotentialArchetype, _ *RequirementSource) bool {
		seq = append(seq, p)
		return false
	})
	if len(seq) > 1 {
		for _, p := range seq[:len(seq)-1] {
			if getRepresentative(p) == target {
				return true, dvc
			}
		}
	}
	return false, dvc
}

// isSelfDerivedConformance implements spec §4.2 is_self_derived_conformance:
// a duplicate protocol along the ProtocolRequirement ancestor chain means
// the conformance justifies itself circularly.
func isSelfDerivedConformance(proto collab.ProtocolName, source *RequirementSource) bool {
	count := 0
	for cur := source; cur != nil; cur = cur.Parent {
		if (cur.Kind == SourceProtocolRequirement || cur.Kind == SourceInferredProtocolRequirement) && cur.Protocol == proto {
			count++
			if count > 1 {
				return true
			}
		}
	}
	return false
}

// scrubList implements the retention rule shared by every constraint kind
// in spec §4.7 step 3 and §4.9: drop self-derived entries, but if that
// would empty the list and at least one dropped entry was derived-via-concrete,
// keep the first such entry as a representative fallback.
func scrubList[T any](entries []T, test func(T) (selfDerived, derivedViaConcrete bool)) []T {
	var kept []T
	var fallback T
	haveFallback := false
	for _, e := range entries {
		sd, dvc := test(e)
		if !sd {
			kept = append(kept, e)
			continue
		}
		if dvc && !haveFallback {
			fallback = e
			haveFallback = true
		}
	}
	if len(kept) == 0 && haveFallback {
		kept = append(kept, fallback)
	}
	return kept
}

// scrubSelfDerived implements spec §4.7 step 3 for every constraint bag
// of every equivalence class.
func (b *Builder) scrubSelfDerived() {
	for _, rep := range b.representatives() {
		class := rep.class
		if class == nil {
			continue
		}

		for proto, cs := range class.ConformsTo {
			kept := scrubList(cs, func(c ConformanceConstraint) (bool, bool) {
				sd, dvc := b.isSelfDerived(c.PA, c.Source)
				if !sd {
					sd = isSelfDerivedConformance(c.Protocol, c.Source)
				}
				return sd, dvc
			})
			if len(kept) == 0 {
				delete(class.ConformsTo, proto)
			} else {
				class.ConformsTo[proto] = kept
			}
		}

		for pa, cs := range class.SameTypeConstraints {
			kept := scrubList(cs, func(c SameTypeConstraint) (bool, bool) {
				return b.isSelfDerived(c.PA, c.Source)
			})
			if len(kept) == 0 {
				delete(class.SameTypeConstraints, pa)
			} else {
				class.SameTypeConstraints[pa] = kept
			}
		}

		class.ConcreteTypeConstraints = scrubList(class.ConcreteTypeConstraints, func(c ConcreteTypeConstraint) (bool, bool) {
			return b.isSelfDerived(c.PA, c.Source)
		})
		class.SuperclassConstraints = scrubList(class.SuperclassConstraints, func(c SuperclassConstraint) (bool, bool) {
			return b.isSelfDerived(c.PA, c.Source)
		})
		class.LayoutConstraints = scrubList(class.LayoutConstraints, func(c LayoutConstraint) (bool, bool) {
			return b.isSelfDerived(c.PA, c.Source)
		})
	}
}

// buildComponentSpanningTree implements spec §4.8's intercomponent
// spanning tree: classify every non-derived same-type edge as
// intra-component (redundant) or inter-component, dedupe duplicate
// inter-component edges onto the canonically-first one, and greedily
// union components together; edges that don't end up part of the tree
// are diagnosed as redundant.
func (b *Builder) buildComponentSpanningTree(class *EquivalenceClass, comps []derivedComponent, componentOf map[*PotentialArchetype]*PotentialArchetype) {
	if len(comps) <= 1 {
		return
	}

	type edge struct {
		a, b   *PotentialArchetype // component anchors
		source *RequirementSource
	}
	bestByPair := map[[2]*PotentialArchetype]edge{}

	for _, cs := range class.SameTypeConstraints {
		for _, c := range cs {
			if c.Source.IsDerived() {
				continue
			}
			ca, cb := componentOf[c.PA], componentOf[c.Other]
			if ca == nil || cb == nil {
				continue
			}
			if ca == cb {
				b.diagnoseRedundant(c.Source, "same-type requirement within an already-equal component")
				continue
			}
			key := pairKey(ca, cb)
			if existing, ok := bestByPair[key]; !ok || c.Source.Compare(existing.source) < 0 {
				if ok {
					b.diagnoseRedundant(existing.source, "duplicate same-type requirement between two components")
				}
				bestByPair[key] = edge{a: ca, b: cb, source: c.Source}
			} else {
				b.diagnoseRedundant(c.Source, "duplicate same-type requirement between two components")
			}
		}
	}

	uf := map[*PotentialArchetype]*PotentialArchetype{}
	find := func(p *PotentialArchetype) *PotentialArchetype {
		for uf[p] != nil && uf[p] != p {
			p = uf[p]
		}
		return p
	}
	for _, c := range comps {
		uf[c.Anchor] = c.Anchor
	}

	edges := make([]edge, 0, len(bestByPair))
	for _, e := range bestByPair {
		edges = append(edges, e)
	}
	for i := 1; i < len(edges); i++ {
		j := i
		for j > 0 && edges[j].source.Compare(edges[j-1].source) < 0 {
			edges[j], edges[j-1] = edges[j-1], edges[j]
			j--
		}
	}

	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		if ra == rb {
			b.diagnoseRedundant(e.source, "same-type requirement not needed once the spanning tree is built")
			continue
		}
		uf[ra] = rb
	}
}

func pairKey(a, b *PotentialArchetype) [2]*PotentialArchetype {
	if a.seq <= b.seq {
		return [2]*PotentialArchetype{a, b}
	}
	return [2]*PotentialArchetype{b, a}
}

func (b *Builder) diagnoseRedundant(source *RequirementSource, msg string) {
	if source.IsDerived() || source.IsInferred() || !source.HasWrittenLoc() {
		return
	}
	b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagRedundant, Location: source.WrittenLoc, Message: msg})
}

// checkConsistency implements spec §4.9's check_constraint_list for every
// constraint bag: pick a representative entry (prefer inferred, then
// derived, then a valid source location, then source.Compare), and
// classify every other entry as Redundant or Conflicting.
func (b *Builder) checkConsistency() {
	for _, rep := range b.representatives() {
		class := rep.class
		if class == nil {
			continue
		}

		for proto, cs := range class.ConformsTo {
			if len(cs) <= 1 {
				continue
			}
			order := sortConstraintsForRep(cs, func(c ConformanceConstraint) *RequirementSource { return c.Source })
			for _, i := range order[1:] {
				b.diagnoseRedundant(cs[i].Source, "redundant conformance to "+string(proto))
			}
		}

		if len(class.SuperclassConstraints) > 1 {
			order := sortConstraintsForRep(class.SuperclassConstraints, func(c SuperclassConstraint) *RequirementSource { return c.Source })
			for _, i := range order[1:] {
				c := class.SuperclassConstraints[i]
				if types.IsExactSuperclassOf(class.Superclass, c.Superclass) {
					b.diagnoseRedundant(c.Source, "redundant superclass requirement")
				} else {
					b.diagnoseConflicting(c.Source, "conflicting superclass requirement")
				}
			}
		}

		if len(class.ConcreteTypeConstraints) > 1 {
			order := sortConstraintsForRep(class.ConcreteTypeConstraints, func(c ConcreteTypeConstraint) *RequirementSource { return c.Source })
			for _, i := range order[1:] {
				c := class.ConcreteTypeConstraints[i]
				if types.IsEqual(c.Type, class.ConcreteType) {
					b.diagnoseRedundant(c.Source, "redundant concrete-type requirement")
				}
			}
		}

		if len(class.LayoutConstraints) > 1 {
			order := sortConstraintsForRep(class.LayoutConstraints, func(c LayoutConstraint) *RequirementSource { return c.Source })
			for _, i := range order[1:] {
				c := class.LayoutConstraints[i]
				if _, ok := types.Meet(c.Layout, class.Layout); ok {
					b.diagnoseRedundant(c.Source, "redundant layout requirement")
				} else {
					b.diagnoseConflicting(c.Source, "conflicting layout requirement")
				}
			}
		}
	}
}

// sortConstraintsForRep returns cs's indices ordered so the first is the
// representative constraint: inferred first, then derived, then having a
// valid written location, then source.Compare.
func sortConstraintsForRep[T any](cs []T, srcOf func(T) *RequirementSource) []int {
	idx := make([]int, len(cs))
	for i := range idx {
		idx[i] = i
	}
	less := func(i, j int) bool {
		si, sj := srcOf(cs[i]), srcOf(cs[j])
		if si.IsInferred() != sj.IsInferred() {
			return si.IsInferred()
		}
		if si.IsDerived() != sj.IsDerived() {
			return si.IsDerived()
		}
		if si.HasWrittenLoc() != sj.HasWrittenLoc() {
			return si.HasWrittenLoc()
		}
		return si.Compare(sj) < 0
	}
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && less(idx[j], idx[j-1]) {
			idx[j], idx[j-1] = idx[j-1], idx[j]
			j--
		}
	}
	return idx
}

func (b *Builder) diagnoseConflicting(source *RequirementSource, msg string) {
	b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: source.WrittenLoc, Message: msg})
}

// correctTypos implements spec §4.7 step 7: for every nested PA still
// unresolved after the delayed queue reached a fixed point, try to
// edit-distance-match its name against the associated types of every
// protocol the parent conforms to. A tie between equally-good candidates
// aborts the correction.
func (b *Builder) correctTypos(loc ast.SourceLoc) {
	for _, n := range b.allPAs {
		if !n.isUnresolvedNested || n.parent == nil {
			continue
		}
		parentRep := getRepresentative(n.parent)
		class := parentRep.class
		if class == nil {
			continue
		}
		if b.triedRenames[n] == nil {
			b.triedRenames[n] = map[string]bool{}
		}

		threshold := (len(n.name) + 1 + 2) / 3 // ceil((len+1)/3)
		bestDist := threshold + 1
		var candidates []*collab.AssociatedTypeDecl
		for proto := range class.ConformsTo {
			decl, ok := b.Resolver.ResolveProtocol(proto)
			if !ok {
				continue
			}
			for i := range decl.AssociatedTypes {
				cand := &decl.AssociatedTypes[i]
				if b.triedRenames[n][string(cand.Name)] {
					continue
				}
				d := levenshtein(string(n.name), string(cand.Name))
				if d > threshold {
					continue
				}
				switch {
				case d < bestDist:
					bestDist = d
					candidates = []*collab.AssociatedTypeDecl{cand}
				case d == bestDist:
					if !containsAssocName(candidates, cand.Name) {
						candidates = append(candidates, cand)
					}
				}
			}
		}

		b.triedRenames[n][string(n.name)] = true

		if len(candidates) != 1 {
			n.invalid = true
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagInvalidNestedType, Location: loc, Message: "no unique associated type matches " + string(n.name)})
			continue
		}

		match := candidates[0]
		oldName := n.name
		siblings := parentRep.nested[oldName]
		for i, s := range siblings {
			if s == n {
				parentRep.nested[oldName] = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
		n.renamed = true
		n.originalName = oldName
		n.name = match.Name
		n.isUnresolvedNested = false
		b.numUnresolvedNested--
		n.resolvedAssoc = match
		parentRep.nested[match.Name] = append(parentRep.nested[match.Name], n)

		resolved := b.updateNestedForConformance(parentRep, match, AddIfMissing)
		if resolved != n {
			src := b.interner.ForNestedTypeNameMatch(nil)
			b.addSameTypePAPA(n, resolved, src)
		}
		b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagRenamed, Location: loc, Message: string(oldName) + " renamed to " + string(match.Name)})
	}
}

func containsAssocName(cs []*collab.AssociatedTypeDecl, name ast.Identifier) bool {
	for _, c := range cs {
		if c.Name == name {
			return true
		}
	}
	return false
}

// levenshtein computes ordinary edit distance; §4.7 step 7's typo
// correction is the only caller.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[j] = m
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// checkTopLevelParamsEscaped implements spec §4.7 step 6.
func (b *Builder) checkTopLevelParamsEscaped(loc ast.SourceLoc) {
	for _, root := range b.roots {
		class := getOrCreateEquivalenceClass(root)
		if class.ConcreteType != nil {
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConcreteRequirement, Location: loc, Message: root.String() + " was made concrete; pass allow_concrete_generic_params to permit this"})
		}
		if getRepresentative(root) != root {
			b.Sink.Emit(collab.Diagnostic{Kind: collab.DiagConflicting, Location: loc, Message: root.String() + " was equated with another generic parameter"})
		}
	}
}
