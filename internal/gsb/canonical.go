package gsb

// compareCanonical implements the total order from spec §4.8. It is used
// both to pick which PA becomes a merge winner (§4.1) and to sort the
// final enumeration (§4.10).
func compareCanonical(a, b *PotentialArchetype) int {
	if a == b {
		return 0
	}

	aAlias, bAlias := a.resolvedAlias != nil, b.resolvedAlias != nil
	if aAlias != bAlias {
		if aAlias {
			return 1
		}
		return -1
	}

	aConcrete, bConcrete := isPAConcrete(a), isPAConcrete(b)
	if aConcrete != bConcrete {
		if aConcrete {
			return 1
		}
		return -1
	}

	if a.isRoot != b.isRoot {
		if a.isRoot {
			return -1 // generic params before nested types
		}
		return 1
	}

	if a.isRoot {
		if !a.rootKey.Equal(b.rootKey) {
			if a.rootKey.Less(b.rootKey) {
				return -1
			}
			return 1
		}
		return tieBreakSeq(a, b)
	}

	if a.parent != b.parent {
		if c := compareCanonical(a.parent, b.parent); c != 0 {
			return c
		}
	}
	if a.name != b.name {
		if a.name < b.name {
			return -1
		}
		return 1
	}

	ap, bp := "", ""
	if a.resolvedAssoc != nil {
		ap = string(a.resolvedAssoc.Protocol)
	}
	if b.resolvedAssoc != nil {
		bp = string(b.resolvedAssoc.Protocol)
	}
	if ap != bp {
		if ap < bp {
			return -1
		}
		return 1
	}

	if a.renamed != b.renamed {
		if a.renamed {
			return 1
		}
		return -1
	}

	return tieBreakSeq(a, b)
}

// tieBreakSeq is the "implementation-defined tie-break" spec §9 says is
// load-bearing but arbitrary: insertion order, which is stable for a
// fixed sequence of builder calls and therefore preserves determinism
// (spec §8 Determinism).
func tieBreakSeq(a, b *PotentialArchetype) int {
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	default:
		return 0
	}
}

func isPAConcrete(pa *PotentialArchetype) bool {
	rep := getRepresentative(pa)
	return rep.class != nil && rep.class.ConcreteType != nil
}

func canonicalMin(pas []*PotentialArchetype) *PotentialArchetype {
	best := pas[0]
	for _, pa := range pas[1:] {
		if compareCanonical(pa, best) < 0 {
			best = pa
		}
	}
	return best
}

func sortByCanonical(pas []*PotentialArchetype) {
	// simple insertion sort: PA lists here are small (members of one
	// equivalence class, or same-named nested siblings), and insertion
	// sort keeps the comparator's recursive parent walk cheap to reason
	// about without pulling in sort.Slice's interface overhead.
	for i := 1; i < len(pas); i++ {
		j := i
		for j > 0 && compareCanonical(pas[j], pas[j-1]) < 0 {
			pas[j], pas[j-1] = pas[j-1], pas[j]
			j--
		}
	}
}

// derivedSameTypeComponents runs the DFS from spec §4.8 over only the
// *derived* same-type edges within one equivalence class, assigning each
// connected component an anchor (the canonically minimal PA in it) and
// the best (by source.Compare) non-self-derived concrete-type source
// touching that component.
func derivedSameTypeComponents(class *EquivalenceClass) ([]derivedComponent, map[*PotentialArchetype]*PotentialArchetype) {
	parent := map[*PotentialArchetype]*PotentialArchetype{}
	var find func(*PotentialArchetype) *PotentialArchetype
	find = func(pa *PotentialArchetype) *PotentialArchetype {
		if parent[pa] == nil {
			parent[pa] = pa
		}
		for parent[pa] != pa {
			pa = parent[pa]
		}
		return pa
	}
	union := func(a, b *PotentialArchetype) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if compareCanonical(ra, rb) <= 0 {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	for _, pa := range class.Members {
		find(pa)
	}
	for _, constraints := range class.SameTypeConstraints {
		for _, c := range constraints {
			if c.Source.IsDerived() {
				union(c.PA, c.Other)
			}
		}
	}

	byRoot := map[*PotentialArchetype][]*PotentialArchetype{}
	for _, pa := range class.Members {
		r := find(pa)
		byRoot[r] = append(byRoot[r], pa)
	}

	var components []derivedComponent
	anchorOf := map[*PotentialArchetype]*PotentialArchetype{}
	for r, members := range byRoot {
		anchor := canonicalMin(members)
		anchorOf[r] = anchor
		components = append(components, derivedComponent{Anchor: anchor})
	}
	for i := 1; i < len(components); i++ {
		j := i
		for j > 0 && compareCanonical(components[j].Anchor, components[j-1].Anchor) < 0 {
			components[j], components[j-1] = components[j-1], components[j]
			j--
		}
	}
	byAnchor := map[*PotentialArchetype]int{}
	for i, c := range components {
		byAnchor[c.Anchor] = i
	}

	// self-derived entries were already removed by finalize step 3.
	for _, cc := range class.ConcreteTypeConstraints {
		r := find(cc.PA)
		idx, ok := byAnchor[anchorOf[r]]
		if !ok {
			continue
		}
		cur := components[idx].ConcreteTypeSource
		if cur == nil || cc.Source.Compare(cur) < 0 {
			components[idx].ConcreteTypeSource = cc.Source
		}
	}

	componentOf := map[*PotentialArchetype]*PotentialArchetype{}
	for _, pa := range class.Members {
		componentOf[pa] = anchorOf[find(pa)]
	}

	return components, componentOf
}
