package gsb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"gsbuilder/internal/ast"
	"gsbuilder/internal/collab"
	"gsbuilder/internal/types"
)

// SourceKind is the provenance-node discriminant from spec §3.
type SourceKind int

const (
	SourceExplicit SourceKind = iota
	SourceInferred
	SourceRequirementSignatureSelf
	SourceNestedTypeNameMatch
	SourceParent
	SourceProtocolRequirement
	SourceInferredProtocolRequirement
	SourceSuperclass
	SourceConcrete
)

func (k SourceKind) String() string {
	return [...]string{
		"Explicit", "Inferred", "RequirementSignatureSelf", "NestedTypeNameMatch",
		"Parent", "ProtocolRequirement", "InferredProtocolRequirement", "Superclass", "Concrete",
	}[k]
}

// storageKind tags which of RequirementSource's storage fields (rootPA,
// depType, conformance, assocType) is live; the trailing Protocol and
// WrittenLoc slots are two separate optional fields.
type storageKind int

const (
	storageRootPA storageKind = iota
	storageDependentType
	storageConformance
	storageAssocType
)

// RequirementSource is an interned, immutable provenance node (spec §3,
// §4.2). Two sources with the same profile are the same pointer — see
// (*Interner).Intern.
type RequirementSource struct {
	Kind   SourceKind
	Parent *RequirementSource

	storageKind storageKind
	rootPA      *PotentialArchetype
	depType     types.Type
	conformance collab.ConformanceRef
	assocType   *collab.AssociatedTypeDecl

	Protocol   collab.ProtocolName // trailing; "" if not applicable
	WrittenLoc ast.SourceLoc       // trailing; empty if not applicable

	profile string // cached, used for interning and as a stable sort tiebreak
}

// profileOf builds the structural key used for interning (spec §5:
// "hash over the whole immutable tuple including parent pointer, kind,
// storage, trailing fields"). Parent identity is folded in via the
// parent's own already-computed profile, so two sources are structurally
// equal iff their whole ancestor chains are.
func profileOf(kind SourceKind, parent *RequirementSource, sk storageKind, storageID string, protocol collab.ProtocolName, loc ast.SourceLoc) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(kind)))
	sb.WriteByte('|')
	if parent != nil {
		sb.WriteString(parent.profile)
	}
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(int(sk)))
	sb.WriteByte(':')
	sb.WriteString(storageID)
	sb.WriteByte('|')
	sb.WriteString(string(protocol))
	sb.WriteByte('|')
	sb.WriteString(loc.CursorString())
	return sb.String()
}

// Interner is the builder-scoped intern table for RequirementSource. It
// buckets by an xxhash of the profile and falls back to an exact profile
// compare on collision, so a hash collision can never merge two distinct
// sources (spec §5 "Interning uses structural profiling").
type Interner struct {
	buckets map[uint64][]*RequirementSource
}

func NewInterner() *Interner {
	return &Interner{buckets: map[uint64][]*RequirementSource{}}
}

func (in *Interner) intern(s *RequirementSource) *RequirementSource {
	h := xxhash.Sum64String(s.profile)
	for _, existing := range in.buckets[h] {
		if existing.profile == s.profile {
			return existing
		}
	}
	in.buckets[h] = append(in.buckets[h], s)
	return s
}

func rootPAStorageID(pa *PotentialArchetype) string {
	return fmt.Sprintf("pa:%p", pa)
}

func conformanceStorageID(c collab.ConformanceRef) string {
	return fmt.Sprintf("conf:%p", c)
}

func assocStorageID(a *collab.AssociatedTypeDecl) string {
	return fmt.Sprintf("assoc:%s.%s", a.Protocol, a.Name)
}

// ForExplicit materializes a root-archetype source for a requirement the
// user wrote directly (spec §4.2 for_explicit).
func (in *Interner) ForExplicit(root *PotentialArchetype, writtenLoc ast.SourceLoc) *RequirementSource {
	s := &RequirementSource{Kind: SourceExplicit, storageKind: storageRootPA, rootPA: root, WrittenLoc: writtenLoc}
	s.profile = profileOf(s.Kind, nil, s.storageKind, rootPAStorageID(root), "", writtenLoc)
	return in.intern(s)
}

// ForInferred materializes a root-archetype source for a requirement
// discovered by infer_requirements (spec §4.2 for_inferred).
func (in *Interner) ForInferred(root *PotentialArchetype, fromType types.Type) *RequirementSource {
	s := &RequirementSource{Kind: SourceInferred, storageKind: storageRootPA, rootPA: root, depType: fromType}
	s.profile = profileOf(s.Kind, nil, s.storageKind, rootPAStorageID(root)+"|"+fromType.String(), "", ast.NoLoc)
	return in.intern(s)
}

// ForRequirementSignatureSelf materializes the root source used only
// when the builder is computing a protocol's own requirement signature:
// `root` stands for the protocol's Self (spec §4.2 for_requirement_signature).
func (in *Interner) ForRequirementSignatureSelf(root *PotentialArchetype, protocol collab.ProtocolName) *RequirementSource {
	s := &RequirementSource{Kind: SourceRequirementSignatureSelf, storageKind: storageRootPA, rootPA: root, Protocol: protocol}
	s.profile = profileOf(s.Kind, nil, s.storageKind, rootPAStorageID(root), protocol, ast.NoLoc)
	return in.intern(s)
}

// ForNestedTypeNameMatch is the source attached to the same-type edge
// created when two differently-contributed nested PAs share a name (spec
// §4.3 step 3/4, §4.2 for_nested_type_name_match).
func (in *Interner) ForNestedTypeNameMatch(parent *RequirementSource) *RequirementSource {
	s := &RequirementSource{Kind: SourceNestedTypeNameMatch, Parent: parent, storageKind: storageDependentType}
	s.profile = profileOf(s.Kind, parent, s.storageKind, "", "", ast.NoLoc)
	return in.intern(s)
}

// ViaParent is the transparent frame added when the affected PA is a
// nested type reached through its parent's associated-type declaration
// (spec §4.2 via_parent).
func (in *Interner) ViaParent(parent *RequirementSource, assoc *collab.AssociatedTypeDecl) *RequirementSource {
	s := &RequirementSource{Kind: SourceParent, Parent: parent, storageKind: storageAssocType, assocType: assoc}
	s.profile = profileOf(s.Kind, parent, s.storageKind, assocStorageID(assoc), "", ast.NoLoc)
	return in.intern(s)
}

// ViaProtocolRequirement is added for every requirement obtained by
// walking a conformance's requirement signature (spec §4.2
// via_protocol_requirement). dependentType is the requirement's subject
// expressed relative to the conforming PA (after Self-substitution).
func (in *Interner) ViaProtocolRequirement(parent *RequirementSource, protocol collab.ProtocolName, dependentType types.Type, inferred, written bool) *RequirementSource {
	kind := SourceProtocolRequirement
	if inferred {
		kind = SourceInferredProtocolRequirement
	}
	s := &RequirementSource{Kind: kind, Parent: parent, storageKind: storageDependentType, depType: dependentType, Protocol: protocol}
	loc := ast.NoLoc
	if written {
		loc = parent.WrittenLoc
	}
	s.WrittenLoc = loc
	s.profile = profileOf(s.Kind, parent, s.storageKind, dependentType.String(), protocol, loc)
	return in.intern(s)
}

// ViaSuperclass is the transparent frame recording that a fact was
// derived through a class's superclass conformance (spec §4.2
// via_superclass). conformance is the oracle's answer for
// superclass:proto.
func (in *Interner) ViaSuperclass(parent *RequirementSource, conformance collab.ConformanceRef) *RequirementSource {
	s := &RequirementSource{Kind: SourceSuperclass, Parent: parent, storageKind: storageConformance, conformance: conformance}
	s.profile = profileOf(s.Kind, parent, s.storageKind, conformanceStorageID(conformance), "", ast.NoLoc)
	return in.intern(s)
}

// ViaConcrete is the transparent frame recording that a fact was derived
// through a class's concrete binding (spec §4.2 via_concrete).
func (in *Interner) ViaConcrete(parent *RequirementSource, conformance collab.ConformanceRef) *RequirementSource {
	s := &RequirementSource{Kind: SourceConcrete, Parent: parent, storageKind: storageConformance, conformance: conformance}
	s.profile = profileOf(s.Kind, parent, s.storageKind, conformanceStorageID(conformance), "", ast.NoLoc)
	return in.intern(s)
}

// IsDerived implements spec §3's derived predicate.
func (s *RequirementSource) IsDerived() bool {
	switch s.Kind {
	case SourceNestedTypeNameMatch, SourceParent, SourceSuperclass, SourceConcrete, SourceRequirementSignatureSelf:
		return true
	case SourceProtocolRequirement, SourceInferredProtocolRequirement:
		return s.Parent == nil || s.Parent.Kind != SourceRequirementSignatureSelf
	default:
		return false
	}
}

// IsInferred implements spec §3's inferred predicate: true if any
// ancestor (inclusive) has kind Inferred or InferredProtocolRequirement.
func (s *RequirementSource) IsInferred() bool {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == SourceInferred || cur.Kind == SourceInferredProtocolRequirement {
			return true
		}
	}
	return false
}

// HasWrittenLoc reports whether this source (not an ancestor) carries an
// explicit written location — the "valid source locations" test used by
// §4.9's representative-selection and redundancy gating (SPEC_FULL.md
// supplemented feature #1).
func (s *RequirementSource) HasWrittenLoc() bool {
	return !s.WrittenLoc.IsEmpty()
}

// protocolRequirementPathLength counts ProtocolRequirement/InferredProtocolRequirement
// frames in the ancestor chain, used by compare()'s "shorter
// ProtocolRequirement path length" tiebreak.
func (s *RequirementSource) protocolRequirementPathLength() int {
	n := 0
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == SourceProtocolRequirement || cur.Kind == SourceInferredProtocolRequirement {
			n++
		}
	}
	return n
}

// Compare implements spec §4.2 compare(): prefer derived, then shorter
// ProtocolRequirement path, then stable by profile. The profile
// tiebreak is arbitrary but — because profiles are a pure function of
// the immutable tuple — deterministic across runs for the same input set,
// which is the load-bearing property §9 calls out.
func (s *RequirementSource) Compare(other *RequirementSource) int {
	if s == other {
		return 0
	}
	sd, od := s.IsDerived(), other.IsDerived()
	if sd != od {
		if sd {
			return -1
		}
		return 1
	}
	sl, ol := s.protocolRequirementPathLength(), other.protocolRequirementPathLength()
	if sl != ol {
		if sl < ol {
			return -1
		}
		return 1
	}
	if s.profile < other.profile {
		return -1
	}
	if s.profile > other.profile {
		return 1
	}
	return 0
}

// visitFunc is a visit_path visitor: return true to abort the traversal
// early (spec §4.2).
type visitFunc func(root *PotentialArchetype, src *RequirementSource) bool

// VisitPath folds the source to the PA it is affected by, reconstructing
// the dependent-type path exactly as spec §4.2 describes. derivedViaConcrete
// is set if a ProtocolRequirement frame was found whose parent chain
// already resolved to a concretely-bound PA.
func (s *RequirementSource) VisitPath(b *Builder, visit visitFunc) (*PotentialArchetype, bool) {
	derivedViaConcrete := false
	pa, aborted := s.visitPath(b, visit, &derivedViaConcrete)
	return pa, derivedViaConcrete && !aborted
}

func (s *RequirementSource) visitPath(b *Builder, visit visitFunc, derivedViaConcrete *bool) (*PotentialArchetype, bool) {
	switch s.Kind {
	case SourceExplicit, SourceInferred, SourceRequirementSignatureSelf:
		if visit(s.rootPA, s) {
			return nil, true
		}
		return s.rootPA, false

	case SourceParent:
		parentPA, aborted := s.Parent.visitPath(b, visit, derivedViaConcrete)
		if aborted {
			return nil, true
		}
		subst := map[ast.GenericParamKey]types.Type{collab.SelfKey: paType(parentPA)}
		declared := types.Substitute(assocBoundSelfType(s.assocType), subst)
		nestedPA := b.resolveTypeExprToPA(declared)
		if visit(nestedPA, s) {
			return nil, true
		}
		return nestedPA, false

	case SourceProtocolRequirement, SourceInferredProtocolRequirement:
		parentPA, aborted := s.Parent.visitPath(b, visit, derivedViaConcrete)
		if aborted {
			return nil, true
		}
		if getOrCreateEquivalenceClass(parentPA).ConcreteType != nil {
			*derivedViaConcrete = true
		}
		subst := map[ast.GenericParamKey]types.Type{collab.SelfKey: paType(parentPA)}
		declared := types.Substitute(s.depType, subst)
		affectedPA := b.resolveTypeExprToPA(declared)
		if visit(affectedPA, s) {
			return nil, true
		}
		return affectedPA, false

	case SourceConcrete, SourceSuperclass:
		// transparent: recurse, do not invoke visitor.
		return s.Parent.visitPath(b, visit, derivedViaConcrete)

	case SourceNestedTypeNameMatch:
		// NestedTypeNameMatch sources are always attached directly to a
		// same-type constraint already anchored at a concrete PA by the
		// caller; nothing further to reconstruct.
		return nil, false

	default:
		return nil, false
	}
}
