// Package types is the builder's window onto the containing compiler's
// type system. Spec §1 treats type equality, substitution and existential
// layout decomposition as external collaborators "assumed available as
// pure functions"; this package gives those pure functions a concrete,
// minimal home so the builder (and its tests) have something to resolve
// dependent types against, in the teacher's tagged-interface style
// (ast/typed/type.go's Type: a closed discriminated union behind a
// private marker method).
package types

import (
	"fmt"
	"strings"

	"gsbuilder/internal/ast"
)

// Type is any type the builder can see: a reference to a generic
// parameter, a dependent member of one, or a fully concrete type. Only
// the first two are "type parameters" in the glossary's sense; resolve()
// (spec §4.4) dispatches on exactly this distinction.
type Type interface {
	_type()
	String() string
}

// ParamType is a bare reference to a generic parameter — the root of
// every dependent-type chain.
type ParamType struct {
	Key  ast.GenericParamKey
	Name string // surface name, for rendering only
}

func (*ParamType) _type() {}
func (t *ParamType) String() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("τ_%d_%d", t.Key.Depth, t.Key.Index)
}

// MemberType is DependentMember(Base, Name): a nested type of another
// dependent (or, once concretized, concrete) type.
type MemberType struct {
	Base Type
	Name ast.Identifier
}

func (*MemberType) _type() {}
func (t *MemberType) String() string {
	return fmt.Sprintf("%s.%s", t.Base.String(), t.Name)
}

// NominalType is a concrete struct or class, possibly generic.
type NominalType struct {
	Name       string
	Args       []Type
	IsClass    bool
	Superclass *NominalType // nil unless IsClass and it has one
}

func (*NominalType) _type() {}
func (t *NominalType) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", t.Name, strings.Join(parts, ", "))
}

// ExistentialType is a composition of protocols plus an optional
// superclass bound — what add_type_requirement (§4.4) decomposes via
// ExistentialLayout.
type ExistentialType struct {
	Protocols  []string
	Superclass *NominalType
}

func (*ExistentialType) _type() {}
func (t *ExistentialType) String() string {
	s := strings.Join(t.Protocols, " & ")
	if t.Superclass != nil {
		s = t.Superclass.String() + " & " + s
	}
	return s
}

// ErrorType is substituted in at signature-materialization time for a
// class whose concrete/superclass binding was found to be recursive
// (spec §7 "Fatal cases ... degrade gracefully by substituting an error
// type").
type ErrorType struct{}

func (*ErrorType) _type() {}
func (*ErrorType) String() string { return "<<error type>>" }

// IsConcrete reports whether t is a genuinely concrete type rather than
// a dependent type (a type parameter or a chain of DependentMember on
// one) — the first branch of resolve() (spec §4.4).
func IsConcrete(t Type) bool {
	switch t.(type) {
	case *ParamType, *MemberType:
		return false
	default:
		return true
	}
}

// IsEqual is the default structural-equality matcher used when no
// mismatch callback short-circuits earlier (spec §4.4 "two concrete
// types: structural match using the external type matcher").
func IsEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch av := a.(type) {
	case *ParamType:
		bv, ok := b.(*ParamType)
		return ok && av.Key.Equal(bv.Key)
	case *MemberType:
		bv, ok := b.(*MemberType)
		return ok && av.Name == bv.Name && IsEqual(av.Base, bv.Base)
	case *NominalType:
		bv, ok := b.(*NominalType)
		if !ok || av.Name != bv.Name || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !IsEqual(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	case *ExistentialType:
		bv, ok := b.(*ExistentialType)
		if !ok || len(av.Protocols) != len(bv.Protocols) {
			return false
		}
		for i := range av.Protocols {
			if av.Protocols[i] != bv.Protocols[i] {
				return false
			}
		}
		return true
	case *ErrorType:
		_, ok := b.(*ErrorType)
		return ok
	default:
		return false
	}
}

// IsExactSuperclassOf reports whether super is exactly an ancestor of (or
// equal to) sub in the nominal class hierarchy — used by add_superclass's
// tightening check and by §4.9's superclass/concrete-type coherence
// check (Invariant E).
func IsExactSuperclassOf(sub, super Type) bool {
	subN, ok := sub.(*NominalType)
	if !ok {
		return false
	}
	superN, ok := super.(*NominalType)
	if !ok {
		return false
	}
	for c := subN; c != nil; c = c.Superclass {
		if IsEqual(c, superN) {
			return true
		}
	}
	return false
}

// Substitute replaces every ParamType matching a key in subst with its
// mapped Type, recursing through MemberType/NominalType structure. This
// is the "Self" substitution spec §4.2's visit_path and §4.3's typealias
// resolution rely on: substituting the recursed PA's type for a
// protocol's Self in a declared interface type.
func Substitute(t Type, subst map[ast.GenericParamKey]Type) Type {
	switch v := t.(type) {
	case *ParamType:
		if r, ok := subst[v.Key]; ok {
			return r
		}
		return v
	case *MemberType:
		return &MemberType{Base: Substitute(v.Base, subst), Name: v.Name}
	case *NominalType:
		if len(v.Args) == 0 {
			return v
		}
		args := make([]Type, len(v.Args))
		for i, a := range v.Args {
			args[i] = Substitute(a, subst)
		}
		return &NominalType{Name: v.Name, Args: args, IsClass: v.IsClass, Superclass: v.Superclass}
	default:
		return t
	}
}
