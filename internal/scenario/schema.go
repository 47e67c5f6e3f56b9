// Package scenario is cmd/gsbuild's client code: it loads a YAML
// description of generic parameters, protocols, conformances and
// requirements, turns it into the collaborators spec §6 asks for
// (collab.ConformanceOracle, collab.LazyResolver), and drives a
// gsb.Builder through them. None of this is part of the builder itself —
// it is exactly the "parser plus type checker" spec §1 says sits outside
// the builder's scope, kept intentionally small since the builder's own
// package is what's under test.
package scenario

// File is the top-level shape of a scenario YAML document.
type File struct {
	Module            string             `yaml:"module"`
	GenericParameters []GenericParam     `yaml:"generic_parameters"`
	Protocols         map[string]Protocol `yaml:"protocols"`
	Conformances      []Conformance      `yaml:"conformances"`
	ModuleTypealiases []Typealias        `yaml:"module_typealiases"`
	Requirements      []Requirement      `yaml:"requirements"`
	AllowConcreteGenericParams bool      `yaml:"allow_concrete_generic_params"`
}

// GenericParam declares one generic parameter at depth/index implied by
// its position in the list (all at depth 0 — scenarios describe a single
// generic context, not nested ones).
type GenericParam struct {
	Name string `yaml:"name"`
}

type AssociatedType struct {
	Name  string   `yaml:"name"`
	Bound []string `yaml:"bound"`
}

type Typealias struct {
	Name       string `yaml:"name"`
	Underlying string `yaml:"underlying"`
}

type Protocol struct {
	AssociatedTypes      []AssociatedType `yaml:"associated_types"`
	Typealiases          []Typealias      `yaml:"typealiases"`
	Inherits             []string         `yaml:"inherits"`
	RequirementSignature []Requirement    `yaml:"requirement_signature"`
	HasRequirementSig    bool             `yaml:"has_requirement_signature"`
}

type Conformance struct {
	Type     string            `yaml:"type"`
	Protocol string            `yaml:"protocol"`
	Abstract bool              `yaml:"abstract"`
	Witness  map[string]string `yaml:"witnesses"`
}

// Requirement mirrors collab.Requirement, spelled one-field-per-kind so a
// YAML author writes exactly one of conforms/superclass/layout/same_type.
type Requirement struct {
	Subject    string `yaml:"subject"`
	Conforms   string `yaml:"conforms"`
	Superclass string `yaml:"superclass"`
	Layout     string `yaml:"layout"`
	SameType   string `yaml:"same_type"`
	Line       int    `yaml:"-"`
}
