package ast

// Identifier names a single name component: a nested-type name, an
// associated-type name, a protocol member name.
type Identifier string

// ProtocolName names a protocol declaration.
type ProtocolName string

// ModuleName scopes a typealias or protocol to a compilation unit, used
// when resolving typealiases declared alongside a protocol (spec §4.3
// step 4, "every typealias in the protocol's own module").
type ModuleName string
