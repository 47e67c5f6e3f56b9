package ast

// GenericParamKey identifies a generic parameter by its declaration depth
// (how many enclosing generic contexts, outermost first) and its index
// within that depth (spec §3). It totally orders depth-major,
// index-minor.
type GenericParamKey struct {
	Depth uint16
	Index uint16
}

// Less implements the (d1,i1) < (d2,i2) ⇔ d1<d2 ∨ (d1=d2 ∧ i1<i2) order.
func (k GenericParamKey) Less(other GenericParamKey) bool {
	if k.Depth != other.Depth {
		return k.Depth < other.Depth
	}
	return k.Index < other.Index
}

func (k GenericParamKey) Equal(other GenericParamKey) bool {
	return k.Depth == other.Depth && k.Index == other.Index
}
