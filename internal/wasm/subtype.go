package internalwasm

// MaxSubtypeDepth bounds the subtype forest so matchType stays O(depth)
// (spec §3 invariant, §9 "Subtype depth bound"). A chain of exactly
// MaxSubtypeDepth declared supers is legal; one more fails validation.
const MaxSubtypeDepth = 63

// CompositeKind distinguishes the three declared composite shapes.
type CompositeKind byte

const (
	CompositeFunc CompositeKind = iota
	CompositeStruct
	CompositeArray
)

// FieldType is one struct/array field: its storage type and mutability.
type FieldType struct {
	Storage ValType
	Mutable bool
}

// CompositeType is the payload of a declared SubType: exactly one of a
// function signature, a struct's fields, or an array's element type.
type CompositeType struct {
	Kind CompositeKind

	FuncType *FunctionType // Kind == CompositeFunc

	Fields []FieldType // Kind == CompositeStruct

	Element FieldType // Kind == CompositeArray
}

// SubType is one declared type in the module's type section (spec §3). The
// subtype graph is a forest: SuperIndex names the single immediate
// super-type, or -1 for a root. A Final type may not be further extended.
type SubType struct {
	Composite  CompositeType
	Final      bool
	SuperIndex int32 // -1 if this type has no declared super.

	// depth is memoized by the validator when the type section is
	// registered: 0 for a root, parent.depth+1 otherwise.
	depth int
}

// TopHeapType reports the abstract heap type this composite widens to:
// func composites widen to func, struct/array widen to any.
func (c CompositeType) TopHeapType() byte {
	if c.Kind == CompositeFunc {
		return HeapFunc
	}
	return HeapAny
}

// ValidateSubtypeForest checks every declared type's SuperIndex chain is
// acyclic, terminates within MaxSubtypeDepth, and that no type extends a
// Final super. types is indexed by declared type index.
//
// Grounded on original_source lib/validator/formchecker.cpp's subtype-chain
// walk (test/validator/ValidatorSubtypeTest.cpp exercises the same 64-deep
// accept / 65-deep reject boundary spec §8 names).
func ValidateSubtypeForest(types []*SubType) error {
	depth := make([]int, len(types))
	computed := make([]bool, len(types))

	var resolve func(i int, visiting map[int]bool) (int, error)
	resolve = func(i int, visiting map[int]bool) (int, error) {
		if computed[i] {
			return depth[i], nil
		}
		if visiting[i] {
			return 0, newErr(InvalidSubType, "type %d: cyclic subtype chain", i)
		}
		st := types[i]
		if st.SuperIndex < 0 {
			depth[i] = 0
			computed[i] = true
			return 0, nil
		}
		super := int(st.SuperIndex)
		if super < 0 || super >= len(types) {
			return 0, newErr(InvalidSubType, "type %d: invalid super type index %d", i, super)
		}
		if types[super].Final {
			return 0, newErr(InvalidSubType, "type %d: extends final type %d", i, super)
		}
		visiting[i] = true
		d, err := resolve(super, visiting)
		if err != nil {
			return 0, err
		}
		delete(visiting, i)
		d++
		if d > MaxSubtypeDepth {
			return 0, newErr(InvalidSubType, "type %d: subtype chain depth %d exceeds limit %d", i, d, MaxSubtypeDepth)
		}
		depth[i] = d
		computed[i] = true
		return d, nil
	}

	for i := range types {
		if _, err := resolve(i, map[int]bool{}); err != nil {
			return err
		}
	}
	for i, st := range types {
		st.depth = depth[i]
	}
	return nil
}

// MatchConcreteType holds iff the type at index sub is, transitively, the
// type at index super or declares it somewhere up its super chain (spec
// §4.1 "matchType", indirect-call/call_ref typing).
func MatchConcreteType(types []*SubType, sub, super uint32) bool {
	if sub == super {
		return true
	}
	i := int32(sub)
	for steps := 0; steps <= MaxSubtypeDepth && i >= 0; steps++ {
		st := types[i]
		if st.SuperIndex < 0 {
			return false
		}
		if uint32(st.SuperIndex) == super {
			return true
		}
		i = st.SuperIndex
	}
	return false
}
