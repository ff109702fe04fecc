package internalwasm

import (
	"testing"

	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func structType(super int32, final bool) *SubType {
	return &SubType{
		Composite:  CompositeType{Kind: CompositeStruct, Fields: []FieldType{{Storage: ValTypeI32}}},
		Final:      final,
		SuperIndex: super,
	}
}

func TestValidateSubtypeForest_acceptsChainWithinLimit(t *testing.T) {
	types := []*SubType{structType(-1, false)}
	for i := 1; i <= MaxSubtypeDepth; i++ {
		types = append(types, structType(int32(i-1), false))
	}
	require.NoError(t, ValidateSubtypeForest(types))
}

// validationErrorKind unwraps err as a *ValidationError and returns its
// Kind, failing the test if err isn't one.
func validationErrorKind(t *testing.T, err error) ValidationErrorKind {
	t.Helper()
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected a *ValidationError, but was %T: %v", err, err)
	}
	return ve.Kind
}

func TestValidateSubtypeForest_rejectsChainExceedingLimit(t *testing.T) {
	types := []*SubType{structType(-1, false)}
	for i := 1; i <= MaxSubtypeDepth+1; i++ {
		types = append(types, structType(int32(i-1), false))
	}
	err := ValidateSubtypeForest(types)
	require.Error(t, err)
	require.Equal(t, InvalidSubType, validationErrorKind(t, err))
}

func TestValidateSubtypeForest_rejectsExtendingFinal(t *testing.T) {
	types := []*SubType{structType(-1, true), structType(0, false)}
	err := ValidateSubtypeForest(types)
	require.Error(t, err)
	require.Equal(t, InvalidSubType, validationErrorKind(t, err))
}

func TestValidateSubtypeForest_rejectsCycle(t *testing.T) {
	types := []*SubType{structType(1, false), structType(0, false)}
	err := ValidateSubtypeForest(types)
	require.Error(t, err)
	require.Equal(t, InvalidSubType, validationErrorKind(t, err))
}

func TestMatchConcreteType(t *testing.T) {
	// 0 <- 1 <- 2 (2 is a subtype of 1 and 0).
	types := []*SubType{structType(-1, false), structType(0, false), structType(1, false)}
	require.NoError(t, ValidateSubtypeForest(types))

	require.True(t, MatchConcreteType(types, 2, 2))
	require.True(t, MatchConcreteType(types, 2, 1))
	require.True(t, MatchConcreteType(types, 2, 0))
	require.False(t, MatchConcreteType(types, 0, 2))
	require.False(t, MatchConcreteType(types, 1, 2))
}

func TestCompositeType_TopHeapType(t *testing.T) {
	fn := CompositeType{Kind: CompositeFunc, FuncType: &FunctionType{}}
	require.Equal(t, HeapFunc, fn.TopHeapType())

	st := CompositeType{Kind: CompositeStruct}
	require.Equal(t, HeapAny, st.TopHeapType())

	arr := CompositeType{Kind: CompositeArray}
	require.Equal(t, HeapAny, arr.TopHeapType())
}
