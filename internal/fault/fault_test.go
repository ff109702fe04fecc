package fault

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmforge/wasmforge/internal/wasmruntime"
)

func TestGuard_TranslatesIndexOutOfRange(t *testing.T) {
	f := Arm(nil)
	s := []int{1, 2, 3}
	err := f.Guard(func() {
		_ = s[10]
	})
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeOutOfBoundsMemoryAccess)
}

func TestGuard_TranslatesIntegerDivideByZero(t *testing.T) {
	f := Arm(nil)
	divisor := 0
	err := f.Guard(func() {
		x := 1
		_ = x / divisor
	})
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeDivideByZero)
}

func TestGuard_PassesThroughSentinelUnchanged(t *testing.T) {
	f := Arm(nil)
	err := f.Guard(func() {
		panic(wasmruntime.ErrRuntimeUncaughtException)
	})
	require.ErrorIs(t, err, wasmruntime.ErrRuntimeUncaughtException)
}

func TestGuard_NoPanicReturnsNil(t *testing.T) {
	f := Arm(nil)
	err := f.Guard(func() {})
	require.NoError(t, err)
}

func TestArmDisarm_Chains(t *testing.T) {
	outer := Arm(nil)
	inner := Arm(outer)
	require.Same(t, outer, inner.Disarm())
	require.Nil(t, outer.Disarm())
}

func TestBlocker_RePanicsInsteadOfTranslating(t *testing.T) {
	f := Arm(nil)
	blocker := f.Block()
	defer blocker.Release()

	defer func() {
		r := recover()
		require.NotNil(t, r, "blocked Guard should re-panic rather than return an error")
	}()
	_ = f.Guard(func() {
		panic(wasmruntime.ErrRuntimeUncaughtException)
	})
}

func TestBlocker_NestedReleaseRestoresOuterState(t *testing.T) {
	f := Arm(nil)
	outer := f.Block()
	inner := f.Block()
	inner.Release()
	require.True(t, f.blocked, "releasing the inner blocker must not rearm past the outer one")
	outer.Release()
	require.False(t, f.blocked)
}
