package features_test

import (
	"os"
	"runtime"
	"testing"

	"github.com/wasmforge/wasmforge/internal/features"
	"github.com/wasmforge/wasmforge/internal/testing/require"
)

func init() {
	os.Setenv(features.EnvVarName, "f0,f1,f2,hugepages")
	features.EnableFromEnvironment()
}

func TestList(t *testing.T) {
	// Only "hugepages" is a recognized feature name; f0/f1/f2 are silently
	// dropped by Enable's supported(f) filter.
	require.Equal(t, []string{"hugepages"}, features.List())
}

func TestEnabled(t *testing.T) {
	require.True(t, features.Enabled("hugepages"))
	require.False(t, features.Enabled("f0"), "f0 is not a recognized feature name")
	require.False(t, features.Enabled("nope"))
}

func TestAllocsEnabled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("accessing features allocates memory on windows")
	}
	require.Equal(t, 0.0, testing.AllocsPerRun(100, func() {
		features.Enabled("hugepages")
	}))
}

func TestAllocsDisabled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("accessing features allocates memory on windows")
	}
	require.Equal(t, 0.0, testing.AllocsPerRun(100, func() {
		features.Enabled("nope")
	}))
}
