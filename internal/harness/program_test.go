package harness

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clbench/internal/accel"
)

func openHostSession(t *testing.T) (accel.Runtime, *Session) {
	t.Helper()
	rt := accel.NewHostRuntime()
	h, err := Select(rt, Selection{})
	require.NoError(t, err)
	s, err := Open(h)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return rt, s
}

func TestBuildOptions(t *testing.T) {
	assert.Equal(t, "-DECL_KERNEL_GLOBAL_WORK_OFFSET_SUPPORTED=1", BuildOptions(true))
	assert.Equal(t, "-DECL_KERNEL_GLOBAL_WORK_OFFSET_SUPPORTED=0", BuildOptions(false))
}

func TestParseProgramMode(t *testing.T) {
	m, err := ParseProgramMode("binary")
	require.NoError(t, err)
	assert.Equal(t, ModeBinary, m)

	m, err = ParseProgramMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSource, m)

	_, err = ParseProgramMode("spirv")
	assert.Error(t, err)
}

func TestProgramCache_SourceBuild(t *testing.T) {
	root := writeKernels(t, map[string]string{"square": squareSource})
	_, s := openHostSession(t)
	cache := NewProgramCache(DirLoader{Root: root}, true)

	a, err := cache.Obtain(s, "square", "harness_test_square", ModeSource)
	require.NoError(t, err)
	defer a.Release()

	assert.Equal(t, StateReady, a.State)
	assert.Equal(t, ModeSource, a.Mode)
	assert.Contains(t, a.Options, "ECL_KERNEL_GLOBAL_WORK_OFFSET_SUPPORTED=1")
	assert.NotNil(t, a.Handle())
	assert.Equal(t, 1, cache.SourceBuilds())
	assert.Equal(t, 0, cache.BinaryBuilds())
}

func TestProgramCache_BinaryBypassesSource(t *testing.T) {
	root := writeKernels(t, map[string]string{"square": squareSource})
	rt, s := openHostSession(t)
	loader := &countingLoader{SourceLoader: DirLoader{Root: root}}
	cache := NewProgramCache(loader, true)

	require.NoError(t, cache.Prime(rt, Selection{}, "square", "harness_test_square"))
	assert.True(t, cache.HasBinary("square", "harness_test_square", s.Handle))
	assert.Equal(t, 1, loader.loads)
	assert.Equal(t, 1, cache.SourceBuilds())

	// Priming again is a no-op.
	require.NoError(t, cache.Prime(rt, Selection{}, "square", "harness_test_square"))
	assert.Equal(t, 1, loader.loads)

	for i := 0; i < 3; i++ {
		a, err := cache.Obtain(s, "square", "harness_test_square", ModeBinary)
		require.NoError(t, err)
		assert.Equal(t, StateReady, a.State)
		assert.Equal(t, ModeBinary, a.Mode)
		a.Release()
	}

	assert.Equal(t, 1, loader.loads, "binary builds must not read source")
	assert.Equal(t, 1, cache.SourceBuilds())
	assert.Equal(t, 3, cache.BinaryBuilds())
}

func TestProgramCache_BinaryWithoutPrime(t *testing.T) {
	_, s := openHostSession(t)
	cache := NewProgramCache(DirLoader{Root: t.TempDir()}, true)

	_, err := cache.Obtain(s, "square", "harness_test_square", ModeBinary)
	assert.ErrorIs(t, err, ErrNoBinary)
}

func TestProgramCache_OptionsArePartOfKey(t *testing.T) {
	root := writeKernels(t, map[string]string{"square": squareSource})
	rt, s := openHostSession(t)

	withOffset := NewProgramCache(DirLoader{Root: root}, true)
	require.NoError(t, withOffset.Prime(rt, Selection{}, "square", "harness_test_square"))

	withoutOffset := NewProgramCache(DirLoader{Root: root}, false)
	withoutOffset.binaries = withOffset.binaries

	assert.True(t, withOffset.HasBinary("square", "harness_test_square", s.Handle))
	assert.False(t, withoutOffset.HasBinary("square", "harness_test_square", s.Handle))
}

func TestProgramCache_MissingSourceFailsAtBuild(t *testing.T) {
	_, s := openHostSession(t)
	cache := NewProgramCache(DirLoader{Root: t.TempDir()}, true)

	_, err := cache.Obtain(s, "missing", "harness_test_square", ModeSource)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuildFailure))
	assert.True(t, errors.Is(err, &accel.StatusError{Code: accel.StatusBuildProgramFailure}))

	var bf *BuildFailureError
	require.True(t, errors.As(err, &bf))
	assert.Equal(t, "missing", bf.Program)
	assert.NotEmpty(t, bf.Log, "compiler diagnostic must be surfaced")
	assert.Equal(t, 1, cache.SourceBuilds(), "the build is attempted after the read failure")
}

func TestProgramCache_UnknownKernelIsBuildFailure(t *testing.T) {
	root := writeKernels(t, map[string]string{"square": squareSource})
	_, s := openHostSession(t)
	cache := NewProgramCache(DirLoader{Root: root}, true)

	_, err := cache.Obtain(s, "square", "not_in_program", ModeSource)
	require.ErrorIs(t, err, ErrBuildFailure)
	assert.True(t, strings.Contains(err.Error(), "create kernel"))
}
