package harness

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clbench/internal/accel"
)

func TestSelect_Valid(t *testing.T) {
	rt := accel.NewHostRuntime()

	h, err := Select(rt, Selection{Platform: 0, Device: 0})
	require.NoError(t, err)

	platforms, _ := rt.Platforms()
	devices, _ := platforms[0].Devices()
	assert.Equal(t, 0, h.PlatformIndex)
	assert.Equal(t, 0, h.DeviceIndex)
	assert.Equal(t, platforms[0].Info().Name, h.Platform.Name)
	assert.Equal(t, devices[0].Info().Name, h.Device.Name)
	assert.Equal(t, devices[0].ID(), h.ID())
}

func TestSelect_Invalid(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		what string
		idx  int
	}{
		{"platform past end", Selection{Platform: 3}, "platform", 3},
		{"negative platform", Selection{Platform: -1}, "platform", -1},
		{"device past end", Selection{Device: 1}, "device", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &countingRuntime{Runtime: accel.NewHostRuntime()}

			_, err := Select(rt, tt.sel)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSelection))

			var sel *InvalidSelectionError
			require.True(t, errors.As(err, &sel))
			assert.Equal(t, tt.what, sel.What)
			assert.Equal(t, tt.idx, sel.Index)
			assert.Equal(t, 0, sel.Last)
			assert.Equal(t, 0, rt.contexts, "no context may be created for an invalid selection")
		})
	}
}

func TestRun_InvalidSelectionCreatesNoContext(t *testing.T) {
	root := writeKernels(t, map[string]string{"square": squareSource})
	rt := &countingRuntime{Runtime: accel.NewHostRuntime()}

	for _, mode := range []ProgramMode{ModeSource, ModeBinary} {
		cfg := DefaultConfig()
		cfg.KernelsRoot = root
		cfg.Mode = mode
		cfg.Selection = Selection{Platform: 0, Device: 5}
		var out bytes.Buffer
		cfg.Report = &out

		h, err := NewWithRuntime(cfg, rt, nil)
		require.NoError(t, err)

		in := []float32{1, 2}
		_, err = h.Run(squareTask(in, make([]float32, len(in))))
		require.ErrorIs(t, err, ErrInvalidSelection)
		assert.Empty(t, out.String(), "nothing is reported for a fatal run")
	}
	assert.Equal(t, 0, rt.contexts)
}

func TestSession_OpenClose(t *testing.T) {
	h, err := Select(accel.NewHostRuntime(), Selection{})
	require.NoError(t, err)

	s, err := Open(h)
	require.NoError(t, err)
	require.NotNil(t, s.Context)
	require.NotNil(t, s.Queue)

	s.Close()
	assert.Nil(t, s.Context)
	assert.Nil(t, s.Queue)
	s.Close()
}

func TestEnumerate(t *testing.T) {
	infos, err := Enumerate(accel.NewHostRuntime())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Len(t, infos[0].Devices, 1)
}
