package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/clbench/internal/accel"
)

const squareSource = `
__kernel void harness_test_square(__global const float *in, __global float *out, const int n) {
    const int gid = get_global_id(0);
    if (gid < n) {
        out[gid] = in[gid] * in[gid];
    }
}
`

func init() {
	accel.RegisterHostKernel("harness_test_square", func(l *accel.HostLaunch) error {
		args := l.Args()
		in := accel.View[float32](args.Buffer(0))
		out := accel.View[float32](args.Buffer(1))
		n := int(args.Int32(2))
		if err := args.Err(); err != nil {
			return err
		}
		l.ForEachItem(func(gid int) {
			if gid < n {
				out[gid] = in[gid] * in[gid]
			}
		})
		return nil
	})
}

// writeKernels creates a kernels root holding the given program sources.
func writeKernels(t *testing.T, programs map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, src := range programs {
		if err := os.WriteFile(filepath.Join(root, name+".cl"), []byte(src), 0644); err != nil {
			t.Fatalf("Failed to write kernel source: %v", err)
		}
	}
	return root
}

// countingRuntime wraps a runtime and counts contexts created on its devices.
type countingRuntime struct {
	accel.Runtime
	contexts int
}

func (r *countingRuntime) Platforms() ([]accel.Platform, error) {
	platforms, err := r.Runtime.Platforms()
	if err != nil {
		return nil, err
	}
	out := make([]accel.Platform, len(platforms))
	for i, p := range platforms {
		out[i] = countingPlatform{Platform: p, rt: r}
	}
	return out, nil
}

type countingPlatform struct {
	accel.Platform
	rt *countingRuntime
}

func (p countingPlatform) Devices() ([]accel.Device, error) {
	devices, err := p.Platform.Devices()
	if err != nil {
		return nil, err
	}
	out := make([]accel.Device, len(devices))
	for i, d := range devices {
		out[i] = countingDevice{Device: d, rt: p.rt}
	}
	return out, nil
}

type countingDevice struct {
	accel.Device
	rt *countingRuntime
}

func (d countingDevice) NewContext() (accel.Context, error) {
	d.rt.contexts++
	return d.Device.NewContext()
}

// countingLoader counts source reads.
type countingLoader struct {
	SourceLoader
	loads int
}

func (l *countingLoader) Load(program string) ([]byte, error) {
	l.loads++
	return l.SourceLoader.Load(program)
}

// squareTask builds a task that squares in into out.
func squareTask(in, out []float32) *Task {
	return &Task{
		Workload: "square",
		Program:  "square",
		Kernel:   "harness_test_square",
		Buffers: []BufferSpec{
			{Name: "in", Host: Bytes(in), Direction: Upload},
			{Name: "out", Host: Bytes(out), Direction: Download},
		},
		Shape: ImageWorkShape(len(in)),
		Bind: func(a *ArgList) {
			a.Buffer("in").Buffer("out").Int32(int32(len(in)))
		},
		Output: func() []float64 {
			vals := make([]float64, len(out))
			for i, v := range out {
				vals[i] = float64(v)
			}
			return vals
		},
		Reference: func() []float64 {
			vals := make([]float64, len(in))
			for i, v := range in {
				vals[i] = float64(v) * float64(v)
			}
			return vals
		},
		Tolerance: Tolerance{Threshold: 1e-6, Comparison: Absolute},
	}
}
