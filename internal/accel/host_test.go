package accel

import (
	"errors"
	"strings"
	"testing"
)

const scaleSource = `
__kernel void accel_test_scale(__global float *data, const float factor) {
    const int gid = get_global_id(0);
    data[gid] *= factor;
}
`

func init() {
	RegisterHostKernel("accel_test_scale", func(l *HostLaunch) error {
		args := l.Args()
		data := View[float32](args.Buffer(0))
		factor := args.Float32(1)
		if err := args.Err(); err != nil {
			return err
		}
		l.ForEachItem(func(gid int) {
			if gid < len(data) {
				data[gid] *= factor
			}
		})
		return nil
	})
}

func hostContextForTest(t *testing.T) (Device, Context) {
	t.Helper()
	rt := NewHostRuntime()
	platforms, err := rt.Platforms()
	if err != nil {
		t.Fatalf("Platforms failed: %v", err)
	}
	if len(platforms) != 1 {
		t.Fatalf("Expected 1 host platform, got %d", len(platforms))
	}
	devices, err := platforms[0].Devices()
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	ctx, err := devices[0].NewContext()
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(ctx.Release)
	return devices[0], ctx
}

func TestHostDeviceInfo(t *testing.T) {
	dev, _ := hostContextForTest(t)
	info := dev.Info()
	if info.Type != DeviceTypeCPU {
		t.Errorf("Expected CPU device, got %s", info.Type)
	}
	if info.MaxComputeUnits == 0 {
		t.Error("Expected at least one compute unit")
	}
	if info.MaxWorkGroupSize < 256 {
		t.Errorf("Expected work-group limit >= 256, got %d", info.MaxWorkGroupSize)
	}
	if !strings.HasPrefix(dev.ID(), "host|") {
		t.Errorf("Unexpected device ID %q", dev.ID())
	}
}

func TestHostProgram_BuildAndRun(t *testing.T) {
	_, ctx := hostContextForTest(t)

	prog, err := ctx.ProgramFromSource([]byte(scaleSource))
	if err != nil {
		t.Fatalf("ProgramFromSource failed: %v", err)
	}
	if err := prog.Build("-DECL_KERNEL_GLOBAL_WORK_OFFSET_SUPPORTED=1"); err != nil {
		t.Fatalf("Build failed: %v (log: %s)", err, prog.BuildLog())
	}
	kernel, err := prog.CreateKernel("accel_test_scale")
	if err != nil {
		t.Fatalf("CreateKernel failed: %v", err)
	}

	host := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	buf, err := ctx.CreateBuffer(len(host) * 4)
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	queue, err := ctx.NewQueue()
	if err != nil {
		t.Fatalf("NewQueue failed: %v", err)
	}
	defer queue.Release()

	if err := queue.EnqueueWrite(buf, false, Bytes(host)); err != nil {
		t.Fatalf("EnqueueWrite failed: %v", err)
	}
	if err := kernel.SetArg(0, BufferArg(buf)); err != nil {
		t.Fatalf("SetArg(0) failed: %v", err)
	}
	if err := kernel.SetArg(1, Float32Arg(2)); err != nil {
		t.Fatalf("SetArg(1) failed: %v", err)
	}
	if err := queue.EnqueueNDRange(kernel, 0, 8, 4); err != nil {
		t.Fatalf("EnqueueNDRange failed: %v", err)
	}

	out := make([]float32, len(host))
	if err := queue.EnqueueRead(buf, true, Bytes(out)); err != nil {
		t.Fatalf("EnqueueRead failed: %v", err)
	}
	for i, v := range out {
		if v != host[i]*2 {
			t.Errorf("out[%d] = %v, want %v", i, v, host[i]*2)
		}
	}
}

func TestHostProgram_EmptySourceFailsWithLog(t *testing.T) {
	_, ctx := hostContextForTest(t)

	prog, err := ctx.ProgramFromSource(nil)
	if err != nil {
		t.Fatalf("ProgramFromSource failed: %v", err)
	}
	err = prog.Build("")
	if err == nil {
		t.Fatal("Expected build failure for empty source")
	}
	if !errors.Is(err, &StatusError{Code: StatusBuildProgramFailure}) {
		t.Errorf("Expected CL_BUILD_PROGRAM_FAILURE, got %v", err)
	}
	if prog.BuildLog() == "" {
		t.Error("Expected a non-empty build log")
	}
}

func TestHostProgram_UnregisteredKernel(t *testing.T) {
	_, ctx := hostContextForTest(t)

	prog, _ := ctx.ProgramFromSource([]byte("__kernel void nowhere(__global int *x) {}"))
	if err := prog.Build(""); err == nil {
		t.Fatal("Expected build failure for kernel without host implementation")
	}
	if !strings.Contains(prog.BuildLog(), "nowhere") {
		t.Errorf("Build log should name the kernel, got %q", prog.BuildLog())
	}
}

func TestHostProgram_BinaryRoundTrip(t *testing.T) {
	_, ctx := hostContextForTest(t)

	src, _ := ctx.ProgramFromSource([]byte(scaleSource))
	if err := src.Build("-DX=1"); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	bin, err := src.Binary()
	if err != nil {
		t.Fatalf("Binary failed: %v", err)
	}

	prog, err := ctx.ProgramFromBinary(bin)
	if err != nil {
		t.Fatalf("ProgramFromBinary failed: %v", err)
	}
	if _, err := prog.CreateKernel("accel_test_scale"); err == nil {
		t.Fatal("CreateKernel should fail before Build")
	}
	if err := prog.Build("-DX=1"); err != nil {
		t.Fatalf("Build from binary failed: %v", err)
	}
	if _, err := prog.CreateKernel("accel_test_scale"); err != nil {
		t.Fatalf("CreateKernel failed: %v", err)
	}
}

func TestHostProgram_RejectsForeignBinary(t *testing.T) {
	_, ctx := hostContextForTest(t)

	tests := []struct {
		name string
		bin  []byte
	}{
		{"garbage", []byte("not a binary")},
		{"other device", append(append([]byte(nil), hostBinaryMagic...), []byte(`{"device":"opencl|x|y","kernels":["accel_test_scale"]}`)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctx.ProgramFromBinary(tt.bin)
			if !errors.Is(err, &StatusError{Code: StatusInvalidBinary}) {
				t.Errorf("Expected CL_INVALID_BINARY, got %v", err)
			}
		})
	}
}

func TestHostQueue_NDRangeValidation(t *testing.T) {
	_, ctx := hostContextForTest(t)

	prog, _ := ctx.ProgramFromSource([]byte(scaleSource))
	if err := prog.Build(""); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	kernel, _ := prog.CreateKernel("accel_test_scale")
	queue, _ := ctx.NewQueue()
	buf, _ := ctx.CreateBuffer(64)

	_ = kernel.SetArg(1, Float32Arg(1))
	if err := queue.EnqueueNDRange(kernel, 0, 16, 4); !errors.Is(err, &StatusError{Code: StatusInvalidKernelArgs}) {
		t.Errorf("Expected CL_INVALID_KERNEL_ARGS with arg 0 unbound, got %v", err)
	}
	_ = kernel.SetArg(0, BufferArg(buf))

	tests := []struct {
		name          string
		global, local int
		code          int
	}{
		{"not divisible", 10, 4, StatusInvalidWorkGroupSize},
		{"zero local", 16, 0, StatusInvalidWorkGroupSize},
		{"too large local", 2048, 2048, StatusInvalidWorkGroupSize},
		{"zero global", 0, 4, StatusInvalidGlobalWorkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := queue.EnqueueNDRange(kernel, 0, tt.global, tt.local)
			if !errors.Is(err, &StatusError{Code: tt.code}) {
				t.Errorf("Expected %s, got %v", StatusName(tt.code), err)
			}
		})
	}

	if err := queue.EnqueueNDRange(kernel, 0, 16, 4); err != nil {
		t.Errorf("Valid launch failed: %v", err)
	}
}

func TestHostKernel_SetArgValidation(t *testing.T) {
	_, ctx := hostContextForTest(t)

	prog, _ := ctx.ProgramFromSource([]byte(scaleSource))
	_ = prog.Build("")
	kernel, _ := prog.CreateKernel("accel_test_scale")

	if err := kernel.SetArg(-1, Int32Arg(1)); !errors.Is(err, &StatusError{Code: StatusInvalidArgIndex}) {
		t.Errorf("Expected CL_INVALID_ARG_INDEX, got %v", err)
	}
	if err := kernel.SetArg(0, LocalArg(0)); !errors.Is(err, &StatusError{Code: StatusInvalidArgSize}) {
		t.Errorf("Expected CL_INVALID_ARG_SIZE, got %v", err)
	}
	if err := kernel.SetArg(0, BufferArg(nil)); !errors.Is(err, &StatusError{Code: StatusInvalidMemObject}) {
		t.Errorf("Expected CL_INVALID_MEM_OBJECT, got %v", err)
	}
}

func TestHostQueue_TransferBounds(t *testing.T) {
	_, ctx := hostContextForTest(t)
	queue, _ := ctx.NewQueue()
	buf, _ := ctx.CreateBuffer(8)

	if err := queue.EnqueueWrite(buf, true, make([]byte, 16)); err == nil {
		t.Error("Expected error writing past buffer end")
	}
	if err := queue.EnqueueRead(buf, true, make([]byte, 16)); err == nil {
		t.Error("Expected error reading past buffer end")
	}
	if _, err := ctx.CreateBuffer(0); !errors.Is(err, &StatusError{Code: StatusInvalidBufferSize}) {
		t.Errorf("Expected CL_INVALID_BUFFER_SIZE, got %v", err)
	}
}

func TestForEachGroupCoversAllGroups(t *testing.T) {
	l := &HostLaunch{Global: 1024, Local: 64}
	seen := make([]int32, l.Groups())
	l.ForEachGroup(func(g int) { seen[g]++ })
	for g, n := range seen {
		if n != 1 {
			t.Errorf("group %d visited %d times", g, n)
		}
	}
}
