package accel

import (
	"errors"
	"testing"
)

func TestNormalizeBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
	}{
		{"", BackendHost},
		{"host", BackendHost},
		{" CPU ", BackendHost},
		{"opencl", BackendOpenCL},
		{"GPU", BackendOpenCL},
		{"cl", BackendOpenCL},
		{"vulkan", Backend("vulkan")},
	}
	for _, tt := range tests {
		if got := NormalizeBackend(tt.in); got != tt.want {
			t.Errorf("NormalizeBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpen(t *testing.T) {
	rt, err := Open("host")
	if err != nil {
		t.Fatalf("Open(host) failed: %v", err)
	}
	if rt.Name() != string(BackendHost) {
		t.Errorf("Expected host runtime, got %s", rt.Name())
	}

	if _, err := Open("vulkan"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Expected ErrUnknownBackend, got %v", err)
	}
}

func TestScalarArgsAreFourBytes(t *testing.T) {
	for _, arg := range []Arg{Int32Arg(-3), Uint32Arg(7), Float32Arg(1.5)} {
		if arg.Kind != ArgScalar || len(arg.Value) != 4 {
			t.Errorf("Unexpected scalar encoding: %+v", arg)
		}
	}
	args := &HostArgs{args: []Arg{Int32Arg(-3), Uint32Arg(7), Float32Arg(1.5), LocalArg(32)}}
	if got := args.Int32(0); got != -3 {
		t.Errorf("Int32 = %d", got)
	}
	if got := args.Uint32(1); got != 7 {
		t.Errorf("Uint32 = %d", got)
	}
	if got := args.Float32(2); got != 1.5 {
		t.Errorf("Float32 = %v", got)
	}
	if got := args.Local(3); got != 32 {
		t.Errorf("Local = %d", got)
	}
	if err := args.Err(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	_ = args.Buffer(0)
	if args.Err() == nil {
		t.Error("Expected error reading scalar as buffer")
	}
}

func TestBytesAndView(t *testing.T) {
	in := []float32{1, 2, 3}
	raw := Bytes(in)
	if len(raw) != 12 {
		t.Fatalf("Expected 12 bytes, got %d", len(raw))
	}
	back := View[float32](raw)
	if len(back) != 3 || back[2] != 3 {
		t.Errorf("View round trip mismatch: %v", back)
	}
	if Bytes[float32](nil) != nil {
		t.Error("Bytes(nil) should be nil")
	}
}
