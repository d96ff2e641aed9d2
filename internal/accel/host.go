package accel

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sys/cpu"
)

const (
	hostPlatformName    = "Host Software Platform"
	hostVendor          = "clbench"
	hostVersion         = "OpenCL 1.2 host"
	hostMaxWorkGroup    = 1024
	hostMaxArgs         = 64
	hostMaxLocalMemory  = 64 * 1024
	hostMaxBufferLength = 1 << 30
)

// NewHostRuntime returns the software runtime: one platform with one CPU
// device that executes kernels registered with RegisterHostKernel.
func NewHostRuntime() Runtime {
	rt := &hostRuntime{}
	rt.platform = &hostPlatform{runtime: rt}
	rt.platform.device = &hostDevice{platform: rt.platform, info: hostDeviceInfo()}
	return rt
}

type hostRuntime struct {
	platform *hostPlatform
}

func (r *hostRuntime) Name() string { return string(BackendHost) }

func (r *hostRuntime) Platforms() ([]Platform, error) {
	return []Platform{r.platform}, nil
}

type hostPlatform struct {
	runtime *hostRuntime
	device  *hostDevice
}

func (p *hostPlatform) Info() PlatformInfo {
	return PlatformInfo{
		Name:    hostPlatformName,
		Vendor:  hostVendor,
		Version: hostVersion,
		Devices: []DeviceInfo{p.device.info},
	}
}

func (p *hostPlatform) Devices() ([]Device, error) {
	return []Device{p.device}, nil
}

func hostDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Name:             fmt.Sprintf("Host CPU (%s)", runtime.GOARCH),
		Vendor:           hostVendor,
		Version:          hostVersion,
		Type:             DeviceTypeCPU,
		MaxComputeUnits:  uint32(runtime.NumCPU()),
		MaxWorkGroupSize: hostMaxWorkGroup,
		Extensions:       hostExtensions(),
	}
}

// hostExtensions reports the vector units the Go runtime detected, in the
// same list form drivers use for CL_DEVICE_EXTENSIONS.
func hostExtensions() []string {
	ext := []string{"cl_khr_fp64", "cl_khr_byte_addressable_store"}
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasSSE41 {
			ext = append(ext, "host_sse4_1")
		}
		if cpu.X86.HasAVX2 {
			ext = append(ext, "host_avx2")
		}
		if cpu.X86.HasFMA {
			ext = append(ext, "host_fma")
		}
		if cpu.X86.HasAVX512F {
			ext = append(ext, "host_avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			ext = append(ext, "host_neon")
		}
		if cpu.ARM64.HasFPHP {
			ext = append(ext, "cl_khr_fp16")
		}
	}
	return ext
}

type hostDevice struct {
	platform *hostPlatform
	info     DeviceInfo
}

func (d *hostDevice) Info() DeviceInfo { return d.info }

func (d *hostDevice) ID() string {
	return strings.Join([]string{string(BackendHost), hostPlatformName, d.info.Name, d.info.Version}, "|")
}

func (d *hostDevice) NewContext() (Context, error) {
	return &hostContext{device: d}, nil
}

type hostContext struct {
	mu       sync.Mutex
	device   *hostDevice
	released bool
}

func (c *hostContext) live(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return newStatusError(op, StatusInvalidContext)
	}
	return nil
}

func (c *hostContext) NewQueue() (Queue, error) {
	if err := c.live("clCreateCommandQueue"); err != nil {
		return nil, err
	}
	return &hostQueue{ctx: c}, nil
}

func (c *hostContext) CreateBuffer(size int) (Buffer, error) {
	if err := c.live("clCreateBuffer"); err != nil {
		return nil, err
	}
	if size <= 0 || size > hostMaxBufferLength {
		return nil, newStatusError("clCreateBuffer", StatusInvalidBufferSize)
	}
	return &hostBuffer{ctx: c, data: make([]byte, size)}, nil
}

func (c *hostContext) Release() {
	c.mu.Lock()
	c.released = true
	c.mu.Unlock()
}

type hostBuffer struct {
	ctx  *hostContext
	data []byte
}

func (b *hostBuffer) Size() int { return len(b.data) }

func (b *hostBuffer) Release() { b.data = nil }

// hostQueue executes every command at enqueue time, which satisfies the
// in-order contract for both blocking and non-blocking transfers.
type hostQueue struct {
	ctx      *hostContext
	released bool
}

func (q *hostQueue) buffer(op string, buf Buffer) (*hostBuffer, error) {
	if q.released {
		return nil, newStatusError(op, StatusInvalidCommandQueue)
	}
	b, ok := buf.(*hostBuffer)
	if !ok || b.data == nil || b.ctx != q.ctx {
		return nil, newStatusError(op, StatusInvalidMemObject)
	}
	return b, nil
}

func (q *hostQueue) EnqueueWrite(buf Buffer, blocking bool, src []byte) error {
	b, err := q.buffer("clEnqueueWriteBuffer", buf)
	if err != nil {
		return err
	}
	if len(src) == 0 || len(src) > len(b.data) {
		return newStatusError("clEnqueueWriteBuffer", StatusInvalidValue)
	}
	copy(b.data, src)
	return nil
}

func (q *hostQueue) EnqueueRead(buf Buffer, blocking bool, dst []byte) error {
	b, err := q.buffer("clEnqueueReadBuffer", buf)
	if err != nil {
		return err
	}
	if len(dst) == 0 || len(dst) > len(b.data) {
		return newStatusError("clEnqueueReadBuffer", StatusInvalidValue)
	}
	copy(dst, b.data)
	return nil
}

func (q *hostQueue) EnqueueNDRange(k Kernel, offset, global, local int) error {
	const op = "clEnqueueNDRangeKernel"
	if q.released {
		return newStatusError(op, StatusInvalidCommandQueue)
	}
	hk, ok := k.(*hostKernel)
	if !ok || hk.fn == nil {
		return newStatusError(op, StatusInvalidKernel)
	}
	if hk.program.ctx != q.ctx {
		return newStatusError(op, StatusInvalidContext)
	}
	if global <= 0 {
		return newStatusError(op, StatusInvalidGlobalWorkSize)
	}
	if offset < 0 {
		return newStatusError(op, StatusInvalidGlobalOffset)
	}
	if local <= 0 || local > hostMaxWorkGroup || global%local != 0 {
		return newStatusError(op, StatusInvalidWorkGroupSize)
	}

	args, err := hk.snapshot(q.ctx)
	if err != nil {
		return err
	}

	launch := &HostLaunch{
		Offset: offset,
		Global: global,
		Local:  local,
		args:   &HostArgs{args: args},
	}
	if err := hk.fn(launch); err != nil {
		return fmt.Errorf("%s(%s): %w", op, hk.name, err)
	}
	return launch.args.Err()
}

func (q *hostQueue) Finish() error {
	if q.released {
		return newStatusError("clFinish", StatusInvalidCommandQueue)
	}
	return nil
}

func (q *hostQueue) Release() { q.released = true }
