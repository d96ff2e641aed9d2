//go:build gpu

package accel

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static cl_command_queue clbench_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, 0, status);
#endif
}

static cl_program clbench_program_from_source(cl_context ctx, const char *src, size_t len, cl_int *status) {
	const char *sources[1] = { src };
	return clCreateProgramWithSource(ctx, 1, sources, &len, status);
}

static cl_program clbench_program_from_binary(cl_context ctx, cl_device_id device, const unsigned char *bin, size_t len, cl_int *status) {
	cl_int binStatus = CL_SUCCESS;
	const unsigned char *binaries[1] = { bin };
	cl_program program = clCreateProgramWithBinary(ctx, 1, &device, &len, binaries, &binStatus, status);
	if (*status == CL_SUCCESS && binStatus != CL_SUCCESS) {
		*status = binStatus;
	}
	return program;
}

static cl_int clbench_program_binary(cl_program program, unsigned char **out, size_t *len) {
	size_t size = 0;
	cl_int status = clGetProgramInfo(program, CL_PROGRAM_BINARY_SIZES, sizeof(size), &size, NULL);
	if (status != CL_SUCCESS) {
		return status;
	}
	if (size == 0) {
		return CL_INVALID_BINARY;
	}
	unsigned char *buf = (unsigned char *)malloc(size);
	if (buf == NULL) {
		return CL_OUT_OF_HOST_MEMORY;
	}
	unsigned char *binaries[1] = { buf };
	status = clGetProgramInfo(program, CL_PROGRAM_BINARIES, sizeof(binaries), binaries, NULL);
	if (status != CL_SUCCESS) {
		free(buf);
		return status;
	}
	*out = buf;
	*len = size;
	return CL_SUCCESS;
}
*/
import "C"

import (
	"errors"
	"log/slog"
	"strings"
	"unsafe"
)

// ErrNoDevices indicates that no usable OpenCL platform was found.
var ErrNoDevices = errors.New("no OpenCL devices found")

type clRuntime struct{}

func newOpenCLRuntime() (Runtime, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, ErrNoDevices
	}
	return clRuntime{}, nil
}

func (clRuntime) Name() string { return string(BackendOpenCL) }

func (clRuntime) Platforms() ([]Platform, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	ids := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	platforms := make([]Platform, 0, len(ids))
	for _, pid := range ids {
		p, err := newCLPlatform(pid)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

type clPlatform struct {
	id      C.cl_platform_id
	info    PlatformInfo
	devices []*clDevice
}

func newCLPlatform(pid C.cl_platform_id) (*clPlatform, error) {
	name, err := getPlatformString(pid, C.CL_PLATFORM_NAME)
	if err != nil {
		return nil, err
	}
	vendor, err := getPlatformString(pid, C.CL_PLATFORM_VENDOR)
	if err != nil {
		return nil, err
	}
	version, err := getPlatformString(pid, C.CL_PLATFORM_VERSION)
	if err != nil {
		return nil, err
	}

	p := &clPlatform{
		id:   pid,
		info: PlatformInfo{Name: name, Vendor: vendor, Version: version},
	}

	devices, err := enumerateDevices(p)
	if err != nil {
		return nil, err
	}
	p.devices = devices
	p.info.Devices = make([]DeviceInfo, len(devices))
	for i, d := range devices {
		p.info.Devices[i] = d.info
	}
	return p, nil
}

func (p *clPlatform) Info() PlatformInfo { return p.info }

func (p *clPlatform) Devices() ([]Device, error) {
	out := make([]Device, len(p.devices))
	for i, d := range p.devices {
		out[i] = d
	}
	return out, nil
}

type clDevice struct {
	id       C.cl_device_id
	platform *clPlatform
	info     DeviceInfo
	driver   string
}

func enumerateDevices(p *clPlatform) ([]*clDevice, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(p.id, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || (status == C.CL_SUCCESS && count == 0) {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}

	ids := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(p.id, C.CL_DEVICE_TYPE_ALL, count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]*clDevice, 0, len(ids))
	for _, id := range ids {
		d, err := buildDevice(id, p)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func buildDevice(id C.cl_device_id, p *clPlatform) (*clDevice, error) {
	name, err := getDeviceString(id, C.CL_DEVICE_NAME)
	if err != nil {
		return nil, err
	}
	vendor, err := getDeviceString(id, C.CL_DEVICE_VENDOR)
	if err != nil {
		return nil, err
	}
	version, err := getDeviceString(id, C.CL_DEVICE_VERSION)
	if err != nil {
		return nil, err
	}
	driver, err := getDeviceString(id, C.CL_DRIVER_VERSION)
	if err != nil {
		return nil, err
	}
	extensions, err := getDeviceString(id, C.CL_DEVICE_EXTENSIONS)
	if err != nil {
		return nil, err
	}

	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceInfo(type)", status)
	}

	var computeUnits C.cl_uint
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceInfo(computeUnits)", status)
	}

	var groupSize C.size_t
	status = C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_WORK_GROUP_SIZE, C.size_t(unsafe.Sizeof(groupSize)), unsafe.Pointer(&groupSize), nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceInfo(workGroupSize)", status)
	}

	return &clDevice{
		id:       id,
		platform: p,
		driver:   driver,
		info: DeviceInfo{
			Name:             name,
			Vendor:           vendor,
			Version:          version,
			Type:             mapDeviceType(rawType),
			MaxComputeUnits:  uint32(computeUnits),
			MaxWorkGroupSize: int(groupSize),
			Extensions:       strings.Fields(extensions),
		},
	}, nil
}

func (d *clDevice) Info() DeviceInfo { return d.info }

func (d *clDevice) ID() string {
	return strings.Join([]string{string(BackendOpenCL), d.platform.info.Name, d.info.Name, d.info.Version, d.driver}, "|")
}

func (d *clDevice) NewContext() (Context, error) {
	var status C.cl_int
	ctx := C.clCreateContext(nil, 1, &d.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}
	return &clContext{ctx: ctx, device: d}, nil
}

type clContext struct {
	ctx    C.cl_context
	device *clDevice
}

func (c *clContext) NewQueue() (Queue, error) {
	var status C.cl_int
	q := C.clbench_create_queue(c.ctx, c.device.id, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateCommandQueue", status)
	}
	return &clQueue{queue: q}, nil
}

func (c *clContext) CreateBuffer(size int) (Buffer, error) {
	if size <= 0 {
		return nil, newStatusError("clCreateBuffer", StatusInvalidBufferSize)
	}
	var status C.cl_int
	mem := C.clCreateBuffer(c.ctx, C.CL_MEM_READ_WRITE, C.size_t(size), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &clBuffer{mem: mem, size: size}, nil
}

func (c *clContext) ProgramFromSource(src []byte) (Program, error) {
	csrc := C.CString(string(src))
	defer C.free(unsafe.Pointer(csrc))

	var status C.cl_int
	p := C.clbench_program_from_source(c.ctx, csrc, C.size_t(len(src)), &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}
	return &clProgram{program: p, device: c.device}, nil
}

func (c *clContext) ProgramFromBinary(bin []byte) (Program, error) {
	if len(bin) == 0 {
		return nil, newStatusError("clCreateProgramWithBinary", StatusInvalidBinary)
	}
	cbin := C.CBytes(bin)
	defer C.free(cbin)

	var status C.cl_int
	p := C.clbench_program_from_binary(c.ctx, c.device.id, (*C.uchar)(cbin), C.size_t(len(bin)), &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithBinary", status)
	}
	return &clProgram{program: p, device: c.device}, nil
}

func (c *clContext) Release() {
	if c.ctx != nil {
		C.clReleaseContext(c.ctx)
		c.ctx = nil
	}
}

type clBuffer struct {
	mem  C.cl_mem
	size int
}

func (b *clBuffer) Size() int { return b.size }

func (b *clBuffer) Release() {
	if b.mem != nil {
		C.clReleaseMemObject(b.mem)
		b.mem = nil
	}
}

type clProgram struct {
	program C.cl_program
	device  *clDevice
}

func (p *clProgram) Build(options string) error {
	copts := C.CString(options)
	defer C.free(unsafe.Pointer(copts))

	status := C.clBuildProgram(p.program, 1, &p.device.id, copts, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clBuildProgram", status)
	}
	return nil
}

func (p *clProgram) BuildLog() string {
	var logSize C.size_t
	if status := C.clGetProgramBuildInfo(p.program, p.device.id, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log size", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}
	if logSize == 0 {
		return ""
	}

	buf := make([]byte, int(logSize))
	if status := C.clGetProgramBuildInfo(p.program, p.device.id, C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}
	return trimNull(buf)
}

func (p *clProgram) Binary() ([]byte, error) {
	var out *C.uchar
	var size C.size_t
	status := C.clbench_program_binary(p.program, &out, &size)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetProgramInfo(binaries)", status)
	}
	defer C.free(unsafe.Pointer(out))
	return C.GoBytes(unsafe.Pointer(out), C.int(size)), nil
}

func (p *clProgram) CreateKernel(name string) (Kernel, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var status C.cl_int
	k := C.clCreateKernel(p.program, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateKernel", status)
	}
	return &clKernel{kernel: k, name: name}, nil
}

func (p *clProgram) Release() {
	if p.program != nil {
		C.clReleaseProgram(p.program)
		p.program = nil
	}
}

type clKernel struct {
	kernel C.cl_kernel
	name   string
}

func (k *clKernel) Name() string { return k.name }

func (k *clKernel) SetArg(index int, arg Arg) error {
	var status C.cl_int
	switch arg.Kind {
	case ArgBuffer:
		buf, ok := arg.Buffer.(*clBuffer)
		if !ok || buf.mem == nil {
			return newStatusError("clSetKernelArg", StatusInvalidMemObject)
		}
		mem := buf.mem
		status = C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
	case ArgScalar:
		if len(arg.Value) == 0 {
			return newStatusError("clSetKernelArg", StatusInvalidArgSize)
		}
		status = C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(len(arg.Value)), unsafe.Pointer(&arg.Value[0]))
	case ArgLocal:
		status = C.clSetKernelArg(k.kernel, C.cl_uint(index), C.size_t(arg.LocalSize), nil)
	default:
		return newStatusError("clSetKernelArg", StatusInvalidArgValue)
	}
	if status != C.CL_SUCCESS {
		return statusError("clSetKernelArg", status)
	}
	return nil
}

func (k *clKernel) Release() {
	if k.kernel != nil {
		C.clReleaseKernel(k.kernel)
		k.kernel = nil
	}
}

type pendingRead struct {
	src unsafe.Pointer
	dst []byte
}

// clQueue stages non-blocking transfers through C memory because the driver
// may touch the host pointer after the enqueue call returns.
type clQueue struct {
	queue  C.cl_command_queue
	writes []unsafe.Pointer
	reads  []pendingRead
}

func (q *clQueue) EnqueueWrite(buf Buffer, blocking bool, src []byte) error {
	b, ok := buf.(*clBuffer)
	if !ok || b.mem == nil {
		return newStatusError("clEnqueueWriteBuffer", StatusInvalidMemObject)
	}
	if len(src) == 0 || len(src) > b.size {
		return newStatusError("clEnqueueWriteBuffer", StatusInvalidValue)
	}

	if blocking {
		status := C.clEnqueueWriteBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(src)), unsafe.Pointer(&src[0]), 0, nil, nil)
		if status != C.CL_SUCCESS {
			return statusError("clEnqueueWriteBuffer", status)
		}
		q.drain()
		return nil
	}

	staged := C.CBytes(src)
	status := C.clEnqueueWriteBuffer(q.queue, b.mem, C.CL_FALSE, 0, C.size_t(len(src)), staged, 0, nil, nil)
	if status != C.CL_SUCCESS {
		C.free(staged)
		return statusError("clEnqueueWriteBuffer", status)
	}
	q.writes = append(q.writes, staged)
	return nil
}

func (q *clQueue) EnqueueRead(buf Buffer, blocking bool, dst []byte) error {
	b, ok := buf.(*clBuffer)
	if !ok || b.mem == nil {
		return newStatusError("clEnqueueReadBuffer", StatusInvalidMemObject)
	}
	if len(dst) == 0 || len(dst) > b.size {
		return newStatusError("clEnqueueReadBuffer", StatusInvalidValue)
	}

	if blocking {
		status := C.clEnqueueReadBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, nil)
		if status != C.CL_SUCCESS {
			return statusError("clEnqueueReadBuffer", status)
		}
		q.drain()
		return nil
	}

	staged := C.malloc(C.size_t(len(dst)))
	status := C.clEnqueueReadBuffer(q.queue, b.mem, C.CL_FALSE, 0, C.size_t(len(dst)), staged, 0, nil, nil)
	if status != C.CL_SUCCESS {
		C.free(staged)
		return statusError("clEnqueueReadBuffer", status)
	}
	q.reads = append(q.reads, pendingRead{src: staged, dst: dst})
	return nil
}

func (q *clQueue) EnqueueNDRange(k Kernel, offset, global, local int) error {
	ck, ok := k.(*clKernel)
	if !ok || ck.kernel == nil {
		return newStatusError("clEnqueueNDRangeKernel", StatusInvalidKernel)
	}

	g := C.size_t(global)
	l := C.size_t(local)
	var off *C.size_t
	if offset != 0 {
		o := C.size_t(offset)
		off = &o
	}
	var localPtr *C.size_t
	if local > 0 {
		localPtr = &l
	}

	status := C.clEnqueueNDRangeKernel(q.queue, ck.kernel, 1, off, &g, localPtr, 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueNDRangeKernel", status)
	}
	return nil
}

func (q *clQueue) Finish() error {
	status := C.clFinish(q.queue)
	if status != C.CL_SUCCESS {
		return statusError("clFinish", status)
	}
	q.drain()
	return nil
}

// drain completes bookkeeping for staged transfers. Only valid once the
// queue has reached a synchronisation point.
func (q *clQueue) drain() {
	for _, r := range q.reads {
		copy(r.dst, unsafe.Slice((*byte)(r.src), len(r.dst)))
		C.free(r.src)
	}
	q.reads = q.reads[:0]
	for _, w := range q.writes {
		C.free(w)
	}
	q.writes = q.writes[:0]
}

func (q *clQueue) Release() {
	if q.queue == nil {
		return
	}
	if status := C.clFinish(q.queue); status == C.CL_SUCCESS {
		q.drain()
	} else {
		slog.Warn("OpenCL: queue did not drain before release", "err", statusError("clFinish", status))
	}
	C.clReleaseCommandQueue(q.queue)
	q.queue = nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}

	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}

	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func mapDeviceType(dt C.cl_device_type) DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return DeviceTypeDefault
	default:
		return DeviceTypeUnknown
	}
}

func statusError(op string, status C.cl_int) error {
	return newStatusError(op, int(status))
}
