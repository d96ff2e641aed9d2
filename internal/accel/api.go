// Package accel is the accelerator API surface used by the harness.
//
// The object model mirrors OpenCL: a Runtime exposes platforms, a platform
// exposes devices, and a device opens a Context from which buffers, programs
// and an in-order Queue are created. Two backends implement it: "opencl"
// (cgo, requires the gpu build tag) and "host", a software device that runs
// registered Go implementations of kernels and is always available.
package accel

// Runtime enumerates platforms for one backend.
type Runtime interface {
	Name() string
	Platforms() ([]Platform, error)
}

// Platform groups the devices exposed by one driver.
type Platform interface {
	Info() PlatformInfo
	Devices() ([]Device, error)
}

// Device is a single compute device.
type Device interface {
	Info() DeviceInfo
	// ID identifies the device for program binary compatibility.
	ID() string
	NewContext() (Context, error)
}

// Context owns every object created for one device.
type Context interface {
	NewQueue() (Queue, error)
	CreateBuffer(size int) (Buffer, error)
	ProgramFromSource(src []byte) (Program, error)
	ProgramFromBinary(bin []byte) (Program, error)
	Release()
}

// Buffer is a read/write device allocation.
type Buffer interface {
	Size() int
	Release()
}

// Program is a compilation unit that may hold several kernels.
//
// Build must be called for programs created from source and from binary.
type Program interface {
	Build(options string) error
	BuildLog() string
	Binary() ([]byte, error)
	CreateKernel(name string) (Kernel, error)
	Release()
}

// Kernel is an entry point extracted from a built program.
type Kernel interface {
	Name() string
	SetArg(index int, arg Arg) error
	Release()
}

// Queue is an in-order command queue.
//
// Non-blocking transfers may complete at any point before the next blocking
// command or Finish returns. The host slice passed to a non-blocking read must
// not be inspected until then.
type Queue interface {
	EnqueueWrite(buf Buffer, blocking bool, src []byte) error
	EnqueueRead(buf Buffer, blocking bool, dst []byte) error
	EnqueueNDRange(k Kernel, offset, global, local int) error
	Finish() error
	Release()
}
