package accel

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// ArgKind distinguishes the three ways a kernel argument can be bound.
type ArgKind int

const (
	ArgBuffer ArgKind = iota
	ArgScalar
	ArgLocal
)

func (k ArgKind) String() string {
	switch k {
	case ArgBuffer:
		return "buffer"
	case ArgScalar:
		return "scalar"
	case ArgLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Arg is one positional kernel argument.
type Arg struct {
	Kind   ArgKind
	Buffer Buffer
	// Value holds a scalar in host byte order.
	Value []byte
	// LocalSize is the byte size of a work-group local allocation.
	LocalSize int
}

func BufferArg(b Buffer) Arg {
	return Arg{Kind: ArgBuffer, Buffer: b}
}

func Int32Arg(v int32) Arg {
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, uint32(v))
	return Arg{Kind: ArgScalar, Value: buf}
}

func Uint32Arg(v uint32) Arg {
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, v)
	return Arg{Kind: ArgScalar, Value: buf}
}

func Float32Arg(v float32) Arg {
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, math.Float32bits(v))
	return Arg{Kind: ArgScalar, Value: buf}
}

// LocalArg reserves size bytes of work-group local memory.
func LocalArg(size int) Arg {
	return Arg{Kind: ArgLocal, LocalSize: size}
}

// Bytes reinterprets a typed host slice as raw bytes without copying.
func Bytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// View reinterprets raw bytes as a typed slice without copying. Trailing
// bytes that do not fill a whole element are dropped.
func View[T any](b []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || len(b) < size {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/size)
}
