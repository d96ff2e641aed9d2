package accel

import (
	"errors"
	"fmt"
	"strings"
)

// Backend identifies a runtime implementation.
type Backend string

const (
	BackendHost   Backend = "host"
	BackendOpenCL Backend = "opencl"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown accelerator backend")
	// ErrBackendUnavailable indicates the backend is not available in this build or on this machine.
	ErrBackendUnavailable = errors.New("accelerator backend unavailable")
	// ErrNotBuilt indicates the binary was built without OpenCL support.
	ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")
)

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "host", "cpu", "software":
		return BackendHost
	case "gpu", "opencl", "cl":
		return BackendOpenCL
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by Open.
func SupportedBackends() []Backend {
	return []Backend{BackendHost, BackendOpenCL}
}

// Open returns the runtime for the named backend.
func Open(name string) (Runtime, error) {
	switch NormalizeBackend(name) {
	case BackendHost:
		return NewHostRuntime(), nil
	case BackendOpenCL:
		rt, err := newOpenCLRuntime()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return rt, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
