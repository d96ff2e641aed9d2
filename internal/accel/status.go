package accel

import "fmt"

// Status codes shared by both backends. The values match the OpenCL headers
// so that host and driver failures read the same in logs.
const (
	StatusSuccess               = 0
	StatusDeviceNotFound        = -1
	StatusDeviceNotAvailable    = -2
	StatusCompilerNotAvailable  = -3
	StatusMemAllocationFailure  = -4
	StatusOutOfResources        = -5
	StatusOutOfHostMemory       = -6
	StatusBuildProgramFailure   = -11
	StatusInvalidValue          = -30
	StatusInvalidDevice         = -33
	StatusInvalidContext        = -34
	StatusInvalidQueueProps     = -35
	StatusInvalidCommandQueue   = -36
	StatusInvalidHostPtr        = -37
	StatusInvalidMemObject      = -38
	StatusInvalidBinary         = -42
	StatusInvalidBuildOptions   = -43
	StatusInvalidProgram        = -44
	StatusInvalidProgramExec    = -45
	StatusInvalidKernelName     = -46
	StatusInvalidKernel         = -48
	StatusInvalidArgIndex       = -49
	StatusInvalidArgValue       = -50
	StatusInvalidArgSize        = -51
	StatusInvalidKernelArgs     = -52
	StatusInvalidWorkDimension  = -53
	StatusInvalidWorkGroupSize  = -54
	StatusInvalidWorkItemSize   = -55
	StatusInvalidGlobalOffset   = -56
	StatusInvalidGlobalWorkSize = -63
	StatusInvalidBufferSize     = -61
)

var statusNames = map[int]string{
	StatusSuccess:               "CL_SUCCESS",
	StatusDeviceNotFound:        "CL_DEVICE_NOT_FOUND",
	StatusDeviceNotAvailable:    "CL_DEVICE_NOT_AVAILABLE",
	StatusCompilerNotAvailable:  "CL_COMPILER_NOT_AVAILABLE",
	StatusMemAllocationFailure:  "CL_MEM_OBJECT_ALLOCATION_FAILURE",
	StatusOutOfResources:        "CL_OUT_OF_RESOURCES",
	StatusOutOfHostMemory:       "CL_OUT_OF_HOST_MEMORY",
	StatusBuildProgramFailure:   "CL_BUILD_PROGRAM_FAILURE",
	StatusInvalidValue:          "CL_INVALID_VALUE",
	StatusInvalidDevice:         "CL_INVALID_DEVICE",
	StatusInvalidContext:        "CL_INVALID_CONTEXT",
	StatusInvalidQueueProps:     "CL_INVALID_QUEUE_PROPERTIES",
	StatusInvalidCommandQueue:   "CL_INVALID_COMMAND_QUEUE",
	StatusInvalidHostPtr:        "CL_INVALID_HOST_PTR",
	StatusInvalidMemObject:      "CL_INVALID_MEM_OBJECT",
	StatusInvalidBinary:         "CL_INVALID_BINARY",
	StatusInvalidBuildOptions:   "CL_INVALID_BUILD_OPTIONS",
	StatusInvalidProgram:        "CL_INVALID_PROGRAM",
	StatusInvalidProgramExec:    "CL_INVALID_PROGRAM_EXECUTABLE",
	StatusInvalidKernelName:     "CL_INVALID_KERNEL_NAME",
	StatusInvalidKernel:         "CL_INVALID_KERNEL",
	StatusInvalidArgIndex:       "CL_INVALID_ARG_INDEX",
	StatusInvalidArgValue:       "CL_INVALID_ARG_VALUE",
	StatusInvalidArgSize:        "CL_INVALID_ARG_SIZE",
	StatusInvalidKernelArgs:     "CL_INVALID_KERNEL_ARGS",
	StatusInvalidWorkDimension:  "CL_INVALID_WORK_DIMENSION",
	StatusInvalidWorkGroupSize:  "CL_INVALID_WORK_GROUP_SIZE",
	StatusInvalidWorkItemSize:   "CL_INVALID_WORK_ITEM_SIZE",
	StatusInvalidGlobalOffset:   "CL_INVALID_GLOBAL_OFFSET",
	StatusInvalidGlobalWorkSize: "CL_INVALID_GLOBAL_WORK_SIZE",
	StatusInvalidBufferSize:     "CL_INVALID_BUFFER_SIZE",
}

// StatusName returns the symbolic name of a status code.
func StatusName(code int) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "CL_UNKNOWN_ERROR"
}

// StatusError reports a non-success status returned by an API call.
type StatusError struct {
	Op   string
	Code int
	Name string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Name, e.Code)
}

// Is matches another StatusError with the same code, so callers can test
// errors.Is(err, &StatusError{Code: StatusBuildProgramFailure}).
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	return ok && t.Code == e.Code
}

func newStatusError(op string, code int) error {
	return &StatusError{Op: op, Code: code, Name: StatusName(code)}
}
