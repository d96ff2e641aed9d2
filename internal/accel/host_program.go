package accel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// HostKernelFunc is the Go implementation of a kernel for the host backend.
type HostKernelFunc func(l *HostLaunch) error

var (
	hostKernelsMu sync.RWMutex
	hostKernels   = map[string]HostKernelFunc{}
)

// RegisterHostKernel binds a kernel name to its host implementation.
// A program built for the host device may only declare registered kernels.
func RegisterHostKernel(name string, fn HostKernelFunc) {
	hostKernelsMu.Lock()
	defer hostKernelsMu.Unlock()
	if fn == nil {
		panic("accel: nil host kernel " + name)
	}
	if _, dup := hostKernels[name]; dup {
		panic("accel: host kernel registered twice: " + name)
	}
	hostKernels[name] = fn
}

// HostKernels lists the registered host kernel names.
func HostKernels() []string {
	hostKernelsMu.RLock()
	defer hostKernelsMu.RUnlock()
	names := make([]string, 0, len(hostKernels))
	for name := range hostKernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupHostKernel(name string) (HostKernelFunc, bool) {
	hostKernelsMu.RLock()
	defer hostKernelsMu.RUnlock()
	fn, ok := hostKernels[name]
	return fn, ok
}

var kernelDecl = regexp.MustCompile(`(?:__kernel|kernel)\s+void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// hostBinaryMagic prefixes serialized host programs.
var hostBinaryMagic = []byte("CLBHOSTBIN1\n")

type hostBinary struct {
	Device  string   `json:"device"`
	Options string   `json:"options"`
	Kernels []string `json:"kernels"`
}

func (c *hostContext) ProgramFromSource(src []byte) (Program, error) {
	if err := c.live("clCreateProgramWithSource"); err != nil {
		return nil, err
	}
	return &hostProgram{ctx: c, source: append([]byte(nil), src...)}, nil
}

func (c *hostContext) ProgramFromBinary(bin []byte) (Program, error) {
	const op = "clCreateProgramWithBinary"
	if err := c.live(op); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(bin, hostBinaryMagic) {
		return nil, newStatusError(op, StatusInvalidBinary)
	}
	var decoded hostBinary
	if err := json.Unmarshal(bin[len(hostBinaryMagic):], &decoded); err != nil {
		return nil, newStatusError(op, StatusInvalidBinary)
	}
	if decoded.Device != c.device.ID() {
		return nil, newStatusError(op, StatusInvalidBinary)
	}
	return &hostProgram{ctx: c, binary: &decoded}, nil
}

// hostProgram "compiles" by locating kernel declarations in the source and
// resolving each against the host kernel registry.
type hostProgram struct {
	ctx     *hostContext
	source  []byte
	binary  *hostBinary
	options string
	kernels []string
	log     string
	built   bool
}

func (p *hostProgram) Build(options string) error {
	const op = "clBuildProgram"
	if err := p.ctx.live(op); err != nil {
		return err
	}
	p.options = options

	if p.binary != nil {
		p.kernels = append([]string(nil), p.binary.Kernels...)
		p.log = ""
		p.built = true
		return nil
	}

	var diag strings.Builder
	matches := kernelDecl.FindAllSubmatch(p.source, -1)
	if len(bytes.TrimSpace(p.source)) == 0 {
		diag.WriteString("<source>:1:1: error: empty translation unit\n")
	} else if len(matches) == 0 {
		diag.WriteString("<source>: error: no kernel functions declared\n")
	}

	kernels := make([]string, 0, len(matches))
	for _, m := range matches {
		name := string(m[1])
		if _, ok := lookupHostKernel(name); !ok {
			fmt.Fprintf(&diag, "<source>: error: kernel '%s' has no host implementation\n", name)
			continue
		}
		kernels = append(kernels, name)
	}

	if diag.Len() > 0 {
		p.log = diag.String()
		return newStatusError(op, StatusBuildProgramFailure)
	}

	p.kernels = kernels
	p.log = ""
	p.built = true
	return nil
}

func (p *hostProgram) BuildLog() string { return p.log }

func (p *hostProgram) Binary() ([]byte, error) {
	if !p.built {
		return nil, newStatusError("clGetProgramInfo(binaries)", StatusInvalidProgramExec)
	}
	payload, err := json.Marshal(hostBinary{
		Device:  p.ctx.device.ID(),
		Options: p.options,
		Kernels: p.kernels,
	})
	if err != nil {
		return nil, fmt.Errorf("encode host binary: %w", err)
	}
	return append(append([]byte(nil), hostBinaryMagic...), payload...), nil
}

func (p *hostProgram) CreateKernel(name string) (Kernel, error) {
	const op = "clCreateKernel"
	if !p.built {
		return nil, newStatusError(op, StatusInvalidProgramExec)
	}
	for _, k := range p.kernels {
		if k != name {
			continue
		}
		fn, ok := lookupHostKernel(name)
		if !ok {
			return nil, newStatusError(op, StatusInvalidKernelName)
		}
		return &hostKernel{program: p, name: name, fn: fn}, nil
	}
	return nil, newStatusError(op, StatusInvalidKernelName)
}

func (p *hostProgram) Release() {
	p.built = false
	p.kernels = nil
}

type hostKernel struct {
	program *hostProgram
	name    string
	fn      HostKernelFunc
	args    []Arg
	set     []bool
}

func (k *hostKernel) Name() string { return k.name }

func (k *hostKernel) SetArg(index int, arg Arg) error {
	const op = "clSetKernelArg"
	if k.fn == nil {
		return newStatusError(op, StatusInvalidKernel)
	}
	if index < 0 || index >= hostMaxArgs {
		return newStatusError(op, StatusInvalidArgIndex)
	}
	switch arg.Kind {
	case ArgBuffer:
		if _, ok := arg.Buffer.(*hostBuffer); !ok {
			return newStatusError(op, StatusInvalidMemObject)
		}
	case ArgScalar:
		if len(arg.Value) == 0 {
			return newStatusError(op, StatusInvalidArgSize)
		}
	case ArgLocal:
		if arg.LocalSize <= 0 || arg.LocalSize > hostMaxLocalMemory {
			return newStatusError(op, StatusInvalidArgSize)
		}
	default:
		return newStatusError(op, StatusInvalidArgValue)
	}

	for len(k.args) <= index {
		k.args = append(k.args, Arg{})
		k.set = append(k.set, false)
	}
	k.args[index] = arg
	k.set[index] = true
	return nil
}

// snapshot returns the bound arguments, failing if any position below the
// highest bound index was left unset.
func (k *hostKernel) snapshot(ctx *hostContext) ([]Arg, error) {
	const op = "clEnqueueNDRangeKernel"
	out := make([]Arg, len(k.args))
	for i, arg := range k.args {
		if !k.set[i] {
			return nil, newStatusError(op, StatusInvalidKernelArgs)
		}
		if arg.Kind == ArgBuffer {
			b := arg.Buffer.(*hostBuffer)
			if b.data == nil || b.ctx != ctx {
				return nil, newStatusError(op, StatusInvalidMemObject)
			}
		}
		out[i] = arg
	}
	return out, nil
}

func (k *hostKernel) Release() {
	k.fn = nil
	k.args = nil
	k.set = nil
}
