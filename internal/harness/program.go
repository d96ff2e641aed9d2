package harness

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/clbench/internal/accel"
)

// ProgramMode selects how a program artifact is produced.
type ProgramMode int

const (
	ModeSource ProgramMode = iota
	ModeBinary
)

func (m ProgramMode) String() string {
	switch m {
	case ModeSource:
		return "source"
	case ModeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseProgramMode accepts "source" or "binary".
func ParseProgramMode(s string) (ProgramMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "source":
		return ModeSource, nil
	case "binary", "bin":
		return ModeBinary, nil
	default:
		return ModeSource, fmt.Errorf("unknown program mode %q", s)
	}
}

// ProgramState tracks an artifact through Unbuilt -> Built -> Ready.
type ProgramState int

const (
	StateUnbuilt ProgramState = iota
	StateBuilt
	StateReady
)

func (s ProgramState) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateBuilt:
		return "built"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ProgramArtifact is a built program and the kernel extracted from it.
type ProgramArtifact struct {
	Program string
	Kernel  string
	Mode    ProgramMode
	Options string
	State   ProgramState

	prog   accel.Program
	kernel accel.Kernel
}

// Handle returns the executable kernel. It is nil until State is Ready.
func (a *ProgramArtifact) Handle() accel.Kernel { return a.kernel }

func (a *ProgramArtifact) Release() {
	if a == nil {
		return
	}
	if a.kernel != nil {
		a.kernel.Release()
		a.kernel = nil
	}
	if a.prog != nil {
		a.prog.Release()
		a.prog = nil
	}
}

// SourceLoader fetches kernel source text by program name.
type SourceLoader interface {
	Load(program string) ([]byte, error)
}

// DirLoader reads <Root>/<program>.cl.
type DirLoader struct {
	Root string
}

func (l DirLoader) Load(program string) ([]byte, error) {
	return os.ReadFile(filepath.Join(l.Root, program+".cl"))
}

// BuildOptions returns the fixed compiler flags for the offset shim.
func BuildOptions(offsetSupported bool) string {
	v := 0
	if offsetSupported {
		v = 1
	}
	return fmt.Sprintf("-DECL_KERNEL_GLOBAL_WORK_OFFSET_SUPPORTED=%d", v)
}

type binaryKey struct {
	program string
	kernel  string
	device  string
	options string
}

// ProgramCache builds program artifacts and keeps compiled binaries for
// reuse within one process. It is not safe for concurrent use.
type ProgramCache struct {
	loader   SourceLoader
	options  string
	binaries map[binaryKey][]byte

	sourceBuilds int
	binaryBuilds int
}

func NewProgramCache(loader SourceLoader, offsetSupported bool) *ProgramCache {
	return &ProgramCache{
		loader:   loader,
		options:  BuildOptions(offsetSupported),
		binaries: make(map[binaryKey][]byte),
	}
}

// Options returns the build options applied to every program.
func (c *ProgramCache) Options() string { return c.options }

// SourceBuilds counts builds that went through the source path.
func (c *ProgramCache) SourceBuilds() int { return c.sourceBuilds }

// BinaryBuilds counts builds constructed from a cached binary.
func (c *ProgramCache) BinaryBuilds() int { return c.binaryBuilds }

func (c *ProgramCache) key(program, kernel string, h *DeviceHandle) binaryKey {
	return binaryKey{program: program, kernel: kernel, device: h.ID(), options: c.options}
}

// HasBinary reports whether Prime already stored a binary for the device.
func (c *ProgramCache) HasBinary(program, kernel string, h *DeviceHandle) bool {
	_, ok := c.binaries[c.key(program, kernel, h)]
	return ok
}

// Prime compiles program from source once on the selected device and keeps
// its binary. It is a no-op if the binary is already cached.
func (c *ProgramCache) Prime(rt accel.Runtime, sel Selection, program, kernel string) error {
	h, err := Select(rt, sel)
	if err != nil {
		return err
	}
	key := c.key(program, kernel, h)
	if _, ok := c.binaries[key]; ok {
		return nil
	}

	ctx, err := h.device.NewContext()
	if err != nil {
		return labelled("create context", err)
	}
	defer ctx.Release()

	artifact, err := c.fromSource(ctx, program, kernel)
	if err != nil {
		return err
	}
	defer artifact.Release()

	bin, err := artifact.prog.Binary()
	if err != nil {
		return labelled("program binary", err)
	}
	c.binaries[key] = bin
	slog.Debug("Program binary cached", "program", program, "kernel", kernel, "device", h.Device.Name, "bytes", len(bin))
	return nil
}

// Obtain returns a Ready artifact for kernel built in the given mode on the
// session's device.
func (c *ProgramCache) Obtain(s *Session, program, kernel string, mode ProgramMode) (*ProgramArtifact, error) {
	switch mode {
	case ModeSource:
		return c.fromSource(s.Context, program, kernel)
	case ModeBinary:
		bin, ok := c.binaries[c.key(program, kernel, s.Handle)]
		if !ok {
			return nil, fmt.Errorf("%w: %s on %s", ErrNoBinary, program, s.Handle.Device.Name)
		}
		return c.fromBinary(s.Context, program, kernel, bin)
	default:
		return nil, fmt.Errorf("unknown program mode %d", int(mode))
	}
}

// loadSource substitutes empty source when the file cannot be read; the
// subsequent build then fails with the compiler's diagnostic.
func (c *ProgramCache) loadSource(program string) []byte {
	src, err := c.loader.Load(program)
	if err != nil {
		slog.Error("io failure reading kernel source", "program", program, "error", err)
		return nil
	}
	return src
}

func (c *ProgramCache) fromSource(ctx accel.Context, program, kernel string) (*ProgramArtifact, error) {
	src := c.loadSource(program)
	prog, err := ctx.ProgramFromSource(src)
	if err != nil {
		return nil, labelled("create program", err)
	}
	c.sourceBuilds++
	return c.finish(prog, program, kernel, ModeSource)
}

func (c *ProgramCache) fromBinary(ctx accel.Context, program, kernel string, bin []byte) (*ProgramArtifact, error) {
	prog, err := ctx.ProgramFromBinary(bin)
	if err != nil {
		return nil, labelled("building program from binary failed for device", err)
	}
	c.binaryBuilds++
	return c.finish(prog, program, kernel, ModeBinary)
}

func (c *ProgramCache) finish(prog accel.Program, program, kernel string, mode ProgramMode) (*ProgramArtifact, error) {
	a := &ProgramArtifact{
		Program: program,
		Kernel:  kernel,
		Mode:    mode,
		Options: c.options,
		State:   StateUnbuilt,
		prog:    prog,
	}

	if err := prog.Build(c.options); err != nil {
		log := prog.BuildLog()
		slog.Error("Program build failed", "program", program, "mode", mode.String(), "log", log)
		a.Release()
		return nil, &BuildFailureError{Program: program, Kernel: kernel, Mode: mode, Log: log, Err: err}
	}
	a.State = StateBuilt

	k, err := prog.CreateKernel(kernel)
	if err != nil {
		log := prog.BuildLog()
		a.Release()
		return nil, &BuildFailureError{Program: program, Kernel: kernel, Mode: mode, Log: log, Err: labelled("create kernel", err)}
	}
	a.kernel = k
	a.State = StateReady
	return a, nil
}
