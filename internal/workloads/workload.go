// Package workloads holds the benchmark kernels driven by the harness.
//
// Each workload turns a Params value into a harness.Task: it generates the
// host payload, declares the device buffers and work shape, binds the kernel
// arguments in declaration order and supplies the CPU reference used at check
// level 1 and above. Every workload also registers a host kernel with the
// accel package so the host backend can execute its program.
package workloads

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cwbudde/clbench/internal/harness"
)

// ErrUnknownWorkload is returned by Lookup for unregistered names.
var ErrUnknownWorkload = errors.New("unknown workload")

// Params are the per-run knobs. Zero values select each workload's default.
type Params struct {
	// Size is samples (binomial), image width (gaussian, mandelbrot, ray) or
	// particle count (nbody).
	Size int
	// Height overrides the image height of gaussian and mandelbrot.
	Height      int
	FilterWidth int
	Scene       string
	MaxIter     int
	// XPos and YPos centre the mandelbrot view; nil selects (-0.65, 0.3).
	XPos *float64
	YPos *float64
	Seed int64
}

// Workload prepares tasks for one kernel.
type Workload interface {
	Name() string
	Description() string
	DefaultSize() int
	Prepare(p Params) (*harness.Task, error)
}

var registry = map[string]Workload{}

func register(w Workload) {
	if _, dup := registry[w.Name()]; dup {
		panic(fmt.Sprintf("workloads: duplicate registration of %q", w.Name()))
	}
	registry[w.Name()] = w
}

// Lookup returns the workload registered under name.
func Lookup(name string) (Workload, error) {
	w, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownWorkload, name, Names())
	}
	return w, nil
}

// Names lists the registered workloads in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prepare looks up name and prepares a task with p.
func Prepare(name string, p Params) (*harness.Task, error) {
	w, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return w.Prepare(p)
}

func sizeOr(size, def int) int {
	if size <= 0 {
		return def
	}
	return size
}

// Float4 mirrors the OpenCL float4 vector type.
type Float4 [4]float32

// RGBA8 mirrors the OpenCL uchar4 pixel type.
type RGBA8 struct {
	R, G, B, A uint8
}

func flattenFloat4(vs []Float4) []float64 {
	out := make([]float64, 0, len(vs)*4)
	for _, v := range vs {
		for _, c := range v {
			out = append(out, float64(c))
		}
	}
	return out
}
