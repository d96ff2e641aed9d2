package harness

import "fmt"

// WorkShape is a one-dimensional NDRange. Global is always a multiple of Local.
type WorkShape struct {
	Global int
	Local  int
}

func (w WorkShape) Validate() error {
	if w.Local <= 0 {
		return fmt.Errorf("local work size %d must be positive", w.Local)
	}
	if w.Global <= 0 {
		return fmt.Errorf("global work size %d must be positive", w.Global)
	}
	if w.Global%w.Local != 0 {
		return fmt.Errorf("global work size %d is not a multiple of local work size %d", w.Global, w.Local)
	}
	return nil
}

// Groups returns the number of work-groups.
func (w WorkShape) Groups() int { return w.Global / w.Local }

const (
	// VectorWidth is the float4 lane count used by the lattice workload.
	VectorWidth = 4
	// ImageGroupSize is the local size of the per-pixel image and scene workloads.
	ImageGroupSize = 128
	// FractalGroupSize is the local size of the fractal workload.
	FractalGroupSize = 256
)

func roundUp(n, multiple int) int {
	if n <= 0 {
		return multiple
	}
	return (n + multiple - 1) / multiple * multiple
}

// LatticeSamples truncates a sample count to a multiple of the vector width,
// with a minimum of one vector.
func LatticeSamples(samples int) int {
	if samples/VectorWidth == 0 {
		return VectorWidth
	}
	return samples / VectorWidth * VectorWidth
}

// LatticeWorkShape sizes a stepped lattice: one group of steps+1 items per
// vector of samples.
func LatticeWorkShape(steps, samples int) WorkShape {
	vectors := LatticeSamples(samples) / VectorWidth
	return WorkShape{Global: (steps + 1) * vectors, Local: steps + 1}
}

// ImageWorkShape covers pixels work-items with groups of ImageGroupSize.
// Items past pixels must be ignored by the kernel.
func ImageWorkShape(pixels int) WorkShape {
	return WorkShape{Global: roundUp(pixels, ImageGroupSize), Local: ImageGroupSize}
}

// FractalWidth rounds a row width up to a multiple of four pixels.
func FractalWidth(width int) int {
	return (width + 3) &^ 3
}

// FractalWorkShape gives each work-item four horizontally adjacent pixels.
// width must already be rounded with FractalWidth.
func FractalWorkShape(width, height int) WorkShape {
	return WorkShape{Global: roundUp(width*height/4, FractalGroupSize), Local: FractalGroupSize}
}

// ParticleCount raises n to at least one group and truncates it to a whole
// number of groups.
func ParticleCount(n, group int) int {
	if n < group {
		n = group
	}
	return n / group * group
}

// ParticleWorkShape runs one work-item per particle.
func ParticleWorkShape(n, group int) WorkShape {
	return WorkShape{Global: ParticleCount(n, group), Local: group}
}

// SceneWorkShape runs one work-item per output pixel.
func SceneWorkShape(width, height int) WorkShape {
	return ImageWorkShape(width * height)
}
