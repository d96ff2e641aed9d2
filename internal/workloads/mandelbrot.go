package workloads

import (
	"fmt"

	"github.com/cwbudde/clbench/internal/accel"
	"github.com/cwbudde/clbench/internal/harness"
)

const (
	mandelbrotKernel = "mandelbrot_vector_float"
	// mandelbrotXSize is the width of the viewed region of the complex plane.
	mandelbrotXSize = 4.0 * 4.0 / 7.0
	defaultXPos     = -0.65
	defaultYPos     = 0.3
)

// Mandelbrot renders the escape-time fractal, four pixels per work-item.
// The alpha channel of each pixel carries the normalized iteration count.
type Mandelbrot struct{}

func init() {
	register(Mandelbrot{})
	accel.RegisterHostKernel(mandelbrotKernel, mandelbrotHost)
}

func (Mandelbrot) Name() string        { return "mandelbrot" }
func (Mandelbrot) Description() string { return "mandelbrot escape time, four pixels per work-item" }
func (Mandelbrot) DefaultSize() int    { return 512 }

// View is the mapping from pixel coordinates to the complex plane.
type View struct {
	LeftX, TopY  float32
	XStep, YStep float32
}

// NewView centres a region of the given width on (xpos, ypos). The region's
// height follows the image aspect ratio.
func NewView(xpos, ypos, xsize float64, width, height int) View {
	aspect := float64(width) / float64(height)
	xstep := xsize / float64(width)
	ysize := xsize / aspect
	ystep := -ysize / float64(height)
	return View{
		LeftX: float32(xpos - xsize/2),
		TopY:  float32(ypos + ysize/2),
		XStep: float32(xstep),
		YStep: float32(ystep),
	}
}

func (m Mandelbrot) Prepare(p Params) (*harness.Task, error) {
	width := harness.FractalWidth(sizeOr(p.Size, m.DefaultSize()))
	height := sizeOr(p.Height, width)
	maxIter := sizeOr(p.MaxIter, 1024)
	xpos, ypos := defaultXPos, defaultYPos
	if p.XPos != nil {
		xpos = *p.XPos
	}
	if p.YPos != nil {
		ypos = *p.YPos
	}
	view := NewView(xpos, ypos, mandelbrotXSize, width, height)
	const bench = 0

	shape := harness.FractalWorkShape(width, height)
	// The device buffer covers the padded NDRange; rows past height are scratch.
	device := make([]RGBA8, shape.Global*4)
	out := device[:width*height]

	return &harness.Task{
		Workload: m.Name(),
		Program:  m.Name(),
		Kernel:   mandelbrotKernel,
		Buffers: []harness.BufferSpec{
			{Name: "out", Host: harness.Bytes(device), Direction: harness.Download},
		},
		Shape: shape,
		Bind: func(a *harness.ArgList) {
			a.Buffer("out").
				Float32(view.LeftX).
				Float32(view.TopY).
				Float32(view.XStep).
				Float32(view.YStep).
				Uint32(uint32(maxIter)).
				Int32(int32(width)).
				Int32(bench)
		},
		Output: func() []float64 { return normalizedIterations(out) },
		Reference: func() []float64 {
			want := make([]RGBA8, len(out))
			for i := range want {
				want[i] = mandelbrotPixel(view, i%width, i/width, maxIter, bench != 0)
			}
			return normalizedIterations(want)
		},
		Tolerance: harness.Tolerance{Threshold: 0.001, Comparison: harness.Absolute},
		Artifact: func(path string) error {
			return writeBMP(path, out, width, height)
		},
		Params: map[string]any{
			"width":    width,
			"height":   height,
			"max_iter": maxIter,
			"xpos":     xpos,
			"ypos":     ypos,
		},
	}, nil
}

func normalizedIterations(pixels []RGBA8) []float64 {
	out := make([]float64, len(pixels))
	for i, p := range pixels {
		out[i] = float64(p.A) / 255
	}
	return out
}

// escapeTime iterates z = z*z + c and returns the step at which |z| exceeds
// two, or maxIter.
func escapeTime(cx, cy float32, maxIter int) int {
	var x, y float32
	iter := 0
	for ; iter < maxIter; iter++ {
		x2, y2 := x*x, y*y
		if x2+y2 > 4 {
			break
		}
		y = 2*x*y + cy
		x = x2 - y2 + cx
	}
	return iter
}

// mandelbrotPixel colours one pixel. With bench set only the iteration
// count is written.
func mandelbrotPixel(v View, px, py, maxIter int, bench bool) RGBA8 {
	cx := v.LeftX + float32(px)*v.XStep
	cy := v.TopY + float32(py)*v.YStep
	iter := escapeTime(cx, cy, maxIter)

	t := float32(iter) / float32(maxIter)
	p := RGBA8{A: saturate(t * 255)}
	if bench {
		return p
	}
	u := 1 - t
	p.R = saturate(9 * u * t * t * t * 255)
	p.G = saturate(15 * u * u * t * t * 255)
	p.B = saturate(8.5 * u * u * u * t * 255)
	return p
}

func mandelbrotHost(l *accel.HostLaunch) error {
	args := l.Args()
	out := accel.View[RGBA8](args.Buffer(0))
	view := View{
		LeftX: args.Float32(1),
		TopY:  args.Float32(2),
		XStep: args.Float32(3),
		YStep: args.Float32(4),
	}
	maxIter := int(args.Uint32(5))
	width := int(args.Int32(6))
	bench := args.Int32(7) != 0
	if err := args.Err(); err != nil {
		return err
	}
	if width <= 0 || width%4 != 0 {
		return fmt.Errorf("mandelbrot: width %d is not a positive multiple of 4", width)
	}

	items := len(out) / 4
	perRow := width / 4
	l.ForEachItem(func(gid int) {
		if gid >= items {
			return
		}
		py := gid / perRow
		px := (gid % perRow) * 4
		for k := 0; k < 4; k++ {
			out[py*width+px+k] = mandelbrotPixel(view, px+k, py, maxIter, bench)
		}
	})
	return nil
}
