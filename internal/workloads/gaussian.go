package workloads

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/clbench/internal/accel"
	"github.com/cwbudde/clbench/internal/harness"
)

const (
	gaussianKernel = "gaussian_blur"
	gaussianSigma  = 2.0
)

// Gaussian blurs a random RGBA image with a normalized square filter.
type Gaussian struct{}

func init() {
	register(Gaussian{})
	accel.RegisterHostKernel(gaussianKernel, gaussianHost)
}

func (Gaussian) Name() string        { return "gaussian" }
func (Gaussian) Description() string { return "gaussian blur over a uchar4 image" }
func (Gaussian) DefaultSize() int    { return 512 }

// GaussianFilter returns width*width normalized weights. width must be odd.
func GaussianFilter(width int, sigma float64) []float32 {
	half := width / 2
	weights := make([]float32, width*width)
	var sum float64
	for i := -half; i <= half; i++ {
		for j := -half; j <= half; j++ {
			w := math.Exp(-float64(i*i+j*j) / (2 * sigma * sigma))
			weights[(i+half)*width+j+half] = float32(w)
			sum += w
		}
	}
	for i := range weights {
		weights[i] = float32(float64(weights[i]) / sum)
	}
	return weights
}

func (g Gaussian) Prepare(p Params) (*harness.Task, error) {
	cols := sizeOr(p.Size, g.DefaultSize())
	rows := sizeOr(p.Height, cols)
	fw := sizeOr(p.FilterWidth, 5)
	if fw%2 == 0 {
		return nil, fmt.Errorf("gaussian: filter width %d must be odd", fw)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	in := make([]RGBA8, rows*cols)
	for i := range in {
		v := rng.Uint32()
		in[i] = RGBA8{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255}
	}
	weights := GaussianFilter(fw, gaussianSigma)
	out := make([]RGBA8, rows*cols)

	return &harness.Task{
		Workload: g.Name(),
		Program:  g.Name(),
		Kernel:   gaussianKernel,
		Buffers: []harness.BufferSpec{
			{Name: "in", Host: harness.Bytes(in), Direction: harness.Upload},
			{Name: "weights", Host: harness.Bytes(weights), Direction: harness.Upload},
			{Name: "out", Host: harness.Bytes(out), Direction: harness.Download},
		},
		Shape: harness.ImageWorkShape(rows * cols),
		Bind: func(a *harness.ArgList) {
			a.Buffer("out").
				Buffer("in").
				Int32(int32(rows)).
				Int32(int32(cols)).
				Buffer("weights").
				Int32(int32(fw))
		},
		Output: func() []float64 { return flattenPixels(out) },
		Reference: func() []float64 {
			want := make([]RGBA8, len(in))
			for idx := range want {
				want[idx] = blurPixel(in, weights, rows, cols, fw, idx)
			}
			return flattenPixels(want)
		},
		Tolerance: harness.Tolerance{Threshold: 1.0, Comparison: harness.Absolute},
		Artifact: func(path string) error {
			return writeBMP(path, out, cols, rows)
		},
		Params: map[string]any{
			"width":        cols,
			"height":       rows,
			"filter_width": fw,
			"seed":         p.Seed,
		},
	}, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// saturate rounds to nearest and clamps to [0, 255].
func saturate(v float32) uint8 {
	r := math.RoundToEven(float64(v))
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}

// blurPixel convolves the pixel at idx with clamped edges.
func blurPixel(in []RGBA8, weights []float32, rows, cols, fw, idx int) RGBA8 {
	r, c := idx/cols, idx%cols
	half := fw / 2
	var sr, sg, sb, sa float32
	for i := -half; i <= half; i++ {
		for j := -half; j <= half; j++ {
			h := clampInt(r+i, 0, rows-1)
			w := clampInt(c+j, 0, cols-1)
			weight := weights[(i+half)*fw+j+half]
			px := in[h*cols+w]
			sr += float32(px.R) * weight
			sg += float32(px.G) * weight
			sb += float32(px.B) * weight
			sa += float32(px.A) * weight
		}
	}
	return RGBA8{R: saturate(sr), G: saturate(sg), B: saturate(sb), A: saturate(sa)}
}

func gaussianHost(l *accel.HostLaunch) error {
	args := l.Args()
	out := accel.View[RGBA8](args.Buffer(0))
	in := accel.View[RGBA8](args.Buffer(1))
	rows := int(args.Int32(2))
	cols := int(args.Int32(3))
	weights := accel.View[float32](args.Buffer(4))
	fw := int(args.Int32(5))
	if err := args.Err(); err != nil {
		return err
	}
	n := rows * cols
	if len(in) < n || len(out) < n || len(weights) < fw*fw {
		return fmt.Errorf("gaussian: buffers too small for %dx%d image", cols, rows)
	}

	l.ForEachItem(func(gid int) {
		if gid < n {
			out[gid] = blurPixel(in, weights, rows, cols, fw, gid)
		}
	})
	return nil
}
