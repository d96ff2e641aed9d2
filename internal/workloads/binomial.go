package workloads

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/clbench/internal/accel"
	"github.com/cwbudde/clbench/internal/harness"
)

const (
	binomialKernel = "binomial_options"
	// BinomialSteps is the lattice depth; one work-group has BinomialSteps+1 items.
	BinomialSteps = 254
	riskFree      = 0.02
	volatility    = 0.30
)

// Binomial prices European call options on a binomial lattice. Each float4
// of random inputs yields four options priced by one work-group.
type Binomial struct{}

func init() {
	register(Binomial{})
	accel.RegisterHostKernel(binomialKernel, binomialHost)
}

func (Binomial) Name() string        { return "binomial" }
func (Binomial) Description() string { return "binomial lattice option pricing (float4, local memory)" }
func (Binomial) DefaultSize() int    { return 1024 }

func (b Binomial) Prepare(p Params) (*harness.Task, error) {
	samples := harness.LatticeSamples(sizeOr(p.Size, b.DefaultSize()))
	vectors := samples / harness.VectorWidth

	rng := rand.New(rand.NewSource(p.Seed))
	in := make([]Float4, vectors)
	for i := range in {
		for lane := range in[i] {
			in[i][lane] = rng.Float32()
		}
	}
	out := make([]Float4, vectors)

	steps := BinomialSteps
	return &harness.Task{
		Workload: b.Name(),
		Program:  b.Name(),
		Kernel:   binomialKernel,
		Buffers: []harness.BufferSpec{
			{Name: "in", Host: harness.Bytes(in), Direction: harness.Upload},
			{Name: "out", Host: harness.Bytes(out), Direction: harness.Download},
		},
		Shape: harness.LatticeWorkShape(steps, samples),
		Bind: func(a *harness.ArgList) {
			a.Int32(int32(steps)).
				Buffer("in").
				Buffer("out").
				Local((steps + 1) * 16).
				Local(steps * 16)
		},
		Output: func() []float64 { return flattenFloat4(out) },
		Reference: func() []float64 {
			want := make([]Float4, vectors)
			callA := make([]Float4, steps+1)
			callB := make([]Float4, steps)
			for i := range in {
				want[i] = priceLattice(in[i], steps, callA, callB)
			}
			return flattenFloat4(want)
		},
		Tolerance: harness.Tolerance{Threshold: 0.01, Comparison: harness.Relative},
		Params: map[string]any{
			"samples": samples,
			"steps":   steps,
			"seed":    p.Seed,
		},
	}, nil
}

func exp32(x float32) float32  { return float32(math.Exp(float64(x))) }
func sqrt32(x float32) float32 { return float32(math.Sqrt(float64(x))) }

// priceLattice prices the four options encoded by rnd. callA needs steps+1
// entries and callB steps entries; both are scratch.
func priceLattice(rnd Float4, steps int, callA, callB []Float4) Float4 {
	var puByr, pdByr, s, x, vsdt Float4
	for lane, r := range rnd {
		s[lane] = (1-r)*5 + r*30
		x[lane] = (1-r)*1 + r*100
		years := (1-r)*0.25 + r*10
		dt := years * (1 / float32(steps))
		vsdt[lane] = volatility * sqrt32(dt)
		rdt := riskFree * dt
		rr := exp32(rdt)
		rInv := 1 / rr
		u := exp32(vsdt[lane])
		d := 1 / u
		pu := (rr - d) / (u - d)
		pd := 1 - pu
		puByr[lane] = pu * rInv
		pdByr[lane] = pd * rInv
	}

	for tid := 0; tid <= steps; tid++ {
		for lane := range callA[tid] {
			profit := s[lane]*exp32(vsdt[lane]*(2*float32(tid)-float32(steps))) - x[lane]
			if profit > 0 {
				callA[tid][lane] = profit
			} else {
				callA[tid][lane] = 0
			}
		}
	}

	for j := steps; j > 0; j -= 2 {
		for tid := 0; tid < j; tid++ {
			for lane := range callB[tid] {
				callB[tid][lane] = puByr[lane]*callA[tid][lane] + pdByr[lane]*callA[tid+1][lane]
			}
		}
		for tid := 0; tid < j-1; tid++ {
			for lane := range callA[tid] {
				callA[tid][lane] = puByr[lane]*callB[tid][lane] + pdByr[lane]*callB[tid+1][lane]
			}
		}
	}
	return callA[0]
}

// binomialHost runs one lattice per work-group. The group size is steps+1.
func binomialHost(l *accel.HostLaunch) error {
	args := l.Args()
	steps := int(args.Int32(0))
	in := accel.View[Float4](args.Buffer(1))
	out := accel.View[Float4](args.Buffer(2))
	localA := args.Local(3)
	localB := args.Local(4)
	if err := args.Err(); err != nil {
		return err
	}
	if steps <= 0 || l.Local != steps+1 {
		return fmt.Errorf("binomial: local size %d does not match %d steps", l.Local, steps)
	}
	if localA < (steps+1)*16 || localB < steps*16 {
		return fmt.Errorf("binomial: local memory too small for %d steps", steps)
	}

	l.ForEachGroup(func(group int) {
		if group >= len(in) || group >= len(out) {
			return
		}
		callA := make([]Float4, steps+1)
		callB := make([]Float4, steps)
		out[group] = priceLattice(in[group], steps, callA, callB)
	})
	return nil
}
