package workloads

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/clbench/internal/accel"
	"github.com/cwbudde/clbench/internal/harness"
)

const (
	nbodyKernel = "nbody_sim"
	// NBodyGroupSize is the work-group size; the particle count is a multiple of it.
	NBodyGroupSize = 64
	nbodyDeltaT    = 0.005
	nbodyEpsSqr    = 500.0
)

// NBody advances an all-pairs gravitational system by one time step.
// Positions carry the mass in their fourth component.
type NBody struct{}

func init() {
	register(NBody{})
	accel.RegisterHostKernel(nbodyKernel, nbodyHost)
}

func (NBody) Name() string        { return "nbody" }
func (NBody) Description() string { return "all-pairs n-body integration step" }
func (NBody) DefaultSize() int    { return 1024 }

func (nb NBody) Prepare(p Params) (*harness.Task, error) {
	n := harness.ParticleCount(sizeOr(p.Size, nb.DefaultSize()), NBodyGroupSize)

	rng := rand.New(rand.NewSource(p.Seed))
	uniform := func(lo, hi float32) float32 { return lo + (hi-lo)*rng.Float32() }
	pos := make([]Float4, n)
	for i := range pos {
		pos[i] = Float4{uniform(3, 50), uniform(3, 50), uniform(3, 50), uniform(1, 1000)}
	}
	vel := make([]Float4, n)
	newPos := make([]Float4, n)
	newVel := make([]Float4, n)

	return &harness.Task{
		Workload: nb.Name(),
		Program:  nb.Name(),
		Kernel:   nbodyKernel,
		Buffers: []harness.BufferSpec{
			{Name: "pos", Host: harness.Bytes(pos), Direction: harness.Upload},
			{Name: "vel", Host: harness.Bytes(vel), Direction: harness.Upload},
			{Name: "new_pos", Host: harness.Bytes(newPos), Direction: harness.Download},
			{Name: "new_vel", Host: harness.Bytes(newVel), Direction: harness.Download},
		},
		Shape: harness.ParticleWorkShape(n, NBodyGroupSize),
		Bind: func(a *harness.ArgList) {
			a.Buffer("pos").
				Buffer("vel").
				Int32(int32(n)).
				Float32(nbodyDeltaT).
				Float32(nbodyEpsSqr).
				Buffer("new_pos").
				Buffer("new_vel")
		},
		Output: func() []float64 {
			return append(flattenFloat4(newPos), flattenFloat4(newVel)...)
		},
		Reference: func() []float64 {
			wantPos := make([]Float4, n)
			wantVel := make([]Float4, n)
			for i := range pos {
				wantPos[i], wantVel[i] = stepBody(pos, vel[i], i, nbodyDeltaT, nbodyEpsSqr)
			}
			return append(flattenFloat4(wantPos), flattenFloat4(wantVel)...)
		},
		Tolerance: harness.Tolerance{Threshold: 0.001, Comparison: harness.Relative},
		Params: map[string]any{
			"particles": n,
			"seed":      p.Seed,
		},
	}, nil
}

// stepBody integrates body i against every body in pos, itself included.
func stepBody(pos []Float4, vel Float4, i int, dt, epsSqr float32) (Float4, Float4) {
	me := pos[i]
	var ax, ay, az float32
	for _, other := range pos {
		rx := other[0] - me[0]
		ry := other[1] - me[1]
		rz := other[2] - me[2]
		distSqr := rx*rx + ry*ry + rz*rz
		invDist := 1 / sqrt32(distSqr+epsSqr)
		s := other[3] * invDist * invDist * invDist
		ax += s * rx
		ay += s * ry
		az += s * rz
	}

	half := 0.5 * dt * dt
	newPos := Float4{
		me[0] + vel[0]*dt + ax*half,
		me[1] + vel[1]*dt + ay*half,
		me[2] + vel[2]*dt + az*half,
		me[3],
	}
	newVel := Float4{
		vel[0] + ax*dt,
		vel[1] + ay*dt,
		vel[2] + az*dt,
		vel[3],
	}
	return newPos, newVel
}

func nbodyHost(l *accel.HostLaunch) error {
	args := l.Args()
	pos := accel.View[Float4](args.Buffer(0))
	vel := accel.View[Float4](args.Buffer(1))
	n := int(args.Int32(2))
	dt := args.Float32(3)
	epsSqr := args.Float32(4)
	newPos := accel.View[Float4](args.Buffer(5))
	newVel := accel.View[Float4](args.Buffer(6))
	if err := args.Err(); err != nil {
		return err
	}
	if len(pos) < n || len(vel) < n || len(newPos) < n || len(newVel) < n {
		return fmt.Errorf("nbody: buffers too small for %d bodies", n)
	}

	bodies := pos[:n]
	l.ForEachItem(func(gid int) {
		if gid < n {
			newPos[gid], newVel[gid] = stepBody(bodies, vel[gid], gid, dt, epsSqr)
		}
	})
	return nil
}
