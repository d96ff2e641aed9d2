package workloads

import (
	"fmt"
	"math"
	"sort"
	"unsafe"

	"github.com/cwbudde/clbench/internal/accel"
	"github.com/cwbudde/clbench/internal/harness"
)

const (
	rayKernel = "raytracer_kernel"
	// RayDepth is the number of bounces traced per pixel.
	RayDepth   = 3
	rayEpsilon = 1e-3
	specPower  = 20
)

// Primitive kinds.
const (
	KindPlane  int32 = 0
	KindSphere int32 = 1
)

// Primitive is a scene object laid out to match the OpenCL struct: 64 bytes,
// float4 aligned.
type Primitive struct {
	Color [4]float32
	// Center is the sphere centre or the plane normal.
	Center     [4]float32
	Reflection float32
	Refraction float32
	Diffuse    float32
	// Radius is the sphere radius or the plane offset along its normal.
	Radius float32
	Kind   int32
	Light  int32
	_      [2]int32
}

// PrimitiveSize is the device size of a Primitive in bytes.
const PrimitiveSize = int(unsafe.Sizeof(Primitive{}))

// Scene is a camera, a viewport on the z=0 plane and a primitive list.
type Scene struct {
	Camera      [3]float32
	ViewW       float32
	ViewH       float32
	Primitives  []Primitive
	Description string
}

func sphere(center [3]float32, radius float32, color [3]float32, refl, diffuse float32) Primitive {
	return Primitive{
		Color:      [4]float32{color[0], color[1], color[2], 0},
		Center:     [4]float32{center[0], center[1], center[2], 0},
		Reflection: refl,
		Diffuse:    diffuse,
		Radius:     radius,
		Kind:       KindSphere,
	}
}

func plane(normal [3]float32, offset float32, color [3]float32, refl, diffuse float32) Primitive {
	return Primitive{
		Color:      [4]float32{color[0], color[1], color[2], 0},
		Center:     [4]float32{normal[0], normal[1], normal[2], 0},
		Reflection: refl,
		Diffuse:    diffuse,
		Radius:     offset,
		Kind:       KindPlane,
	}
}

func light(center [3]float32, color [3]float32) Primitive {
	p := sphere(center, 0.1, color, 0, 0)
	p.Light = 1
	return p
}

var scenes = map[string]func() Scene{
	"default": func() Scene {
		return Scene{
			Camera: [3]float32{0, 0, -5},
			ViewW:  8,
			ViewH:  6,
			Primitives: []Primitive{
				plane([3]float32{0, 1, 0}, 4.4, [3]float32{0.4, 0.3, 0.3}, 0, 1),
				sphere([3]float32{1, -0.8, 3}, 2.5, [3]float32{0.7, 0.7, 0.7}, 0.6, 0.2),
				sphere([3]float32{-5.5, -0.5, 7}, 2, [3]float32{0.7, 0.7, 1.0}, 1.0, 0.1),
				light([3]float32{0, 5, 5}, [3]float32{0.6, 0.6, 0.6}),
				light([3]float32{2, 5, 1}, [3]float32{0.7, 0.7, 0.9}),
			},
			Description: "two spheres over a ground plane, two lights",
		}
	},
	"spheres": func() Scene {
		prims := []Primitive{
			plane([3]float32{0, 1, 0}, 4, [3]float32{0.3, 0.3, 0.35}, 0.2, 0.8),
		}
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				c := [3]float32{float32(col)*2.2 - 3.3, float32(row)*1.6 - 2.5, 6 + float32(row)*1.5}
				color := [3]float32{0.3 + 0.2*float32(col), 0.9 - 0.2*float32(row), 0.5}
				prims = append(prims, sphere(c, 0.8, color, 0.3, 0.7))
			}
		}
		prims = append(prims,
			light([3]float32{-3, 6, 0}, [3]float32{0.8, 0.8, 0.8}),
			light([3]float32{4, 3, -2}, [3]float32{0.4, 0.4, 0.5}),
		)
		return Scene{
			Camera:      [3]float32{0, 0.25, -6},
			ViewW:       8,
			ViewH:       8,
			Primitives:  prims,
			Description: "a 4x4 grid of spheres, two lights",
		}
	},
}

// SceneNames lists the built-in scenes.
func SceneNames() []string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadScene returns a built-in scene by name. An empty name selects "default".
func LoadScene(name string) (Scene, error) {
	if name == "" {
		name = "default"
	}
	build, ok := scenes[name]
	if !ok {
		return Scene{}, fmt.Errorf("unknown scene %q (available: %v)", name, SceneNames())
	}
	return build(), nil
}

// Ray traces a built-in scene with reflections and hard shadows.
type Ray struct{}

func init() {
	register(Ray{})
	accel.RegisterHostKernel(rayKernel, rayHost)
}

func (Ray) Name() string        { return "ray" }
func (Ray) Description() string { return "ray tracer over a built-in scene, primitives in local memory" }
func (Ray) DefaultSize() int    { return 256 }

func (r Ray) Prepare(p Params) (*harness.Task, error) {
	name := p.Scene
	if name == "" {
		name = "default"
	}
	scene, err := LoadScene(name)
	if err != nil {
		return nil, err
	}
	width := sizeOr(p.Size, r.DefaultSize())
	height := width
	prims := scene.Primitives
	out := make([]RGBA8, width*height)

	return &harness.Task{
		Workload: r.Name(),
		Program:  r.Name(),
		Kernel:   rayKernel,
		Buffers: []harness.BufferSpec{
			{Name: "prims", Host: harness.Bytes(prims), Direction: harness.Upload},
			{Name: "out", Host: harness.Bytes(out), Direction: harness.Download},
		},
		Shape: harness.SceneWorkShape(width, height),
		Bind: func(a *harness.ArgList) {
			a.Buffer("out").
				Int32(int32(width)).
				Int32(int32(height)).
				Float32(scene.Camera[0]).
				Float32(scene.Camera[1]).
				Float32(scene.Camera[2]).
				Float32(scene.ViewW).
				Float32(scene.ViewH).
				Buffer("prims").
				Int32(int32(len(prims))).
				Local(len(prims) * PrimitiveSize)
		},
		Output: func() []float64 { return normalizedChannels(out) },
		Reference: func() []float64 {
			want := make([]RGBA8, len(out))
			for i := range want {
				want[i] = renderPixel(prims, scene.Camera, scene.ViewW, scene.ViewH, width, height, i)
			}
			return normalizedChannels(want)
		},
		Tolerance: harness.Tolerance{Threshold: 0.01, Comparison: harness.Absolute},
		Artifact: func(path string) error {
			return writeBMP(path, out, width, height)
		},
		Params: map[string]any{
			"width":      width,
			"height":     height,
			"scene":      name,
			"primitives": len(prims),
			"depth":      RayDepth,
		},
	}, nil
}

func normalizedChannels(pixels []RGBA8) []float64 {
	vals := flattenPixels(pixels)
	for i := range vals {
		vals[i] /= 255
	}
	return vals
}

type vec3 [3]float32

func (a vec3) add(b vec3) vec3      { return vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a vec3) sub(b vec3) vec3      { return vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a vec3) scale(s float32) vec3 { return vec3{a[0] * s, a[1] * s, a[2] * s} }
func (a vec3) mul(b vec3) vec3      { return vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }
func (a vec3) dot(b vec3) float32   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a vec3) length() float32      { return sqrt32(a.dot(a)) }
func (a vec3) normalize() vec3      { return a.scale(1 / a.length()) }
func (a vec3) reflect(n vec3) vec3  { return a.sub(n.scale(2 * a.dot(n))) }
func xyz(v [4]float32) vec3         { return vec3{v[0], v[1], v[2]} }

// intersect returns the nearest positive distance along d below maxT.
func intersect(p *Primitive, o, d vec3, maxT float32) (float32, bool) {
	if p.Kind == KindPlane {
		n := xyz(p.Center)
		nd := n.dot(d)
		if nd == 0 {
			return 0, false
		}
		t := -(n.dot(o) + p.Radius) / nd
		return t, t > 0 && t < maxT
	}

	v := o.sub(xyz(p.Center))
	b := -v.dot(d)
	det := b*b - v.dot(v) + p.Radius*p.Radius
	if det <= 0 {
		return 0, false
	}
	det = sqrt32(det)
	near, far := b-det, b+det
	if far <= 0 {
		return 0, false
	}
	if near > 0 {
		return near, near < maxT
	}
	return far, far < maxT
}

func normalAt(p *Primitive, at vec3) vec3 {
	if p.Kind == KindPlane {
		return xyz(p.Center)
	}
	return at.sub(xyz(p.Center)).scale(1 / p.Radius)
}

// occluded reports whether a non-light primitive blocks the segment.
func occluded(prims []Primitive, o, d vec3, dist float32) bool {
	for i := range prims {
		if prims[i].Light != 0 {
			continue
		}
		if _, ok := intersect(&prims[i], o, d, dist); ok {
			return true
		}
	}
	return false
}

// trace follows one primary ray for up to depth bounces and returns the
// accumulated colour.
func trace(prims []Primitive, o, d vec3, depth int) vec3 {
	var acc vec3
	coef := float32(1)
	for level := 0; level < depth; level++ {
		hit := -1
		t := float32(math.MaxFloat32)
		for i := range prims {
			if ti, ok := intersect(&prims[i], o, d, t); ok {
				hit, t = i, ti
			}
		}
		if hit < 0 {
			break
		}

		pr := &prims[hit]
		color := xyz(pr.Color)
		if pr.Light != 0 {
			acc = acc.add(color.scale(coef))
			break
		}

		at := o.add(d.scale(t))
		n := normalAt(pr, at)
		for j := range prims {
			l := &prims[j]
			if l.Light == 0 {
				continue
			}
			toLight := xyz(l.Center).sub(at)
			dist := toLight.length()
			dir := toLight.scale(1 / dist)
			if occluded(prims, at.add(dir.scale(rayEpsilon)), dir, dist) {
				continue
			}
			lightColor := xyz(l.Color)
			if pr.Diffuse > 0 {
				if dd := n.dot(dir); dd > 0 {
					acc = acc.add(color.mul(lightColor).scale(coef * dd * pr.Diffuse))
				}
			}
			if spec := 1 - pr.Diffuse; spec > 0 {
				if dd := d.dot(dir.reflect(n)); dd > 0 {
					pow := float32(1)
					for k := 0; k < specPower; k++ {
						pow *= dd
					}
					acc = acc.add(lightColor.scale(coef * pow * spec))
				}
			}
		}

		if pr.Reflection <= 0 {
			break
		}
		d = d.reflect(n)
		o = at.add(d.scale(rayEpsilon))
		coef *= pr.Reflection
	}
	return acc
}

// renderPixel traces the primary ray through pixel idx of a row-major image.
func renderPixel(prims []Primitive, cam [3]float32, viewW, viewH float32, width, height, idx int) RGBA8 {
	x, y := idx%width, idx/width
	sx := -viewW/2 + (float32(x)+0.5)*viewW/float32(width)
	sy := viewH/2 - (float32(y)+0.5)*viewH/float32(height)
	o := vec3(cam)
	d := vec3{sx, sy, 0}.sub(o).normalize()
	c := trace(prims, o, d, RayDepth)
	return RGBA8{R: saturate(c[0] * 255), G: saturate(c[1] * 255), B: saturate(c[2] * 255), A: 255}
}

func rayHost(l *accel.HostLaunch) error {
	args := l.Args()
	out := accel.View[RGBA8](args.Buffer(0))
	width := int(args.Int32(1))
	height := int(args.Int32(2))
	cam := [3]float32{args.Float32(3), args.Float32(4), args.Float32(5)}
	viewW := args.Float32(6)
	viewH := args.Float32(7)
	all := accel.View[Primitive](args.Buffer(8))
	n := int(args.Int32(9))
	local := args.Local(10)
	if err := args.Err(); err != nil {
		return err
	}
	if n > len(all) {
		return fmt.Errorf("ray: %d primitives bound, buffer holds %d", n, len(all))
	}
	if local < n*PrimitiveSize {
		return fmt.Errorf("ray: local memory %d bytes too small for %d primitives", local, n)
	}
	pixels := width * height
	if len(out) < pixels {
		return fmt.Errorf("ray: output holds %d pixels, need %d", len(out), pixels)
	}

	prims := all[:n]
	l.ForEachItem(func(gid int) {
		if gid < pixels {
			out[gid] = renderPixel(prims, cam, viewW, viewH, width, height, gid)
		}
	})
	return nil
}
