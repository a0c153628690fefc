package nerfmesh_test

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/nerfmesh"
	"github.com/soypat/nerfmesh/batch"
	"github.com/soypat/nerfmesh/config"
	"github.com/soypat/nerfmesh/frame"
	"github.com/soypat/nerfmesh/grid"
	"github.com/soypat/nerfmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var unitBox = r3.Box{Max: r3.Vec{X: 1, Y: 1, Z: 1}}

func sphereSDF(center r3.Vec, radius float64) batch.ScalarFunc {
	return func(p r3.Vec) float64 { return r3.Norm(r3.Sub(p, center)) - radius }
}

func TestExtractSphere(t *testing.T) {
	center := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	mesh, err := nerfmesh.Extract(sphereSDF(center, 0.5), nil, nerfmesh.Options{
		Bounds:     unitBox,
		Sizing:     grid.Sizing{Resolution: 4},
		Truncation: nerfmesh.DefaultTruncation,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) == 0 || len(mesh.Triangles) == 0 {
		t.Fatal("empty sphere mesh")
	}
	for _, v := range mesh.Vertices {
		if d := r3.Norm(r3.Sub(v, center)); math.Abs(d-0.5) > 0.01 {
			t.Errorf("vertex %v at distance %g from center", v, d)
		}
	}
	if mesh.Colors != nil {
		t.Error("colors set without color function")
	}
	if err := mesh.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractMetric(t *testing.T) {
	// Plane x=0.3 in scene units. Metric x = 0.3/2 - 1.
	opts := nerfmesh.Options{
		Bounds:      r3.Box{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}},
		Sizing:      grid.Sizing{VoxelSize: 0.25},
		ScaleFactor: 2,
		Translation: r3.Vec{X: 1, Y: 0, Z: -1},
	}
	mesh, err := nerfmesh.Extract(batch.ScalarFunc(func(p r3.Vec) float64 { return p.X - 0.3 }), nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) == 0 {
		t.Fatal("empty plane mesh")
	}
	for _, v := range mesh.Vertices {
		if math.Abs(v.X-(0.3/2-1)) > 1e-12 {
			t.Fatalf("vertex %v not on metric plane", v)
		}
		if v.Y < -0.5-1e-12 || v.Y > 0.5+1e-12 || v.Z < 0.5-1e-12 || v.Z > 1.5+1e-12 {
			t.Fatalf("vertex %v outside metric bounds", v)
		}
	}
}

func TestExtractNormalize(t *testing.T) {
	// The scene function is defined over the unit cube while the lattice
	// spans [-2,2]^3.
	bounds := r3.Box{Min: r3.Vec{X: -2, Y: -2, Z: -2}, Max: r3.Vec{X: 2, Y: 2, Z: 2}}
	var outside int
	scene := batch.ScalarFunc(func(p r3.Vec) float64 {
		if !d3.Box(unitBox).Contains(p) {
			outside++
		}
		return p.Z - 0.5
	})
	color := batch.VectorFunc{N: 3, Fn: func(dst []float64, p, _ r3.Vec) {
		dst[0], dst[1], dst[2] = p.X, p.Y, p.Z
	}}
	mesh, err := nerfmesh.Extract(scene, color, nerfmesh.Options{
		Bounds:    bounds,
		Sizing:    grid.Sizing{Resolution: 5},
		Normalize: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if outside != 0 {
		t.Errorf("%d query points outside the unit cube", outside)
	}
	if len(mesh.Colors) != len(mesh.Vertices) {
		t.Fatalf("got %d colors for %d vertices", len(mesh.Colors), len(mesh.Vertices))
	}
	for i, v := range mesh.Vertices {
		// Geometry is in world units, colors were queried in unit coordinates.
		if math.Abs(v.Z) > 1e-12 {
			t.Fatalf("vertex %v not on plane z=0", v)
		}
		want := d3.Box(bounds).Unit(v)
		if !d3.EqualWithin(r3.Vec{X: mesh.Colors[i][0], Y: mesh.Colors[i][1], Z: mesh.Colors[i][2]}, want, 1e-12) {
			t.Fatalf("color %v, want %v", mesh.Colors[i], want)
		}
	}
}

func TestExtractMarchingCubesBounds(t *testing.T) {
	mcb := r3.Box{Min: r3.Vec{X: 0.25, Y: 0.25, Z: 0.25}, Max: r3.Vec{X: 0.75, Y: 0.75, Z: 0.75}}
	var queried []r3.Vec
	scene := batch.ScalarFunc(func(p r3.Vec) float64 {
		queried = append(queried, p)
		return 1
	})
	mesh, err := nerfmesh.Extract(scene, nil, nerfmesh.Options{
		Bounds:              unitBox,
		MarchingCubesBounds: &mcb,
		Sizing:              grid.Sizing{Resolution: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) != 0 || len(mesh.Triangles) != 0 {
		t.Error("constant field produced geometry")
	}
	if len(queried) != 27 {
		t.Fatalf("queried %d points, want 27", len(queried))
	}
	if queried[0] != mcb.Min || queried[26] != mcb.Max {
		t.Errorf("lattice spans %v to %v, want %v", queried[0], queried[26], mcb)
	}
}

func TestExtractFrame(t *testing.T) {
	// The scene is a sphere in the local frame of a camera placed at
	// (10,0,0) and rotated 90 degrees about z. The mesh must appear around
	// the camera position in world coordinates.
	c2w := frame.Rigid(r3.NewRotation(math.Pi/2, r3.Vec{Z: 1}), r3.Vec{X: 10})
	localCenter := r3.Vec{X: 0.2}
	worldCenter := c2w.Apply(localCenter)
	var colorPts []r3.Vec
	color := batch.VectorFunc{N: 4, Fn: func(dst []float64, p, _ r3.Vec) {
		colorPts = append(colorPts, p)
		dst[0], dst[1], dst[2], dst[3] = 0.1, 0.2, 0.3, 1
	}}
	bounds := r3.Box{Min: r3.Vec{X: 9, Y: -1, Z: -1}, Max: r3.Vec{X: 11, Y: 1, Z: 1}}
	mesh, err := nerfmesh.Extract(sphereSDF(localCenter, 0.5), color, nerfmesh.Options{
		Bounds:        bounds,
		Sizing:        grid.Sizing{Resolution: 21},
		Truncation:    3,
		CameraToWorld: &c2w,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) == 0 {
		t.Fatal("empty mesh")
	}
	for i, v := range mesh.Vertices {
		if d := r3.Norm(r3.Sub(v, worldCenter)); math.Abs(d-0.5) > 0.02 {
			t.Fatalf("world vertex %v at distance %g from %v", v, d, worldCenter)
		}
		if d := r3.Norm(r3.Sub(colorPts[i], localCenter)); math.Abs(d-0.5) > 0.02 {
			t.Fatalf("color query %v at distance %g from local center", colorPts[i], d)
		}
		if mesh.Colors[i] != [3]float64{0.1, 0.2, 0.3} {
			t.Fatalf("color %v", mesh.Colors[i])
		}
	}
}

func TestExtractErrors(t *testing.T) {
	scene := sphereSDF(r3.Vec{}, 1)
	wantErr := errors.New("out of memory")
	for _, test := range []struct {
		name  string
		scene batch.Field
		color batch.Field
		opts  nerfmesh.Options
		is    error
	}{
		{name: "no sizing", scene: scene, opts: nerfmesh.Options{Bounds: unitBox}, is: grid.ErrSizing},
		{name: "both sizing", scene: scene, opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{VoxelSize: 0.1, Resolution: 3}}, is: grid.ErrSizing},
		{name: "bad bounds", scene: scene, opts: nerfmesh.Options{Bounds: r3.Box{}, Sizing: grid.Sizing{Resolution: 3}}, is: grid.ErrBounds},
		{name: "resolution 1", scene: scene, opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{Resolution: 1}}},
		{name: "huge resolution", scene: scene, opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{Resolution: 3_000_000}}, is: grid.ErrTooLarge},
		{name: "nil scene", opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{Resolution: 3}}},
		{name: "scene error", scene: errField{err: wantErr, n: 1}, opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{Resolution: 3}}, is: wantErr},
		{name: "color error", scene: scene, color: errField{err: wantErr, n: 3}, opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{Resolution: 5}}, is: wantErr},
		{name: "two channel scene", scene: batch.VectorFunc{N: 2, Fn: func([]float64, r3.Vec, r3.Vec) {}}, opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{Resolution: 3}}},
		{name: "two channel color", scene: scene, color: batch.VectorFunc{N: 2, Fn: func([]float64, r3.Vec, r3.Vec) {}}, opts: nerfmesh.Options{Bounds: unitBox, Sizing: grid.Sizing{Resolution: 5}}},
	} {
		_, err := nerfmesh.Extract(test.scene, test.color, test.opts)
		if err == nil {
			t.Errorf("%s: expected error", test.name)
			continue
		}
		if test.is != nil && !errors.Is(err, test.is) {
			t.Errorf("%s: got %v, want %v", test.name, err, test.is)
		}
		if test.name == "scene error" && err != wantErr {
			t.Errorf("scene error not returned verbatim: %v", err)
		}
	}
}

type errField struct {
	err error
	n   int
}

func (f errField) Channels() int { return f.n }

func (f errField) Evaluate(dst []float64, pos, aux []r3.Vec) error { return f.err }

func TestRescaleCorners(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		min := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		size := r3.Vec{X: 0.1 + rng.Float64()*3, Y: 0.1 + rng.Float64()*3, Z: 0.1 + rng.Float64()*3}
		bounds := r3.Box{Min: min, Max: r3.Add(min, size)}
		lattice, err := grid.Build(bounds, grid.Sizing{Resolution: 2 + rng.Intn(30)})
		if err != nil {
			t.Fatal(err)
		}
		rs := nerfmesh.Rescaler{
			Lattice:     lattice,
			ScaleFactor: 0.1 + rng.Float64()*5,
			Translation: r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()},
		}
		sh := lattice.Shape()
		last := r3.Vec{X: float64(sh[0] - 1), Y: float64(sh[1] - 1), Z: float64(sh[2] - 1)}
		corners := []r3.Vec{{}, last}
		if err := rs.Apply(corners); err != nil {
			t.Fatal(err)
		}
		wantMin := r3.Sub(r3.Scale(1/rs.ScaleFactor, bounds.Min), rs.Translation)
		wantMax := r3.Sub(r3.Scale(1/rs.ScaleFactor, bounds.Max), rs.Translation)
		if !d3.EqualWithin(corners[0], wantMin, 1e-9) || !d3.EqualWithin(corners[1], wantMax, 1e-9) {
			t.Fatalf("corners %v, want %v %v", corners, wantMin, wantMax)
		}
		rs.FromMetric(corners)
		if !d3.EqualWithin(corners[0], bounds.Min, 1e-9) || !d3.EqualWithin(corners[1], bounds.Max, 1e-9) {
			t.Fatalf("FromMetric corners %v, want %v", corners, bounds)
		}
	}
}

func TestRescaleEmpty(t *testing.T) {
	lattice, err := grid.Build(unitBox, grid.Sizing{Resolution: 3})
	if err != nil {
		t.Fatal(err)
	}
	rs := nerfmesh.Rescaler{Lattice: lattice}
	if err := rs.Apply(nil); err != nil {
		t.Fatal(err)
	}
	rs.Lattice.Y = rs.Lattice.Y[:1]
	if err := rs.Normalize([]r3.Vec{{}}); err == nil {
		t.Error("expected error normalizing single sample axis")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		m := make([]float64, 16)
		for j := range m[:12] {
			m[j] = rng.NormFloat64()
		}
		m[15] = 1
		c2w, err := frame.NewTransform(m)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(c2w.Det()) < 1e-3 {
			continue
		}
		rs := nerfmesh.Rescaler{CameraToWorld: &c2w}
		pts := []r3.Vec{{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}, {}, {X: 1, Y: 2, Z: 3}}
		local, err := rs.ToLocal(nil, pts)
		if err != nil {
			t.Fatal(err)
		}
		world := rs.ToWorld(nil, local)
		for j := range pts {
			if !d3.EqualWithin(world[j], pts[j], 1e-7) {
				t.Fatalf("round trip %v -> %v -> %v", pts[j], local[j], world[j])
			}
		}
	}
	var rs nerfmesh.Rescaler
	pts := []r3.Vec{{X: 1}}
	local, err := rs.ToLocal(nil, pts)
	if err != nil || local[0] != pts[0] {
		t.Errorf("ToLocal without frame: got %v, %v", local, err)
	}
}

func TestColorize(t *testing.T) {
	color := batch.VectorFunc{N: 3, Fn: func(dst []float64, p, _ r3.Vec) {
		dst[0], dst[1], dst[2] = p.X, 2*p.X, 3*p.X
	}}
	for _, n := range []int{0, 1, 7, 100} {
		pts := make([]r3.Vec, n)
		for i := range pts {
			pts[i].X = float64(i)
		}
		var calls int
		ev := &batch.Evaluator{ChunkSize: 3, OnChunk: func(done, total int) { calls++ }}
		colors, err := nerfmesh.Colorize(ev, color, pts)
		if err != nil {
			t.Fatal(err)
		}
		if len(colors) != n {
			t.Fatalf("got %d colors for %d points", len(colors), n)
		}
		for i, c := range colors {
			if c != [3]float64{float64(i), 2 * float64(i), 3 * float64(i)} {
				t.Fatalf("color %d: got %v", i, c)
			}
		}
		if calls != (n+2)/3 {
			t.Errorf("%d points evaluated in %d chunks", n, calls)
		}
	}
	colors, err := nerfmesh.Colorize(nil, nil, make([]r3.Vec, 4))
	if err != nil || colors != nil {
		t.Errorf("nil color field: got %v, %v", colors, err)
	}
}

func TestExtractToFile(t *testing.T) {
	cfg, err := config.Parse([]byte(`
grid:
  tcnn_encoding: false
mapping:
  bound: [[0, 1], [0, 1], [0, 1]]
mesh:
  resolution: 8
`))
	if err != nil {
		t.Fatal(err)
	}
	opts, err := nerfmesh.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Truncation != nerfmesh.DefaultTruncation || opts.ScaleFactor != 1 || opts.Resolution != 8 {
		t.Fatalf("options from config: %+v", opts)
	}
	var progress []nerfmesh.Stage
	opts.ChunkSize = 100
	opts.OnChunk = func(stage nerfmesh.Stage, done, total int) {
		if done == total {
			progress = append(progress, stage)
		}
	}
	color := batch.VectorFunc{N: 3, Fn: func(dst []float64, p, _ r3.Vec) { dst[0] = 1 }}
	path := filepath.Join(t.TempDir(), "meshes", "sphere.ply")
	mesh, err := nerfmesh.ExtractToFile(path, sphereSDF(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 0.3), color, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Triangles) == 0 {
		t.Fatal("empty mesh")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	if len(progress) != 2 || progress[0] != nerfmesh.StageScene || progress[1] != nerfmesh.StageColor {
		t.Errorf("progress stages: %v", progress)
	}
}

func TestExtractTruncation(t *testing.T) {
	step := batch.ScalarFunc(func(p r3.Vec) float64 {
		if p.X > 0.5 {
			return 5
		}
		return -5
	})
	for _, test := range []struct {
		trunc float64
		empty bool
	}{
		{trunc: 0, empty: true},
		{trunc: nerfmesh.DefaultTruncation, empty: true},
		{trunc: 9.9, empty: true},
		{trunc: 10.1},
		{trunc: -1},
		{trunc: math.Inf(1)},
	} {
		mesh, err := nerfmesh.Extract(step, nil, nerfmesh.Options{
			Bounds:     unitBox,
			Sizing:     grid.Sizing{Resolution: 4},
			Truncation: test.trunc,
		})
		if err != nil {
			t.Fatal(err)
		}
		if empty := len(mesh.Triangles) == 0; empty != test.empty {
			t.Errorf("truncation %g: got %d triangles, want empty=%v", test.trunc, len(mesh.Triangles), test.empty)
		}
	}

	cfg, err := config.Parse([]byte(`
mapping:
  bound: [[0, 1], [0, 1], [0, 1]]
mesh:
  resolution: 4
  truncation: 0
`))
	if err != nil {
		t.Fatal(err)
	}
	opts, err := nerfmesh.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := nerfmesh.Extract(step, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Triangles) == 0 {
		t.Error("truncation 0 in configuration should disable truncation")
	}
}
