package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/nerfmesh/config"
	"github.com/soypat/nerfmesh/grid"
	"gonum.org/v1/gonum/spatial/r3"
)

const sceneConfig = `
grid:
  tcnn_encoding: true
data:
  sc_factor: 0.5
  translation: [1, 2, 3]
mapping:
  bound: [[-1, 2], [0, 1], [-3, 0.5]]
  marching_cubes_bound: [[-0.5, 1.5], [0, 1], [-1, 0]]
mesh:
  voxel_final: 0.03
  isolevel: 0.1
  camera_to_world: [1, 0, 0, 1,  0, 1, 0, 0,  0, 0, 1, 0,  0, 0, 0, 1]
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sceneConfig))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Grid.TCNNEncoding {
		t.Error("tcnn_encoding not decoded")
	}
	if cfg.Data.SCFactor != 0.5 {
		t.Errorf("sc_factor: got %g", cfg.Data.SCFactor)
	}
	if got := cfg.Translation(); got != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("translation: got %v", got)
	}
	b, err := cfg.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	want := r3.Box{Min: r3.Vec{X: -1, Y: 0, Z: -3}, Max: r3.Vec{X: 2, Y: 1, Z: 0.5}}
	if b != want {
		t.Errorf("bound: got %v, want %v", b, want)
	}
	mcb, err := cfg.MarchingCubesBounds()
	if err != nil {
		t.Fatal(err)
	}
	if mcb == nil || mcb.Min.X != -0.5 || mcb.Max.Z != 0 {
		t.Errorf("marching_cubes_bound: got %v", mcb)
	}
	c2w, err := cfg.CameraToWorld()
	if err != nil {
		t.Fatal(err)
	}
	if c2w == nil {
		t.Fatal("camera_to_world not decoded")
	}
	if got := c2w.Apply(r3.Vec{}); got != (r3.Vec{X: 1}) {
		t.Errorf("camera_to_world applied to origin: got %v", got)
	}
	// Defaults.
	if cfg.Mesh.Truncation == nil || *cfg.Mesh.Truncation != config.DefaultTruncation {
		t.Errorf("truncation default not applied: %v", cfg.Mesh.Truncation)
	}
	if cfg.Mesh.ChunkSize != config.DefaultChunkSize {
		t.Errorf("chunk size default: got %d", cfg.Mesh.ChunkSize)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
mapping:
  bound: [[0, 1], [0, 1], [0, 1]]
mesh:
  resolution: 64
  truncation: 0
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Data.SCFactor != config.DefaultScaleFactor {
		t.Errorf("sc_factor default: got %g", cfg.Data.SCFactor)
	}
	if cfg.Translation() != (r3.Vec{}) {
		t.Errorf("translation default: got %v", cfg.Translation())
	}
	if *cfg.Mesh.Truncation != 0 {
		t.Errorf("explicit zero truncation overridden: %g", *cfg.Mesh.Truncation)
	}
	mcb, err := cfg.MarchingCubesBounds()
	if err != nil || mcb != nil {
		t.Errorf("unset marching_cubes_bound: got %v, %v", mcb, err)
	}
	c2w, err := cfg.CameraToWorld()
	if err != nil || c2w != nil {
		t.Errorf("unset camera_to_world: got %v, %v", c2w, err)
	}
}

func TestParseInvalid(t *testing.T) {
	const bound = "mapping:\n  bound: [[0, 1], [0, 1], [0, 1]]\n"
	for _, test := range []struct {
		name string
		yaml string
		is   error
	}{
		{name: "no sizing", yaml: bound, is: grid.ErrSizing},
		{name: "both sizing", yaml: bound + "mesh:\n  resolution: 8\n  voxel_final: 0.1\n", is: grid.ErrSizing},
		{name: "inverted bound", yaml: "mapping:\n  bound: [[1, 0], [0, 1], [0, 1]]\nmesh:\n  resolution: 8\n", is: grid.ErrBounds},
		{name: "short bound", yaml: "mapping:\n  bound: [[0, 1], [0, 1]]\nmesh:\n  resolution: 8\n"},
		{name: "missing bound", yaml: "mesh:\n  resolution: 8\n"},
		{name: "bad mc bound", yaml: bound + "  marching_cubes_bound: [[0, 0], [0, 1], [0, 1]]\nmesh:\n  resolution: 8\n", is: grid.ErrBounds},
		{name: "resolution 1", yaml: bound + "mesh:\n  resolution: 1\n"},
		{name: "negative scale", yaml: bound + "data:\n  sc_factor: -2\nmesh:\n  resolution: 8\n"},
		{name: "short translation", yaml: bound + "data:\n  translation: [1, 2]\nmesh:\n  resolution: 8\n"},
		{name: "short frame", yaml: bound + "mesh:\n  resolution: 8\n  camera_to_world: [1, 0, 0]\n"},
		{name: "singular frame", yaml: bound + "mesh:\n  resolution: 8\n  camera_to_world: [0,0,0,0, 0,0,0,0, 0,0,0,0, 0,0,0,1]\n"},
		{name: "not yaml", yaml: "grid: [\n"},
	} {
		_, err := config.Parse([]byte(test.yaml))
		if err == nil {
			t.Errorf("%s: expected error", test.name)
			continue
		}
		if test.is != nil && !errors.Is(err, test.is) {
			t.Errorf("%s: got %v, want %v", test.name, err, test.is)
		}
	}
}

func TestLoadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	if err := os.WriteFile(path, []byte(sceneConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "copy.yaml")
	if err := config.Write(out, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := config.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mesh.VoxelFinal != cfg.Mesh.VoxelFinal || got.Data.SCFactor != cfg.Data.SCFactor ||
		*got.Mesh.Truncation != *cfg.Mesh.Truncation || len(got.Mesh.CameraToWorld) != 16 {
		t.Errorf("written config differs: %+v", got)
	}
	if _, err := config.Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error loading missing file")
	}
}
