// Package config loads mesh extraction settings from YAML files laid out like
// the training configuration of the scene model.
package config

import (
	"fmt"
	"math"
	"os"

	"github.com/soypat/nerfmesh/frame"
	"github.com/soypat/nerfmesh/grid"
	"github.com/soypat/nerfmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultScaleFactor = 1.0
	DefaultTruncation  = 3.0
	DefaultChunkSize   = 1 << 16
)

// Config is the subset of a scene configuration used for mesh extraction.
type Config struct {
	Grid    GridConfig    `yaml:"grid"`
	Data    DataConfig    `yaml:"data"`
	Mapping MappingConfig `yaml:"mapping"`
	Mesh    MeshConfig    `yaml:"mesh"`
}

type GridConfig struct {
	// TCNNEncoding is set when the scene function expects query points
	// normalized into the unit cube by the bounding box.
	TCNNEncoding bool `yaml:"tcnn_encoding"`
}

type DataConfig struct {
	// SCFactor scales metric units into scene units. Zero means 1.
	SCFactor    float64   `yaml:"sc_factor"`
	Translation []float64 `yaml:"translation,omitempty"`
}

type MappingConfig struct {
	// Bound is the scene bounding box as [[xmin,xmax],[ymin,ymax],[zmin,zmax]].
	Bound [][]float64 `yaml:"bound"`
	// MarchingCubesBound overrides the lattice region. Same layout as Bound.
	MarchingCubesBound [][]float64 `yaml:"marching_cubes_bound,omitempty"`
}

type MeshConfig struct {
	Resolution int     `yaml:"resolution,omitempty"`
	VoxelFinal float64 `yaml:"voxel_final,omitempty"`
	Isolevel   float64 `yaml:"isolevel"`
	// Truncation is a pointer to distinguish unset from an explicit 0 (disabled).
	Truncation *float64 `yaml:"truncation,omitempty"`
	ChunkSize  int      `yaml:"chunk_size,omitempty"`
	// CameraToWorld is an optional 4x4 row major pose of the reference frame
	// the scene function is defined in.
	CameraToWorld []float64 `yaml:"camera_to_world,omitempty"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration data, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Data.SCFactor == 0 {
		c.Data.SCFactor = DefaultScaleFactor
	}
	if c.Data.Translation == nil {
		c.Data.Translation = []float64{0, 0, 0}
	}
	if c.Mesh.Truncation == nil {
		t := DefaultTruncation
		c.Mesh.Truncation = &t
	}
	if c.Mesh.ChunkSize == 0 {
		c.Mesh.ChunkSize = DefaultChunkSize
	}
}

// Validate checks the configuration is complete and consistent.
func (c *Config) Validate() error {
	if _, err := c.Bounds(); err != nil {
		return err
	}
	if _, err := c.MarchingCubesBounds(); err != nil {
		return err
	}
	if c.Data.SCFactor <= 0 || math.IsInf(c.Data.SCFactor, 0) || math.IsNaN(c.Data.SCFactor) {
		return fmt.Errorf("data.sc_factor must be positive, got %g", c.Data.SCFactor)
	}
	if len(c.Data.Translation) != 3 {
		return fmt.Errorf("data.translation must have 3 values, got %d", len(c.Data.Translation))
	}
	m := c.Mesh
	if (m.Resolution != 0) == (m.VoxelFinal != 0) {
		return fmt.Errorf("mesh.resolution or mesh.voxel_final: %w", grid.ErrSizing)
	}
	if m.Resolution != 0 && m.Resolution < 2 {
		return fmt.Errorf("mesh.resolution must be at least 2, got %d", m.Resolution)
	}
	if m.VoxelFinal < 0 {
		return fmt.Errorf("mesh.voxel_final must be positive, got %g", m.VoxelFinal)
	}
	if m.ChunkSize < 0 {
		return fmt.Errorf("mesh.chunk_size must be positive, got %d", m.ChunkSize)
	}
	if _, err := c.CameraToWorld(); err != nil {
		return err
	}
	return nil
}

// Bounds returns mapping.bound as a box.
func (c *Config) Bounds() (r3.Box, error) {
	b, err := parseBox(c.Mapping.Bound)
	if err != nil {
		return r3.Box{}, fmt.Errorf("mapping.bound: %w", err)
	}
	return b, nil
}

// MarchingCubesBounds returns mapping.marching_cubes_bound, or nil if unset.
func (c *Config) MarchingCubesBounds() (*r3.Box, error) {
	if c.Mapping.MarchingCubesBound == nil {
		return nil, nil
	}
	b, err := parseBox(c.Mapping.MarchingCubesBound)
	if err != nil {
		return nil, fmt.Errorf("mapping.marching_cubes_bound: %w", err)
	}
	return &b, nil
}

// Translation returns data.translation as a vector.
func (c *Config) Translation() r3.Vec {
	t := c.Data.Translation
	if len(t) != 3 {
		return r3.Vec{}
	}
	return r3.Vec{X: t[0], Y: t[1], Z: t[2]}
}

// CameraToWorld returns the reference frame pose, or nil if unset.
func (c *Config) CameraToWorld() (*frame.Transform, error) {
	if len(c.Mesh.CameraToWorld) == 0 {
		return nil, nil
	}
	t, err := frame.NewTransform(c.Mesh.CameraToWorld)
	if err != nil {
		return nil, fmt.Errorf("mesh.camera_to_world: %w", err)
	}
	if _, err := t.Inv(); err != nil {
		return nil, fmt.Errorf("mesh.camera_to_world: %w", err)
	}
	return &t, nil
}

func parseBox(rows [][]float64) (r3.Box, error) {
	if len(rows) != 3 {
		return r3.Box{}, fmt.Errorf("want 3 [min, max] rows, got %d", len(rows))
	}
	for i, row := range rows {
		if len(row) != 2 {
			return r3.Box{}, fmt.Errorf("row %d: want [min, max], got %d values", i, len(row))
		}
	}
	b := r3.Box{
		Min: r3.Vec{X: rows[0][0], Y: rows[1][0], Z: rows[2][0]},
		Max: r3.Vec{X: rows[0][1], Y: rows[1][1], Z: rows[2][1]},
	}
	if err := d3.Box(b).Validate(); err != nil {
		return r3.Box{}, fmt.Errorf("%w: %v", grid.ErrBounds, err)
	}
	return b, nil
}

// Write encodes cfg as YAML to path.
func Write(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	return f.Close()
}
