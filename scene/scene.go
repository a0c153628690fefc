// Package scene provides scene and color functions that can be sampled by
// the mesh extraction pipeline. They stand in for a trained neural scene
// function when meshing analytic shapes, voxel grids and colored point clouds.
package scene

import (
	"github.com/soypat/nerfmesh/batch"
	"github.com/soypat/nerfmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	_ batch.Field = Sphere{}
	_ batch.Field = PositionColor{}
	_ batch.Field = (*SDFX)(nil)
	_ batch.Field = (*Vectorized)(nil)
	_ batch.Field = (*VoxelGrid)(nil)
	_ batch.Field = (*NearestColor)(nil)
)

// Sphere is the signed distance to a sphere. Negative inside.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

func (s Sphere) Channels() int { return 1 }

func (s Sphere) Evaluate(dst []float64, pos, _ []r3.Vec) error {
	for i, p := range pos {
		dst[i] = r3.Norm(r3.Sub(p, s.Center)) - s.Radius
	}
	return nil
}

// PositionColor colors points by their position within Bounds: the minimum
// corner is black and the maximum corner white. Colors are clamped to [0,1].
type PositionColor struct {
	Bounds r3.Box
}

func (c PositionColor) Channels() int { return 3 }

func (c PositionColor) Evaluate(dst []float64, pos, _ []r3.Vec) error {
	b := d3.Box(c.Bounds)
	for i, p := range pos {
		u := b.Unit(p)
		dst[3*i] = clamp01(u.X)
		dst[3*i+1] = clamp01(u.Y)
		dst[3*i+2] = clamp01(u.Z)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
