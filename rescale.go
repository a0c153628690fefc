package nerfmesh

import (
	"fmt"

	"github.com/soypat/nerfmesh/frame"
	"github.com/soypat/nerfmesh/grid"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rescaler maps marching cubes vertices from lattice index space into metric
// world units. The passes are applied in place and in order:
// Normalize, Rescale and ToMetric.
type Rescaler struct {
	Lattice grid.Lattice
	// ScaleFactor divides world coordinates to obtain metric units.
	// Zero is treated as 1.
	ScaleFactor float64
	// Translation is subtracted after dividing by ScaleFactor.
	Translation r3.Vec
	// CameraToWorld, if set, relates the frame the scene function is
	// defined in (local) to the frame the lattice is built in (world).
	CameraToWorld *frame.Transform
}

// Apply runs the three rescale passes over v.
func (r Rescaler) Apply(v []r3.Vec) error {
	if err := r.Normalize(v); err != nil {
		return err
	}
	r.Rescale(v)
	r.ToMetric(v)
	return nil
}

// Normalize divides lattice index coordinates by the per axis sample count
// minus one, mapping them into [0,1].
func (r Rescaler) Normalize(v []r3.Vec) error {
	sh := r.Lattice.Shape()
	for i, n := range sh {
		if n < 2 {
			return fmt.Errorf("axis %d has %d samples, need at least 2 to normalize", i, n)
		}
	}
	div := r3.Vec{X: float64(sh[0] - 1), Y: float64(sh[1] - 1), Z: float64(sh[2] - 1)}
	for i := range v {
		v[i] = r3.Vec{X: v[i].X / div.X, Y: v[i].Y / div.Y, Z: v[i].Z / div.Z}
	}
	return nil
}

// Rescale maps normalized [0,1] coordinates onto the lattice extent.
func (r Rescaler) Rescale(v []r3.Vec) {
	b := r.Lattice.Bounds()
	scale := r3.Sub(b.Max, b.Min)
	for i := range v {
		v[i] = r3.Vec{
			X: scale.X*v[i].X + b.Min.X,
			Y: scale.Y*v[i].Y + b.Min.Y,
			Z: scale.Z*v[i].Z + b.Min.Z,
		}
	}
}

// ToMetric divides by the scale factor and subtracts the translation.
func (r Rescaler) ToMetric(v []r3.Vec) {
	sc := r.scaleFactor()
	for i := range v {
		v[i] = r3.Sub(r3.Scale(1/sc, v[i]), r.Translation)
	}
}

// FromMetric is the inverse of ToMetric.
func (r Rescaler) FromMetric(v []r3.Vec) {
	sc := r.scaleFactor()
	for i := range v {
		v[i] = r3.Scale(sc, r3.Add(v[i], r.Translation))
	}
}

// ToLocal writes src transformed into the local frame to dst and returns it.
// dst may alias src; a nil dst is allocated. Without a frame src is copied.
func (r Rescaler) ToLocal(dst, src []r3.Vec) ([]r3.Vec, error) {
	if r.CameraToWorld == nil {
		if dst == nil {
			dst = make([]r3.Vec, len(src))
		}
		copy(dst, src)
		return dst, nil
	}
	w2l, err := r.CameraToWorld.Inv()
	if err != nil {
		return nil, fmt.Errorf("camera to world: %w", err)
	}
	return w2l.ApplyAll(dst, src), nil
}

// ToWorld is the inverse of ToLocal.
func (r Rescaler) ToWorld(dst, src []r3.Vec) []r3.Vec {
	if r.CameraToWorld == nil {
		if dst == nil {
			dst = make([]r3.Vec, len(src))
		}
		copy(dst, src)
		return dst
	}
	return r.CameraToWorld.ApplyAll(dst, src)
}

func (r Rescaler) scaleFactor() float64 {
	if r.ScaleFactor == 0 {
		return 1
	}
	return r.ScaleFactor
}
