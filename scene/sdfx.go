package scene

import (
	"errors"

	"github.com/deadsy/sdfx/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

// SDFX adapts a pointwise sdfx 3D signed distance function to a
// single channel batch.Field.
type SDFX struct {
	s sdf.SDF3
}

// NewSDFX wraps s.
func NewSDFX(s sdf.SDF3) (*SDFX, error) {
	if s == nil {
		return nil, errors.New("nil SDF3")
	}
	return &SDFX{s: s}, nil
}

func (s *SDFX) Channels() int { return 1 }

func (s *SDFX) Evaluate(dst []float64, pos, _ []r3.Vec) error {
	for i, p := range pos {
		dst[i] = s.s.Evaluate(sdf.V3{X: p.X, Y: p.Y, Z: p.Z})
	}
	return nil
}

// Bounds returns the bounding box of the underlying SDF.
func (s *SDFX) Bounds() r3.Box {
	bb := s.s.BoundingBox()
	return r3.Box{
		Min: r3.Vec{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z},
		Max: r3.Vec{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z},
	}
}
