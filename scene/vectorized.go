package scene

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// SDF3 is a signed distance function evaluated over many positions at once
// in single precision, as run by GPU and SIMD evaluators.
type SDF3 interface {
	// Evaluate stores the distance at pos[i] in dist[i].
	// dist and pos must be of same length.
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
}

// Vectorized adapts an SDF3 to a single channel batch.Field.
// Conversion buffers are reused between calls so a Vectorized
// must not be used concurrently.
type Vectorized struct {
	sdf      SDF3
	userData any
	pos      []ms3.Vec
	dist     []float32
}

// NewVectorized wraps s. userData is passed through to every evaluation.
func NewVectorized(s SDF3, userData any) (*Vectorized, error) {
	if s == nil {
		return nil, errors.New("nil SDF3")
	}
	return &Vectorized{sdf: s, userData: userData}, nil
}

func (v *Vectorized) Channels() int { return 1 }

func (v *Vectorized) Evaluate(dst []float64, pos, _ []r3.Vec) error {
	if cap(v.pos) < len(pos) {
		v.pos = make([]ms3.Vec, len(pos))
		v.dist = make([]float32, len(pos))
	}
	v.pos = v.pos[:len(pos)]
	v.dist = v.dist[:len(pos)]
	for i, p := range pos {
		v.pos[i] = ms3.Vec{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
	}
	if err := v.sdf.Evaluate(v.pos, v.dist, v.userData); err != nil {
		return err
	}
	for i, d := range v.dist {
		if math32.IsNaN(d) {
			return fmt.Errorf("NaN distance at %v", pos[i])
		}
		dst[i] = float64(d)
	}
	return nil
}

// VecSphere is a sphere of radius R centered at C.
type VecSphere struct {
	C ms3.Vec
	R float32
}

func (s *VecSphere) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errors.New("position and distance buffer length mismatch")
	}
	for i, p := range pos {
		dist[i] = ms3.Norm(ms3.Sub(p, s.C)) - s.R
	}
	return nil
}

// VecBox is a box centered at C with half sizes H and edges rounded by Round.
type VecBox struct {
	C     ms3.Vec
	H     ms3.Vec
	Round float32
}

func (b *VecBox) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errors.New("position and distance buffer length mismatch")
	}
	r := b.Round
	for i, p := range pos {
		q := ms3.Add(ms3.Sub(ms3.AbsElem(ms3.Sub(p, b.C)), b.H), ms3.Vec{X: r, Y: r, Z: r})
		dist[i] = ms3.Norm(ms3.MaxElem(q, ms3.Vec{})) + math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0) - r
	}
	return nil
}
