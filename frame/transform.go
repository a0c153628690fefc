// Package frame implements homogeneous 4x4 transforms between a camera's
// local frame and the world frame.
package frame

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSingular is returned when inverting a transform with a zero determinant.
var ErrSingular = errors.New("singular transform")

// Transform represents a 3D homogeneous transformation.
// The zero value of Transform is the identity transform.
type Transform struct {
	// Stored with the identity subtracted so the zero value is the identity.
	//  d[i][i] = x[i][i] - 1
	d [4][4]float64
}

// Identity returns the identity Transform.
func Identity() Transform { return Transform{} }

// NewTransform returns a Transform populated with 16 values in row-major form.
func NewTransform(rowMajor []float64) (Transform, error) {
	if len(rowMajor) != 16 {
		return Transform{}, fmt.Errorf("transform needs 16 values, got %d", len(rowMajor))
	}
	var t Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := rowMajor[4*i+j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Transform{}, fmt.Errorf("non-finite transform element (%d,%d)", i, j)
			}
			if i == j {
				v--
			}
			t.d[i][j] = v
		}
	}
	return t, nil
}

// Rigid returns the transform that rotates by q and then translates by pos.
func Rigid(q r3.Rotation, pos r3.Vec) Transform {
	var t Transform
	// Columns of the rotation matrix are the rotated basis vectors.
	cols := [3]r3.Vec{
		q.Rotate(r3.Vec{X: 1}),
		q.Rotate(r3.Vec{Y: 1}),
		q.Rotate(r3.Vec{Z: 1}),
	}
	for j, c := range cols {
		t.d[0][j] = c.X
		t.d[1][j] = c.Y
		t.d[2][j] = c.Z
	}
	t.d[0][0]--
	t.d[1][1]--
	t.d[2][2]--
	t.d[0][3] = pos.X
	t.d[1][3] = pos.Y
	t.d[2][3] = pos.Z
	return t
}

// At returns the matrix element at row i, column j.
func (t Transform) At(i, j int) float64 {
	if i == j {
		return t.d[i][j] + 1
	}
	return t.d[i][j]
}

// Apply applies the Transform to the argument point and returns the result.
// The homogeneous coordinate is divided out.
func (t Transform) Apply(v r3.Vec) r3.Vec {
	w := 1 / (t.d[3][0]*v.X + t.d[3][1]*v.Y + t.d[3][2]*v.Z + t.d[3][3] + 1)
	return r3.Vec{
		X: ((t.d[0][0]+1)*v.X + t.d[0][1]*v.Y + t.d[0][2]*v.Z + t.d[0][3]) * w,
		Y: (t.d[1][0]*v.X + (t.d[1][1]+1)*v.Y + t.d[1][2]*v.Z + t.d[1][3]) * w,
		Z: (t.d[2][0]*v.X + t.d[2][1]*v.Y + (t.d[2][2]+1)*v.Z + t.d[2][3]) * w,
	}
}

// ApplyAll writes the transformed src points to dst and returns dst.
// dst may alias src. If dst is nil a new slice is allocated.
func (t Transform) ApplyAll(dst, src []r3.Vec) []r3.Vec {
	if dst == nil {
		dst = make([]r3.Vec, len(src))
	}
	if len(dst) != len(src) {
		panic("ApplyAll: length mismatch")
	}
	if t == (Transform{}) {
		copy(dst, src)
		return dst
	}
	for i, v := range src {
		dst[i] = t.Apply(v)
	}
	return dst
}

// Mul multiplies the Transforms t and b and returns the result, which applies
// b first and then t.
func (t Transform) Mul(b Transform) Transform {
	if t == (Transform{}) {
		return b
	}
	if b == (Transform{}) {
		return t
	}
	var m mat.Dense
	m.Mul(t.dense(), b.dense())
	return fromDense(&m)
}

// Det returns the determinant of the Transform.
func (t Transform) Det() float64 {
	return mat.Det(t.dense())
}

// Inv returns the inverse of the transform such that
// t.Inv().Mul(t) is the identity Transform.
func (t Transform) Inv() (Transform, error) {
	if t == (Transform{}) {
		return t, nil
	}
	// Singularity is judged by the condition number, not the determinant.
	var inv mat.Dense
	err := inv.Inverse(t.dense())
	if err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Transform{}, fmt.Errorf("%w: %v", ErrSingular, err)
		}
		// Ill conditioned matrices still produce a usable inverse.
	}
	for _, v := range inv.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Transform{}, ErrSingular
		}
	}
	return fromDense(&inv), nil
}

// Equals tests the equality of the Transforms to within a tolerance.
func (t Transform) Equals(b Transform, tol float64) bool {
	for i := range t.d {
		for j := range t.d[i] {
			if math.Abs(t.d[i][j]-b.d[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// SliceCopy returns a copy of the Transform's data
// in row major storage format. It returns 16 elements.
func (t Transform) SliceCopy() []float64 {
	s := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			s = append(s, t.At(i, j))
		}
	}
	return s
}

func (t Transform) dense() *mat.Dense {
	return mat.NewDense(4, 4, t.SliceCopy())
}

func fromDense(m *mat.Dense) Transform {
	var t Transform
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			t.d[i][j] = m.At(i, j)
		}
		t.d[i][i]--
	}
	return t
}
