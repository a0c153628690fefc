// Package render extracts triangle meshes from dense scalar fields and
// writes them to disk.
package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Renderer streams triangles, like io.Reader streams bytes.
type Renderer interface {
	ReadTriangles(t []Triangle3) (int, error)
}

// Triangle3 is a 3D triangle with counter-clockwise winding.
type Triangle3 [3]r3.Vec

// Normal returns the unit normal of the triangle, or the zero vector
// for a triangle with no area.
func (t Triangle3) Normal() r3.Vec {
	e1 := r3.Sub(t[1], t[0])
	e2 := r3.Sub(t[2], t[0])
	n := r3.Cross(e1, e2)
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Degenerate returns true if two vertices are within tol of each other.
func (t Triangle3) Degenerate(tol float64) bool {
	return r3.Norm(r3.Sub(t[0], t[1])) <= tol ||
		r3.Norm(r3.Sub(t[1], t[2])) <= tol ||
		r3.Norm(r3.Sub(t[2], t[0])) <= tol
}
