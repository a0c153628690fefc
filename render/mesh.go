package render

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh with optional per-vertex colors.
type Mesh struct {
	Vertices  []r3.Vec
	Triangles [][3]int
	// Colors is nil or holds one RGB color per vertex with components in [0,1].
	Colors [][3]float64
}

// Validate checks triangle indices are in range and colors match vertices.
func (m *Mesh) Validate() error {
	nv := len(m.Vertices)
	for i, tri := range m.Triangles {
		for _, vi := range tri {
			if vi < 0 || vi >= nv {
				return fmt.Errorf("triangle %d references vertex %d of %d", i, vi, nv)
			}
		}
	}
	if m.Colors != nil && len(m.Colors) != nv {
		return fmt.Errorf("got %d colors for %d vertices", len(m.Colors), nv)
	}
	return nil
}

// Triangle returns the ith triangle's vertex positions.
func (m *Mesh) Triangle(i int) Triangle3 {
	tri := m.Triangles[i]
	return Triangle3{m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]}
}

// Renderer returns a Renderer streaming the mesh's triangles.
func (m *Mesh) Renderer() Renderer {
	return &meshReader{m: m}
}

type meshReader struct {
	m    *Mesh
	next int
}

func (r *meshReader) ReadTriangles(dst []Triangle3) (n int, err error) {
	if len(dst) == 0 {
		panic("cannot write to empty triangle slice")
	}
	for n < len(dst) && r.next < len(r.m.Triangles) {
		dst[n] = r.m.Triangle(r.next)
		n++
		r.next++
	}
	if r.next == len(r.m.Triangles) {
		return n, io.EOF
	}
	return n, nil
}
