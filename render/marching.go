package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MarchingCubes extracts the isolevel surface of a scalar field.
// Vertices are returned in fractional lattice index coordinates,
// so component i of a vertex lies in [0, Shape[i]-1]. Vertices are shared
// between adjacent cells. Triangle normals point towards increasing field values.
//
// Cells whose corner values differ by more than truncation are skipped,
// avoiding spurious surfaces between far apart samples of truncated signed
// distance fields. A non-positive or infinite truncation disables the check.
// Cells with a NaN corner are skipped. A field with no crossings yields an
// empty mesh and no error.
func MarchingCubes(field Field, isolevel, truncation float64) (*Mesh, error) {
	f, err := field.Squeeze()
	if err != nil {
		return nil, err
	}
	useTrunc := truncation > 0 && !math.IsInf(truncation, 1)
	nx, ny, nz := f.Shape[0], f.Shape[1], f.Shape[2]
	m := &Mesh{}
	// Crossed lattice edge -> vertex index. Edge key is 3*(flat index of
	// the edge's lower endpoint) + axis.
	edgeVerts := make(map[int]int)
	var (
		values     [8]float64
		edgeVertex [12]int
	)
	for i := 0; i < nx-1; i++ {
		for j := 0; j < ny-1; j++ {
			for k := 0; k < nz-1; k++ {
				cubeIndex := 0
				lo, hi := math.Inf(1), math.Inf(-1)
				hasNaN := false
				for c, off := range mcCornerOffsets {
					v := f.Data[f.Index(i+off[0], j+off[1], k+off[2], 0)]
					values[c] = v
					if math.IsNaN(v) {
						hasNaN = true
					}
					lo = math.Min(lo, v)
					hi = math.Max(hi, v)
					if v < isolevel {
						cubeIndex |= 1 << c
					}
				}
				edges := mcEdgeTable[cubeIndex]
				if edges == 0 || hasNaN {
					continue
				}
				if useTrunc && hi-lo > truncation {
					continue
				}
				for e := 0; e < 12; e++ {
					if edges&(1<<e) == 0 {
						continue
					}
					ca, cb := mcEdgeCorners[e][0], mcEdgeCorners[e][1]
					offA, offB := mcCornerOffsets[ca], mcCornerOffsets[cb]
					axis, lower := 0, offA
					for a := 0; a < 3; a++ {
						if offA[a] != offB[a] {
							axis = a
							if offB[a] < offA[a] {
								lower = offB
							}
						}
					}
					key := 3*f.Index(i+lower[0], j+lower[1], k+lower[2], 0) + axis
					vi, ok := edgeVerts[key]
					if !ok {
						pa := r3.Vec{X: float64(i + offA[0]), Y: float64(j + offA[1]), Z: float64(k + offA[2])}
						pb := r3.Vec{X: float64(i + offB[0]), Y: float64(j + offB[1]), Z: float64(k + offB[2])}
						vi = len(m.Vertices)
						m.Vertices = append(m.Vertices, mcInterpolate(pa, pb, values[ca], values[cb], isolevel))
						edgeVerts[key] = vi
					}
					edgeVertex[e] = vi
				}
				tris := mcTriangleTable[cubeIndex]
				for t := 0; t < len(tris); t += 3 {
					// Table winding faces the low side; swap to face increasing values.
					m.Triangles = append(m.Triangles, [3]int{
						edgeVertex[tris[t]],
						edgeVertex[tris[t+2]],
						edgeVertex[tris[t+1]],
					})
				}
			}
		}
	}
	return m, nil
}

// mcInterpolate returns the point between pa and pb where the linear
// interpolation of va and vb equals isolevel.
func mcInterpolate(pa, pb r3.Vec, va, vb, isolevel float64) r3.Vec {
	const epsilon = 1e-12
	if math.Abs(vb-va) < epsilon {
		return r3.Scale(0.5, r3.Add(pa, pb))
	}
	t := (isolevel - va) / (vb - va)
	return r3.Add(pa, r3.Scale(t, r3.Sub(pb, pa)))
}
