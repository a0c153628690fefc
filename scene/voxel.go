package scene

import (
	"encoding/json"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/soypat/nerfmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// VoxelGrid is a dense grid of samples spanning Bounds, with the first and last
// sample of every axis on the box faces. It is evaluated by trilinear
// interpolation.
type VoxelGrid struct {
	Bounds r3.Box
	// Outside is the value of samples beyond the grid.
	Outside float64

	nx, ny, nz int
	values     []float64
}

// NewVoxelGrid returns a grid of shape nx*ny*nz. values are indexed x fastest
// and z slowest. values is not copied.
func NewVoxelGrid(bounds r3.Box, nx, ny, nz int, values []float64) (*VoxelGrid, error) {
	if nx < 2 || ny < 2 || nz < 2 {
		return nil, errors.Errorf("voxel grid needs at least 2 samples per axis, got %dx%dx%d", nx, ny, nz)
	}
	if len(values) != nx*ny*nz {
		return nil, errors.Errorf("got %d values for %dx%dx%d grid", len(values), nx, ny, nz)
	}
	if err := d3.Box(bounds).Validate(); err != nil {
		return nil, errors.Wrap(err, "voxel grid bounds")
	}
	return &VoxelGrid{Bounds: bounds, nx: nx, ny: ny, nz: nz, values: values}, nil
}

// ReadVoxelGrid reads a VoxelGrid as a JSON array with z on the outer
// dimension, then y, then x. The grid spans bounds.
func ReadVoxelGrid(r io.Reader, bounds r3.Box) (*VoxelGrid, error) {
	var object [][][]float64
	dec := json.NewDecoder(r)
	if err := dec.Decode(&object); err != nil {
		return nil, errors.Wrap(err, "read voxel grid")
	}
	nz := len(object)
	if nz == 0 {
		return nil, errors.New("read voxel grid: empty grid")
	}
	ny := len(object[0])
	if ny == 0 {
		return nil, errors.New("read voxel grid: empty grid")
	}
	nx := len(object[0][0])
	result := make([]float64, 0, nx*ny*nz)
	for _, yPlane := range object {
		if len(yPlane) != ny {
			return nil, errors.New("read voxel grid: invalid dimensions")
		}
		for _, xLine := range yPlane {
			if len(xLine) != nx {
				return nil, errors.New("read voxel grid: invalid dimensions")
			}
			result = append(result, xLine...)
		}
	}
	g, err := NewVoxelGrid(bounds, nx, ny, nz, result)
	if err != nil {
		return nil, errors.Wrap(err, "read voxel grid")
	}
	return g, nil
}

// Shape returns the number of samples along each axis.
func (v *VoxelGrid) Shape() [3]int { return [3]int{v.nx, v.ny, v.nz} }

func (v *VoxelGrid) Channels() int { return 1 }

func (v *VoxelGrid) Evaluate(dst []float64, pos, _ []r3.Vec) error {
	for i, p := range pos {
		dst[i] = v.Interp(p)
	}
	return nil
}

// Interp gets a trilinear interpolated value for the grid
// at the given point.
func (v *VoxelGrid) Interp(p r3.Vec) float64 {
	u := d3.Box(v.Bounds).Unit(p)
	xs, xFracs := roundedCoords(u.X * float64(v.nx-1))
	ys, yFracs := roundedCoords(u.Y * float64(v.ny-1))
	zs, zFracs := roundedCoords(u.Z * float64(v.nz-1))
	var value float64
	for i, x := range xs {
		xFrac := xFracs[i]
		for j, y := range ys {
			yFrac := yFracs[j]
			for k, z := range zs {
				zFrac := zFracs[k]
				if w := xFrac * yFrac * zFrac; w != 0 {
					value += w * v.Get(x, y, z)
				}
			}
		}
	}
	return value
}

// Get gets the exact value at integer coordinates.
// If a coordinate is out of bounds, Outside is returned.
func (v *VoxelGrid) Get(x, y, z int) float64 {
	if x < 0 || y < 0 || z < 0 || x >= v.nx || y >= v.ny || z >= v.nz {
		return v.Outside
	}
	return v.values[x+v.nx*(y+z*v.ny)]
}

func roundedCoords(c float64) (vals [2]int, fracs [2]float64) {
	min := int(math.Floor(c))
	max := min + 1
	minFrac := float64(max) - c
	maxFrac := 1 - minFrac
	return [2]int{min, max}, [2]float64{minFrac, maxFrac}
}
