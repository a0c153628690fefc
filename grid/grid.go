// Package grid builds the dense sample lattice a scene function is queried on.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/nerfmesh/internal/d3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// voxelEpsilon biases exact .5 divisions upward against float truncation.
const voxelEpsilon = 0.0005

// MaxPoints is the largest number of lattice points Build accepts.
const MaxPoints = 1 << 40

var (
	// ErrSizing is returned when not exactly one of voxel size and resolution is set.
	ErrSizing = errors.New("exactly one of voxel size or resolution must be set")
	// ErrBounds is returned for bounding volumes with min >= max on an axis.
	ErrBounds = errors.New("invalid bounding volume")
	// ErrTooLarge is returned when the lattice would exceed MaxPoints.
	ErrTooLarge = errors.New("lattice too large")
)

// Sizing selects how many samples are taken along each axis.
// Exactly one field must be set.
type Sizing struct {
	// VoxelSize is the target lattice spacing in bounding volume units.
	VoxelSize float64
	// Resolution is the number of samples per axis, including both ends.
	Resolution int
}

// Lattice is the set of sample coordinates along each axis. The sample points
// are the outer product of X, Y and Z.
type Lattice struct {
	X, Y, Z []float64
}

// Build returns the lattice spanning bounds with the given sizing.
func Build(bounds r3.Box, sz Sizing) (Lattice, error) {
	hasVoxel := sz.VoxelSize != 0
	hasRes := sz.Resolution != 0
	if hasVoxel == hasRes {
		return Lattice{}, ErrSizing
	}
	if hasVoxel {
		return FromVoxelSize(bounds, sz.VoxelSize)
	}
	return FromResolution(bounds, sz.Resolution)
}

// FromVoxelSize returns a lattice with round(extent/voxelSize)+1 evenly
// spaced samples per axis spanning bounds inclusively.
func FromVoxelSize(bounds r3.Box, voxelSize float64) (Lattice, error) {
	if err := d3.Box(bounds).Validate(); err != nil {
		return Lattice{}, fmt.Errorf("%w: %v", ErrBounds, err)
	}
	if voxelSize <= 0 || math.IsNaN(voxelSize) || math.IsInf(voxelSize, 0) {
		return Lattice{}, fmt.Errorf("invalid voxel size %g", voxelSize)
	}
	var counts [3]int
	for axis, extent := range [3]float64{
		bounds.Max.X - bounds.Min.X,
		bounds.Max.Y - bounds.Min.Y,
		bounds.Max.Z - bounds.Min.Z,
	} {
		n := voxelCount(extent, voxelSize)
		if n < 1 {
			return Lattice{}, fmt.Errorf("voxel size %g too large for axis %d: need at least 2 samples", voxelSize, axis)
		}
		if n >= MaxPoints {
			return Lattice{}, fmt.Errorf("%w: %g samples on axis %d", ErrTooLarge, n+1, axis)
		}
		counts[axis] = int(n)
	}
	if err := checkLen(counts[0]+1, counts[1]+1, counts[2]+1); err != nil {
		return Lattice{}, err
	}
	return Lattice{
		X: linspace(bounds.Min.X, bounds.Max.X, counts[0]+1),
		Y: linspace(bounds.Min.Y, bounds.Max.Y, counts[1]+1),
		Z: linspace(bounds.Min.Z, bounds.Max.Z, counts[2]+1),
	}, nil
}

// FromResolution returns a lattice with resolution evenly spaced samples
// on every axis spanning bounds inclusively.
func FromResolution(bounds r3.Box, resolution int) (Lattice, error) {
	if err := d3.Box(bounds).Validate(); err != nil {
		return Lattice{}, fmt.Errorf("%w: %v", ErrBounds, err)
	}
	if resolution < 2 {
		return Lattice{}, fmt.Errorf("resolution must be 2 or larger, got %d", resolution)
	}
	if err := checkLen(resolution, resolution, resolution); err != nil {
		return Lattice{}, err
	}
	return Lattice{
		X: linspace(bounds.Min.X, bounds.Max.X, resolution),
		Y: linspace(bounds.Min.Y, bounds.Max.Y, resolution),
		Z: linspace(bounds.Min.Z, bounds.Max.Z, resolution),
	}, nil
}

// voxelCount rounds half to even. The result is left as a float so
// huge counts can be rejected before conversion.
func voxelCount(extent, voxelSize float64) float64 {
	return math.RoundToEven(extent/voxelSize + voxelEpsilon)
}

// checkLen returns ErrTooLarge if nx*ny*nz exceeds MaxPoints.
func checkLen(nx, ny, nz int) error {
	x, y, z := int64(nx), int64(ny), int64(nz)
	if x > MaxPoints || y > MaxPoints/x || z > MaxPoints/(x*y) {
		return fmt.Errorf("%w: %dx%dx%d samples exceed %d points", ErrTooLarge, nx, ny, nz, MaxPoints)
	}
	return nil
}

func linspace(l, u float64, n int) []float64 {
	return floats.Span(make([]float64, n), l, u)
}

// Shape returns the number of samples along each axis.
func (l Lattice) Shape() [3]int {
	return [3]int{len(l.X), len(l.Y), len(l.Z)}
}

// Len returns the total number of lattice points.
func (l Lattice) Len() int {
	return len(l.X) * len(l.Y) * len(l.Z)
}

// Index returns the flat index of sample (i,j,k) in Points order.
func (l Lattice) Index(i, j, k int) int {
	return (i*len(l.Y)+j)*len(l.Z) + k
}

// At returns the lattice point at index (i,j,k).
func (l Lattice) At(i, j, k int) r3.Vec {
	return r3.Vec{X: l.X[i], Y: l.Y[j], Z: l.Z[k]}
}

// Points flattens the lattice into a query batch. X varies slowest and Z fastest.
func (l Lattice) Points() []r3.Vec {
	pts := make([]r3.Vec, 0, l.Len())
	for _, x := range l.X {
		for _, y := range l.Y {
			for _, z := range l.Z {
				pts = append(pts, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return pts
}

// Bounds returns the box spanned by the first and last sample of each axis.
func (l Lattice) Bounds() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: l.X[0], Y: l.Y[0], Z: l.Z[0]},
		Max: r3.Vec{X: l.X[len(l.X)-1], Y: l.Y[len(l.Y)-1], Z: l.Z[len(l.Z)-1]},
	}
}
