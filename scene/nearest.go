package scene

import (
	"errors"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// ColoredPoint is a point of a colored point cloud, such as a fused depth scan.
type ColoredPoint struct {
	Pos   r3.Vec
	Color [3]float64
}

// NearestColor is a 3 channel color field returning the color of the nearest
// point of a point cloud.
type NearestColor struct {
	tree kdtree.Tree
}

var (
	_ kdtree.Interface  = kdPoints{}
	_ kdtree.Comparable = kdPoint{}
)

// NewNearestColor builds a k-d tree over a copy of points.
func NewNearestColor(points []ColoredPoint) (*NearestColor, error) {
	if len(points) == 0 {
		return nil, errors.New("empty point cloud")
	}
	kd := make(kdPoints, len(points))
	for i := range kd {
		kd[i] = kdPoint(points[i])
	}
	tree := kdtree.New(kd, false)
	return &NearestColor{tree: *tree}, nil
}

func (n *NearestColor) Channels() int { return 3 }

func (n *NearestColor) Evaluate(dst []float64, pos, _ []r3.Vec) error {
	for i, p := range pos {
		c := n.Nearest(p)
		copy(dst[3*i:3*i+3], c.Color[:])
	}
	return nil
}

// Nearest returns the point of the cloud closest to v.
func (n *NearestColor) Nearest(v r3.Vec) ColoredPoint {
	got, _ := n.tree.Nearest(kdPoint{Pos: v})
	return ColoredPoint(got.(kdPoint))
}

type kdPoints []kdPoint

type kdPoint ColoredPoint

func (k kdPoints) Index(i int) kdtree.Comparable { return k[i] }

// Len returns the length of the list.
func (k kdPoints) Len() int { return len(k) }

// Pivot partitions the list based on the dimension specified.
func (k kdPoints) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), points: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (k kdPoints) Slice(start, end int) kdtree.Interface {
	return k[start:end]
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
//
// Given c = a.Compare(b, d):
//
//	c = a_d - b_d
func (a kdPoint) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a, b.(kdPoint), int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (a kdPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a kdPoint) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.Pos, b.(kdPoint).Pos))
}

// c = a.dim - b.dim
func kdComp(a, b kdPoint, dim int) (c float64) {
	switch dim {
	case 0:
		c = a.Pos.X - b.Pos.X
	case 1:
		c = a.Pos.Y - b.Pos.Y
	case 2:
		c = a.Pos.Z - b.Pos.Z
	}
	return c
}

type kdPlane struct {
	dim    int
	points kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.points[i], p.points[j], p.dim) < 0
}

func (p kdPlane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

func (p kdPlane) Len() int {
	return len(p.points)
}

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
